package notification

import (
	"fmt"
	"math"
	"strings"

	"github.com/geonotify/geonotify/internal/zone"
)

// Content is the human readable part of an event.
type Content struct {
	Title              string
	Body               string
	RequireInteraction bool
}

// Compose builds the title and body of an event for zone z. distance is used
// by near events; subjectName by escalations.
func Compose(kind Kind, z *zone.Zone, subjectName string, distance float64) Content {
	level := strings.ToUpper(z.DangerLevel.String())
	severe := z.DangerLevel.AtLeast(zone.DangerDanger)

	switch kind {
	case KindEntered:
		body := z.Name
		if z.Reminder != "" {
			body = z.Name + ": " + z.Reminder
		}
		return Content{
			Title:              fmt.Sprintf("Entered %s zone", level),
			Body:               body,
			RequireInteraction: severe,
		}
	case KindExited:
		return Content{
			Title: "Left zone",
			Body:  fmt.Sprintf("You have left %s", z.Name),
		}
	case KindNear:
		return Content{
			Title: fmt.Sprintf("Approaching %s zone", level),
			Body:  fmt.Sprintf("%s is %d meters away", z.Name, int(math.Round(distance))),
		}
	case KindEscalation:
		who := subjectName
		if who == "" {
			who = "A subject"
		}
		return Content{
			Title:              "RESCUE ALERT - " + level,
			Body:               fmt.Sprintf("%s is inside %s", who, z.Name),
			RequireInteraction: true,
		}
	}
	return Content{Title: z.Name}
}
