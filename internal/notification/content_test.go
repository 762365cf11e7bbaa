package notification_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/geonotify/geonotify/internal/notification"
	"github.com/geonotify/geonotify/internal/zone"
)

func TestCompose(t *testing.T) {
	z := &zone.Zone{Name: "Cliff edge", Reminder: "Stay behind the fence", DangerLevel: zone.DangerDanger}

	entered := notification.Compose(notification.KindEntered, z, "", 0)
	assert.Equal(t, "Entered DANGER zone", entered.Title)
	assert.Equal(t, "Cliff edge: Stay behind the fence", entered.Body)
	assert.True(t, entered.RequireInteraction)

	near := notification.Compose(notification.KindNear, z, "", 41.6)
	assert.Equal(t, "Approaching DANGER zone", near.Title)
	assert.Equal(t, "Cliff edge is 42 meters away", near.Body)
	assert.False(t, near.RequireInteraction)

	exited := notification.Compose(notification.KindExited, z, "", 0)
	assert.Equal(t, "You have left Cliff edge", exited.Body)

	critical := &zone.Zone{Name: "Crater", DangerLevel: zone.DangerCritical}
	esc := notification.Compose(notification.KindEscalation, critical, "Ana", 0)
	assert.Equal(t, "RESCUE ALERT - CRITICAL", esc.Title)
	assert.Equal(t, "Ana is inside Crater", esc.Body)
	assert.True(t, esc.RequireInteraction)
}

func TestCompose_EnteredSafeZone(t *testing.T) {
	z := &zone.Zone{Name: "Beach", DangerLevel: zone.DangerCaution}

	c := notification.Compose(notification.KindEntered, z, "", 0)
	assert.Equal(t, "Beach", c.Body)
	assert.False(t, c.RequireInteraction)
}
