// Package tracking evaluates subject locations against the zone catalog,
// tracks zone transitions per subject and applies the alert policy.
package tracking

import (
	"sort"

	"github.com/geonotify/geonotify/internal/geo"
	"github.com/geonotify/geonotify/internal/zone"
)

// NearZone is a zone that does not contain the point but whose boundary is
// within its near threshold.
type NearZone struct {
	Zone           *zone.Zone
	DistanceMeters float64
}

// Containment is the result of evaluating one point against the catalog.
// Inside and Near are disjoint and ordered by zone id.
type Containment struct {
	Inside []*zone.Zone
	Near   []NearZone

	// ZoneErrors holds one *geo.ConfigurationError per zone that was skipped.
	ZoneErrors []error
}

// InsideIDs returns the ids of the containing zones.
func (c *Containment) InsideIDs() []string {
	ids := make([]string, 0, len(c.Inside))
	for _, z := range c.Inside {
		ids = append(ids, z.ID)
	}
	return ids
}

// Evaluate classifies pt against every zone. A zone whose boundary is
// malformed is reported in ZoneErrors and excluded from both sets.
func Evaluate(pt geo.Point, zones []*zone.Zone) *Containment {
	c := &Containment{}

	for _, z := range zones {
		poly, err := z.Polygon()
		if err != nil {
			c.ZoneErrors = append(c.ZoneErrors, err)
			continue
		}

		if poly.Contains(pt) {
			c.Inside = append(c.Inside, z)
			continue
		}

		if d := poly.DistanceToBoundary(pt); d <= z.NearThreshold() {
			c.Near = append(c.Near, NearZone{Zone: z, DistanceMeters: d})
		}
	}

	sort.Slice(c.Inside, func(i, j int) bool { return c.Inside[i].ID < c.Inside[j].ID })
	sort.Slice(c.Near, func(i, j int) bool { return c.Near[i].Zone.ID < c.Near[j].Zone.ID })
	return c
}
