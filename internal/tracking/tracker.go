package tracking

import (
	"sort"
)

// Diff is the transition of one subject between two evaluations.
type Diff struct {
	// Entered are subscribed zones that contain the point now but did not
	// contain the previous one.
	Entered []string

	// Exited are subscribed zones that contained the previous point but not
	// this one.
	Exited []string

	// SubscribedInside are subscribed zones that contain the point.
	SubscribedInside []string

	// Next is the containment set to persist. It is never filtered by
	// subscription.
	Next []string
}

// Track computes the transition from last to inside for a subject subscribed
// to subscribed. All inputs are treated as sets.
//
// Subscribing while already inside a zone yields no entered transition for
// it, because last already holds the zone from the unfiltered history.
func Track(last, subscribed, inside []string) Diff {
	lastSet := toSet(last)
	subSet := toSet(subscribed)
	insideSet := toSet(inside)

	var d Diff
	for id := range insideSet {
		if _, ok := subSet[id]; !ok {
			continue
		}
		d.SubscribedInside = append(d.SubscribedInside, id)
		if _, ok := lastSet[id]; !ok {
			d.Entered = append(d.Entered, id)
		}
	}
	for id := range lastSet {
		if _, ok := insideSet[id]; ok {
			continue
		}
		if _, ok := subSet[id]; ok {
			d.Exited = append(d.Exited, id)
		}
	}

	d.Next = make([]string, 0, len(insideSet))
	for id := range insideSet {
		d.Next = append(d.Next, id)
	}

	sort.Strings(d.Entered)
	sort.Strings(d.Exited)
	sort.Strings(d.SubscribedInside)
	sort.Strings(d.Next)
	return d
}

// Changed reports whether the transition emits entered or exited events.
func (d Diff) Changed() bool {
	return len(d.Entered) > 0 || len(d.Exited) > 0
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
