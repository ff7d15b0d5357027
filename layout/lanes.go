// Package layout assigns trace records to drawing lanes so that no two records that overlap in time share a lane
// on the same resource.
//
// Everything in this package is a pure function of its input: the same records in the same order always produce
// the same layout.
package layout

import (
	"errors"
	"fmt"

	"honnef.co/go/simtrace/container"
	"honnef.co/go/simtrace/trace"
)

var (
	ErrDuplicateID  = errors.New("duplicate record ID")
	ErrInvertedItem = errors.New("item ends before it starts")
)

// Item is a record to be placed on a lane of its resource. End is the record's effective end; records occupy
// the half-open interval [Start, End).
type Item[ID comparable] struct {
	ID       ID
	Resource string
	Start    trace.Timestamp
	End      trace.Timestamp
}

// Lanes is the result of AssignLanes.
type Lanes[ID comparable] struct {
	lanes map[ID]int
	// resources in order of first appearance
	resources []string
	counts    map[string]int
}

// Lane returns the lane of the record with the given ID.
func (l *Lanes[ID]) Lane(id ID) (int, bool) {
	lane, ok := l.lanes[id]
	return lane, ok
}

// NumLanes returns the number of lanes opened for a resource.
func (l *Lanes[ID]) NumLanes(resource string) int {
	return l.counts[resource]
}

// Resources returns all resources, in the order they first appeared in the input.
func (l *Lanes[ID]) Resources() []string {
	return l.resources
}

// Len returns the number of placed records.
func (l *Lanes[ID]) Len() int {
	return len(l.lanes)
}

// AssignLanes places each item on the lowest-numbered lane of its resource that holds no item overlapping it,
// opening a new lane when none fits. Items are processed in the order given, and resources are independent of
// each other. This is greedy first-fit, not a minimum coloring: callers wanting compact layouts should sort items
// by start time.
//
// Items with zero length never conflict with anything and always go on lane 0.
//
// Errors are only returned for invalid input: duplicate IDs and items that end before they start.
func AssignLanes[ID comparable](items []Item[ID]) (*Lanes[ID], error) {
	l := &Lanes[ID]{
		lanes:  make(map[ID]int, len(items)),
		counts: map[string]int{},
	}
	trees := map[string][]*container.IntervalTree[trace.Timestamp, ID]{}

	for i, it := range items {
		if _, dup := l.lanes[it.ID]; dup {
			return nil, fmt.Errorf("item %d: %w %v", i, ErrDuplicateID, it.ID)
		}
		if !(it.End >= it.Start) {
			return nil, fmt.Errorf("item %d (%v, [%g, %g]): %w", i, it.ID, it.Start, it.End, ErrInvertedItem)
		}

		lanes, ok := trees[it.Resource]
		if !ok {
			l.resources = append(l.resources, it.Resource)
		}
		lane := firstFit(lanes, it.Start, it.End)
		if lane == len(lanes) {
			lanes = append(lanes, container.NewIntervalTree[trace.Timestamp, ID]())
		}
		trees[it.Resource] = lanes
		if it.End > it.Start {
			lanes[lane].Insert(it.Start, it.End, it.ID)
		}
		l.lanes[it.ID] = lane
	}

	for res, lanes := range trees {
		l.counts[res] = len(lanes)
	}
	return l, nil
}

func firstFit[ID comparable](lanes []*container.IntervalTree[trace.Timestamp, ID], start, end trace.Timestamp) int {
	for i, tree := range lanes {
		if !tree.Any(start, end) {
			return i
		}
	}
	return len(lanes)
}

// ByResource builds an item for every record with fn and assigns lanes to them.
func ByResource[R any, ID comparable](records []R, fn func(R) Item[ID]) (*Lanes[ID], error) {
	items := make([]Item[ID], len(records))
	for i, r := range records {
		items[i] = fn(r)
	}
	return AssignLanes(items)
}
