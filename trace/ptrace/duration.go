package ptrace

import (
	"fmt"

	"honnef.co/go/simtrace/trace"
)

// Duration returns the length of a phase, or of the whole task for PhaseWhole. Fragmented phases sum the
// lengths of their intervals; gaps between fragments don't count. Durations are never negative: phases that
// end before they start, which happens when a task failed before reaching them, count as zero.
func (t *Task) Duration(k PhaseKind) trace.Timestamp {
	d, _ := t.duration(k)
	return d
}

// DurationByName is like Duration, but takes the phase's wire name: "read", "compute", "write" or "whole_task".
func (t *Task) DurationByName(name string) (trace.Timestamp, error) {
	k, ok := ParsePhaseKind(name)
	if !ok {
		return 0, fmt.Errorf("unknown phase %q", name)
	}
	return t.Duration(k), nil
}

// duration is like Duration, but also reports whether the result had to be clamped.
func (t *Task) duration(k PhaseKind) (trace.Timestamp, bool) {
	if k == PhaseWhole {
		return clampDuration(t.EffectiveEnd() - t.Whole.Start)
	}

	var total trace.Timestamp
	var clamped bool
	for _, ival := range t.Phase(k).Intervals {
		d, c := clampDuration(t.IntervalEnd(ival) - ival.Start)
		total += d
		clamped = clamped || c
	}
	return total, clamped
}

func clampDuration(d trace.Timestamp) (trace.Timestamp, bool) {
	if d < 0 {
		return 0, true
	}
	return d, false
}

// BoundingBox returns the smallest span covering all of a phase's intervals, with open intervals closed by the
// task's effective end. For PhaseWhole it spans the whole task. The span never ends before it starts.
func (t *Task) BoundingBox(k PhaseKind) Span {
	if k == PhaseWhole {
		return Span{t.Whole.Start, max(t.Whole.Start, t.EffectiveEnd())}
	}

	p := t.Phase(k)
	box := Span{p.Intervals[0].Start, t.IntervalEnd(p.Intervals[0])}
	for _, ival := range p.Intervals[1:] {
		box.Start = min(box.Start, ival.Start)
		box.End = max(box.End, t.IntervalEnd(ival))
	}
	box.End = max(box.End, box.Start)
	return box
}
