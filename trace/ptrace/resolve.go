package ptrace

import (
	"fmt"

	"honnef.co/go/simtrace/trace"
)

type Outcome uint8

const (
	Completed Outcome = iota
	Failed
	Terminated
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	case Terminated:
		return "Terminated"
	default:
		return fmt.Sprintf("Outcome(%d)", o)
	}
}

// ResolveEnd returns the time at which the task stopped occupying its host: the termination time if it was
// terminated, otherwise the failure time if it failed, otherwise the end of the whole task. It returns false if
// none of these are known.
func ResolveEnd(t *Task) (trace.Timestamp, bool) {
	return t.Terminated.Or(t.Failed).Or(t.Whole.End).Get()
}

// EffectiveEnd is like ResolveEnd, but panics for tasks without an end. Every task in a Trace has one.
func (t *Task) EffectiveEnd() trace.Timestamp {
	end, ok := ResolveEnd(t)
	if !ok {
		panic(fmt.Sprintf("task %q (record %d) has no effective end", t.TaskID, t.ID))
	}
	return end
}

// IntervalEnd returns the end of one of t's intervals. Open intervals are closed by the task's own effective
// end, which is how a phase that was cut short by a failure or termination gets its length.
func (t *Task) IntervalEnd(ival Interval) trace.Timestamp {
	if end, ok := ival.End.Get(); ok {
		return end
	}
	return t.EffectiveEnd()
}

// Outcome reports how the task ended.
func (t *Task) Outcome() Outcome {
	switch {
	case t.Terminated.Set():
		return Terminated
	case t.Failed.Set():
		return Failed
	default:
		return Completed
	}
}

// OpenPhase returns the phase that was cut short when the task failed or was terminated: the first of read,
// compute and write, in that order, that has an interval without an end. Phases that never started count if
// their end was missing too. It returns PhaseNone for tasks that completed and for tasks whose phases all closed.
func (t *Task) OpenPhase() PhaseKind {
	if t.Outcome() == Completed {
		return PhaseNone
	}
	for _, k := range [...]PhaseKind{PhaseRead, PhaseCompute, PhaseWrite} {
		if t.Phase(k).Truncated {
			return k
		}
	}
	return PhaseNone
}
