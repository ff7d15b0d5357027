package ptrace

import (
	"golang.org/x/exp/slices"
	"honnef.co/go/simtrace/container"
	"honnef.co/go/simtrace/trace"
)

// PhaseSummary is one phase's entry in a task details table.
type PhaseSummary struct {
	Start trace.Timestamp
	// End is None if the phase was cut short by the task failing or being terminated.
	End         container.Option[trace.Timestamp]
	Duration    trace.Timestamp
	Placeholder bool
}

type TableRow struct {
	Task    *Task
	Outcome Outcome
	Phases  [PhaseLast]PhaseSummary
}

// TableRows summarizes every task for a task details table, sorted by the start of the compute phase. Ties keep
// input order.
func TableRows(tr *Trace) []TableRow {
	rows := make([]TableRow, 0, len(tr.Tasks))
	for _, t := range tr.Tasks {
		row := TableRow{
			Task:    t,
			Outcome: t.Outcome(),
		}
		for k := PhaseRead; k < PhaseLast; k++ {
			var s PhaseSummary
			if k == PhaseWhole {
				s.Start = t.Whole.Start
				s.End = t.Whole.End
				if row.Outcome != Completed {
					s.End = container.None[trace.Timestamp]()
				}
			} else {
				p := t.Phase(k)
				s.Placeholder = p.Placeholder
				s.Start = p.Intervals[0].Start
				if !p.Open() {
					s.End = p.Intervals[len(p.Intervals)-1].End
				}
			}
			s.Duration = t.Duration(k)
			row.Phases[k] = s
		}
		rows = append(rows, row)
	}

	slices.SortStableFunc(rows, func(a, b TableRow) int {
		as, bs := a.Phases[PhaseCompute].Start, b.Phases[PhaseCompute].Start
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		default:
			return 0
		}
	})
	return rows
}
