// Package ptrace processes a raw simulation trace into validated task and disk operation records.
//
// Processing normalizes the wire format's quirks (null phases, phases that were never started, the -1 sentinel)
// into explicit values, rejects records that can't be laid out, and reports every problem it finds as a
// Diagnostic instead of failing the whole trace.
package ptrace

import (
	"fmt"
	"math"

	"honnef.co/go/simtrace/container"
	"honnef.co/go/simtrace/trace"
)

// RecordID identifies a record within a single trace. For tasks it is the record's index in the input task list;
// the same task ID can occur several times when a task was retried. Disk operations are numbered in the order
// of Trace.DiskOperations.
type RecordID int32

type PhaseKind uint8

const (
	PhaseNone PhaseKind = iota
	PhaseRead
	PhaseCompute
	PhaseWrite
	// PhaseWhole is the whole task, from its start to its effective end.
	PhaseWhole

	PhaseLast
)

var phaseNames = [PhaseLast]string{
	PhaseNone:    "none",
	PhaseRead:    "read",
	PhaseCompute: "compute",
	PhaseWrite:   "write",
	PhaseWhole:   "whole_task",
}

func (k PhaseKind) String() string {
	if k >= PhaseLast {
		return fmt.Sprintf("PhaseKind(%d)", k)
	}
	return phaseNames[k]
}

// ParsePhaseKind maps the wire names "read", "compute", "write" and "whole_task" to phase kinds.
func ParsePhaseKind(s string) (PhaseKind, bool) {
	for k := PhaseRead; k < PhaseLast; k++ {
		if phaseNames[k] == s {
			return k, true
		}
	}
	return PhaseNone, false
}

// Interval is a time interval whose end may not have been observed.
type Interval struct {
	Start trace.Timestamp
	End   container.Option[trace.Timestamp]
}

func (ival Interval) Open() bool { return !ival.End.Set() }

func (ival Interval) String() string {
	if end, ok := ival.End.Get(); ok {
		return fmt.Sprintf("[%g, %g]", ival.Start, end)
	}
	return fmt.Sprintf("[%g, open]", ival.Start)
}

// Span is a closed interval with both ends resolved.
type Span struct {
	Start trace.Timestamp
	End   trace.Timestamp
}

// Phase is a task phase. Read and write phases may consist of several disjoint intervals in increasing order;
// compute phases have exactly one.
type Phase struct {
	// Intervals is never empty.
	Intervals []Interval
	// Placeholder is set for phases that didn't happen, either because the wire format had null or because the
	// phase never started. Such phases have a single zero-length interval at the task's start.
	Placeholder bool
	// Truncated is set if any of the phase's intervals had no end on the wire, including intervals that never
	// started.
	Truncated bool
}

// Open reports whether any of the phase's intervals is open.
func (p Phase) Open() bool {
	for _, ival := range p.Intervals {
		if ival.Open() {
			return true
		}
	}
	return false
}

type Host struct {
	Name     string
	Cores    int
	FlopRate float64
	Memory   float64
	// Sequential ID of the host in the trace, in order of first appearance.
	SeqID int
	// Tasks that ran on this host, in input order.
	Tasks []*Task
}

type Task struct {
	ID     RecordID
	TaskID string
	Host   *Host
	// NumCores is the number of cores the task occupied, in [1, Host.Cores].
	NumCores int

	Whole   Interval
	Read    Phase
	Compute Phase
	Write   Phase

	Failed     container.Option[trace.Timestamp]
	Terminated container.Option[trace.Timestamp]
}

func (t *Task) Phase(k PhaseKind) *Phase {
	switch k {
	case PhaseRead:
		return &t.Read
	case PhaseCompute:
		return &t.Compute
	case PhaseWrite:
		return &t.Write
	default:
		panic(fmt.Sprintf("%s isn't a phase with intervals", k))
	}
}

type Direction uint8

const (
	DiskRead Direction = iota
	DiskWrite
)

func (d Direction) String() string {
	switch d {
	case DiskRead:
		return "read"
	case DiskWrite:
		return "write"
	default:
		return fmt.Sprintf("Direction(%d)", d)
	}
}

type DiskOperation struct {
	ID        RecordID
	Host      string
	Mount     string
	Direction Direction
	Start     trace.Timestamp
	End       trace.Timestamp
	Bytes     float64
}

func (op *DiskOperation) Duration() trace.Timestamp { return op.End - op.Start }

type Trace struct {
	// Valid tasks, in input order.
	Tasks []*Task
	// Hosts, in order of first appearance.
	Hosts []*Host
	// Valid disk operations, sorted by host, mount, direction, and then input order.
	DiskOperations []*DiskOperation
	// Problems found while processing the trace, in the order they were found.
	Diagnostics []Diagnostic

	hostsByName map[string]*Host
}

func (tr *Trace) Host(name string) *Host {
	return tr.hostsByName[name]
}

// End returns the latest effective end of any task or disk operation.
func (tr *Trace) End() trace.Timestamp {
	var end trace.Timestamp
	for _, t := range tr.Tasks {
		end = max(end, t.EffectiveEnd())
	}
	for _, op := range tr.DiskOperations {
		end = max(end, op.End)
	}
	return end
}

func (tr *Trace) diag(kind DiagnosticKind, id RecordID, label string, f string, args ...any) {
	tr.Diagnostics = append(tr.Diagnostics, Diagnostic{
		Kind:    kind,
		Source:  TaskRecord,
		Record:  id,
		Label:   label,
		Message: fmt.Sprintf(f, args...),
	})
}

func (tr *Trace) diskDiag(kind DiagnosticKind, id RecordID, label string, f string, args ...any) {
	tr.diag(kind, id, label, f, args...)
	tr.Diagnostics[len(tr.Diagnostics)-1].Source = DiskOperationRecord
}

// Parse validates and normalizes a raw trace. Records that can't be laid out are excluded and reported in
// Trace.Diagnostics; the only errors are call pattern violations. progress, if not nil, is called with values
// in [0, 1].
func Parse(raw trace.Trace, progress func(float64)) (*Trace, error) {
	if progress == nil {
		progress = func(float64) {}
	}
	if len(raw.Tasks) > math.MaxInt32 {
		return nil, fmt.Errorf("trace has %d tasks, more than the supported %d", len(raw.Tasks), math.MaxInt32)
	}

	tr := &Trace{
		hostsByName: map[string]*Host{},
	}

	makeProgresser := func(stage int, numStages int) func(float64) {
		return func(p float64) {
			if p > 1 {
				panic(p)
			}
			progress(float64(stage-1)/float64(numStages) + (p / float64(numStages)))
		}
	}

	processTasks(raw.Tasks, tr, makeProgresser(1, 2))
	processDiskOperations(raw.Disk, tr, makeProgresser(2, 2))
	progress(1)

	return tr, nil
}

func processTasks(raw []trace.Task, tr *Trace, progress func(float64)) {
	for i := range raw {
		if (i+1)%10_000 == 0 {
			progress(float64(i) / float64(len(raw)))
		}
		t, ok := validateTask(tr, RecordID(i), &raw[i])
		if !ok {
			continue
		}

		h := tr.hostsByName[t.Host.Name]
		if h == nil {
			h = t.Host
			h.SeqID = len(tr.Hosts)
			tr.hostsByName[h.Name] = h
			tr.Hosts = append(tr.Hosts, h)
		} else if h.Cores != t.Host.Cores {
			tr.diag(MalformedRecord, t.ID, t.TaskID,
				"host %q has %d cores, but earlier records say %d", h.Name, t.Host.Cores, h.Cores)
			continue
		}
		t.Host = h
		h.Tasks = append(h.Tasks, t)
		tr.Tasks = append(tr.Tasks, t)

		for k := PhaseRead; k < PhaseLast; k++ {
			if d, clamped := t.duration(k); clamped {
				tr.diag(NegativeDuration, t.ID, t.TaskID, "%s phase ends before it starts; using a duration of %g", k, d)
			}
		}
	}
	progress(1)
}
