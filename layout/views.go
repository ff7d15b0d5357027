package layout

import (
	"fmt"
	"strconv"

	"honnef.co/go/simtrace/container"
	"honnef.co/go/simtrace/trace"
	"honnef.co/go/simtrace/trace/ptrace"

	"golang.org/x/exp/slices"
)

// TaskLanes places every task on a lane of its host so that tasks whose whole spans overlap never share a lane.
// Tasks are considered in order of their start.
func TaskLanes(tr *ptrace.Trace) (*Lanes[ptrace.RecordID], error) {
	tasks := slices.Clone(tr.Tasks)
	slices.SortStableFunc(tasks, func(a, b *ptrace.Task) int {
		return compareTimestamps(a.Whole.Start, b.Whole.Start)
	})
	return ByResource(tasks, func(t *ptrace.Task) Item[ptrace.RecordID] {
		box := t.BoundingBox(ptrace.PhaseWhole)
		return Item[ptrace.RecordID]{
			ID:       t.ID,
			Resource: t.Host.Name,
			Start:    box.Start,
			End:      box.End,
		}
	})
}

// DiskResource returns the lane resource of disk operations. Reads and writes of a mount are drawn in separate
// rows and thus get separate lanes. Host and mount are quoted so that distinct pairs never map to the same key.
func DiskResource(host, mount string, dir ptrace.Direction) string {
	return strconv.Quote(host) + ":" + strconv.Quote(mount) + " " + dir.String()
}

// DiskLanes places every disk operation on a lane of its host, mount and direction.
func DiskLanes(tr *ptrace.Trace) (*Lanes[ptrace.RecordID], error) {
	ops := slices.Clone(tr.DiskOperations)
	slices.SortStableFunc(ops, func(a, b *ptrace.DiskOperation) int {
		return compareTimestamps(a.Start, b.Start)
	})
	return ByResource(ops, func(op *ptrace.DiskOperation) Item[ptrace.RecordID] {
		return Item[ptrace.RecordID]{
			ID:       op.ID,
			Resource: DiskResource(op.Host, op.Mount, op.Direction),
			Start:    op.Start,
			End:      op.End,
		}
	})
}

type RowKind uint8

const (
	RowDiskReads RowKind = iota
	RowDiskWrites
	RowCore
)

func (k RowKind) String() string {
	switch k {
	case RowDiskReads:
		return "reads"
	case RowDiskWrites:
		return "writes"
	case RowCore:
		return "core"
	default:
		return fmt.Sprintf("RowKind(%d)", k)
	}
}

// RowItem is a record drawn in a row. Lane is the record's lane within the row; it is always 0 for core rows.
type RowItem struct {
	Record ptrace.RecordID
	Start  trace.Timestamp
	End    trace.Timestamp
	Lane   int
}

// Row is one row of the host utilization chart.
type Row struct {
	Host  string
	Kind  RowKind
	Mount string
	Core  int
	Label string
	// The number of lanes items in this row are spread over.
	Lanes int
	Items []RowItem
}

// HostRows returns the rows of the host utilization chart. Each host gets a reads and a writes row per mount,
// in mount order, followed by one row per core. A task spanning several cores appears in each of their rows.
// disk may be nil, in which case no disk rows are produced.
func HostRows(tr *ptrace.Trace, cores *CoreSchedule, disk *Lanes[ptrace.RecordID]) []Row {
	var rows []Row

	opsByHost := map[string][]*ptrace.DiskOperation{}
	if disk != nil {
		for _, op := range tr.DiskOperations {
			opsByHost[op.Host] = append(opsByHost[op.Host], op)
		}
	}

	// Hosts that only appear in disk operations come after those that ran tasks, sorted by name.
	hosts := make([]string, 0, len(tr.Hosts))
	for _, h := range tr.Hosts {
		hosts = append(hosts, h.Name)
	}
	diskOnly := container.Set[string]{}
	for name := range opsByHost {
		if tr.Host(name) == nil {
			diskOnly.Add(name)
		}
	}
	hosts = append(hosts, container.Sorted(diskOnly)...)

	for _, name := range hosts {
		// Disk operations are sorted by host, mount and direction, so consecutive runs form rows.
		var cur *Row
		for _, op := range opsByHost[name] {
			kind := RowDiskReads
			if op.Direction == ptrace.DiskWrite {
				kind = RowDiskWrites
			}
			if cur == nil || cur.Mount != op.Mount || cur.Kind != kind {
				rows = append(rows, Row{
					Host:  name,
					Kind:  kind,
					Mount: op.Mount,
					Label: fmt.Sprintf("%s (mount: %s - %s)", name, op.Mount, kind),
					Lanes: disk.NumLanes(DiskResource(name, op.Mount, op.Direction)),
				})
				cur = &rows[len(rows)-1]
			}
			lane, _ := disk.Lane(op.ID)
			cur.Items = append(cur.Items, RowItem{
				Record: op.ID,
				Start:  op.Start,
				End:    op.End,
				Lane:   lane,
			})
		}

		h := tr.Host(name)
		if h == nil {
			continue
		}
		for c := 0; c < h.Cores; c++ {
			row := Row{
				Host:  h.Name,
				Kind:  RowCore,
				Core:  c,
				Label: fmt.Sprintf("%s (core #%d)", h.Name, c),
				Lanes: 1,
			}
			for _, t := range cores.HostCores(h, c) {
				box := t.BoundingBox(ptrace.PhaseWhole)
				row.Items = append(row.Items, RowItem{
					Record: t.ID,
					Start:  box.Start,
					End:    box.End,
				})
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// Layout is the complete layout of a trace.
type Layout struct {
	Trace     *ptrace.Trace
	Cores     *CoreSchedule
	TaskLanes *Lanes[ptrace.RecordID]
	DiskLanes *Lanes[ptrace.RecordID]
	Rows      []Row
}

// Diagnostics returns the trace's diagnostics followed by those found while scheduling cores.
func (l *Layout) Diagnostics() []ptrace.Diagnostic {
	out := make([]ptrace.Diagnostic, 0, len(l.Trace.Diagnostics)+len(l.Cores.Diagnostics))
	out = append(out, l.Trace.Diagnostics...)
	out = append(out, l.Cores.Diagnostics...)
	return out
}

// Compute runs all layout passes over a processed trace. progress, if not nil, is called with values in [0, 1].
func Compute(tr *ptrace.Trace, progress func(float64)) (*Layout, error) {
	if progress == nil {
		progress = func(float64) {}
	}

	// Core scheduling does the bulk of the work; the lane passes are reported as single steps.
	const numStages = 4
	cores, err := ScheduleCores(tr, func(p float64) { progress(p / numStages) })
	if err != nil {
		return nil, err
	}

	tasks, err := TaskLanes(tr)
	if err != nil {
		return nil, fmt.Errorf("couldn't assign task lanes: %w", err)
	}
	progress(2.0 / numStages)

	disk, err := DiskLanes(tr)
	if err != nil {
		return nil, fmt.Errorf("couldn't assign disk lanes: %w", err)
	}
	progress(3.0 / numStages)

	l := &Layout{
		Trace:     tr,
		Cores:     cores,
		TaskLanes: tasks,
		DiskLanes: disk,
		Rows:      HostRows(tr, cores, disk),
	}
	progress(1)
	return l, nil
}
