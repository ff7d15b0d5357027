package ptrace

import (
	"golang.org/x/exp/slices"
	"honnef.co/go/simtrace/container"
	"honnef.co/go/simtrace/trace"
)

// validTimestamp reports whether ts is a usable point in time. Simulated time starts at zero.
func validTimestamp(ts trace.Timestamp) bool {
	return ts >= 0
}

// optionalTimestamp converts a nullable wire timestamp that uses -1 for "not observed".
func optionalTimestamp(ts *trace.Timestamp) (container.Option[trace.Timestamp], bool) {
	if ts == nil {
		return container.None[trace.Timestamp](), true
	}
	opt := container.SomeUnless(*ts, trace.Unset)
	if v, ok := opt.Get(); ok && !validTimestamp(v) {
		return opt, false
	}
	return opt, true
}

func validateTask(tr *Trace, id RecordID, raw *trace.Task) (*Task, bool) {
	reject := func(kind DiagnosticKind, f string, args ...any) (*Task, bool) {
		tr.diag(kind, id, raw.TaskID, f, args...)
		return nil, false
	}

	if raw.ExecutionHost == nil || raw.ExecutionHost.Hostname == "" {
		return reject(MalformedRecord, "missing execution host")
	}
	if raw.ExecutionHost.Cores < 1 {
		return reject(MalformedRecord, "host %q has %d cores", raw.ExecutionHost.Hostname, raw.ExecutionHost.Cores)
	}
	numCores := 1
	if raw.NumCoresAllocated != nil {
		numCores = *raw.NumCoresAllocated
	}
	if numCores < 1 || numCores > raw.ExecutionHost.Cores {
		return reject(MalformedRecord, "%d cores allocated on host %q with %d cores",
			numCores, raw.ExecutionHost.Hostname, raw.ExecutionHost.Cores)
	}

	t := &Task{
		ID:     id,
		TaskID: raw.TaskID,
		Host: &Host{
			Name:     raw.ExecutionHost.Hostname,
			Cores:    raw.ExecutionHost.Cores,
			FlopRate: raw.ExecutionHost.FlopRate,
			Memory:   raw.ExecutionHost.Memory,
		},
		NumCores: numCores,
	}

	if raw.WholeTask == nil {
		return reject(MalformedRecord, "missing whole_task")
	}
	whole, ok, msg := convertInterval(*raw.WholeTask)
	if !ok {
		return reject(MalformedRecord, "whole_task %s: %s", raw.WholeTask, msg)
	}
	if whole.Start == trace.Unset {
		return reject(MalformedRecord, "whole_task never started")
	}
	t.Whole = whole

	var okF, okT bool
	t.Failed, okF = optionalTimestamp(raw.Failed)
	t.Terminated, okT = optionalTimestamp(raw.Terminated)
	if !okF || !okT {
		return reject(MalformedRecord, "invalid failure or termination time")
	}
	if t.Failed.Set() && t.Terminated.Set() {
		return reject(MalformedRecord, "task both failed (at %s) and was terminated (at %s)", t.Failed, t.Terminated)
	}

	phases := [...]struct {
		kind PhaseKind
		raw  *trace.Phase
		dst  *Phase
	}{
		{PhaseRead, &raw.Read, &t.Read},
		{PhaseCompute, &raw.Compute, &t.Compute},
		{PhaseWrite, &raw.Write, &t.Write},
	}
	for _, ph := range phases {
		p, ok, msg := convertPhase(ph.raw, t.Whole.Start)
		if !ok {
			return reject(MalformedRecord, "%s phase: %s", ph.kind, msg)
		}
		if ph.kind == PhaseCompute && len(p.Intervals) > 1 {
			return reject(MalformedRecord, "compute phase has %d intervals, expected one", len(p.Intervals))
		}
		*ph.dst = p
	}

	if _, ok := ResolveEnd(t); !ok {
		return reject(UnresolvableEnd, "task has no end, failure, or termination time")
	}

	return t, true
}

// convertInterval converts a raw interval. Its start may be -1, which callers interpret.
func convertInterval(raw trace.Interval) (Interval, bool, string) {
	if raw.Start == nil || raw.End == nil {
		return Interval{}, false, "missing start or end"
	}
	start := *raw.Start
	if start != trace.Unset && !validTimestamp(start) {
		return Interval{}, false, "invalid start"
	}
	end, ok := optionalTimestamp(raw.End)
	if !ok {
		return Interval{}, false, "invalid end"
	}
	if e, ok := end.Get(); ok && e < start {
		return Interval{}, false, "ends before it starts"
	}
	return Interval{Start: start, End: end}, true, ""
}

// convertPhase converts a raw phase. Intervals that never started are dropped, and a phase without any started
// intervals becomes a zero-length placeholder at taskStart.
func convertPhase(raw *trace.Phase, taskStart trace.Timestamp) (Phase, bool, string) {
	var p Phase
	for _, rival := range raw.Intervals {
		ival, ok, msg := convertInterval(rival)
		if !ok {
			return Phase{}, false, rival.String() + ": " + msg
		}
		if ival.Open() {
			p.Truncated = true
		}
		if ival.Start == trace.Unset {
			if ival.End.Set() {
				return Phase{}, false, rival.String() + ": ends without having started"
			}
			continue
		}
		p.Intervals = append(p.Intervals, ival)
	}
	if len(p.Intervals) == 0 {
		return Phase{
			Intervals:   []Interval{{Start: taskStart, End: container.Some(taskStart)}},
			Placeholder: true,
			Truncated:   p.Truncated,
		}, true, ""
	}
	return p, true, ""
}

func processDiskOperations(raw map[string]map[string]trace.Mount, tr *Trace, progress func(float64)) {
	hosts := make([]string, 0, len(raw))
	total := 0
	for host, mounts := range raw {
		hosts = append(hosts, host)
		for _, m := range mounts {
			total += len(m.Reads) + len(m.Writes)
		}
	}
	slices.Sort(hosts)

	var id RecordID
	for _, host := range hosts {
		mounts := make([]string, 0, len(raw[host]))
		for mount := range raw[host] {
			mounts = append(mounts, mount)
		}
		slices.Sort(mounts)

		for _, mount := range mounts {
			m := raw[host][mount]
			lists := [...]struct {
				dir Direction
				ops []trace.DiskOperation
			}{
				{DiskRead, m.Reads},
				{DiskWrite, m.Writes},
			}
			for _, l := range lists {
				for i := range l.ops {
					if (id+1)%10_000 == 0 {
						progress(float64(id) / float64(total))
					}
					op, ok := validateDiskOperation(tr, id, host, mount, l.dir, &l.ops[i])
					if ok {
						tr.DiskOperations = append(tr.DiskOperations, op)
					}
					id++
				}
			}
		}
	}
	progress(1)
}

func validateDiskOperation(
	tr *Trace,
	id RecordID,
	host, mount string,
	dir Direction,
	raw *trace.DiskOperation,
) (*DiskOperation, bool) {
	label := host + ":" + mount + " " + dir.String()
	ival, ok, msg := convertInterval(trace.Interval{Start: raw.Start, End: raw.End})
	if !ok {
		tr.diskDiag(MalformedRecord, id, label, "%s: %s", trace.Interval{Start: raw.Start, End: raw.End}, msg)
		return nil, false
	}
	if ival.Start == trace.Unset {
		tr.diskDiag(MalformedRecord, id, label, "disk operation never started")
		return nil, false
	}
	end, ok := ival.End.Get()
	if !ok {
		tr.diskDiag(UnresolvableEnd, id, label, "disk operation has no end")
		return nil, false
	}
	return &DiskOperation{
		ID:        id,
		Host:      host,
		Mount:     mount,
		Direction: dir,
		Start:     ival.Start,
		End:       end,
		Bytes:     raw.Bytes,
	}, true
}
