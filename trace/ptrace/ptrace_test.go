package ptrace

import (
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"honnef.co/go/simtrace/trace"
)

func ts(v float64) *trace.Timestamp {
	t := trace.Timestamp(v)
	return &t
}

func ival(start, end float64) trace.Interval {
	return trace.Interval{Start: ts(start), End: ts(end)}
}

func phase(ivals ...trace.Interval) trace.Phase {
	return trace.Phase{Present: true, Intervals: ivals, List: true}
}

func single(start, end float64) trace.Phase {
	return trace.Phase{Present: true, Intervals: []trace.Interval{ival(start, end)}}
}

func rawTask(id, host string, cores int) trace.Task {
	n := 1
	return trace.Task{
		TaskID:            id,
		ExecutionHost:     &trace.Host{Hostname: host, Cores: cores},
		NumCoresAllocated: &n,
		Failed:            ts(-1),
		Terminated:        ts(-1),
	}
}

func mustParse(t *testing.T, raw trace.Trace) *Trace {
	t.Helper()
	tr, err := Parse(raw, nil)
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func loadTestdata(t *testing.T) *Trace {
	t.Helper()
	f, err := os.Open("../testdata/failed_terminated.json")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	raw, err := trace.Parse(f)
	if err != nil {
		t.Fatal(err)
	}
	return mustParse(t, raw)
}

func TestEndToEndExample(t *testing.T) {
	tr := loadTestdata(t)
	if len(tr.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %v", tr.Diagnostics)
	}
	if len(tr.Tasks) != 3 || len(tr.Hosts) != 1 || tr.Hosts[0].Name != "Host1" || len(tr.Hosts[0].Tasks) != 3 {
		t.Fatalf("unexpected trace shape: %d tasks, %d hosts", len(tr.Tasks), len(tr.Hosts))
	}

	tests := []struct {
		end     trace.Timestamp
		open    PhaseKind
		outcome Outcome
	}{
		{2, PhaseRead, Failed},
		{14, PhaseCompute, Terminated},
		{28, PhaseWrite, Failed},
	}
	for i, tt := range tests {
		task := tr.Tasks[i]
		if got := task.EffectiveEnd(); got != tt.end {
			t.Errorf("%s: EffectiveEnd = %g, want %g", task.TaskID, got, tt.end)
		}
		if got := task.OpenPhase(); got != tt.open {
			t.Errorf("%s: OpenPhase = %s, want %s", task.TaskID, got, tt.open)
		}
		if got := task.Outcome(); got != tt.outcome {
			t.Errorf("%s: Outcome = %s, want %s", task.TaskID, got, tt.outcome)
		}
	}

	// task1's write phase was null and becomes a placeholder at the task's start.
	w := tr.Tasks[1].Write
	if !w.Placeholder || len(w.Intervals) != 1 || w.Intervals[0].Start != 10 || w.Intervals[0].End.MustGet() != 10 {
		t.Errorf("unexpected placeholder write phase: %+v", w)
	}

	if len(tr.DiskOperations) != 4 {
		t.Fatalf("got %d disk operations, want 4", len(tr.DiskOperations))
	}
	if op := tr.DiskOperations[3]; op.Direction != DiskWrite || op.ID != 3 || op.Start != 6 {
		t.Errorf("unexpected last disk operation: %+v", op)
	}
	if got := tr.End(); got != 28 {
		t.Errorf("trace end = %g, want 28", got)
	}
}

func TestSentinelResolution(t *testing.T) {
	tests := []struct {
		name       string
		whole      trace.Interval
		failed     float64
		terminated float64
		want       trace.Timestamp
	}{
		{"terminated", ival(0, -1), -1, 14, 14},
		{"failed", ival(0, 9), 2, -1, 2},
		{"completed", ival(0, 29), -1, -1, 29},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := rawTask("t", "h", 1)
			raw.WholeTask = &tt.whole
			raw.Failed = ts(tt.failed)
			raw.Terminated = ts(tt.terminated)
			tr := mustParse(t, trace.Trace{Tasks: []trace.Task{raw}})
			if len(tr.Tasks) != 1 {
				t.Fatalf("task was rejected: %v", tr.Diagnostics)
			}
			if got := tr.Tasks[0].EffectiveEnd(); got != tt.want {
				t.Errorf("EffectiveEnd = %g, want %g", got, tt.want)
			}
		})
	}
}

func TestFragmentedDuration(t *testing.T) {
	raw := rawTask("t", "h", 1)
	raw.WholeTask = &trace.Interval{Start: ts(0), End: ts(10)}
	raw.Read = phase(ival(0, 3), ival(5, 6))
	raw.Compute = single(6, 8)
	raw.Write = phase(ival(8, 9), ival(9.5, -1))
	raw.Failed = ts(9.75)

	tr := mustParse(t, trace.Trace{Tasks: []trace.Task{raw}})
	task := tr.Tasks[0]

	want := map[PhaseKind]trace.Timestamp{
		PhaseRead:    4,
		PhaseCompute: 2,
		PhaseWrite:   1.25,
		PhaseWhole:   9.75,
	}
	for k, d := range want {
		if got := task.Duration(k); got != d {
			t.Errorf("Duration(%s) = %g, want %g", k, got, d)
		}
	}

	if got, want := task.BoundingBox(PhaseRead), (Span{0, 6}); got != want {
		t.Errorf("BoundingBox(read) = %v, want %v", got, want)
	}
	if got, want := task.BoundingBox(PhaseWrite), (Span{8, 9.75}); got != want {
		t.Errorf("BoundingBox(write) = %v, want %v", got, want)
	}
	if got := task.OpenPhase(); got != PhaseWrite {
		t.Errorf("OpenPhase = %s, want write", got)
	}
}

func TestNegativeDurationIsClamped(t *testing.T) {
	// The task failed at 2, before its write phase started, but the write phase is recorded as open.
	raw := rawTask("t", "h", 1)
	raw.WholeTask = &trace.Interval{Start: ts(0), End: ts(-1)}
	raw.Read = phase(ival(0, 1))
	raw.Compute = single(1, 2)
	raw.Write = phase(ival(5, -1))
	raw.Failed = ts(2)

	tr := mustParse(t, trace.Trace{Tasks: []trace.Task{raw}})
	if len(tr.Tasks) != 1 {
		t.Fatalf("task was rejected: %v", tr.Diagnostics)
	}
	task := tr.Tasks[0]
	if got := task.Duration(PhaseWrite); got != 0 {
		t.Errorf("Duration(write) = %g, want 0", got)
	}
	if got, want := task.BoundingBox(PhaseWrite), (Span{5, 5}); got != want {
		t.Errorf("BoundingBox(write) = %v, want %v", got, want)
	}
	want := []Diagnostic{{
		Kind:    NegativeDuration,
		Record:  0,
		Label:   "t",
		Message: "write phase ends before it starts; using a duration of 0",
	}}
	if diff := cmp.Diff(want, tr.Diagnostics); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestRejectedRecords(t *testing.T) {
	valid := func() trace.Task {
		raw := rawTask("ok", "h", 2)
		raw.WholeTask = &trace.Interval{Start: ts(0), End: ts(5)}
		raw.Compute = single(0, 5)
		return raw
	}

	tests := []struct {
		name   string
		mutate func(*trace.Task)
		kind   DiagnosticKind
	}{
		{"no host", func(r *trace.Task) { r.ExecutionHost = nil }, MalformedRecord},
		{"zero cores", func(r *trace.Task) { r.ExecutionHost.Cores = 0 }, MalformedRecord},
		{"too many cores", func(r *trace.Task) { n := 3; r.NumCoresAllocated = &n }, MalformedRecord},
		{"no whole task", func(r *trace.Task) { r.WholeTask = nil }, MalformedRecord},
		{"whole task without end", func(r *trace.Task) { r.WholeTask.End = nil }, MalformedRecord},
		{"whole task inverted", func(r *trace.Task) { r.WholeTask.End = ts(-0.5) }, MalformedRecord},
		{"whole task ends before start", func(r *trace.Task) { r.WholeTask.Start = ts(6) }, MalformedRecord},
		{"read inverted", func(r *trace.Task) { r.Read = phase(ival(3, 2)) }, MalformedRecord},
		{"read without start", func(r *trace.Task) { r.Read = phase(trace.Interval{End: ts(2)}) }, MalformedRecord},
		{"compute fragmented", func(r *trace.Task) { r.Compute = phase(ival(0, 1), ival(2, 3)) }, MalformedRecord},
		{"failed and terminated", func(r *trace.Task) { r.Failed = ts(1); r.Terminated = ts(2) }, MalformedRecord},
		{"unresolvable", func(r *trace.Task) { r.WholeTask.End = ts(-1) }, UnresolvableEnd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := valid()
			bad.TaskID = "bad"
			tt.mutate(&bad)
			tr := mustParse(t, trace.Trace{Tasks: []trace.Task{valid(), bad, valid()}})

			if len(tr.Tasks) != 2 || tr.Tasks[0].ID != 0 || tr.Tasks[1].ID != 2 {
				t.Fatalf("expected records 0 and 2 to survive, got %d tasks", len(tr.Tasks))
			}
			if len(tr.Diagnostics) != 1 {
				t.Fatalf("got diagnostics %v, want exactly one", tr.Diagnostics)
			}
			d := tr.Diagnostics[0]
			if d.Kind != tt.kind || d.Record != 1 || d.Label != "bad" {
				t.Errorf("got %v, want a %s diagnostic for record 1", d, tt.kind)
			}
			if !d.Kind.Excludes() {
				t.Errorf("%s should exclude records", d.Kind)
			}
		})
	}
}

func TestConflictingHostCapacity(t *testing.T) {
	a := rawTask("a", "h", 2)
	a.WholeTask = &trace.Interval{Start: ts(0), End: ts(1)}
	b := rawTask("b", "h", 4)
	b.WholeTask = &trace.Interval{Start: ts(0), End: ts(1)}
	tr := mustParse(t, trace.Trace{Tasks: []trace.Task{a, b}})
	if len(tr.Tasks) != 1 || tr.Host("h").Cores != 2 || len(tr.Host("h").Tasks) != 1 {
		t.Fatalf("expected only the first record to survive")
	}
	if len(tr.Diagnostics) != 1 || tr.Diagnostics[0].Record != 1 {
		t.Errorf("unexpected diagnostics: %v", tr.Diagnostics)
	}
}

func TestPhasesThatNeverStarted(t *testing.T) {
	raw := rawTask("t", "h", 1)
	raw.WholeTask = &trace.Interval{Start: ts(4), End: ts(-1)}
	raw.Read = phase(ival(4, 5))
	raw.Compute = single(-1, -1)
	raw.Failed = ts(5)

	tr := mustParse(t, trace.Trace{Tasks: []trace.Task{raw}})
	task := tr.Tasks[0]
	if !task.Compute.Placeholder || task.Compute.Intervals[0].Start != 4 {
		t.Errorf("compute phase that never started should be a placeholder, got %+v", task.Compute)
	}
	if !task.Write.Placeholder {
		t.Errorf("missing write phase should be a placeholder, got %+v", task.Write)
	}
	// The compute phase never started, but its end is missing, so that's where the failure cut the task short.
	if got := task.OpenPhase(); got != PhaseCompute {
		t.Errorf("OpenPhase = %s, want compute", got)
	}
	if task.Write.Truncated {
		t.Errorf("missing write phase shouldn't be truncated")
	}
	if got := task.Duration(PhaseCompute); got != 0 {
		t.Errorf("Duration(compute) = %g, want 0", got)
	}

	raw = rawTask("u", "h", 1)
	raw.WholeTask = &trace.Interval{Start: ts(0), End: ts(-1)}
	raw.Read = phase(ival(-1, -1))
	raw.Compute = single(-1, -1)
	raw.Write = phase(ival(-1, -1))
	raw.Failed = ts(1)
	tr = mustParse(t, trace.Trace{Tasks: []trace.Task{raw}})
	if len(tr.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %v", tr.Diagnostics)
	}
	task = tr.Tasks[0]
	if !task.Read.Placeholder || !task.Compute.Placeholder || !task.Write.Placeholder {
		t.Errorf("phases that never started should be placeholders, got %+v", task)
	}
	if got := task.OpenPhase(); got != PhaseRead {
		t.Errorf("OpenPhase = %s, want read", got)
	}
	if got := task.Outcome(); got != Failed {
		t.Errorf("Outcome = %s, want Failed", got)
	}

	// A task that completed has no open phase, even if its phases never started.
	raw.Failed = ts(-1)
	raw.WholeTask = &trace.Interval{Start: ts(0), End: ts(2)}
	tr = mustParse(t, trace.Trace{Tasks: []trace.Task{raw}})
	if got := tr.Tasks[0].OpenPhase(); got != PhaseNone {
		t.Errorf("OpenPhase of completed task = %s, want none", got)
	}
}

func TestMissingCoreAllocationDefaultsToOne(t *testing.T) {
	raw := rawTask("t", "h", 4)
	raw.NumCoresAllocated = nil
	raw.WholeTask = &trace.Interval{Start: ts(0), End: ts(1)}
	tr := mustParse(t, trace.Trace{Tasks: []trace.Task{raw}})
	if tr.Tasks[0].NumCores != 1 {
		t.Errorf("NumCores = %d, want 1", tr.Tasks[0].NumCores)
	}
}

func TestDiskOperations(t *testing.T) {
	raw := trace.Trace{
		Disk: map[string]map[string]trace.Mount{
			"b": {"/": {Reads: []trace.DiskOperation{{Start: ts(0), End: ts(1)}}}},
			"a": {
				"/scratch": {Writes: []trace.DiskOperation{{Start: ts(2), End: ts(-1)}}},
				"/": {
					Reads:  []trace.DiskOperation{{Start: ts(0), End: ts(2), Bytes: 10}},
					Writes: []trace.DiskOperation{{Start: ts(3), End: ts(1)}, {Start: ts(3), End: ts(4)}},
				},
			},
		},
	}
	tr := mustParse(t, raw)

	type key struct {
		ID    RecordID
		Host  string
		Mount string
		Dir   Direction
	}
	var got []key
	for _, op := range tr.DiskOperations {
		got = append(got, key{op.ID, op.Host, op.Mount, op.Direction})
	}
	want := []key{
		{0, "a", "/", DiskRead},
		{2, "a", "/", DiskWrite},
		{4, "b", "/", DiskRead},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("disk operations mismatch (-want +got):\n%s", diff)
	}

	var kinds []DiagnosticKind
	for _, d := range tr.Diagnostics {
		kinds = append(kinds, d.Kind)
		if d.Source != DiskOperationRecord {
			t.Errorf("diagnostic %s should refer to a disk operation", d)
		}
	}
	if diff := cmp.Diff([]DiagnosticKind{MalformedRecord, UnresolvableEnd}, kinds); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestParsePhaseKind(t *testing.T) {
	for k := PhaseRead; k < PhaseLast; k++ {
		got, ok := ParsePhaseKind(k.String())
		if !ok || got != k {
			t.Errorf("ParsePhaseKind(%q) = %s, %t", k.String(), got, ok)
		}
	}
	if _, ok := ParsePhaseKind("none"); ok {
		t.Errorf("ParsePhaseKind accepted \"none\"")
	}
}

func TestDurationByName(t *testing.T) {
	tr := loadTestdata(t)
	task := tr.Tasks[1]
	for _, name := range []string{"read", "compute", "write", "whole_task"} {
		k, _ := ParsePhaseKind(name)
		got, err := task.DurationByName(name)
		if err != nil {
			t.Fatal(err)
		}
		if want := task.Duration(k); got != want {
			t.Errorf("DurationByName(%q) = %g, want %g", name, got, want)
		}
	}
	for _, name := range []string{"", "none", "whole", "Read"} {
		if _, err := task.DurationByName(name); err == nil {
			t.Errorf("DurationByName(%q) didn't fail", name)
		}
	}
}

func TestProgress(t *testing.T) {
	var last float64
	_, err := Parse(trace.Trace{}, func(p float64) {
		if p < last || p > 1 {
			t.Errorf("progress went from %g to %g", last, p)
		}
		last = p
	})
	if err != nil {
		t.Fatal(err)
	}
	if last != 1 {
		t.Errorf("final progress = %g, want 1", last)
	}
}
