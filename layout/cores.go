package layout

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"honnef.co/go/simtrace/mysync"
	"honnef.co/go/simtrace/trace"
	"honnef.co/go/simtrace/trace/ptrace"

	"golang.org/x/exp/slices"
)

// CoreSlot is a contiguous block of cores, [Start, Start+Span).
type CoreSlot struct {
	Start int
	Span  int
}

func (s CoreSlot) String() string {
	if s.Span == 1 {
		return fmt.Sprintf("core %d", s.Start)
	}
	return fmt.Sprintf("cores %d-%d", s.Start, s.Start+s.Span-1)
}

// Contains reports whether the slot includes the given core.
func (s CoreSlot) Contains(core int) bool {
	return core >= s.Start && core < s.Start+s.Span
}

// ScheduleHost assigns a block of cores to each task of a host with the given number of cores. The returned slots
// are parallel to tasks. Tasks are considered in order of their start, ties broken by their position in tasks.
//
// A task gets the lowest block of NumCores consecutive cores that are all free at its start. A core is free once
// the last task placed on it has ended. When no such block exists the host is oversubscribed; the task is placed
// at core 0 regardless and a diagnostic is returned for it.
func ScheduleHost(cores int, tasks []*ptrace.Task) ([]CoreSlot, []ptrace.Diagnostic, error) {
	if cores < 1 {
		return nil, nil, fmt.Errorf("host has %d cores", cores)
	}
	for _, t := range tasks {
		if t.NumCores < 1 || t.NumCores > cores {
			return nil, nil, fmt.Errorf("task %d (%s) wants %d cores on a host with %d", t.ID, t.TaskID, t.NumCores, cores)
		}
	}

	order := make([]int, len(tasks))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return compareTimestamps(tasks[a].Whole.Start, tasks[b].Whole.Start)
	})

	lastEnd := make([]trace.Timestamp, cores)
	for i := range lastEnd {
		lastEnd[i] = trace.Timestamp(math.Inf(-1))
	}

	slots := make([]CoreSlot, len(tasks))
	var diags []ptrace.Diagnostic
	for _, i := range order {
		t := tasks[i]
		start := t.Whole.Start

		first := -1
	search:
		for cand := 0; cand+t.NumCores <= cores; cand++ {
			for c := cand; c < cand+t.NumCores; c++ {
				if lastEnd[c] > start {
					// No block containing c can start before c+1.
					cand = c
					continue search
				}
			}
			first = cand
			break
		}

		if first == -1 {
			diags = append(diags, ptrace.Diagnostic{
				Kind:    ptrace.Oversubscription,
				Source:  ptrace.TaskRecord,
				Record:  t.ID,
				Label:   t.TaskID,
				Message: fmt.Sprintf("no %d free consecutive cores at %g, placed at core 0", t.NumCores, float64(start)),
			})
			first = 0
		}

		end := t.EffectiveEnd()
		for c := first; c < first+t.NumCores; c++ {
			lastEnd[c] = end
		}
		slots[i] = CoreSlot{Start: first, Span: t.NumCores}
	}
	return slots, diags, nil
}

// CoreSchedule is the core assignment of all tasks of a trace.
type CoreSchedule struct {
	slots map[ptrace.RecordID]CoreSlot
	// Oversubscription diagnostics, sorted by host and then by the order tasks were scheduled in.
	Diagnostics []ptrace.Diagnostic
}

func (s *CoreSchedule) Slot(id ptrace.RecordID) (CoreSlot, bool) {
	slot, ok := s.slots[id]
	return slot, ok
}

// ScheduleCores runs ScheduleHost for every host of the trace. Hosts are independent and are scheduled in
// parallel. progress, if not nil, is called with values in [0, 1].
func ScheduleCores(tr *ptrace.Trace, progress func(float64)) (*CoreSchedule, error) {
	if progress == nil {
		progress = func(float64) {}
	}

	type result struct {
		slots []CoreSlot
		diags []ptrace.Diagnostic
		err   error
	}
	results := make([]result, len(tr.Hosts))

	var wg sync.WaitGroup
	hostProgress := mysync.NewProgress(len(tr.Hosts), progress)
	step := len(tr.Hosts) / runtime.GOMAXPROCS(0)
	if step == 0 {
		step = len(tr.Hosts)
	}
	for i := 0; i < len(tr.Hosts); i += step {
		wg.Add(1)
		go func(hosts []*ptrace.Host, off int) {
			defer wg.Done()
			for j, h := range hosts {
				var res result
				res.slots, res.diags, res.err = ScheduleHost(h.Cores, h.Tasks)
				results[off+j] = res
			}
			hostProgress.Add(len(hosts))
		}(tr.Hosts[i:min(i+step, len(tr.Hosts))], i)
	}
	wg.Wait()

	s := &CoreSchedule{
		slots: make(map[ptrace.RecordID]CoreSlot, len(tr.Tasks)),
	}
	for i, h := range tr.Hosts {
		res := results[i]
		if res.err != nil {
			return nil, fmt.Errorf("couldn't schedule host %q: %w", h.Name, res.err)
		}
		for j, t := range h.Tasks {
			s.slots[t.ID] = res.slots[j]
		}
		s.Diagnostics = append(s.Diagnostics, res.diags...)
	}
	progress(1)
	return s, nil
}

// HostCores returns the tasks of h that occupy the given core, sorted by start.
func (s *CoreSchedule) HostCores(h *ptrace.Host, core int) []*ptrace.Task {
	var out []*ptrace.Task
	for _, t := range h.Tasks {
		if slot, ok := s.slots[t.ID]; ok && slot.Contains(core) {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, func(a, b *ptrace.Task) int {
		return compareTimestamps(a.Whole.Start, b.Whole.Start)
	})
	return out
}

func compareTimestamps(a, b trace.Timestamp) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}
