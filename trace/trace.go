// Package trace decodes the JSON execution traces written by the simulator's output exporter.
//
// The types in this package mirror the wire format closely, including its use of -1 to mark timestamps that
// were never observed. Package ptrace turns them into validated records.
package trace

import "fmt"

// Timestamp is a point in simulated time, measured in seconds.
type Timestamp float64

// Unset is the wire format's marker for a timestamp that wasn't observed, such as the end of a phase that was
// still running when the trace was captured, or the failure time of a task that didn't fail.
const Unset Timestamp = -1

// Interval is a raw {start, end} pair. Missing members decode as nil.
type Interval struct {
	Start *Timestamp `json:"start"`
	End   *Timestamp `json:"end"`
}

func (ival Interval) String() string {
	f := func(ts *Timestamp) string {
		if ts == nil {
			return "?"
		}
		return fmt.Sprintf("%g", float64(*ts))
	}
	return fmt.Sprintf("[%s, %s]", f(ival.Start), f(ival.End))
}

// Phase is a task phase as it appears on the wire: missing, null, a single interval, or a list of intervals.
type Phase struct {
	// Present is false if the member was missing or null.
	Present   bool
	Intervals []Interval
	// List records whether the phase was encoded as an array, even if it has a single element.
	List bool
}

// Host describes the machine a task ran on.
type Host struct {
	Hostname string  `json:"hostname"`
	Cores    int     `json:"cores"`
	FlopRate float64 `json:"flop_rate"`
	Memory   float64 `json:"memory"`
}

// Task is one execution attempt of a workflow task. The same TaskID appears once per attempt.
type Task struct {
	TaskID        string `json:"task_id"`
	ExecutionHost *Host  `json:"execution_host"`
	// NumCoresAllocated is nil for exporters that predate multi-core allocation.
	NumCoresAllocated *int       `json:"num_cores_allocated"`
	WholeTask         *Interval  `json:"whole_task"`
	Read              Phase      `json:"read"`
	Compute           Phase      `json:"compute"`
	Write             Phase      `json:"write"`
	Failed            *Timestamp `json:"failed"`
	Terminated        *Timestamp `json:"terminated"`
}

// DiskOperation is a single read from or write to a mount point.
type DiskOperation struct {
	Start *Timestamp `json:"start"`
	End   *Timestamp `json:"end"`
	Bytes float64    `json:"bytes"`
}

// Mount holds the disk operations of one mount point.
type Mount struct {
	Reads  []DiskOperation `json:"reads"`
	Writes []DiskOperation `json:"writes"`
}

// Trace is a decoded simulation trace.
type Trace struct {
	Tasks []Task
	// Disk maps from hostname to mount point to that mount's operations. It is nil if the trace has no disk
	// operations.
	Disk map[string]map[string]Mount
}
