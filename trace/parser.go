package trace

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-json-experiment/json"
)

// ErrNoTasks is returned by Parse for documents that don't contain a task list.
var ErrNoTasks = errors.New("trace contains no workflow execution tasks")

type document struct {
	WorkflowExecution *struct {
		Tasks *[]Task `json:"tasks"`
	} `json:"workflow_execution"`
	DiskOperations map[string]map[string]Mount `json:"disk_operations"`
}

// Parse decodes a trace. It accepts both the full simulation output, an object with "workflow_execution" and
// optional "disk_operations" members, and a bare array of tasks. Members it doesn't know about are ignored.
//
// Parse only fails on input that isn't a trace at all. Records with missing or inconsistent fields are decoded
// as far as possible and left to package ptrace to diagnose.
func Parse(r io.Reader) (Trace, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Trace{}, fmt.Errorf("couldn't read trace: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Trace{}, fmt.Errorf("couldn't decode trace: %w", io.ErrUnexpectedEOF)
	}

	if data[0] == '[' {
		var tasks []Task
		if err := json.Unmarshal(data, &tasks); err != nil {
			return Trace{}, fmt.Errorf("couldn't decode task list: %w", err)
		}
		return Trace{Tasks: tasks}, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Trace{}, fmt.Errorf("couldn't decode trace: %w", err)
	}
	if doc.WorkflowExecution == nil || doc.WorkflowExecution.Tasks == nil {
		return Trace{}, ErrNoTasks
	}
	return Trace{
		Tasks: *doc.WorkflowExecution.Tasks,
		Disk:  doc.DiskOperations,
	}, nil
}

// UnmarshalJSON decodes a phase from null, an interval object, or an array of interval objects.
func (p *Phase) UnmarshalJSON(data []byte) error {
	*p = Phase{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '[':
		var ivals []Interval
		if err := json.Unmarshal(data, &ivals); err != nil {
			return err
		}
		p.Intervals = ivals
		p.List = true
	case '{':
		var ival Interval
		if err := json.Unmarshal(data, &ival); err != nil {
			return err
		}
		p.Intervals = []Interval{ival}
	default:
		return fmt.Errorf("phase must be an object, an array, or null, got %q", data)
	}
	p.Present = true
	return nil
}
