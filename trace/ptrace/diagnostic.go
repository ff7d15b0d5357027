package ptrace

import "fmt"

type DiagnosticKind uint8

const (
	// MalformedRecord is a record with missing or inconsistent fields. It is excluded from layout.
	MalformedRecord DiagnosticKind = iota + 1
	// UnresolvableEnd is a record whose end can't be determined. It is excluded from layout.
	UnresolvableEnd
	// Oversubscription is a task that found no free block of cores on its host. It is still laid out.
	Oversubscription
	// NegativeDuration is a phase that ends before it starts once resolved. Its duration is clamped to zero.
	NegativeDuration
)

func (k DiagnosticKind) String() string {
	switch k {
	case MalformedRecord:
		return "malformed record"
	case UnresolvableEnd:
		return "unresolvable end"
	case Oversubscription:
		return "oversubscription"
	case NegativeDuration:
		return "negative duration"
	default:
		return fmt.Sprintf("DiagnosticKind(%d)", k)
	}
}

// Excludes reports whether records with this kind of diagnostic are left out of the layout.
func (k DiagnosticKind) Excludes() bool {
	return k == MalformedRecord || k == UnresolvableEnd
}

// RecordKind says which ID space a RecordID belongs to. Tasks and disk operations are numbered independently.
type RecordKind uint8

const (
	TaskRecord RecordKind = iota
	DiskOperationRecord
)

func (k RecordKind) String() string {
	switch k {
	case TaskRecord:
		return "task"
	case DiskOperationRecord:
		return "disk_operation"
	default:
		return fmt.Sprintf("RecordKind(%d)", k)
	}
}

// Diagnostic describes a data quality problem in a trace.
type Diagnostic struct {
	Kind DiagnosticKind
	// Source is the kind of record the problem was found in.
	Source RecordKind
	// The record the problem was found in. For task diagnostics, this is the task's RecordID; for disk
	// operations, the operation's.
	Record RecordID
	// Label is the task ID for tasks and "host:mount direction" for disk operations.
	Label   string
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s %d (%s): %s", d.Kind, d.Source, d.Record, d.Label, d.Message)
}
