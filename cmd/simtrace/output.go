package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"honnef.co/go/simtrace/layout"
	"honnef.co/go/simtrace/trace"
	"honnef.co/go/simtrace/trace/ptrace"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type jsonTask struct {
	Record    ptrace.RecordID `json:"record"`
	TaskID    string          `json:"task_id"`
	Host      string          `json:"host"`
	Outcome   string          `json:"outcome"`
	OpenPhase string          `json:"open_phase,omitempty"`
	Start     trace.Timestamp `json:"start"`
	End       trace.Timestamp `json:"end"`
	Lane      int             `json:"lane"`
	Core      int             `json:"core"`
	NumCores  int             `json:"num_cores"`
	Read      trace.Timestamp `json:"read"`
	Compute   trace.Timestamp `json:"compute"`
	Write     trace.Timestamp `json:"write"`
	Whole     trace.Timestamp `json:"whole"`
}

type jsonDiskOperation struct {
	Record    ptrace.RecordID `json:"record"`
	Host      string          `json:"host"`
	Mount     string          `json:"mount"`
	Direction string          `json:"direction"`
	Start     trace.Timestamp `json:"start"`
	End       trace.Timestamp `json:"end"`
	Bytes     float64         `json:"bytes"`
	Lane      int             `json:"lane"`
}

type jsonRowItem struct {
	Record ptrace.RecordID `json:"record"`
	Start  trace.Timestamp `json:"start"`
	End    trace.Timestamp `json:"end"`
	Lane   int             `json:"lane"`
}

type jsonRow struct {
	Label string        `json:"label"`
	Host  string        `json:"host"`
	Kind  string        `json:"kind"`
	Lanes int           `json:"lanes"`
	Items []jsonRowItem `json:"items"`
}

type jsonUtilization struct {
	Host string `json:"host"`
	Busy []int  `json:"busy"`
}

type jsonStatistic struct {
	Phase   string          `json:"phase"`
	Count   int             `json:"count"`
	Min     trace.Timestamp `json:"min"`
	Max     trace.Timestamp `json:"max"`
	Total   trace.Timestamp `json:"total"`
	Average float64         `json:"average"`
	Median  float64         `json:"median"`
}

type jsonDiagnostic struct {
	Kind    string          `json:"kind"`
	Source  string          `json:"source"`
	Record  ptrace.RecordID `json:"record"`
	Label   string          `json:"label"`
	Message string          `json:"message"`
}

type jsonLayout struct {
	End            trace.Timestamp     `json:"end"`
	BucketSize     float64             `json:"bucket_size,omitzero"`
	Tasks          []jsonTask          `json:"tasks"`
	DiskOperations []jsonDiskOperation `json:"disk_operations,omitempty"`
	Rows           []jsonRow           `json:"rows"`
	Utilization    []jsonUtilization   `json:"utilization,omitempty"`
	Statistics     []jsonStatistic     `json:"statistics"`
	Diagnostics    []jsonDiagnostic    `json:"diagnostics"`
}

func buildJSON(l *layout.Layout, cfg Config) (*jsonLayout, error) {
	tr := l.Trace
	out := &jsonLayout{
		End:         tr.End(),
		Tasks:       make([]jsonTask, 0, len(tr.Tasks)),
		Diagnostics: []jsonDiagnostic{},
	}

	for _, t := range tr.Tasks {
		lane, _ := l.TaskLanes.Lane(t.ID)
		slot, _ := l.Cores.Slot(t.ID)
		jt := jsonTask{
			Record:   t.ID,
			TaskID:   t.TaskID,
			Host:     t.Host.Name,
			Outcome:  t.Outcome().String(),
			Start:    t.Whole.Start,
			End:      t.EffectiveEnd(),
			Lane:     lane,
			Core:     slot.Start,
			NumCores: slot.Span,
			Read:     t.Duration(ptrace.PhaseRead),
			Compute:  t.Duration(ptrace.PhaseCompute),
			Write:    t.Duration(ptrace.PhaseWrite),
			Whole:    t.Duration(ptrace.PhaseWhole),
		}
		if k := t.OpenPhase(); k != ptrace.PhaseNone {
			jt.OpenPhase = k.String()
		}
		out.Tasks = append(out.Tasks, jt)
	}

	disk := l.DiskLanes
	if !cfg.Output.DiskLanes {
		disk = nil
	} else {
		for _, op := range tr.DiskOperations {
			lane, _ := l.DiskLanes.Lane(op.ID)
			out.DiskOperations = append(out.DiskOperations, jsonDiskOperation{
				Record:    op.ID,
				Host:      op.Host,
				Mount:     op.Mount,
				Direction: op.Direction.String(),
				Start:     op.Start,
				End:       op.End,
				Bytes:     op.Bytes,
				Lane:      lane,
			})
		}
	}

	rows := l.Rows
	if disk == nil {
		rows = layout.HostRows(tr, l.Cores, nil)
	}
	out.Rows = make([]jsonRow, 0, len(rows))
	for _, row := range rows {
		jr := jsonRow{
			Label: row.Label,
			Host:  row.Host,
			Kind:  row.Kind.String(),
			Lanes: row.Lanes,
			Items: make([]jsonRowItem, 0, len(row.Items)),
		}
		for _, it := range row.Items {
			jr.Items = append(jr.Items, jsonRowItem(it))
		}
		out.Rows = append(out.Rows, jr)
	}

	if size := cfg.Utilization.BucketSize; size > 0 {
		out.BucketSize = size
		for _, h := range tr.Hosts {
			busy, err := ptrace.ComputeHostBusy(tr, h, trace.Timestamp(size))
			if err != nil {
				return nil, fmt.Errorf("couldn't compute utilization of %s: %w", h.Name, err)
			}
			out.Utilization = append(out.Utilization, jsonUtilization{Host: h.Name, Busy: busy})
		}
	}

	stats := ptrace.ComputeStatistics(tr.Tasks)
	for k := ptrace.PhaseRead; k < ptrace.PhaseLast; k++ {
		s := stats[k]
		out.Statistics = append(out.Statistics, jsonStatistic{
			Phase:   k.String(),
			Count:   s.Count,
			Min:     s.Min,
			Max:     s.Max,
			Total:   s.Total,
			Average: s.Average,
			Median:  s.Median,
		})
	}

	for _, d := range l.Diagnostics() {
		out.Diagnostics = append(out.Diagnostics, jsonDiagnostic{
			Kind:    d.Kind.String(),
			Source:  d.Source.String(),
			Record:  d.Record,
			Label:   d.Label,
			Message: d.Message,
		})
	}
	return out, nil
}

func writeJSON(w io.Writer, l *layout.Layout, cfg Config) error {
	doc, err := buildJSON(l, cfg)
	if err != nil {
		return err
	}
	opts := []json.Options{json.Deterministic(true)}
	if cfg.Output.Indent != "" {
		opts = append(opts, jsontext.WithIndent(cfg.Output.Indent))
	}
	return json.MarshalWrite(w, doc, opts...)
}

// writeTable writes the task details table, followed by per-phase statistics.
func writeTable(w io.Writer, l *layout.Layout) error {
	p := message.NewPrinter(language.English)
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)

	p.Fprintf(tw, "TASK\tHOST\tCORES\tLANE\tREAD\tCOMPUTE\tWRITE\tSTART\tEND\tDURATION\n")
	for _, row := range ptrace.TableRows(l.Trace) {
		t := row.Task
		slot, _ := l.Cores.Slot(t.ID)
		lane, _ := l.TaskLanes.Lane(t.ID)
		whole := row.Phases[ptrace.PhaseWhole]
		end := row.Outcome.String()
		if v, ok := whole.End.Get(); ok {
			end = p.Sprintf("%.3f", float64(v))
		}
		p.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%.3f\t%s\t%.3f\n",
			t.TaskID,
			t.Host.Name,
			slot,
			lane,
			phaseCell(p, row.Phases[ptrace.PhaseRead]),
			phaseCell(p, row.Phases[ptrace.PhaseCompute]),
			phaseCell(p, row.Phases[ptrace.PhaseWrite]),
			float64(whole.Start),
			end,
			float64(whole.Duration),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	stats := ptrace.ComputeStatistics(l.Trace.Tasks)
	p.Fprintf(tw, "PHASE\tCOUNT\tMIN\tMAX\tTOTAL\tAVERAGE\tMEDIAN\n")
	for k := ptrace.PhaseRead; k < ptrace.PhaseLast; k++ {
		s := stats[k]
		p.Fprintf(tw, "%s\t%d\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\n",
			k, s.Count, float64(s.Min), float64(s.Max), float64(s.Total), s.Average, s.Median)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if diags := l.Diagnostics(); len(diags) > 0 {
		p.Fprintf(w, "\n%d records with problems, see log output\n", len(diags))
	}
	return nil
}

func phaseCell(p *message.Printer, s ptrace.PhaseSummary) string {
	if s.Placeholder {
		return "-"
	}
	return p.Sprintf("%.3f", float64(s.Duration))
}
