package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/himanishpuri/AcousticDER/pkg/derscore"
)

func encode(w io.Writer, v any, format string) (bool, error) {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	}
	return false, nil
}

func renderEvaluation(w io.Writer, eval *derscore.Evaluation, format string, speakers bool) error {
	if done, err := encode(w, eval, format); done {
		return err
	}

	fmt.Fprintln(w, "============================================================")
	fmt.Fprintln(w, "Diarization Error Rate (DER) Analysis")
	fmt.Fprintln(w, "============================================================")
	if eval.ID != "" {
		fmt.Fprintf(w, "Evaluation: %s\n", eval.ID)
	}
	fmt.Fprintf(w, "Reference:  %s\n", eval.Reference)
	fmt.Fprintf(w, "Hypothesis: %s\n", eval.Hypothesis)
	fmt.Fprintf(w, "Collar:     %.3fs   Skip overlap: %t\n\n", eval.Collar, eval.SkipOverlap)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "RECORDING\tTOTAL(s)\tDER\tFALSE ALARM\tMISSED\tCONFUSION\t")
	for _, r := range eval.Recordings {
		writeRow(tw, r)
	}
	if eval.Overall != nil {
		writeRow(tw, eval.Overall)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if speakers {
		for _, r := range eval.Recordings {
			if len(r.Speakers) == 0 {
				continue
			}
			fmt.Fprintf(w, "\n%s\n", r.URI)
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "SPEAKER\tMAPPED TO\tDURATION(s)\tCORRECT\tMISSED\tCONFUSED\t")
			for _, s := range r.Speakers {
				mapped := s.Mapped
				if mapped == "" {
					mapped = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%.3f\t%.3f\t%.3f\t%.3f\t\n", s.Label, mapped, s.Duration, s.Correct, s.Missed, s.Confused)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
		}
	}

	for _, warning := range eval.Warnings {
		fmt.Fprintf(w, "\n⚠️  %s", warning)
	}
	if len(eval.Warnings) > 0 {
		fmt.Fprintln(w)
	}
	return nil
}

func writeRow(w io.Writer, r *derscore.Report) {
	if r.Undefined {
		fmt.Fprintf(w, "%s\t%.3f\tundefined\t%.3fs\t%.3fs\t%.3fs\t\n",
			r.URI, r.Total, r.FalseAlarm, r.MissedDetection, r.Confusion)
		return
	}
	fmt.Fprintf(w, "%s\t%.3f\t%.2f%%\t%.2f%%\t%.2f%%\t%.2f%%\t\n",
		r.URI, r.Total, 100*r.DER, 100*r.FalseAlarmRate(), 100*r.MissedRate(), 100*r.ConfusionRate())
}

func renderList(w io.Writer, evals []*derscore.Evaluation, format string) error {
	if done, err := encode(w, evals, format); done {
		return err
	}
	if len(evals) == 0 {
		fmt.Fprintln(w, "📭 No evaluations stored")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCREATED\tRECORDINGS\tDER\tHYPOTHESIS")
	for _, e := range evals {
		der := "undefined"
		if e.Overall != nil && !e.Overall.Undefined {
			der = fmt.Sprintf("%.2f%%", 100*e.Overall.DER)
		}
		name := e.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			e.ID, name, e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Count, der, e.Hypothesis)
	}
	return tw.Flush()
}
