package cmd

import (
	"fmt"
	"io"
	"strings"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/banner-cli/internal/plan"
	"github.com/xkilldash9x/banner-cli/internal/portal"
)

// termOutcome is what the register command reports for one term.
type termOutcome struct {
	Term         string         `json:"term"`
	Schedule     string         `json:"schedule,omitempty"`
	Codes        []string       `json:"codes"`
	Result       *portal.Result `json:"result"`
	Alternatives []alternative  `json:"alternatives,omitempty"`
}

func (o termOutcome) complete() bool {
	return o.Result != nil && o.Result.Succeeded() && len(o.Result.Unplaced) == 0
}

// alternative describes how to move from what was registered to another schedule.
type alternative struct {
	Name string `json:"name"`
	plan.Change

	// Courses maps the codes of Change to their course names, where known.
	Courses map[string]string `json:"courses,omitempty"`
}

func writeOutcomes(w io.Writer, format string, outcomes []termOutcome) error {
	if format == "json" {
		return writeJSON(w, outcomes)
	}

	for i, o := range outcomes {
		if i > 0 {
			fmt.Fprintln(w)
		}
		header := "Term " + o.Term
		if o.Schedule != "" {
			header += fmt.Sprintf(" (schedule %q)", o.Schedule)
		}
		fmt.Fprintf(w, "%s, attempt %s\n", header, o.Result.AttemptID)
		fmt.Fprintln(w, strings.TrimRight(o.Result.Message, "\n"))

		for _, alt := range o.Alternatives {
			if alt.Empty() {
				fmt.Fprintf(w, "Alternative %q: already registered\n", alt.Name)
				continue
			}
			fmt.Fprintf(w, "Alternative %q: add %s; drop %s\n", alt.Name,
				listOrNone(alt.Add, alt.Courses), listOrNone(alt.Drop, alt.Courses))
		}
	}
	return nil
}

func writeTerms(w io.Writer, format string, terms []portal.Term) error {
	if format == "json" {
		if terms == nil {
			terms = []portal.Term{}
		}
		return writeJSON(w, terms)
	}
	if len(terms) == 0 {
		fmt.Fprintln(w, "No terms offered.")
		return nil
	}
	for _, t := range terms {
		fmt.Fprintf(w, "%-8s %s\n", t.Code, t.Label)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func listOrNone(codes []string, names map[string]string) string {
	if len(codes) == 0 {
		return "none"
	}
	labels := make([]string, len(codes))
	for i, c := range codes {
		labels[i] = c
		if name := names[c]; name != "" {
			labels[i] = fmt.Sprintf("%s (%s)", c, name)
		}
	}
	return strings.Join(labels, ", ")
}
