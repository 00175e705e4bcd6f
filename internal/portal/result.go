package portal

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const errorTableSelector = `table[summary="This layout table is used to present Registration Errors."]`

// SuccessMessage is the message of a submission the portal reported no errors for.
const SuccessMessage = "Success!"

// Failure is one row of the portal's registration error table.
type Failure struct {
	Code   string   `json:"code"`
	Course string   `json:"course"`
	Status []string `json:"status"`
}

// Result is the outcome of one submission.
type Result struct {
	// Failed lists the rejected codes in the order the portal reported them.
	Failed   []string  `json:"failed"`
	Failures []Failure `json:"failures"`
	// Unplaced lists codes that were never submitted for lack of an empty CRN_IN slot.
	Unplaced  []string `json:"unplaced,omitempty"`
	Message   string   `json:"message"`
	AttemptID string   `json:"attempt_id"`
}

// Succeeded reports whether the portal rejected nothing.
func (r *Result) Succeeded() bool { return len(r.Failed) == 0 }

// ParseResult reads the registration response and collects the rows of its
// error table. The first row is the header. The message reports success only
// when the page has no error table at all.
func ParseResult(r io.Reader) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing registration response: %w", err)
	}

	res := &Result{Failed: []string{}}
	table := doc.Find(errorTableSelector).First()
	if table.Length() == 0 {
		res.Message = SuccessMessage
		return res, nil
	}
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := row.Find("td").Map(func(_ int, td *goquery.Selection) string {
			return strings.TrimSpace(td.Text())
		})
		if len(cells) < 2 {
			return
		}
		f := Failure{
			Course: cells[0],
			Code:   cells[1],
			Status: []string{cellAt(cells, 2), cellAt(cells, 3), cellAt(cells, 8)},
		}
		res.Failures = append(res.Failures, f)
		res.Failed = append(res.Failed, f.Code)
	})
	res.Message = failureMessage(res.Failures)
	return res, nil
}

func cellAt(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}
	return ""
}

// failureMessage renders the error table. A table without data rows still
// yields the bare heading.
func failureMessage(failures []Failure) string {
	var b strings.Builder
	b.WriteString("Failures:\n")
	for _, f := range failures {
		fmt.Fprintf(&b, "CRN:%s | %s | %s\n", f.Code, f.Course, strings.Join(f.Status, " "))
	}
	return b.String()
}
