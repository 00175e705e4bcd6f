package portal

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Term is one entry of the portal's term selector.
type Term struct {
	Code  string `json:"code" yaml:"code"`
	Label string `json:"label" yaml:"label"`
}

// ParseTerms reads the options of the term_in selector. Options without a value are skipped.
func ParseTerms(r io.Reader) ([]Term, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing term list: %w", err)
	}

	var terms []Term
	doc.Find(`select[name="term_in"] option`).Each(func(_ int, opt *goquery.Selection) {
		code := strings.TrimSpace(opt.AttrOr("value", ""))
		if code == "" {
			return
		}
		terms = append(terms, Term{Code: code, Label: strings.TrimSpace(opt.Text())})
	})
	return terms, nil
}

// Terms returns the terms offered by the portal when the session was validated.
func (s *Session) Terms() []Term {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Term(nil), s.terms...)
}

// knowsTerm reports whether term is in the list, treating an empty list as unknown.
func (s *Session) knowsTerm(term string) bool {
	terms := s.Terms()
	if len(terms) == 0 {
		return true
	}
	for _, t := range terms {
		if t.Code == term {
			return true
		}
	}
	return false
}

// StoreTerm selects term as the session's default term. Some portals require
// it before the add/drop page accepts the term.
func (s *Session) StoreTerm(ctx context.Context, term string) error {
	if term == "" {
		return fmt.Errorf("%w: term is required", ErrInvalidRequest)
	}
	resp, err := s.post(ctx, PageStoreTerm, url.Values{"term_in": {term}}.Encode())
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("storing term %s: status %d", term, resp.StatusCode)
	}
	s.logger.Info("Stored default term.", zap.String("term", term))
	return nil
}
