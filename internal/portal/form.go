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

// Field is one name/value pair of a form.
type Field struct {
	Name  string
	Value string
}

// Form is the ordered field list of an HTML form.
type Form struct {
	Action string
	Fields []Field
}

// Clone returns a deep copy of the form.
func (f Form) Clone() Form {
	return Form{Action: f.Action, Fields: append([]Field(nil), f.Fields...)}
}

// Encode renders the fields as application/x-www-form-urlencoded in their
// original order. Repeated names stay repeated.
func (f Form) Encode() string {
	var b strings.Builder
	for i, field := range f.Fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(field.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(field.Value))
	}
	return b.String()
}

// Values returns every value submitted under name, in order.
func (f Form) Values(name string) []string {
	var values []string
	for _, field := range f.Fields {
		if field.Name == name {
			values = append(values, field.Value)
		}
	}
	return values
}

// ExtractForm parses an HTML page and returns the inputs of the form whose
// action equals action. Unnamed inputs, submit buttons and term_in are left out.
func ExtractForm(r io.Reader, action string) (Form, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Form{}, fmt.Errorf("parsing add/drop page: %w", err)
	}

	form := doc.Find("form").FilterFunction(func(_ int, sel *goquery.Selection) bool {
		return actionMatches(sel.AttrOr("action", ""), action)
	}).First()
	if form.Length() == 0 {
		return Form{}, fmt.Errorf("%w: no form with action %q", ErrFormNotFound, action)
	}

	out := Form{Action: form.AttrOr("action", action)}
	form.Find("input").Each(func(_ int, input *goquery.Selection) {
		name := input.AttrOr("name", "")
		if name == "" || name == "term_in" {
			return
		}
		if strings.EqualFold(input.AttrOr("type", ""), "submit") {
			return
		}
		out.Fields = append(out.Fields, Field{Name: name, Value: input.AttrOr("value", "")})
	})
	return out, nil
}

// actionMatches compares a form action to the expected path, also accepting
// an absolute URL whose path is the expected one.
func actionMatches(got, want string) bool {
	got = strings.TrimSpace(got)
	if got == want {
		return true
	}
	u, err := url.Parse(got)
	return err == nil && u.IsAbs() && u.Path == want
}

// Form returns the default state of the add/drop form for term. The first call
// fetches the page; later calls for the same term reuse the cached copy.
func (s *Session) Form(ctx context.Context, term string) (Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.form != nil && s.formTerm == term {
		return s.form.Clone(), nil
	}

	resp, err := s.post(ctx, PageAddDrop, url.Values{"term_in": {term}}.Encode())
	if err != nil {
		return Form{}, err
	}
	defer resp.Body.Close()

	form, err := ExtractForm(resp.Body, s.middle+PageRegister.Path())
	if err != nil {
		s.logger.Error("Add/drop page has no registration form.", zap.String("term", term), zap.Error(err))
		return Form{}, err
	}

	s.form = &form
	s.formTerm = term
	s.state = StateFormCached
	s.logger.Debug("Cached registration form.",
		zap.String("term", term),
		zap.Int("fields", len(form.Fields)),
		zap.Int("crn_slots", len(form.Values(crnField))))
	return form.Clone(), nil
}

// InvalidateFormCache drops the cached form so the next call refetches it.
func (s *Session) InvalidateFormCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.form = nil
	s.formTerm = ""
	if s.state == StateFormCached || s.state == StateSubmitted {
		s.state = StateAuthenticated
	}
}
