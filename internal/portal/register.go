package portal

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Request asks for a set of codes to be registered for a term.
type Request struct {
	Codes []string
	Term  string
	// At optionally delays submission until HH:MM today on the server's clock.
	At string
	// StoreTerm selects Term as the session default before the form is fetched.
	StoreTerm bool
}

func (r Request) normalized() (Request, error) {
	out := Request{Term: strings.TrimSpace(r.Term), At: strings.TrimSpace(r.At), StoreTerm: r.StoreTerm}
	for _, code := range r.Codes {
		if code = strings.TrimSpace(code); code != "" {
			out.Codes = append(out.Codes, code)
		}
	}
	if out.Term == "" {
		return Request{}, fmt.Errorf("%w: term is required", ErrInvalidRequest)
	}
	if len(out.Codes) == 0 {
		return Request{}, fmt.Errorf("%w: at least one code is required", ErrInvalidRequest)
	}
	return out, nil
}

// Register waits for req.At if set, fills the add/drop form with req.Codes and
// submits it. Codes the portal rejects are reported in the Result, not as an error.
func (s *Session) Register(ctx context.Context, req Request) (*Result, error) {
	req, err := req.normalized()
	if err != nil {
		return nil, err
	}

	attemptID := uuid.NewString()
	log := s.logger.With(zap.String("attempt_id", attemptID), zap.String("term", req.Term))

	if !s.knowsTerm(req.Term) {
		log.Warn("Term is not offered by the portal; submitting anyway.")
	}
	if req.StoreTerm {
		if err := s.StoreTerm(ctx, req.Term); err != nil {
			return nil, err
		}
	}

	if err := NewTrigger(s.clock, s.offset, log).Wait(ctx, req.At); err != nil {
		return nil, err
	}

	form, err := s.Form(ctx, req.Term)
	if err != nil {
		return nil, err
	}

	filled, unplaced := Inject(form, req.Term, req.Codes)
	if len(unplaced) > 0 {
		log.Warn("More codes than empty CRN_IN slots; extra codes were not submitted.",
			zap.Strings("unplaced", unplaced))
	}

	resp, err := s.post(ctx, PageRegister, filled.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("registration submit returned status %d", resp.StatusCode)
	}

	result, err := ParseResult(resp.Body)
	if err != nil {
		return nil, err
	}
	result.AttemptID = attemptID
	result.Unplaced = unplaced
	if len(unplaced) > 0 {
		sep := "\n"
		if strings.HasSuffix(result.Message, "\n") {
			sep = ""
		}
		result.Message += sep + "Not submitted (no empty CRN_IN slot): " + strings.Join(unplaced, ", ")
	}
	s.setState(StateSubmitted)

	if result.Succeeded() {
		log.Info(result.Message, zap.Strings("codes", req.Codes))
	} else {
		log.Warn(result.Message, zap.Strings("failed", result.Failed))
	}
	return result, nil
}
