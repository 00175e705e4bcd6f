package plan

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/banner-cli/internal/portal"
)

// ErrInvalidPlan is returned for plan files that cannot be used.
var ErrInvalidPlan = errors.New("invalid plan")

// Plan lists, per term, when to register and which schedules to try.
type Plan struct {
	Terms []TermPlan `yaml:"terms"`
}

// TermPlan is the registration plan for one term. The first schedule is the
// one submitted; the rest are alternatives.
type TermPlan struct {
	Term      string     `yaml:"term"`
	At        string     `yaml:"at,omitempty"`
	Schedules []Schedule `yaml:"schedules"`
}

// Schedule is a named, ordered set of course sections.
type Schedule struct {
	Name    string  `yaml:"name"`
	Courses Courses `yaml:"courses"`
}

// Course pairs a registration code with a human readable course name.
type Course struct {
	CRN  string
	Name string
}

// Courses keeps the order of a YAML "crn: course" mapping.
type Courses []Course

// UnmarshalYAML decodes a mapping node, preserving key order.
func (c *Courses) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: courses must be a mapping of CRN to course name", node.Line)
	}
	out := make(Courses, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if key.Kind != yaml.ScalarNode || value.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: CRN and course name must be scalars", key.Line)
		}
		out = append(out, Course{CRN: key.Value, Name: value.Value})
	}
	*c = out
	return nil
}

// CRNs returns the registration codes in plan order.
func (c Courses) CRNs() []string {
	crns := make([]string, len(c))
	for i, course := range c {
		crns[i] = course.CRN
	}
	return crns
}

// Name returns the course name registered under crn, or "".
func (c Courses) Name(crn string) string {
	for _, course := range c {
		if course.CRN == crn {
			return course.Name
		}
	}
	return ""
}

// Primary returns the schedule to submit.
func (t TermPlan) Primary() Schedule { return t.Schedules[0] }

// Alternatives returns the fallback schedules.
func (t TermPlan) Alternatives() []Schedule { return t.Schedules[1:] }

// Load reads and validates a plan file. A leading ~ is expanded.
func Load(path string) (*Plan, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("could not resolve plan path '%s': %w", path, err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", expanded, err)
	}
	return p, nil
}

// Parse decodes and validates a plan. Unknown keys are rejected.
func Parse(data []byte) (*Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Plan
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks that every term is named once, has a valid time and at
// least one non-empty schedule without repeated codes.
func (p *Plan) Validate() error {
	if len(p.Terms) == 0 {
		return fmt.Errorf("%w: no terms", ErrInvalidPlan)
	}
	seenTerms := make(map[string]bool)
	for i, t := range p.Terms {
		if t.Term == "" {
			return fmt.Errorf("%w: terms[%d] has no term code", ErrInvalidPlan, i)
		}
		if seenTerms[t.Term] {
			return fmt.Errorf("%w: term %s listed twice", ErrInvalidPlan, t.Term)
		}
		seenTerms[t.Term] = true

		if t.At != "" {
			if _, err := portal.ParseClock(t.At); err != nil {
				return fmt.Errorf("%w: term %s: %v", ErrInvalidPlan, t.Term, err)
			}
		}
		if len(t.Schedules) == 0 {
			return fmt.Errorf("%w: term %s has no schedules", ErrInvalidPlan, t.Term)
		}
		for j, s := range t.Schedules {
			if len(s.Courses) == 0 {
				return fmt.Errorf("%w: term %s schedule %d has no courses", ErrInvalidPlan, t.Term, j)
			}
			seen := make(map[string]bool)
			for _, c := range s.Courses {
				if c.CRN == "" {
					return fmt.Errorf("%w: term %s schedule %d has an empty CRN", ErrInvalidPlan, t.Term, j)
				}
				if seen[c.CRN] {
					return fmt.Errorf("%w: term %s schedule %d lists CRN %s twice", ErrInvalidPlan, t.Term, j, c.CRN)
				}
				seen[c.CRN] = true
			}
		}
	}
	return nil
}
