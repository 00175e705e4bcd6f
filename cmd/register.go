package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/banner-cli/internal/config"
	"github.com/xkilldash9x/banner-cli/internal/observability"
	"github.com/xkilldash9x/banner-cli/internal/plan"
	"github.com/xkilldash9x/banner-cli/internal/portal"
)

// ErrIncomplete is returned when the portal rejected at least one code or a
// code could not be placed on the form.
var ErrIncomplete = errors.New("registration incomplete")

// newRegisterCmd creates and configures the `register` command.
func newRegisterCmd() *cobra.Command {
	var crns []string

	registerCmd := &cobra.Command{
		Use:   "register [crn...]",
		Short: "Submits registration codes for a term, optionally at a set time",
		Long: `Logs in to the portal, waits until --at (HH:MM on the portal's clock) if given,
fills the add/drop form with the codes and reports what the portal rejected.

Codes come from --crn and positional arguments, or from a plan file with --plan.`,
		Example: `  banner-cli register --url https://ssb.example.edu --user 900123 --term 201609 --crn 12345,23456
  banner-cli register --term 201609 --at 07:00 12345 23456
  banner-cli register --plan ~/fall.yaml --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}
			regCfg := cfg.Register()
			codes := normalizeCodes(append(append([]string{}, crns...), args...))

			var registrationPlan *plan.Plan
			switch {
			case regCfg.Plan != "" && len(codes) > 0:
				return fmt.Errorf("%w: --plan cannot be combined with codes", portal.ErrInvalidRequest)
			case regCfg.Plan != "":
				if registrationPlan, err = plan.Load(regCfg.Plan); err != nil {
					return err
				}
			default:
				// Validate before logging in so a typo never costs a login.
				if regCfg.Term == "" {
					return fmt.Errorf("%w: --term is required", portal.ErrInvalidRequest)
				}
				if len(codes) == 0 {
					return fmt.Errorf("%w: at least one code is required", portal.ErrInvalidRequest)
				}
				if regCfg.At != "" {
					if _, err := portal.ParseClock(regCfg.At); err != nil {
						return err
					}
				}
			}

			session, err := openSession(ctx, cfg, cmd.ErrOrStderr(), logger)
			if err != nil {
				return err
			}

			var outcomes []termOutcome
			var runErr error
			if registrationPlan != nil {
				outcomes, runErr = runPlan(cmd, session, registrationPlan, regCfg, logger)
			} else {
				outcomes, runErr = runCodes(cmd, session, codes, regCfg)
			}

			// Terms submitted before a failure are still reported.
			if len(outcomes) > 0 {
				if err := writeOutcomes(cmd.OutOrStdout(), regCfg.Format, outcomes); err != nil {
					return errors.Join(runErr, err)
				}
			}
			if runErr != nil {
				return runErr
			}
			for _, o := range outcomes {
				if !o.complete() {
					return ErrIncomplete
				}
			}
			return nil
		},
	}

	registerCmd.Flags().String("url", "", "portal base URL, e.g. https://ssb.example.edu")
	registerCmd.Flags().String("user", "", "portal username (student ID)")
	registerCmd.Flags().String("term", "", "term code, e.g. 201609")
	registerCmd.Flags().StringSliceVar(&crns, "crn", nil, "registration codes, comma separated or repeated")
	registerCmd.Flags().String("at", "", "submit at HH:MM on the portal's clock")
	registerCmd.Flags().String("plan", "", "YAML plan file listing terms and schedules")
	registerCmd.Flags().String("format", "", "output format: text or json")
	registerCmd.Flags().Bool("store-term", false, "select the term as the session default before submitting")
	return registerCmd
}

func runCodes(cmd *cobra.Command, session *portal.Session, codes []string, regCfg config.RegisterConfig) ([]termOutcome, error) {
	res, err := session.Register(cmd.Context(), portal.Request{
		Codes:     codes,
		Term:      regCfg.Term,
		At:        regCfg.At,
		StoreTerm: regCfg.StoreTerm,
	})
	if err != nil {
		return nil, err
	}
	return []termOutcome{{Term: regCfg.Term, Codes: codes, Result: res}}, nil
}

// runPlan submits the primary schedule of every term in order and compares
// what was registered against each alternative schedule.
func runPlan(cmd *cobra.Command, session *portal.Session, p *plan.Plan, regCfg config.RegisterConfig, logger *zap.Logger) ([]termOutcome, error) {
	outcomes := make([]termOutcome, 0, len(p.Terms))
	for _, tp := range p.Terms {
		at := tp.At
		if at == "" {
			at = regCfg.At
		}
		primary := tp.Primary()
		codes := primary.Courses.CRNs()

		logger.Info("Registering planned schedule.",
			zap.String("term", tp.Term), zap.String("schedule", primary.Name), zap.Strings("codes", codes))

		res, err := session.Register(cmd.Context(), portal.Request{Codes: codes, Term: tp.Term, At: at, StoreTerm: regCfg.StoreTerm})
		if err != nil {
			return outcomes, fmt.Errorf("term %s: %w", tp.Term, err)
		}
		session.InvalidateFormCache()

		registered := registeredCodes(codes, res)
		outcome := termOutcome{Term: tp.Term, Schedule: primary.Name, Codes: codes, Result: res}
		for _, alt := range tp.Alternatives() {
			change := plan.Diff(registered, alt.Courses.CRNs())
			outcome.Alternatives = append(outcome.Alternatives, alternative{
				Name:    alt.Name,
				Change:  change,
				Courses: courseNames(change, primary.Courses, alt.Courses),
			})
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// courseNames names the codes of change: added codes from the alternative,
// dropped codes from the registered schedule.
func courseNames(change plan.Change, registered, alt plan.Courses) map[string]string {
	names := make(map[string]string)
	for _, c := range change.Add {
		if name := alt.Name(c); name != "" {
			names[c] = name
		}
	}
	for _, c := range change.Drop {
		if name := registered.Name(c); name != "" {
			names[c] = name
		}
	}
	if len(names) == 0 {
		return nil
	}
	return names
}

func normalizeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// registeredCodes returns the submitted codes the portal did not reject, in order.
func registeredCodes(codes []string, res *portal.Result) []string {
	rejected := make(map[string]bool, len(res.Failed)+len(res.Unplaced))
	for _, c := range res.Failed {
		rejected[c] = true
	}
	for _, c := range res.Unplaced {
		rejected[c] = true
	}
	var out []string
	for _, c := range normalizeCodes(codes) {
		if !rejected[c] {
			out = append(out, c)
		}
	}
	return out
}
