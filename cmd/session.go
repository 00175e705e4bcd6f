package cmd

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/xkilldash9x/banner-cli/internal/config"
	"github.com/xkilldash9x/banner-cli/internal/network"
	"github.com/xkilldash9x/banner-cli/internal/portal"
)

// openSession builds the throttled portal client from cfg and logs in.
// The password comes from the environment or, failing that, a prompt on w.
func openSession(ctx context.Context, cfg config.Interface, w io.Writer, logger *zap.Logger) (*portal.Session, error) {
	portalCfg := cfg.Portal()
	if err := portalCfg.ValidateForSession(); err != nil {
		return nil, fmt.Errorf("%w: %w", portal.ErrConfiguration, err)
	}

	if portalCfg.Password == "" {
		pw, err := passwordPrompt(w, portalCfg.Username)
		if err != nil {
			return nil, err
		}
		cfg.SetPortalPassword(pw)
		portalCfg = cfg.Portal()
	}

	clientCfg, err := network.NewClientConfigFromConfig(cfg.Network(), cfg.Throttle())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", portal.ErrConfiguration, err)
	}
	clientCfg.Logger = logger.Named("http")

	return portal.New(ctx, portal.Options{
		BaseURL:     portalCfg.BaseURL,
		MiddlePaths: portalCfg.MiddlePaths,
		Credentials: portal.Credentials{
			Username: portalCfg.Username,
			Password: portalCfg.Password,
		},
		SessionCookie: portalCfg.SessionCookie,
		Client:        network.NewClient(clientCfg),
		Logger:        logger,
	})
}
