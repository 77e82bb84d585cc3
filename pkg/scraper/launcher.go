package scraper

import (
	"context"
	"time"

	"igreels/pkg/browser"
	"igreels/pkg/config"
	errs "igreels/pkg/errors"
	"igreels/pkg/logger"
	"igreels/pkg/models"
	"igreels/pkg/proxy"
	"igreels/pkg/retry"
)

const launchRetryDelay = 2 * time.Second

// Launcher starts the browser a run drives.
type Launcher func(ctx context.Context) (browser.Controller, error)

// ChromeLauncher launches Chrome from the browser configuration. With a
// rotator each launch takes the next proxy; a proxy whose launch fails is
// taken out of rotation and the next one is tried.
func ChromeLauncher(cfg *config.Config, rotator *proxy.Rotator, log logger.Logger) Launcher {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return func(ctx context.Context) (browser.Controller, error) {
		if rotator == nil {
			var p *models.ProxyConfig
			if cfg.Browser.Proxy != "" {
				parsed, err := proxy.Parse(cfg.Browser.Proxy)
				if err != nil {
					return nil, errs.Wrap(errs.ErrorTypeConfiguration, "invalid proxy", err)
				}
				if parsed.AuthUnsupported {
					log.WithField("proxy", parsed.Address()).Warn("Proxy credentials are not supported, using address only")
				}
				p = parsed
			}
			return launchWithRetry(ctx, cfg, p, log)
		}

		for {
			p, ok := rotator.Next()
			if !ok {
				return nil, errs.Newf(errs.ErrorTypeLaunch, "all %d proxies failed to launch", rotator.Len())
			}
			ctrl, err := launchWithRetry(ctx, cfg, &p, log)
			if err == nil {
				return ctrl, nil
			}
			if ctx.Err() != nil {
				return nil, err
			}
			rotator.MarkFailed(p)
			log.WithError(err).WithFields(map[string]interface{}{
				"proxy":   p.Address(),
				"healthy": rotator.Healthy(),
			}).Warn("Proxy failed, rotating")
		}
	}
}

func launchWithRetry(ctx context.Context, cfg *config.Config, p *models.ProxyConfig, log logger.Logger) (browser.Controller, error) {
	return retry.DoWithResult(ctx, func(int) (browser.Controller, error) {
		c, err := browser.Launch(ctx, browser.OptionsFromConfig(cfg, p), log)
		if err != nil {
			return nil, err
		}
		return c, nil
	}, retry.Config{
		MaxAttempts: cfg.Browser.LaunchRetries,
		Backoff:     &retry.ConstantBackoff{Delay: launchRetryDelay},
		RetryIf: func(err error) bool {
			return errs.Is(err, errs.ErrorTypeLaunch)
		},
		Logger: log,
		Name:   "browser_launch",
	})
}
