package main

import (
	"fmt"

	"github.com/obentoo/paperbot/internal/common/config"
	"github.com/obentoo/paperbot/internal/common/version"
	"github.com/obentoo/paperbot/internal/paper"
)

// app holds the components shared by the bot and the one-shot commands.
type app struct {
	cfg    *config.Config
	client *paper.HTTPClient
	source *paper.Source
	builds *paper.BuildLookup
	store  paper.Store
	// closers release resources held by the store
	closers []func() error
}

// loadConfig reads the config file named by --config, or the first one
// found in the default locations.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		found, err := config.FindConfigPath()
		if err != nil {
			return nil, err
		}
		path = found
	}
	return config.Load(path)
}

// newApp builds the HTTP client, version source, build lookup and store
// described by cfg.
func newApp(cfg *config.Config) (*app, error) {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = version.UserAgent()
	}
	client := paper.NewHTTPClientWithConfig(paper.HTTPConfig{
		Timeout:   cfg.RequestTimeout.Duration(),
		UserAgent: userAgent,
	})

	builds, err := paper.NewBuildLookup(cfg.BuildsURL, cfg.Timezone, client)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		client: client,
		source: paper.NewSource(cfg.SourceURL, paper.NewHeadingParser(cfg.Selector, cfg.XPath), client),
		builds: builds,
	}

	if err := a.openStore(); err != nil {
		return nil, err
	}
	return a, nil
}

// openStore selects the store backend configured in cfg.Store.
func (a *app) openStore() error {
	sc := a.cfg.Store
	switch sc.Backend {
	case config.BackendS3:
		store, err := paper.NewS3Store(paper.S3Config{
			Endpoint:  sc.S3.Endpoint,
			Bucket:    sc.S3.Bucket,
			AccessKey: sc.S3.AccessKey,
			SecretKey: sc.S3.SecretKey,
			Region:    sc.S3.Region,
			Key:       sc.S3.Key,
		})
		if err != nil {
			return err
		}
		a.store = store
	case config.BackendSQLite:
		store, err := paper.NewSQLiteStore(sc.Path, sc.Slot)
		if err != nil {
			return err
		}
		a.store = store
		a.closers = append(a.closers, store.Close)
	case config.BackendFile, "":
		a.store = paper.NewFileStore(a.cfg.VersionFile)
	default:
		return fmt.Errorf("%w: unknown store backend %q", config.ErrConfig, sc.Backend)
	}
	return nil
}

// webhook returns the webhook mirror, or nil when none is configured.
func (a *app) webhook() paper.Notifier {
	if a.cfg.WebhookURL == "" {
		return nil
	}
	return paper.NewWebhookNotifier(a.cfg.WebhookURL)
}

// Close releases the store.
func (a *app) Close() error {
	var firstErr error
	for _, c := range a.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
