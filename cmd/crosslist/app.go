package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/daviddao/crosslist/internal/auth"
	"github.com/daviddao/crosslist/internal/browser"
	"github.com/daviddao/crosslist/internal/config"
	"github.com/daviddao/crosslist/internal/db"
	"github.com/daviddao/crosslist/internal/gmail"
	"github.com/daviddao/crosslist/internal/platform"
	"github.com/daviddao/crosslist/internal/sheets"
	"github.com/spf13/pflag"
)

// appPath joins name onto the per-user app directory.
func appPath(name string) (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	p, err := config.DefaultPath()
	if err != nil {
		return "config.yaml"
	}
	return p
}

func resolveCredentials(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	return appPath("credentials.json")
}

// loadConfig loads a complete config, with environment overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFromEnv(resolveConfigPath())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// connect returns the Gmail and Sheets clients for the logged-in account.
func connect(ctx context.Context, credentials string) (*gmail.Client, *sheets.Client, error) {
	path, err := resolveCredentials(credentials)
	if err != nil {
		return nil, nil, err
	}
	gsvc, ssvc, err := auth.LoadServices(ctx, path, logger)
	if err != nil {
		return nil, nil, err
	}
	return gmail.New(gsvc), sheets.New(ssvc), nil
}

// newChrome returns a driver on the shared crosslist browser profile, so
// marketplace logins made with `crosslist browser` are reused.
func newChrome(cfg *config.Config, headless bool, extraArgs []string) (*browser.Chrome, error) {
	profile, err := appPath("chrome-profile")
	if err != nil {
		return nil, err
	}
	args := append(append([]string{}, cfg.ChromeArgs...), extraArgs...)
	return browser.NewChrome(browser.Options{
		UserDataDir:  profile,
		Args:         args,
		Headless:     headless,
		ImplicitWait: cfg.ImplicitWait(),
	}), nil
}

// openJournal opens the journal into the package-level store, closed by
// the root command's post-run hook.
func openJournal() (*db.DB, error) {
	if store != nil {
		return store, nil
	}
	path, err := appPath(db.FileName)
	if err != nil {
		return nil, err
	}
	store, err = db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return store, nil
}

var _ pflag.Value = (*platformValue)(nil)

// platformValue selects one platform by code.
type platformValue struct {
	p *platform.Platform
}

func (v *platformValue) String() string {
	if v.p == nil {
		return ""
	}
	return v.p.Code()
}

func (v *platformValue) Set(s string) error {
	p, ok := platform.ByCode(s)
	if !ok {
		return fmt.Errorf("unknown platform %q (valid: %s)", s, strings.Join(platform.Codes(), ", "))
	}
	v.p = p
	return nil
}

func (v *platformValue) Type() string { return "platform" }
