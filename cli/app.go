package cli

import (
	"fmt"
	"log/slog"

	"github.com/fahmaliyi/pinguard/biometric"
	"github.com/fahmaliyi/pinguard/config"
	"github.com/fahmaliyi/pinguard/ledger"
	"github.com/fahmaliyi/pinguard/reveal"
	"github.com/fahmaliyi/pinguard/vault"
)

const (
	vaultFileName     = "secrets.pgrd"
	sqliteFileName    = "secrets.db"
	deviceKeyFileName = "device.key"
)

// App bundles the collaborators every command needs.
type App struct {
	Config    *config.Config
	Store     vault.Store
	Biometric biometric.Capability
	Provider  ledger.Provider
	Logger    *slog.Logger
}

// OpenApp opens the configured secret store and builds the provider and
// biometric capability. Callers must Close the app.
func OpenApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	bio, err := biometric.FromMode(cfg.Biometric, cfg.BiometricEnrolled, cfg.BiometricDelay)
	if err != nil {
		return nil, err
	}
	store, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	return &App{
		Config:    cfg,
		Store:     store,
		Biometric: bio,
		Provider:  ledger.NewMock(ledger.WithFailureRate(cfg.FailureRate)),
		Logger:    logger,
	}, nil
}

// OpenStore opens the secret store selected by cfg.Store.
func OpenStore(cfg *config.Config) (vault.Store, error) {
	if cfg.Store == "memory" {
		return vault.NewMemory(), nil
	}
	if err := EnsureDir(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	key, err := vault.LoadDeviceKey(cfg.Path(deviceKeyFileName))
	if err != nil {
		return nil, err
	}
	defer vault.Zero(key)

	switch cfg.Store {
	case "sqlite":
		return vault.OpenSQL(cfg.Path(sqliteFileName), key)
	default:
		// The vault wipes the passphrase it is given, so hand it a copy.
		pass := append([]byte(nil), key...)
		v, err := vault.OpenFile(cfg.Path(vaultFileName), pass, nil)
		if err != nil {
			return nil, fmt.Errorf("open vault: %w", err)
		}
		return v, nil
	}
}

// NewController returns a reveal controller over the app's store and
// biometric capability.
func (a *App) NewController(component string) *reveal.Controller {
	return reveal.New(a.Store, a.Biometric,
		reveal.WithPrompt(a.Config.Prompt),
		reveal.WithLogger(a.Logger.With("component", component)),
	)
}

func (a *App) Close() error {
	return a.Store.Close()
}
