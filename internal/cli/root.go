// Package cli implements the formwizard command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/internal/config"
	"github.com/goliatone/go-formwizard/internal/logging"
	"github.com/goliatone/go-formwizard/pkg/draft"
	"github.com/goliatone/go-formwizard/pkg/notify"
	"github.com/goliatone/go-formwizard/pkg/orchestrator"
	"github.com/goliatone/go-formwizard/pkg/steps"
	"github.com/goliatone/go-formwizard/pkg/tui"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

// app holds what the persistent pre-run wires for subcommands.
type app struct {
	cfgFile string

	cfg     *config.Config
	logger  *zap.Logger
	store   draft.Store
	durable *durableLog
	outbox  *notify.Outbox
	orch    *orchestrator.Orchestrator
	closers []func() error

	// driver overrides the survey prompts.
	driver tui.PromptDriver
}

// Execute runs the formwizard command line.
func Execute(ctx context.Context) error {
	a := &app{}
	defer a.close()
	return newRootCommand(a).ExecuteContext(ctx)
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "formwizard",
		Short: "Fill multi-step documents as resumable drafts",
		Long: `formwizard walks through multi-step document definitions one step at a
time, validating each step before moving on and keeping the work as a
resumable draft until it is finalized.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default is $XDG_CONFIG_HOME/formwizard/formwizard.yaml)")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("db", "", "sqlite database path")

	root.AddCommand(
		newTypesCommand(a),
		newListCommand(a),
		newNewCommand(a),
		newResumeCommand(a),
		newCheckCommand(a),
		newDeleteCommand(a),
		newNotificationsCommand(a),
		newServeCommand(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	v, err := config.NewViper(a.cfgFile)
	if err != nil {
		return err
	}
	if f := cmd.Flags().Lookup("log-level"); f != nil {
		if err := v.BindPFlag("logging.level", f); err != nil {
			return fmt.Errorf("cli: bind --log-level: %w", err)
		}
	}
	if f := cmd.Flags().Lookup("db"); f != nil {
		if err := v.BindPFlag("store.path", f); err != nil {
			return fmt.Errorf("cli: bind --db: %w", err)
		}
	}
	cfg, err := config.Decode(v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	a.logger = logger
	a.closers = append(a.closers, func() error {
		_ = logger.Sync()
		return nil
	})

	registry, err := loadRegistry(cfg.Definitions.Dir)
	if err != nil {
		return err
	}
	if err := a.openStore(registry); err != nil {
		return err
	}

	a.outbox = notify.NewOutbox()
	notifiers := notify.Multi{a.outbox, notify.NewLogNotifier(logger)}
	if a.durable != nil {
		notifiers = append(notifiers, a.durable.store)
	}

	a.orch = orchestrator.New(
		orchestrator.WithRegistry(registry),
		orchestrator.WithStore(a.store),
		orchestrator.WithLogger(logger),
		orchestrator.WithTiming(cfg.Wizard.ReadinessDebounce, cfg.Wizard.AutosaveInterval),
		orchestrator.WithWizardOptions(wizard.WithNotifier(notifiers)),
	)
	if err := a.orch.Err(); err != nil {
		return err
	}
	logger.Debug("cli ready",
		zap.String("driver", cfg.Store.Driver),
		zap.Strings("document_types", registry.List()))
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.logger != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}

func loadRegistry(dir string) (*steps.Registry, error) {
	registry, err := steps.Default()
	if err != nil {
		return nil, fmt.Errorf("cli: embedded definitions: %w", err)
	}
	if dir == "" {
		return registry, nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("cli: definitions dir: %w", err)
	}
	if !info.IsDir() {
		return nil, errors.New("cli: definitions dir is not a directory")
	}
	extra, err := steps.LoadFS(os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("cli: load definitions: %w", err)
	}
	if err := registry.Merge(extra); err != nil {
		return nil, fmt.Errorf("cli: %w", err)
	}
	return registry, nil
}
