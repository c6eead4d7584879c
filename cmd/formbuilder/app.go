package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-formbuilder/internal/config"
	"github.com/goliatone/go-formbuilder/pkg/codec"
	"github.com/goliatone/go-formbuilder/pkg/model"
	"github.com/goliatone/go-formbuilder/pkg/registry"
	"github.com/goliatone/go-formbuilder/pkg/session"
	"github.com/goliatone/go-formbuilder/pkg/storage"
)

const defaultConfigPath = "formbuilder.yaml"

// app carries the state shared by every subcommand. It is populated in the
// root command's PersistentPreRunE.
type app struct {
	configPath string
	storageDir string
	cfg        *config.Config
	logger     zerolog.Logger
	backend    storage.Backend
	registry   *registry.Registry
}

func newRootCmd() *cobra.Command {
	a := &app{registry: registry.Default()}

	root := &cobra.Command{
		Use:          "formbuilder",
		Short:        "Build, store and preview form schemas",
		Long:         "formbuilder edits form schemas field by field, persists them and previews them as HTML or in the terminal.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", defaultConfigPath, "configuration file")
	root.PersistentFlags().StringVar(&a.storageDir, "dir", "", "override storage.dir for the fs driver")

	root.AddCommand(
		newListCmd(a),
		newNewCmd(a),
		newShowCmd(a),
		newImportCmd(a),
		newDeleteCmd(a),
		newKindsCmd(a),
		newAddCmd(a),
		newRemoveCmd(a),
		newMoveCmd(a),
		newUpdateCmd(a),
		newLintCmd(a),
		newPreviewCmd(a),
		newWatchCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.LoadWithFallback(a.configPath)
	if err != nil {
		return err
	}
	if a.storageDir != "" {
		cfg.Storage.Dir = a.storageDir
	}
	a.cfg = cfg
	a.logger = newLogger(cfg.Logging, cmd.ErrOrStderr())

	backend, err := openBackend(cmd.Context(), cfg.Storage, a.logger)
	if err != nil {
		return err
	}
	a.backend = backend
	a.logger.Debug().
		Str("driver", cfg.Storage.Driver).
		Str("config", a.configPath).
		Msg("storage ready")
	return nil
}

func (a *app) close() error {
	if a.backend == nil {
		return nil
	}
	err := a.backend.Close()
	a.backend = nil
	return err
}

func newLogger(cfg config.LoggingConfig, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	out := w
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func openBackend(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (storage.Backend, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return storage.NewSQLite(ctx, cfg.DSN)
	case config.DriverFS:
		return storage.NewFS(cfg.Dir, storage.WithFSLogger(logger))
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// loadSchema reads and decodes a stored form without a session.
func (a *app) loadSchema(ctx context.Context, name string) (model.FormSchema, error) {
	data, err := a.backend.Load(ctx, name)
	if err != nil {
		return model.FormSchema{}, err
	}
	schema, err := codec.Deserialize(data, a.registry)
	if err != nil {
		return model.FormSchema{}, fmt.Errorf("decode %s: %w", name, err)
	}
	return schema, nil
}

// withSession runs fn against a session bound to the configured backend.
// The session loop lives as long as fn.
func (a *app) withSession(ctx context.Context, fn func(ctx context.Context, s *session.Session) error) error {
	s, err := session.New(
		session.WithRegistry(a.registry),
		session.WithBackend(a.backend),
		session.WithLogger(a.logger),
		session.WithQueueSize(a.cfg.Session.QueueSize),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	loop := make(chan error, 1)
	go func() { loop <- s.Run(ctx) }()
	defer func() {
		_ = s.Close()
		if err := <-loop; err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Debug().Err(err).Msg("session loop ended")
		}
	}()

	return fn(ctx, s)
}

// edit loads name into a session, applies fn and saves the result. Nothing
// is written when fn fails.
func (a *app) edit(ctx context.Context, name string, fn func(ctx context.Context, s *session.Session) error) error {
	return a.withSession(ctx, func(ctx context.Context, s *session.Session) error {
		if err := s.Load(ctx, name); err != nil {
			return err
		}
		if err := fn(ctx, s); err != nil {
			return err
		}
		return s.Save(ctx, name)
	})
}
