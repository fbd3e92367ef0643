package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rendis/procdesigner/internal/httpapi"
	"github.com/rendis/procdesigner/internal/scheduler"
	"github.com/rendis/procdesigner/internal/store"
	"github.com/rendis/procdesigner/internal/streaming"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the process endpoints over HTTP and run revision pruning",
		Long: `serve exposes the designer's open and save endpoints plus diagram rendering
and validation, and streams process events at /events. SIGHUP reloads lint rules and variants from the settings file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("listen") {
				a.cfg.ListenAddr = listen
			}
			return a.serve(cmd)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "TCP listen address (default :4200)")
	return cmd
}

func (a *app) serve(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := a.openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	a.hub = streaming.NewMemoryHub()
	handler, err := a.buildHandler(st, a.cfg)
	if err != nil {
		return err
	}
	swapper := newHandlerSwapper(handler)

	pruner, err := scheduler.NewPruner(st, scheduler.Config{
		Schedule:      a.cfg.PruneSchedule,
		KeepRevisions: a.cfg.KeepRevisions,
		Hub:           a.hub,
	}, a.logger)
	if err != nil {
		return err
	}
	if err := pruner.Start(ctx); err != nil {
		return err
	}
	defer pruner.Stop()

	if err := writePIDFile(); err != nil {
		a.logger.Warn("pid file not written", slog.String("error", err.Error()))
	}
	defer os.Remove(pidPath())

	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           swapper,
		ReadHeaderTimeout: 10 * time.Second,
		// Request contexts end with ctx, so event streams close on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", slog.String("addr", srv.Addr), slog.String("db", a.cfg.DBPath))
		errCh <- srv.ListenAndServe()
	}()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-hup:
			a.reload(st, swapper)
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	}
}

// buildHandler wires the HTTP API for cfg.
func (a *app) buildHandler(st store.Store, cfg Config) (http.Handler, error) {
	reg, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}
	v, err := buildValidator(cfg)
	if err != nil {
		return nil, err
	}
	return httpapi.NewServer(httpapi.Deps{
		Store:     st,
		Registry:  reg,
		Validator: v,
		Logger:    a.logger,
		AsciiBin:  cfg.AsciiBin,
		Hub:       a.hub,
	}).Handler(), nil
}

// reload re-reads the settings file and swaps in a new handler when lint
// rules or variants changed. A bad file keeps the running configuration.
func (a *app) reload(st store.Store, swapper *handlerSwapper) {
	next, err := loadConfig(a.settings)
	if err != nil {
		a.logger.Error("reload failed", slog.String("error", err.Error()))
		return
	}
	diff := diffConfigs(a.cfg, next)
	if len(diff.RestartNeeded) > 0 {
		a.logger.Warn("settings changed that need a restart", slog.Any("fields", diff.RestartNeeded))
	}
	if diff.HandlerChanged() {
		h, err := a.buildHandler(st, next)
		if err != nil {
			a.logger.Error("reload failed", slog.String("error", err.Error()))
			return
		}
		swapper.Swap(h)
		a.cfg.LintRules, a.cfg.Variants = next.LintRules, next.Variants
	}
	a.logger.Info("configuration reloaded",
		slog.Bool("handler_swapped", diff.HandlerChanged()),
		slog.Int("lint_rules", len(a.cfg.LintRules)),
	)
}

func writePIDFile() error {
	if err := os.MkdirAll(designerDir(), 0o700); err != nil {
		return fmt.Errorf("create %s: %w", designerDir(), err)
	}
	return os.WriteFile(pidPath(), []byte(strconv.Itoa(os.Getpid())), 0o644)
}
