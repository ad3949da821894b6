package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quailyquaily/taskwarden/api"
	"github.com/quailyquaily/taskwarden/approval"
	"github.com/quailyquaily/taskwarden/gate"
	"github.com/quailyquaily/taskwarden/internal/pathutil"
	"github.com/quailyquaily/taskwarden/runner"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gate daemon: HTTP API, approval registry and task workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :8787)")
	_ = viper.BindPFlag("serve.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func runServe(parent context.Context) error {
	log := loggerFromViper()
	slog.SetDefault(log)

	classifier, err := classifierFromViper()
	if err != nil {
		return err
	}

	run, err := runnerFromViper()
	if err != nil {
		return err
	}

	notifier := approval.NewNotifier(viper.GetInt("gate.notify.mailbox"), log)

	opts := []approval.Option{
		approval.WithNotifier(notifier),
		approval.WithLogger(log),
	}
	if sink := auditSinkFromViper(log); sink != nil {
		opts = append(opts, approval.WithAuditSink(sink))
		defer sink.Close()
	}
	if archive := archiveFromViper(log); archive != nil {
		opts = append(opts, approval.WithArchive(archive))
		defer archive.Close()
	}

	registry := approval.NewRegistry(approval.Config{
		DefaultTimeout: viper.GetDuration("gate.approvals.timeout"),
		Retention:      viper.GetDuration("gate.approvals.retention"),
	}, opts...)
	defer registry.Close()

	exec, err := gate.NewExecutor(classifier, registry, run, gate.WithLogger(log))
	if err != nil {
		return err
	}

	store := gate.NewStore(viper.GetInt("serve.queue_size"))
	defer store.Close()

	workers := viper.GetInt("serve.workers")
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		go gate.NewWorker(store, exec, log).Run()
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := strings.TrimSpace(viper.GetString("serve.addr"))
	if addr == "" {
		addr = ":8787"
	}
	srv := &http.Server{
		Addr: addr,
		Handler: api.New(api.Config{
			Registry:    registry,
			Notifier:    notifier,
			Store:       store,
			Logger:      log,
			BaseContext: ctx,
		}).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serve_started", "addr", addr, "workers", workers)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("serve_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggerFromViper() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(viper.GetString("log.level"))) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runnerFromViper() (runner.Runner, error) {
	endpoint := strings.TrimSpace(viper.GetString("runner.endpoint"))
	if endpoint == "" {
		return nil, fmt.Errorf("runner.endpoint is required for serve")
	}
	return runner.NewHTTPRunner(runner.HTTPConfig{
		Endpoint: endpoint,
		Token:    viper.GetString("runner.token"),
		Timeout:  viper.GetDuration("runner.timeout"),
	})
}

func auditSinkFromViper(log *slog.Logger) *approval.JSONLAuditSink {
	path := strings.TrimSpace(viper.GetString("gate.audit.jsonl_path"))
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			return nil
		}
		path = filepath.Join(home, ".taskwarden", "approval_audit.jsonl")
	}
	path = pathutil.ExpandHomePath(path)

	sink, err := approval.NewJSONLAuditSink(path, viper.GetInt64("gate.audit.rotate_max_bytes"))
	if err != nil {
		log.Warn("audit_sink_error", "error", err.Error())
		return nil
	}
	log.Info("audit_sink_enabled", "path", path)
	return sink
}

func archiveFromViper(log *slog.Logger) *approval.SQLiteArchive {
	if !viper.GetBool("gate.archive.enabled") {
		return nil
	}
	dsn := strings.TrimSpace(viper.GetString("gate.archive.dsn"))
	if dsn == "" {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			log.Warn("archive_dsn_error", "error", "cannot resolve home directory")
			return nil
		}
		dsn = filepath.Join(home, ".taskwarden", "taskwarden.db")
	}
	dsn = pathutil.ExpandHomePath(dsn)
	if err := pathutil.EnsureParentDir(dsn); err != nil {
		log.Warn("archive_dir_error", "error", err.Error())
		return nil
	}

	archive, err := approval.NewSQLiteArchive(dsn)
	if err != nil {
		log.Warn("archive_open_error", "error", err.Error())
		return nil
	}
	log.Info("archive_enabled", "dsn", dsn)
	return archive
}
