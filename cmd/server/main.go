package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"monitorplane/internal/alertengine"
	"monitorplane/internal/config"
	"monitorplane/internal/cooldown"
	"monitorplane/internal/dbx"
	"monitorplane/internal/dispatch"
	"monitorplane/internal/facade"
	"monitorplane/internal/logging"
	"monitorplane/internal/reconciler"
	"monitorplane/internal/sampledb"
	"monitorplane/internal/secretvault"
	"monitorplane/internal/server"
	"monitorplane/internal/store"
	"monitorplane/internal/workload"
	"monitorplane/internal/workload/k8s"
)

func main() {
	app := &cli.App{
		Name:  "monitorplane",
		Usage: "multi-tenant monitoring control plane",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and alert engine",
				Action: runServe,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations and exit",
				Action: runMigrate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runMigrate(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := dbx.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrating: %w", err)
	}
	fmt.Println("migrations applied")
	return nil
}

func runServe(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewFromEnv()
	defer logger.Sync()
	ctx := logging.WithLogger(context.Background(), logger)
	ctx = logging.WithComponent(ctx, "main")

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if err := dbx.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	st := store.Open(db)

	vault, err := secretvault.New(cfg.MasterKey, cfg.OldMasterKeys...)
	if err != nil {
		return fmt.Errorf("building secret vault: %w", err)
	}

	samples, err := buildSampleStore(cfg)
	if err != nil {
		return fmt.Errorf("building sample store: %w", err)
	}

	cd, err := buildCooldownStore(cfg)
	if err != nil {
		return fmt.Errorf("building cooldown store: %w", err)
	}
	defer cd.Close()

	wl, err := buildWorkloadManager(cfg)
	if err != nil {
		return fmt.Errorf("building workload manager: %w", err)
	}

	dp := dispatch.New(st, cfg.MailProviderAPIKey, cfg.MailFromEmail, cfg.MailFromName, cfg.DefaultChatWebhooks)
	defer dp.Close()

	f := facade.New(st, vault, wl, samples)

	_, mockWorkload := wl.(*workload.MockManager)
	srv := server.New(f, db, cd, server.Config{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RequestsPerMinute:  cfg.RequestsPerMinute,
		StatusFlags: map[string]bool{
			"email_enabled":       cfg.MailProviderAPIKey != "",
			"rate_limiting":       cfg.RequestsPerMinute > 0,
			"kubernetes_workload": !mockWorkload,
			"simulator_samples":   strings.HasPrefix(cfg.SampleStoreURL, "simulator://"),
		},
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: srv.Router(),
	}

	// loops tracks the alert engine and reconciler goroutines so shutdown
	// can wait for their in-flight tick/sweep (including in-flight
	// dispatches) to finish before the deferred db/cd/dp closes run,
	// instead of merely cancelling them.
	var loops sync.WaitGroup

	engine := alertengine.New(st, samples, cd, dp, cfg.AlertEvaluationInterval)
	engineCtx, cancelEngine := context.WithCancel(ctx)
	defer cancelEngine()

	loops.Add(1)
	go func() {
		defer loops.Done()
		if err := engine.Run(engineCtx); err != nil && err != context.Canceled {
			logger.Error("alert engine stopped", zap.Error(err))
		}
	}()

	rec := reconciler.New(st, wl, vault, cfg.ReconcileInterval)
	recCtx, cancelRec := context.WithCancel(ctx)
	defer cancelRec()

	loops.Add(1)
	go func() {
		defer loops.Done()
		if err := rec.Run(recCtx); err != nil && err != context.Canceled {
			logger.Error("reconciler stopped", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("serving", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server stopped", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	// Cancelling engineCtx/recCtx only stops each loop from scheduling its
	// *next* tick/sweep — engine.Run/reconciler.Run run their current
	// in-flight work against a context.WithoutCancel derivative, so it is
	// unaffected by this cancellation and is left to finish on its own.
	cancelEngine()
	cancelRec()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdownErr := httpServer.Shutdown(shutdownCtx)

	loopsDone := make(chan struct{})
	go func() {
		loops.Wait()
		close(loopsDone)
	}()
	select {
	case <-loopsDone:
	case <-shutdownCtx.Done():
		logger.Warn("graceful shutdown deadline reached before the alert engine/reconciler finished their in-flight work")
	}

	return shutdownErr
}

func buildSampleStore(cfg *config.Config) (sampledb.Store, error) {
	if strings.HasPrefix(cfg.SampleStoreURL, "simulator://") {
		return sampledb.NewSimulatorStore(), nil
	}
	return sampledb.NewRedisStore(cfg.SampleStoreURL, cfg.SampleStoreToken, cfg.SampleStoreDB), nil
}

func buildCooldownStore(cfg *config.Config) (cooldown.Store, error) {
	if len(cfg.CooldownEndpoints) == 0 {
		return cooldown.NewMemoryStore(), nil
	}
	return cooldown.NewEtcdStore(cfg.CooldownEndpoints, 5*time.Second)
}

// buildWorkloadManager wires the real Kubernetes reconciler whenever a
// cluster configuration can be loaded (in-cluster, or from a kubeconfig),
// and falls back to the in-process mock otherwise — the same behavior local
// development gets when no cluster is configured at all. Loading the
// configuration does not contact the cluster, so an unreachable cluster
// still gets the real manager.
func buildWorkloadManager(cfg *config.Config) (workload.Manager, error) {
	clientset, err := k8s.NewClientset(cfg.KubeconfigPath, cfg.KubeContext)
	if err != nil {
		return workload.NewMockManager(), nil
	}
	namespace := cfg.KubeNamespace
	if namespace == "" {
		namespace = "default"
	}
	return k8s.New(clientset, namespace, cfg.SampleStoreURL), nil
}
