package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jask/olympiadbot/internal/bot"
	"github.com/jask/olympiadbot/internal/config"
	"github.com/jask/olympiadbot/internal/database"
	"github.com/jask/olympiadbot/internal/database/repository"
	"github.com/jask/olympiadbot/internal/logger"
	"github.com/jask/olympiadbot/internal/metrics"
	"github.com/jask/olympiadbot/internal/navigation"
	"github.com/jask/olympiadbot/internal/service"
	"github.com/jask/olympiadbot/internal/session"
	"github.com/jask/olympiadbot/internal/tui"
	"github.com/jask/olympiadbot/internal/watch"
)

const usage = `usage:
  olympiadbot                        start the terminal chat
  olympiadbot load replace|append P  ingest a bundle (spreadsheet or directory) and exit`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// a missing .env is fine
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	dataDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatalf("mkdir db dir: %v", err)
	}
	if err := os.MkdirAll(cfg.Assets.Dir, 0o755); err != nil {
		log.Fatalf("mkdir assets dir: %v", err)
	}

	headless := len(os.Args) > 1
	var logPaths []string
	if !headless {
		// keep the alt screen clean
		logPaths = []string{filepath.Join(dataDir, "olympiadbot.log")}
	}
	lg, err := logger.New(cfg.Log.Mode, logPaths...)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	if err := database.RunMigrations(cfg.Database.Path, cfg.Database.Migrations); err != nil {
		lg.Fatal("migrate", "err", err)
	}
	db, err := database.Open(cfg.Database.Path, cfg.Database.MaxOpenConns)
	if err != nil {
		lg.Fatal("open db", "err", err)
	}
	defer db.Close()

	sessions := session.New[navigation.Session](cfg.Sessions.TTL, cfg.Sessions.CleanupInterval)
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, sessions.Len)

	// repositories
	content := repository.NewContent(db)
	callers := repository.NewCallerRepo(db)

	// ingestion and clear-all share one write lock
	writeLock := &sync.Mutex{}
	ingester := &service.IngestService{DB: db, AssetsDir: cfg.Assets.Dir, Log: lg, Metrics: m, Lock: writeLock}
	maintenance := &service.MaintenanceService{DB: db, AssetsDir: cfg.Assets.Dir, Log: lg, Lock: writeLock}

	if headless {
		if err := runCommand(ctx, ingester, os.Args[1:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	dispatcher := &bot.Dispatcher{
		Engine:      &navigation.Engine{Catalog: content, Sessions: sessions, Log: lg, Metrics: m},
		Content:     content,
		Callers:     callers,
		Ingest:      ingester,
		Maintenance: maintenance,
		IsAdmin:     cfg.IsAdmin,
		Log:         lg,
		Metrics:     m,
	}

	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, reg, lg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	p := tea.NewProgram(tui.New(ctx, cfg, dispatcher), tea.WithAltScreen(), tea.WithContext(ctx))

	if cfg.Bundle.WatchDir != "" {
		if err := startWatcher(ctx, cfg, ingester, lg, p); err != nil {
			lg.Error("inbox watcher disabled", "err", err)
		}
	}

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		fmt.Printf("error: %v\n", err)
	}
}

func runCommand(ctx context.Context, ingester *service.IngestService, args []string) error {
	if len(args) != 3 || args[0] != "load" {
		return errors.New(usage)
	}
	mode, err := service.ParseMode(args[1])
	if err != nil {
		return err
	}
	res, err := ingester.IngestPath(ctx, args[2], mode)
	if err != nil {
		return err
	}
	fmt.Println(res.Summary())
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry, lg *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("metrics endpoint stopped", "addr", addr, "err", err)
		}
	}()
	lg.Info("metrics endpoint listening", "addr", addr)
	return srv
}

func startWatcher(ctx context.Context, cfg config.Config, ingester *service.IngestService, lg *logger.Logger, p *tea.Program) error {
	mode, err := service.ParseMode(cfg.Bundle.WatchMode)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Bundle.WatchDir, 0o755); err != nil {
		return fmt.Errorf("mkdir watch dir: %w", err)
	}
	w, err := watch.New(cfg.Bundle.WatchDir, mode, ingester, 0, lg)
	if err != nil {
		return err
	}
	w.OnResult = func(path string, res service.IngestResult, err error) {
		if err != nil {
			p.Send(tui.NoticeMsg(fmt.Sprintf("inbox %s rejected: %v", filepath.Base(path), err)))
			return
		}
		p.Send(tui.NoticeMsg(fmt.Sprintf("inbox %s: %s", filepath.Base(path), res.Summary())))
	}
	go func() {
		if err := w.Run(ctx); err != nil {
			lg.Error("inbox watcher stopped", "err", err)
		}
	}()
	return nil
}
