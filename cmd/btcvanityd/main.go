// Command btcvanityd serves the vanity search API over HTTP and WebSocket.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/btcsuite/btclog/v2"
	"github.com/lightningnetwork/lnd/ticker"
	"golang.org/x/sync/errgroup"

	"github.com/Amr-9/btcvanity/internal/build"
	"github.com/Amr-9/btcvanity/internal/config"
	"github.com/Amr-9/btcvanity/internal/job"
	"github.com/Amr-9/btcvanity/internal/metrics"
	"github.com/Amr-9/btcvanity/internal/server"
	"github.com/Amr-9/btcvanity/internal/store"
	"github.com/Amr-9/btcvanity/pkg/generator/cpu"
)

const (
	version = "1.0"

	// subsystem is the logging subsystem of the daemon itself.
	subsystem = "BTCV"

	// statusInterval is how often the daemon logs its session count.
	statusInterval = 5 * time.Minute
)

var log = btclog.Disabled

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if config.IsHelp(err) {
			return nil
		}
		return err
	}
	if cfg.ShowVersion {
		fmt.Println("btcvanityd version", version)
		return nil
	}

	logFile := build.NewRotatingLogWriter()
	defer logFile.Close()

	err = logFile.InitLogRotator(
		cfg.LogFile(), cfg.MaxLogFileSize, cfg.MaxLogFiles,
	)
	if err != nil {
		return err
	}

	logMgr := build.NewLogManager(io.MultiWriter(os.Stdout, logFile), false)
	logMgr.Register(subsystem, func(l btclog.Logger) { log = l })
	logMgr.Register(cpu.Subsystem, cpu.UseLogger)
	logMgr.Register(job.Subsystem, job.UseLogger)
	logMgr.Register(store.Subsystem, store.UseLogger)
	logMgr.Register(server.Subsystem, server.UseLogger)
	if err := logMgr.ParseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return err
	}

	log.Infof("btcvanityd version %s starting", version)
	if err := cfg.ConfigFileWarning(); err != nil {
		log.Warnf("Unable to read config file, using defaults: %v", err)
	}
	if cfg.AllowAnyOrigin() {
		log.Warnf("Accepting cross-origin requests from any origin")
	}

	var results *store.Store
	if !cfg.NoResultStore {
		results, err = store.Open(
			filepath.Join(cfg.DataDir, store.DefaultDBName),
			store.DefaultOpenTimeout,
		)
		if err != nil {
			return err
		}
		defer func() {
			if err := results.Close(); err != nil {
				log.Errorf("Unable to close result store: %v", err)
			}
		}()
	}

	engine := cpu.NewEngine(
		cfg.Search.EngineConfig(), cfg.Search.ParallelThreshold,
	)
	srv := server.New(server.Config{
		Searcher:          engine,
		ParallelThreshold: cfg.Search.ParallelThreshold,
		Store:             results,
		Metrics:           metrics.New(),
		AllowedOrigins:    cfg.AllowedOrigins,
	})

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, cfg.Listen)
	})
	g.Go(func() error {
		reportStatus(gctx, srv)
		return nil
	})

	err = g.Wait()
	log.Infof("Shutdown complete")

	return err
}

// reportStatus logs the number of open sessions until ctx is done.
func reportStatus(ctx context.Context, srv *server.Server) {
	t := ticker.New(statusInterval)
	t.Resume()
	defer t.Stop()

	for {
		select {
		case <-t.Ticks():
			log.Debugf("%d WebSocket sessions open",
				srv.Sessions().Len())

		case <-ctx.Done():
			return
		}
	}
}
