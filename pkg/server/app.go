package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "NFTAppraiser/internal/domain/repository"
	"NFTAppraiser/internal/middleware"
	"NFTAppraiser/internal/scheduler"
	"NFTAppraiser/internal/services/performance"
	pkgch "NFTAppraiser/pkg/clickhouse"
	"NFTAppraiser/pkg/config"
	xhttp "NFTAppraiser/pkg/http"
	pkgkafka "NFTAppraiser/pkg/kafka"
	applogger "NFTAppraiser/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg       *config.Config
	log       *applogger.Logger
	handler   xhttp.Handler
	consumer  *pkgkafka.Consumer
	outcomes  pkgkafka.MessageHandler
	producer  *pkgkafka.Producer
	stream    domrepo.SaleStream
	pipeline  *middleware.SalePipeline
	sched     *scheduler.Scheduler
	chClient  *pkgch.Client
	tracker   *performance.Tracker
	perfStore domrepo.PerformanceStore

	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	consumer *pkgkafka.Consumer,
	outcomes pkgkafka.MessageHandler,
	producer *pkgkafka.Producer,
	stream domrepo.SaleStream,
	pipeline *middleware.SalePipeline,
	sched *scheduler.Scheduler,
	chClient *pkgch.Client,
	tracker *performance.Tracker,
	perfStore domrepo.PerformanceStore,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		handler:   handler,
		consumer:  consumer,
		outcomes:  outcomes,
		producer:  producer,
		stream:    stream,
		pipeline:  pipeline,
		sched:     sched,
		chClient:  chClient,
		tracker:   tracker,
		perfStore: perfStore,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.restoreTracker(ctx)

	a.httpServer = xhttp.NewServer(a.handler, a.log,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	if a.consumer != nil && a.outcomes != nil {
		a.consumer.RegisterHandler(a.outcomes)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.outcomes.Topic()))
	}

	if a.stream != nil && a.pipeline != nil {
		a.pipeline.Start(ctx)
		go a.streamLoop(ctx)
		a.log.Info("sale stream started", applogger.Strings("collections", a.cfg.Marketplace.Collections))
	}

	if a.sched != nil {
		if err := a.sched.Register(); err != nil {
			a.log.Error("scheduler register error", applogger.Error(err))
			return err
		}
		a.sched.Start()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// streamLoop reads live sales into the pipeline, reconnecting with a delay on
// any stream failure.
func (a *App) streamLoop(ctx context.Context) {
	delay := a.cfg.Marketplace.ReconnectDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}
	for {
		if err := ctx.Err(); err != nil {
			return
		}
		if err := a.stream.Connect(ctx); err != nil {
			a.log.Warn("sale stream connect error", applogger.Error(err))
			time.Sleep(delay)
			continue
		}
		if err := a.stream.Subscribe(ctx); err != nil {
			a.log.Warn("sale stream subscribe error", applogger.Error(err))
			_ = a.stream.Close()
			time.Sleep(delay)
			continue
		}

		sales, errs := a.stream.Read(ctx)
	read:
		for {
			select {
			case <-ctx.Done():
				_ = a.stream.Close()
				return
			case sale, ok := <-sales:
				if !ok {
					break read
				}
				if err := a.pipeline.Process(ctx, sale); err != nil {
					a.log.Warn("sale pipeline error", applogger.Error(err))
				}
			case err, ok := <-errs:
				if !ok {
					break read
				}
				a.log.Warn("sale stream read error", applogger.Error(err))
				break read
			}
		}
		_ = a.stream.Close()
		time.Sleep(delay)
	}
}

// restoreTracker reloads the persisted error profiles so weights survive a
// restart.
func (a *App) restoreTracker(ctx context.Context) {
	if a.perfStore == nil || a.tracker == nil {
		return
	}
	loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	records, err := a.perfStore.Load(loadCtx)
	if err != nil {
		a.log.Warn("tracker restore failed", applogger.Error(err))
		return
	}
	if len(records) > 0 {
		a.tracker.Restore(records)
		a.log.Info("tracker restored", applogger.Int("records", len(records)))
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	if a.sched != nil {
		a.sched.Stop()
	}

	if a.pipeline != nil {
		a.pipeline.Stop()
	}
	if a.stream != nil {
		if err := a.stream.Close(); err != nil {
			a.log.Warn("sale stream close error", applogger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	// final snapshot before the process exits
	if a.perfStore != nil && a.tracker != nil {
		if err := a.perfStore.Save(shutdownCtx, a.tracker.Snapshot()); err != nil {
			a.log.Warn("final tracker snapshot failed", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
