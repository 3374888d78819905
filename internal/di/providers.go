package di

import (
	"context"
	"fmt"
	"time"

	"NFTAppraiser/internal/backtest"
	domrepo "NFTAppraiser/internal/domain/repository"
	domsvc "NFTAppraiser/internal/domain/service"
	"NFTAppraiser/internal/evaluation"
	"NFTAppraiser/internal/handler/api"
	mid "NFTAppraiser/internal/middleware"
	internalrepo "NFTAppraiser/internal/repository"
	"NFTAppraiser/internal/scheduler"
	"NFTAppraiser/internal/services/marketstream"
	"NFTAppraiser/internal/services/performance"
	"NFTAppraiser/internal/services/providers"
	"NFTAppraiser/internal/services/publisher"
	"NFTAppraiser/internal/usecase"
	"NFTAppraiser/pkg/cache"
	pkgch "NFTAppraiser/pkg/clickhouse"
	"NFTAppraiser/pkg/config"
	xhttp "NFTAppraiser/pkg/http"
	pkgkafka "NFTAppraiser/pkg/kafka"
	"NFTAppraiser/pkg/logger"
	"NFTAppraiser/pkg/metrics"
	"NFTAppraiser/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" || cfg.Environment == "test" {
		level = "debug"
		format = "console"
	}
	return logger.New(&logger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.SchemaStatements); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideCollectionStore creates the ClickHouse-backed store.
func ProvideCollectionStore(ch *pkgch.Client, l *logger.Logger) *internalrepo.CHCollectionStore {
	store := internalrepo.NewCHCollectionStore(ch)
	store.SetLogger(l)
	return store
}

// ProvideCollectionStoreIface exposes the store through its domain interface.
func ProvideCollectionStoreIface(s *internalrepo.CHCollectionStore) domrepo.CollectionStore {
	return s
}

// ProvideSaleRecorder exposes the store's ingest surface.
func ProvideSaleRecorder(s *internalrepo.CHCollectionStore) usecase.SaleRecorder {
	return s
}

// ProvideCache creates the shared cache: Redis when enabled, in-process
// otherwise.
func ProvideCache(cfg *config.Config, l *logger.Logger) (cache.Service, error) {
	if cfg.Redis.Enabled {
		r, err := cache.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		l.Info("redis cache connected", logger.String("addr", cfg.Redis.Addr))
		return r, nil
	}
	return cache.NewMemory(time.Minute), nil
}

// ProvidePerformanceStore creates the snapshot store on top of the cache.
func ProvidePerformanceStore(c cache.Service, cfg *config.Config, l *logger.Logger) domrepo.PerformanceStore {
	store := internalrepo.NewRedisPerformanceStore(c, cfg.Redis.SnapshotKey)
	store.SetLogger(l)
	return store
}

// ProvideTracker creates the performance tracker.
func ProvideTracker(cfg *config.Config) *performance.Tracker {
	return performance.NewTracker(cfg.Lifecycle.DecayAlpha, cfg.Ensemble.WeightEpsilon, cfg.Ensemble.DefaultMAPE)
}

// ProvideRegistry creates the model provider registry from configuration.
func ProvideRegistry(cfg *config.Config) (*providers.Registry, error) {
	return providers.NewRegistry(cfg)
}

// ProvideEnsemble creates the ensemble integrator.
func ProvideEnsemble(reg *providers.Registry, tracker *performance.Tracker, m domrepo.Metrics, l *logger.Logger, cfg *config.Config) *usecase.EnsembleIntegrator {
	return usecase.NewEnsembleIntegrator(reg, tracker, m, l, cfg.Ensemble, cfg.Providers.Timeout)
}

// ProvideIntelligence creates the derived-view calculator.
func ProvideIntelligence(cfg *config.Config) *usecase.ValuationIntelligence {
	return usecase.NewValuationIntelligence(cfg.Valuation)
}

// ProvideValuationService creates the valuation orchestrator.
func ProvideValuationService(
	ensemble *usecase.EnsembleIntegrator,
	intel *usecase.ValuationIntelligence,
	store domrepo.CollectionStore,
	c cache.Service,
	cfg *config.Config,
	l *logger.Logger,
) *usecase.ValuationService {
	return usecase.NewValuationService(ensemble, intel, store, c, cfg.Ensemble, l)
}

// ProvideMonitor creates the drift and degradation monitor.
func ProvideMonitor(cfg *config.Config, l *logger.Logger) *usecase.PerformanceMonitor {
	return usecase.NewPerformanceMonitor(cfg.Lifecycle, l)
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideTriggerPublisher creates the retraining trigger publisher.
func ProvideTriggerPublisher(producer *pkgkafka.Producer, cfg *config.Config) domsvc.TriggerPublisher {
	return publisher.NewKafkaTriggerPublisher(producer, cfg.Kafka.RetrainingTopic)
}

// ProvideRetrainingManager creates the retraining manager.
func ProvideRetrainingManager(monitor *usecase.PerformanceMonitor, pub domsvc.TriggerPublisher, cfg *config.Config, l *logger.Logger) *usecase.RetrainingManager {
	return usecase.NewRetrainingManager(monitor, pub, cfg.Lifecycle, l)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config, m domrepo.Metrics, l *logger.Logger) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerLogger(l),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.RetryMax, cfg.Kafka.BackoffMin, cfg.Kafka.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(&pkgkafka.LatencyHook{
		Observe: func(topic string, seconds float64) {
			m.RecordLatency("kafka_"+topic, seconds)
		},
		OnFailure: func(topic string) {
			m.RecordError("kafka_" + topic)
		},
	})
	return consumer, nil
}

// ProvideOutcomesHandler registers the sale-outcomes topic handler.
func ProvideOutcomesHandler(cfg *config.Config, tracker *performance.Tracker, monitor *usecase.PerformanceMonitor, l *logger.Logger) pkgkafka.MessageHandler {
	return usecase.NewSaleOutcomesHandler(cfg.Kafka.OutcomesTopic, tracker, monitor, l)
}

// ProvideEvaluator creates the stratified evaluator.
func ProvideEvaluator(cfg *config.Config) *evaluation.Evaluator {
	return evaluation.NewEvaluator(cfg.Backtest)
}

// ProvideBacktestRunner creates the backtest runner.
func ProvideBacktestRunner(ensemble *usecase.EnsembleIntegrator, store domrepo.CollectionStore, ev *evaluation.Evaluator, cfg *config.Config, l *logger.Logger) *backtest.Runner {
	return backtest.NewRunner(ensemble, store, ev, cfg.Backtest, l)
}

// ProvideSaleStream creates the marketplace WebSocket stream.
func ProvideSaleStream(cfg *config.Config) domrepo.SaleStream {
	if cfg.Marketplace.WebSocketURL == "" {
		return nil
	}
	return marketstream.New(
		cfg.Marketplace.APIKey,
		cfg.Marketplace.WebSocketURL,
		cfg.Marketplace.Collections,
		cfg.Marketplace.ReconnectDelay,
		cfg.Marketplace.PingInterval,
	)
}

// ProvideSalePipeline builds the validate/throttle/buffer pipeline in front
// of sale ingestion.
func ProvideSalePipeline(recorder usecase.SaleRecorder, valuation *usecase.ValuationService, tracker *performance.Tracker, monitor *usecase.PerformanceMonitor, m domrepo.Metrics, l *logger.Logger) *mid.SalePipeline {
	ingestor := usecase.NewSaleIngestor(recorder, valuation, tracker, monitor, l)
	return mid.NewSalePipeline(ingestor, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
}

// ProvideScheduler creates the lifecycle cron scheduler.
func ProvideScheduler(manager *usecase.RetrainingManager, tracker *performance.Tracker, store domrepo.PerformanceStore, cfg *config.Config, l *logger.Logger) *scheduler.Scheduler {
	return scheduler.New(context.Background(), manager, tracker, store, cfg.Lifecycle, cfg.Redis.SnapshotTick, l)
}

// ProvideRouter aggregates the API handlers.
func ProvideRouter(
	l *logger.Logger,
	valuation *usecase.ValuationService,
	tracker *performance.Tracker,
	monitor *usecase.PerformanceMonitor,
	manager *usecase.RetrainingManager,
	runner *backtest.Runner,
	ev *evaluation.Evaluator,
	store domrepo.CollectionStore,
	ch *pkgch.Client,
) xhttp.Handler {
	router := api.NewRouter(
		api.NewValuationEchoHandler(l, valuation),
		api.NewLifecycleEchoHandler(l, tracker, monitor, manager),
		api.NewBacktestEchoHandler(l, runner),
		api.NewEvaluationEchoHandler(l, ev, store),
	)
	router.Healthz = func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return ch.Health(ctx)
	}
	return router
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	handler xhttp.Handler,
	consumer *pkgkafka.Consumer,
	outcomes pkgkafka.MessageHandler,
	producer *pkgkafka.Producer,
	stream domrepo.SaleStream,
	pipeline *mid.SalePipeline,
	sched *scheduler.Scheduler,
	ch *pkgch.Client,
	tracker *performance.Tracker,
	perfStore domrepo.PerformanceStore,
) *server.App {
	return server.New(cfg, l, handler, consumer, outcomes, producer, stream, pipeline, sched, ch, tracker, perfStore)
}
