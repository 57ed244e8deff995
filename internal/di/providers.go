package di

import (
	"context"
	"fmt"
	"time"

	"PriceCast/internal/domain/repository"
	"PriceCast/internal/handler/api"
	internalrepo "PriceCast/internal/repository"
	icache "PriceCast/internal/service/cache"
	"PriceCast/internal/service/marketstack"
	"PriceCast/internal/service/ratelimit"
	"PriceCast/internal/services/forest"
	"PriceCast/internal/usecase"
	pkgcache "PriceCast/pkg/cache"
	pkgch "PriceCast/pkg/clickhouse"
	"PriceCast/pkg/config"
	xhttp "PriceCast/pkg/http"
	pkgkafka "PriceCast/pkg/kafka"
	xlogger "PriceCast/pkg/logger"
	"PriceCast/pkg/metrics"
	"PriceCast/pkg/queue"
	"PriceCast/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
)

// Version is reported in the Marketstack User-Agent.
var Version = "dev"

// Services is what the CLI needs: the use cases without any listener.
type Services struct {
	Forecaster *usecase.Forecaster
	Training   *usecase.TrainingUseCase
	Search     *usecase.SearchUseCase
	Registry   *usecase.ModelRegistry
}

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*xlogger.Logger, error) {
	return xlogger.New(&xlogger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: "stdout"})
}

// ProvideMetrics registers the domain collectors on the default registry so
// they show up on /metrics next to the HTTP and Kafka ones.
func ProvideMetrics() repository.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideRedisCache connects to Redis when enabled. It returns nil otherwise.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPool(cfg.Redis.PoolSize, 2, 30*time.Second),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideCacheService prefers Redis and falls back to an in-process cache.
func ProvideCacheService(rc *pkgcache.RedisCache, cfg *config.Config) (pkgcache.Service, func()) {
	if rc != nil {
		return rc, func() {}
	}
	mc := pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(cfg.Cache.MaxEntries))
	return mc, func() { _ = mc.Close() }
}

// ProvideBlobStore selects the model artifact backend.
func ProvideBlobStore(cfg *config.Config, rc *pkgcache.RedisCache) (repository.BlobStore, error) {
	switch cfg.Store.Backend {
	case "redis":
		if rc == nil {
			return nil, fmt.Errorf("model store: redis backend needs redis.enabled")
		}
		return internalrepo.NewCacheBlobStore(rc, cfg.Store.RedisNamespace), nil
	case "s3":
		s3cfg := internalrepo.S3Config{
			Endpoint:       cfg.Store.S3.Endpoint,
			Region:         cfg.Store.S3.Region,
			Bucket:         cfg.Store.S3.Bucket,
			Prefix:         cfg.Store.S3.Prefix,
			AccessKey:      cfg.Store.S3.AccessKey,
			SecretKey:      cfg.Store.S3.SecretKey,
			ForcePathStyle: cfg.Store.S3.ForcePathStyle,
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client, err := internalrepo.NewS3Client(ctx, s3cfg)
		if err != nil {
			return nil, fmt.Errorf("model store: %w", err)
		}
		return internalrepo.NewS3BlobStore(client, s3cfg.Bucket, s3cfg.Prefix), nil
	default:
		store, err := internalrepo.NewFileBlobStore(cfg.Store.Dir)
		if err != nil {
			return nil, fmt.Errorf("model store: %w", err)
		}
		return store, nil
	}
}

func ProvideModelRegistry(store repository.BlobStore) *usecase.ModelRegistry {
	return usecase.NewModelRegistry(store, forest.NewCodec())
}

func ProvideForestTrainer(cfg *config.Config) *forest.Trainer {
	return forest.NewTrainer(
		forest.WithEstimators(cfg.Model.Estimators),
		forest.WithSeed(cfg.Model.Seed),
		forest.WithMaxDepth(cfg.Model.MaxDepth),
		forest.WithMinSamplesLeaf(cfg.Model.MinLeaf),
		forest.WithWorkers(cfg.Model.Workers),
	)
}

// ProvideEventPublisher publishes lifecycle events to Kafka when enabled. It
// returns a nil publisher otherwise, which the use cases replace with a no-op.
func ProvideEventPublisher(cfg *config.Config) (repository.EventPublisher, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithBatchTimeout(cfg.Kafka.BatchTimeout),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	pub := internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic)
	return pub, func() { _ = pub.Close() }, nil
}

func ProvideMarketstack(cfg *config.Config, l *xlogger.Logger) (*marketstack.Client, error) {
	return marketstack.New(marketstack.Config{
		BaseURL:       cfg.Marketstack.BaseURL,
		APIKey:        cfg.Marketstack.APIKey,
		Timeout:       cfg.Marketstack.Timeout,
		RatePerSecond: cfg.Marketstack.RatePerSecond,
		Burst:         cfg.Marketstack.Burst,
	}, l, xhttp.WithUserAgent("pricecast/"+Version))
}

// ProvideBarStore opens the ClickHouse bar cache when enabled and creates its
// table. It returns nil otherwise.
func ProvideBarStore(cfg *config.Config, l *xlogger.Logger) (repository.BarStore, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.BarsSchema(cfg.ClickHouse.Database, cfg.ClickHouse.Table)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	store := internalrepo.NewCHBarStore(client.DB(), cfg.ClickHouse.Database+"."+cfg.ClickHouse.Table)
	store.SetLogger(l)
	return store, func() { _ = store.Close() }, nil
}

func ProvideBarsUseCase(
	source *marketstack.Client,
	store repository.BarStore,
	m repository.Metrics,
	l *xlogger.Logger,
	cfg *config.Config,
) *usecase.BarsUseCase {
	uc := usecase.NewBarsUseCase(source, store, m, l)
	uc.SetHistoryDays(cfg.Model.HistoryDays)
	return uc
}

func ProvideTrainer(
	fitter *forest.Trainer,
	registry *usecase.ModelRegistry,
	pub repository.EventPublisher,
	m repository.Metrics,
	l *xlogger.Logger,
	cfg *config.Config,
) *usecase.Trainer {
	return usecase.NewTrainer(fitter, registry,
		usecase.WithTrainerEvents(pub),
		usecase.WithTrainerMetrics(m),
		usecase.WithTrainerLogger(l),
		usecase.WithLookback(cfg.Model.Lookback),
		usecase.WithTestFraction(cfg.Model.TestFraction),
	)
}

func ProvideForecaster(
	registry *usecase.ModelRegistry,
	trainer *usecase.Trainer,
	bars *usecase.BarsUseCase,
	pub repository.EventPublisher,
	m repository.Metrics,
	l *xlogger.Logger,
	cfg *config.Config,
) *usecase.Forecaster {
	return usecase.NewForecaster(registry, trainer, bars,
		usecase.WithForecastEvents(pub),
		usecase.WithForecastMetrics(m),
		usecase.WithForecastLogger(l),
		usecase.WithHistoryDays(cfg.Model.HistoryDays),
		usecase.WithMaxHorizon(cfg.Model.MaxHorizon),
	)
}

func ProvideSearchUseCase(client *marketstack.Client) *usecase.SearchUseCase {
	return usecase.NewSearchUseCase(client)
}

// ProvideQueue builds the Redis training queue when enabled and registers the
// train job on it. It returns nil otherwise.
func ProvideQueue(cfg *config.Config, rc *pkgcache.RedisCache, training *usecase.TrainingUseCase, l *xlogger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled || rc == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, queue.Config{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc.Client(), queue.ModeProducerConsumer, queue.WithKeyPrefix(cfg.Queue.KeyPrefix))
	q.RegisterJobs(usecase.NewTrainJob(training, l))
	return q
}

// ProvideKafkaConsumer subscribes to the train topic when Kafka is enabled. It
// returns nil otherwise.
func ProvideKafkaConsumer(cfg *config.Config, training *usecase.TrainingUseCase, l *xlogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.BufferSize),
		pkgkafka.WithConsumerFetch(cfg.Kafka.MinBytes, cfg.Kafka.MaxBytes),
		pkgkafka.WithConsumerRetry(cfg.Kafka.RetryMax, 200*time.Millisecond, 10*time.Second),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetLogger(l)
	consumer.SetHook(pkgkafka.TraceHook())
	consumer.RegisterHandler(usecase.NewKafkaTrainHandler(cfg.Kafka.TrainTopic, training, l))
	return consumer, nil
}

func ProvideForecastCache(svc pkgcache.Service, cfg *config.Config, l *xlogger.Logger) *icache.ForecastCache {
	return icache.NewForecastCache(svc, cfg.Cache.ForecastTTL, l)
}

// ProvideTrainingUseCase wires training so every entry point drops stale
// forecasts after a retrain.
func ProvideTrainingUseCase(bars *usecase.BarsUseCase, trainer *usecase.Trainer, fc *icache.ForecastCache) *usecase.TrainingUseCase {
	if fc == nil {
		return usecase.NewTrainingUseCase(bars, trainer, nil)
	}
	return usecase.NewTrainingUseCase(bars, trainer, fc)
}

// ProvideHTTPHandler assembles the API handler. Optional pieces are only set
// when present so the handler sees untyped nils.
func ProvideHTTPHandler(
	l *xlogger.Logger,
	forecaster *usecase.Forecaster,
	training *usecase.TrainingUseCase,
	search *usecase.SearchUseCase,
	bars *usecase.BarsUseCase,
	registry *usecase.ModelRegistry,
	q *queue.RedisQueue,
	fc *icache.ForecastCache,
	rc *pkgcache.RedisCache,
	store repository.BarStore,
) *api.ForecastHandler {
	d := api.Deps{
		Logger:     l,
		Forecaster: forecaster,
		Training:   training,
		Search:     search,
		Bars:       bars,
		Models:     registry,
		Cache:      fc,
		Checks: map[string]api.HealthCheck{
			"model_store": func(ctx context.Context) error {
				_, err := registry.List(ctx)
				return err
			},
		},
	}
	if q != nil {
		d.Queue = q
	}
	if rc != nil {
		d.Checks["redis"] = func(ctx context.Context) error { return rc.Client().Ping(ctx).Err() }
	}
	if store != nil {
		d.Checks["clickhouse"] = store.Health
	}
	return api.NewForecastHandler(d)
}

func ProvideHTTPServer(cfg *config.Config, h *api.ForecastHandler, l *xlogger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithLogger(l),
	}
	if cfg.Server.RateLimit.PerSecond > 0 {
		opts = append(opts, xhttp.WithRateLimiter(ratelimit.New(cfg.Server.RateLimit.PerSecond, cfg.Server.RateLimit.Burst)))
	}
	return xhttp.NewServer(h, opts...)
}

func ProvideServices(
	forecaster *usecase.Forecaster,
	training *usecase.TrainingUseCase,
	search *usecase.SearchUseCase,
	registry *usecase.ModelRegistry,
) *Services {
	return &Services{Forecaster: forecaster, Training: training, Search: search, Registry: registry}
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *xlogger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	q *queue.RedisQueue,
) *server.App {
	app := server.New(l, httpServer, cfg.Server.ShutdownTimeout)
	if consumer != nil {
		app.AddComponent(server.KafkaComponent(consumer))
	}
	if q != nil {
		app.AddComponent(q)
	}
	return app
}
