package di

import (
	"context"
	"fmt"
	"time"

	"KalshiFlow/internal/domain/repository"
	"KalshiFlow/internal/domain/service"
	"KalshiFlow/internal/handler/api"
	internalrepo "KalshiFlow/internal/repository"
	"KalshiFlow/internal/service/kalshi"
	"KalshiFlow/internal/service/ratelimit"
	"KalshiFlow/internal/services/analytics"
	"KalshiFlow/internal/usecase"
	"KalshiFlow/pkg/cache"
	"KalshiFlow/pkg/config"
	xhttp "KalshiFlow/pkg/http"
	pkgkafka "KalshiFlow/pkg/kafka"
	applogger "KalshiFlow/pkg/logger"
	"KalshiFlow/pkg/metrics"
	"KalshiFlow/pkg/server"
)

// ProvideKafkaProducer creates a Kafka producer, or nil when kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger builds the application logger. With kafka enabled, warn and
// error entries are also aggregated onto the log topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil && cfg.Kafka.LogTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			Topic:     cfg.Kafka.LogTopic,
			Publisher: internalrepo.NewLogPublisher(producer),
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New()
}

func ProvideSigner(cfg *config.Config, log *applogger.Logger) *kalshi.Signer {
	s := kalshi.NewSigner(cfg.Kalshi.APIKeyID, cfg.Kalshi.PrivateKeyPEM)
	if err := s.KeyError(); err != nil && cfg.HasCredentials() {
		log.Error("kalshi private key unusable, requests will not be signed", applogger.Error(err))
	}
	return s
}

func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(xhttp.WithTimeout(cfg.Kalshi.Timeout))
}

// ProvideMarketSource creates the paginated Kalshi markets client.
func ProvideMarketSource(
	cfg *config.Config,
	client *xhttp.Client,
	signer *kalshi.Signer,
	log *applogger.Logger,
	m repository.Metrics,
) repository.MarketSource {
	return kalshi.NewClient(client, signer,
		kalshi.WithBaseURL(cfg.Kalshi.BaseURL),
		kalshi.WithMarketsPath(cfg.Kalshi.MarketsPath),
		kalshi.WithPaging(cfg.Kalshi.PageLimit, cfg.Kalshi.MaxPages),
		kalshi.WithLogger(log),
		kalshi.WithMetrics(m),
	)
}

func ProvideFlowAnalyzer(cfg *config.Config) service.FlowAnalyzer {
	f := cfg.Flow
	return analytics.NewFlowAnalyzer(analytics.FlowPolicy{
		TightSpreadMax:      f.TightSpreadMax,
		ImbalanceRatio:      f.ImbalanceRatio,
		TightSpreadBonus:    f.TightSpreadBonus,
		VolumeDivisor:       f.VolumeDivisor,
		OpenInterestDivisor: f.OpenInterestDivisor,
		WhaleVolume:         f.WhaleVolume,
		TightActiveVolume:   f.TightActiveVolume,
		ImbalanceVolume:     f.ImbalanceVolume,
		MaxPriceChange:      f.MaxPriceChange,
	})
}

// ProvideSnapshotPublisher publishes ranked lists to kafka, or drops them when kafka is off.
func ProvideSnapshotPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.SnapshotPublisher {
	if producer == nil {
		return internalrepo.NoopSnapshotPublisher{}
	}
	return internalrepo.NewKafkaSnapshotPublisher(producer, cfg.Kafka.Topic)
}

// ProvideMemoryLimiter returns the in-process limiter, or nil unless it is the selected backend.
func ProvideMemoryLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled || cfg.RateLimit.Backend != "memory" {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
}

// ProvideRateLimitStore connects to redis when it backs rate limiting. If redis
// cannot be reached the window counters are kept in process memory instead, so
// the budget is enforced per replica until the service is restarted.
func ProvideRateLimitStore(cfg *config.Config, log *applogger.Logger) cache.Counter {
	if !cfg.RateLimit.Enabled || cfg.RateLimit.Backend != "redis" {
		return nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		log.Warn("redis unavailable, rate limit windows kept in memory",
			applogger.String("addr", fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)),
			applogger.Error(err),
		)
		return cache.NewMemoryCache()
	}
	return rc
}

// ProvideRateLimiter picks the configured backend. A nil result disables throttling.
func ProvideRateLimiter(cfg *config.Config, mem *ratelimit.Limiter, store cache.Counter) service.RateLimiter {
	switch {
	case mem != nil:
		return mem
	case store != nil:
		return ratelimit.NewWindowLimiter(store, "ratelimit", cfg.RateLimit.WindowRequests, cfg.RateLimit.Window)
	default:
		return nil
	}
}

func ProvideMarketRanker(
	cfg *config.Config,
	source repository.MarketSource,
	analyzer service.FlowAnalyzer,
	publisher repository.SnapshotPublisher,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.MarketRanker {
	return usecase.NewMarketRanker(source, analyzer, publisher, m, log, usecase.RankerConfig{
		MinVolume:      cfg.Ranking.MinVolume,
		TopN:           cfg.Ranking.TopN,
		PublishTimeout: cfg.Kafka.Producer.WriteTimeout,
	})
}

func ProvideMarketsHandler(
	log *applogger.Logger,
	ranker *usecase.MarketRanker,
	limiter service.RateLimiter,
	signer *kalshi.Signer,
) *api.MarketsEchoHandler {
	return api.NewMarketsEchoHandler(log, ranker, limiter, signer.HasCredentials)
}

// ProvideHTTPServer creates the echo server with the API routes and the optional frontend.
func ProvideHTTPServer(cfg *config.Config, log *applogger.Logger, h *api.MarketsEchoHandler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(log, []xhttp.Handler{h},
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithStaticDir(cfg.Server.StaticDir),
	)
}

// ProvideApp creates the application.
func ProvideApp(
	log *applogger.Logger,
	httpServer *xhttp.Server,
	ranker *usecase.MarketRanker,
	producer *pkgkafka.Producer,
	mem *ratelimit.Limiter,
	store cache.Counter,
) *server.App {
	app := server.New(log, httpServer, ranker)
	if producer != nil {
		app.AddCloser("kafka producer", producer.Close)
	}
	if store != nil {
		app.AddCloser("rate limit store", store.Close)
	}
	if mem != nil {
		app.AddBackground(func(ctx context.Context) { mem.Run(ctx, time.Minute) })
	}
	return app
}
