package di

import (
	"context"
	"fmt"
	"time"

	domrepo "CourtArb/internal/domain/repository"
	domsvc "CourtArb/internal/domain/service"
	"CourtArb/internal/handler/api"
	"CourtArb/internal/handler/ws"
	internalrepo "CourtArb/internal/repository"
	"CourtArb/internal/service/espn"
	"CourtArb/internal/service/polymarket"
	"CourtArb/internal/services/identity"
	"CourtArb/internal/services/signals"
	"CourtArb/internal/usecase"
	"CourtArb/pkg/cache"
	pkgch "CourtArb/pkg/clickhouse"
	"CourtArb/pkg/config"
	xhttp "CourtArb/pkg/http"
	pkgkafka "CourtArb/pkg/kafka"
	applogger "CourtArb/pkg/logger"
	"CourtArb/pkg/metrics"
	"CourtArb/pkg/server"
)

const schemaTimeout = 10 * time.Second

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideRedisCache connects the optional L2 cache. A disabled or unreachable
// Redis yields nil and the cache runs memory-only.
func ProvideRedisCache(cfg *config.Config, l *applogger.Logger) (*cache.RedisCache, func()) {
	rc := cfg.Cache.Redis
	if !rc.Enabled {
		return nil, func() {}
	}
	redisCache, err := cache.NewRedisCache(
		cache.WithRedisHost(rc.Host),
		cache.WithRedisPort(rc.Port),
		cache.WithRedisPassword(rc.Password),
		cache.WithRedisDB(rc.DB),
		cache.WithRedisPrefix(rc.Prefix),
		cache.WithRedisPool(rc.PoolSize, 2, 5*time.Second),
	)
	if err != nil {
		l.Warn("redis unavailable, cache degrades to memory", applogger.Error(err))
		return nil, func() {}
	}
	return redisCache, func() {
		if err := redisCache.Close(); err != nil {
			l.Warn("redis close error", applogger.Error(err))
		}
	}
}

// ProvideCache creates the layered reference cache.
func ProvideCache(cfg *config.Config, redisCache *cache.RedisCache, l *applogger.Logger) cache.Service {
	return cache.NewLayeredCache(redisCache,
		cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize),
		cache.WithLayeredLogger(l),
	)
}

// ProvideTeamResolver returns the NBA identity table.
func ProvideTeamResolver() domsvc.TeamResolver {
	return identity.NewNBAResolver()
}

// ProvideHTTPClient creates the shared upstream HTTP client.
func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(
		xhttp.WithTimeout(cfg.Aggregator.CallTimeout),
		xhttp.WithUserAgent(cfg.Sources.UserAgent),
	)
}

// ProvideESPNClient serves both the scoreboard and the win-probability feeds.
func ProvideESPNClient(cfg *config.Config, hc *xhttp.Client) *espn.Client {
	src := cfg.Sources.ESPN
	return espn.NewClient(
		espn.WithBaseURL(src.BaseURL),
		espn.WithRateLimit(src.RPS, src.Burst),
		espn.WithHTTPClient(hc),
	)
}

func ProvideScheduleSource(c *espn.Client) domrepo.ScheduleSource { return c }

func ProvideProbabilitySource(c *espn.Client) domrepo.ProbabilitySource { return c }

// ProvideMarketSource creates the Polymarket Gamma client.
func ProvideMarketSource(cfg *config.Config, hc *xhttp.Client) domrepo.MarketSource {
	src := cfg.Sources.Polymarket
	return polymarket.NewClient(
		polymarket.WithBaseURL(src.BaseURL),
		polymarket.WithRateLimit(src.RPS, src.Burst),
		polymarket.WithPaging(src.PageSize, src.MaxPages),
		polymarket.WithHTTPClient(hc),
	)
}

// ProvideReconciler creates the market reconciler.
func ProvideReconciler(
	cfg *config.Config,
	source domrepo.MarketSource,
	c cache.Service,
	teams domsvc.TeamResolver,
	l *applogger.Logger,
	m domrepo.Metrics,
) *usecase.Reconciler {
	return usecase.NewReconciler(source, c, teams,
		usecase.WithSportTag(cfg.Sources.Polymarket.SportTag),
		usecase.WithSnapshotTTL(cfg.Reconciler.SnapshotTTL),
		usecase.WithReconcilerLogger(l.With(applogger.String("component", "reconciler"))),
		usecase.WithReconcilerMetrics(m),
	)
}

// ProvideSignalEngine builds the engine from the configured thresholds.
func ProvideSignalEngine(cfg *config.Config) domsvc.SignalEngine {
	s := cfg.Signals
	return signals.NewEngine(signals.WithThresholds(signals.Thresholds{
		BuyMinEdge:        s.BuyMinEdge,
		BuyMinConfidence:  s.BuyMinConfidence,
		SellMinEdge:       s.SellMinEdge,
		SellMinLead:       s.SellMinLead,
		SellMinPrice:      s.SellMinPrice,
		SellScale:         s.SellScale,
		SellMinConfidence: s.SellMinConfidence,
		HighLiquidity:     s.HighLiquidity,
		MidLiquidity:      s.MidLiquidity,
		CloseGameMargin:   s.CloseGameMargin,
		BlowoutMargin:     s.BlowoutMargin,
		TimeBonusSeconds:  s.TimeBonusSeconds,
		LateGameSeconds:   s.LateGameSeconds,
		LateGameScale:     s.LateGameScale,
	}))
}

// ProvideEventStore creates the unified event store.
func ProvideEventStore(cfg *config.Config) *internalrepo.EventStore {
	return internalrepo.NewEventStore(
		internalrepo.WithRetention(cfg.Store.FinalRetention, cfg.Store.StaleAfter),
		internalrepo.WithMaxUnseen(cfg.Store.MaxUnseen),
	)
}

// ProvideKafkaProducer creates a Kafka producer when Kafka is enabled and
// ships aggregated error logs through it.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}

	if cfg.Kafka.LogTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogTopic,
			Publisher:      producer,
		})
	}
	return producer, func() {
		l.RemoveCollector()
		if err := producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}, nil
}

// ProvideClickHouseClient creates a ClickHouse client when enabled and
// ensures the signal history schema exists.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
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
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.SignalHistorySchema(signalTable(cfg))); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}, nil
}

func signalTable(cfg *config.Config) string {
	return cfg.ClickHouse.Database + "." + internalrepo.DefaultSignalTable
}

// ProvideSignalStore wraps the ClickHouse client, or returns nil when disabled.
func ProvideSignalStore(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) *internalrepo.ClickHouseSignalStore {
	if ch == nil {
		return nil
	}
	return internalrepo.NewClickHouseSignalStore(ch, signalTable(cfg), l)
}

// ProvideSnapshotPublisher wraps the Kafka producer, or returns nil when disabled.
func ProvideSnapshotPublisher(cfg *config.Config, producer *pkgkafka.Producer) *internalrepo.KafkaSnapshotPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSnapshotPublisher(producer, cfg.Kafka.Topic)
}

// ProvideHub creates the WebSocket hub.
func ProvideHub(cfg *config.Config, store *internalrepo.EventStore, l *applogger.Logger) *ws.Hub {
	return ws.NewHub(
		ws.WithPath(cfg.WebSocket.Path),
		ws.WithSendBuffer(cfg.WebSocket.SendBuffer),
		ws.WithPing(cfg.WebSocket.PingInterval, cfg.WebSocket.WriteTimeout),
		ws.WithSnapshotSource(store),
		ws.WithLogger(l),
	)
}

// ProvideSnapshotHooks lists the downstream sinks fed after every cycle.
func ProvideSnapshotHooks(
	hub *ws.Hub,
	publisher *internalrepo.KafkaSnapshotPublisher,
	signalStore *internalrepo.ClickHouseSignalStore,
) []domrepo.SnapshotHook {
	hooks := []domrepo.SnapshotHook{hub}
	if publisher != nil {
		hooks = append(hooks, publisher)
	}
	if signalStore != nil {
		hooks = append(hooks, signalStore)
	}
	return hooks
}

// ProvideAggregator creates the aggregation loop.
func ProvideAggregator(
	cfg *config.Config,
	schedule domrepo.ScheduleSource,
	probability domrepo.ProbabilitySource,
	reconciler *usecase.Reconciler,
	teams domsvc.TeamResolver,
	engine domsvc.SignalEngine,
	store *internalrepo.EventStore,
	c cache.Service,
	hooks []domrepo.SnapshotHook,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.Aggregator {
	return usecase.NewAggregator(usecase.AggregatorConfig{
		Interval:       cfg.Aggregator.Interval,
		CallTimeout:    cfg.Aggregator.CallTimeout,
		HookTimeout:    cfg.Aggregator.HookTimeout,
		MaxConcurrency: cfg.Aggregator.MaxConcurrency,
		ProbabilityTTL: cfg.Cache.ProbabilityTTL,
		SweepInterval:  cfg.Cache.SweepInterval,
	}, usecase.AggregatorDeps{
		Schedule:    schedule,
		Probability: probability,
		Reconciler:  reconciler,
		Teams:       teams,
		Engine:      engine,
		Store:       store,
		Cache:       c,
		Hooks:       hooks,
		Metrics:     m,
		Logger:      l.With(applogger.String("component", "aggregator")),
	})
}

// ProvideHTTPHandler registers the REST API and the WebSocket endpoint.
func ProvideHTTPHandler(
	l *applogger.Logger,
	store *internalrepo.EventStore,
	hub *ws.Hub,
	signalStore *internalrepo.ClickHouseSignalStore,
) xhttp.Handler {
	var checks []api.HealthCheck
	if signalStore != nil {
		checks = append(checks, api.HealthCheck{Name: "clickhouse", Check: signalStore.Health})
	}
	return xhttp.Handlers{
		api.NewEventsEchoHandler(l, store, checks...),
		hub,
	}
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, handler xhttp.Handler, l *applogger.Logger) *xhttp.Server {
	return xhttp.NewServer(handler, l,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithMetricsPath(cfg.Metrics.Path),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	agg *usecase.Aggregator,
	hub *ws.Hub,
	srv *xhttp.Server,
) *server.App {
	return server.New(cfg, l, agg, hub, srv)
}
