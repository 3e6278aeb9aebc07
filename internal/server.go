package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/starkhealth/backend/internal/account"
	"github.com/starkhealth/backend/internal/analytics"
	"github.com/starkhealth/backend/internal/assistant"
	"github.com/starkhealth/backend/internal/auth"
	"github.com/starkhealth/backend/internal/config"
	"github.com/starkhealth/backend/internal/db"
	"github.com/starkhealth/backend/internal/goals"
	"github.com/starkhealth/backend/internal/healthdata"
	"github.com/starkhealth/backend/internal/middleware"
	"github.com/starkhealth/backend/internal/providers"
	"github.com/starkhealth/backend/internal/providers/hevy"
	"github.com/starkhealth/backend/internal/providers/tokens"
	"github.com/starkhealth/backend/internal/providers/whoop"
	"github.com/starkhealth/backend/internal/providers/withings"
	"github.com/starkhealth/backend/internal/settings"
	"github.com/starkhealth/backend/internal/telemetry/metrics"
	"github.com/starkhealth/backend/internal/telemetry/tracing"
	"github.com/starkhealth/backend/pkg"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/coocood/freecache"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const hevyTemplateCacheSize = 10 * 1024 * 1024

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string
	cronSecret        string
	defaultChatModel  string

	config         *config.Config
	dbPool         *pgxpool.Pool
	redisClient    *redis.Client
	sessionChecker *auth.SessionChecker

	tokensRepo    *tokens.Repo
	tokensManager *tokens.Manager
	oauthClients  map[providers.Provider]tokens.OAuthProvider
	hevyClient    *hevy.Client
	healthRepo    *healthdata.Repo
	healthService *healthdata.Service
	chatService   *assistant.Service

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	WhoopClientID           string
	WhoopClientSecret       string
	WithingsClientID        string
	WithingsClientSecret    string
	OpenAIAPIKey            string
	CronSecret              string
	RedisPassword           string
	VersionInfo             string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         cfg.PostgresHost,
		DBPort:         cfg.PostgresPort,
		DBName:         cfg.PostgresDBName,
		TracingEnabled: params.HoneycombTracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": "stark_health_db"},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("backend", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "stark-health-backend")
	if err != nil {
		return nil, err
	}

	tracedHttpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	whoopClient := whoop.NewClient(
		tracedHttpClient,
		cfg.WhoopAPIURL, cfg.WhoopOAuthURL,
		params.WhoopClientID, params.WhoopClientSecret,
		cfg.SiteBaseURL+"/providers/whoop/callback",
	)
	withingsClient := withings.NewClient(
		tracedHttpClient,
		cfg.WithingsAPIURL, cfg.WithingsAuthURL,
		params.WithingsClientID, params.WithingsClientSecret,
		cfg.SiteBaseURL+"/providers/withings/callback",
	)
	hevyClient := hevy.NewClient(
		tracedHttpClient,
		cfg.HevyAPIURL,
		freecache.NewCache(hevyTemplateCacheSize),
	)

	tokensRepo := tokens.NewRepo(dbPool)
	tokensManager := tokens.NewManager(
		tokensRepo,
		map[providers.Provider]tokens.Refresher{
			providers.ProviderWhoop:    whoopClient,
			providers.ProviderWithings: withingsClient,
		},
		metricsManager,
	)

	healthRepo := healthdata.NewRepo(dbPool)
	healthService := healthdata.NewService(
		healthRepo,
		tokensManager,
		whoopClient,
		withingsClient,
		hevyClient,
		metricsManager,
	)

	chatService := assistant.NewService(
		openai.NewClient(params.OpenAIAPIKey),
		healthService,
		cfg.OpenAIModel,
		metricsManager,
	)

	return &Server{
		versionInfo:      params.VersionInfo,
		cronSecret:       params.CronSecret,
		defaultChatModel: cfg.OpenAIModel,

		config:         cfg,
		dbPool:         dbPool,
		redisClient:    rdb,
		sessionChecker: auth.NewSessionChecker(auth.DefaultTTL, rdb),

		tokensRepo:    tokensRepo,
		tokensManager: tokensManager,
		oauthClients: map[providers.Provider]tokens.OAuthProvider{
			providers.ProviderWhoop:    whoopClient,
			providers.ProviderWithings: withingsClient,
		},
		hevyClient:    hevyClient,
		healthRepo:    healthRepo,
		healthService: healthService,
		chatService:   chatService,

		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("stark-health-router"))

	r.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		pkg.WriteTextResponseOK(w, s.versionInfo)
	}).Methods("GET").Name("version")

	healthDataHandler := healthdata.NewHandler(s.healthService)
	r.HandleFunc("/health-data", healthDataHandler.HandleGet).Methods("GET", "OPTIONS").Name("health-data")

	analyticsHandler := analytics.NewHandler(s.healthService)
	r.HandleFunc("/analytics", analyticsHandler.HandleGet).Methods("GET", "OPTIONS").Name("analytics")

	tokensHandler := tokens.NewHandler(
		s.tokensManager,
		s.oauthClients,
		s.hevyClient,
		s.redisClient,
		s.config.SiteBaseURL,
		s.cronSecret,
		s.metricsManager,
	)
	r.HandleFunc("/providers", tokensHandler.HandleList).Methods("GET", "OPTIONS").Name("list-providers")
	r.HandleFunc("/providers/hevy/connect", tokensHandler.HandleConnectHevy).Methods("POST", "OPTIONS").Name("connect-hevy")
	r.HandleFunc("/providers/{provider}/connect", tokensHandler.HandleConnect).Methods("GET", "OPTIONS").Name("connect-provider")
	r.HandleFunc("/providers/{provider}/callback", tokensHandler.HandleCallback).Methods("GET").Name("provider-callback")
	r.HandleFunc("/providers/{provider}", tokensHandler.HandleDisconnect).Methods("DELETE", "OPTIONS").Name("disconnect-provider")
	r.HandleFunc("/cron/refresh-tokens", tokensHandler.HandleRefreshJob).Methods("GET").Name("refresh-tokens")

	webhookHandler := healthdata.NewWebhookHandler(s.healthService, s.tokensManager)
	r.HandleFunc("/webhooks/withings", webhookHandler.HandleWithings).Methods("POST", "HEAD").Name("withings-webhook")

	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)
	chatHandler := assistant.NewHandler(s.chatService)
	r.Handle("/chat", middleware.RateLimit(
		reqRateLimiter, "chat", s.config.ChatRateLimitAllowedPerMin, s.metricsManager,
	)(http.HandlerFunc(chatHandler.HandleChat))).Methods("POST", "OPTIONS").Name("chat")

	goalsRepo := goals.NewRepo(s.dbPool)
	goalsHandler := goals.NewHandler(goalsRepo)
	r.HandleFunc("/goals", goalsHandler.HandleList).Methods("GET", "OPTIONS").Name("list-goals")
	r.HandleFunc("/goals", goalsHandler.HandleAdd).Methods("POST", "OPTIONS").Name("new-goal")
	r.HandleFunc("/goals/{id}", goalsHandler.HandleDelete).Methods("DELETE", "OPTIONS").Name("remove-goal")

	settingsRepo := settings.NewRepo(s.dbPool)
	settingsHandler := settings.NewHandler(settingsRepo, s.defaultChatModel)
	r.HandleFunc("/settings", settingsHandler.HandleGet).Methods("GET", "OPTIONS").Name("get-settings")
	r.HandleFunc("/settings", settingsHandler.HandleUpdate).Methods("PUT", "OPTIONS").Name("update-settings")

	accountHandler := account.NewHandler(
		s.tokensRepo,
		s.healthRepo,
		goalsRepo,
		settingsRepo,
		s.sessionChecker,
	)
	r.HandleFunc("/account", accountHandler.HandleDelete).Methods("DELETE", "OPTIONS").Name("delete-account")

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "DELETE", "OPTIONS").Name("unknown")

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(middleware.AuthCheck(s.sessionChecker))
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) Serve(ctx context.Context, host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown http server")
	}
	log.Warnln("server shut down")

	if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown metrics http server")
	}
	log.Warnln("metrics server shut down")
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
