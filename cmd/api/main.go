package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/grocery-pos/internal/audit"
	"github.com/noah-isme/grocery-pos/internal/auth"
	"github.com/noah-isme/grocery-pos/internal/cashier"
	"github.com/noah-isme/grocery-pos/internal/common"
	"github.com/noah-isme/grocery-pos/internal/config"
	"github.com/noah-isme/grocery-pos/internal/coupon"
	"github.com/noah-isme/grocery-pos/internal/events"
	"github.com/noah-isme/grocery-pos/internal/health"
	"github.com/noah-isme/grocery-pos/internal/inventory"
	"github.com/noah-isme/grocery-pos/internal/lock"
	"github.com/noah-isme/grocery-pos/internal/loyalty"
	"github.com/noah-isme/grocery-pos/internal/obs"
	"github.com/noah-isme/grocery-pos/internal/ratelimit"
	"github.com/noah-isme/grocery-pos/internal/security"
	"github.com/noah-isme/grocery-pos/internal/settlement"
	"github.com/noah-isme/grocery-pos/internal/store/memory"
	"github.com/noah-isme/grocery-pos/internal/store/postgres"
)

// backend is everything the API needs from a store driver.
type backend interface {
	settlement.ProductCatalog
	settlement.CustomerDirectory
	settlement.CouponRegistry
	settlement.TransactionStore
	inventory.Store
	coupon.Store
	events.EventStore
	audit.Store
	Ping(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()
	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)

	tracingEnabled := cfg.Obs.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "grocery-pos",
			Endpoint:      cfg.Obs.OTLPEndpoint,
			Exporter:      cfg.Obs.TracingExporter,
			SamplingRatio: cfg.Obs.SamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, closeStore := openStore(ctx, cfg, tracingEnabled, logger)
	defer closeStore()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient = openRedis(ctx, cfg, logger)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	}

	tokens, err := auth.NewTokens(auth.TokensConfig{
		Secret:    cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		Audience:  cfg.JWTAudience,
		TTL:       cfg.TokenTTL,
		ClockSkew: 30 * time.Second,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise token verifier")
	}
	authMiddleware := auth.Middleware{Tokens: tokens}

	bus := &events.Bus{Store: st}
	var counters *cashier.Counters
	if redisClient != nil {
		counters = &cashier.Counters{Client: redisClient, Prefix: "pos:cashier:"}
		bus.Notifiers = append(bus.Notifiers, counters)
	}

	var locker lock.Locker = lock.NewKeyed()
	if redisClient != nil {
		locker = lock.Redis{R: redisClient, Prefix: "pos:lock:"}
	}

	auditor := &audit.Service{Store: st, Enabled: cfg.AuditEnabled}
	ledger := inventory.NewLedger(st, bus, logger.With().Str("component", "inventory").Logger())

	policy := loyalty.DefaultPolicy()
	policy.EarnRate = cfg.LoyaltyEarnRate
	policy.PointValue = cfg.LoyaltyPointValue
	settler := settlement.New(settlement.Deps{
		Products:     st,
		Customers:    st,
		Coupons:      st,
		Transactions: st,
		Events:       bus,
		Audit:        auditor,
		Locker:       locker,
		Stock:        ledger,
		Logger:       logger.With().Str("component", "settlement").Logger(),
	}, settlement.Config{
		Policy:    policy,
		Tolerance: cfg.PaymentTolerance,
		Strict:    cfg.CouponStrictMode,
		Location:  cfg.StoreTimezone,
		LockTTL:   cfg.LockTTL,
	})

	validate := validator.New(validator.WithRequiredStructEnabled())
	settlementHandler := &settlement.Handler{Svc: settler, Validate: validate, Debug: cfg.Debug}
	inventoryHandler := &inventory.Handler{Ledger: ledger, Validate: validate, Debug: cfg.Debug}
	couponHandler := &coupon.AdminHandler{Store: st, Validate: validate, Debug: cfg.Debug}
	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	writeLimit := ratelimit.Handler{
		Limiter: newLimiter(cfg, redisClient, logger),
		Config:  ratelimit.Config{Key: ratelimit.ActorOrIP("writes"), Window: cfg.RateLimitWindow, Max: cfg.RateLimitMax},
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}
	auditRoute := audit.Recorder{
		Service: auditor,
		OnError: func(err error) { logger.Error().Err(err).Msg("audit record failed") },
	}.Handler

	var httpMetrics *obs.HTTPMetrics
	if cfg.Obs.MetricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), prometheus.DefaultRegisterer)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Idempotent-Replay", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(security.Headers{EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)

	if httpMetrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.Obs.PprofEnabled {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.Obs.PprofUser, cfg.Obs.PprofPass))
	}

	probes := []health.Probe{{Name: "store", Check: st.Ping, Timeout: 2 * time.Second}}
	if redisClient != nil {
		probes = append(probes, health.Probe{
			Name:     "redis",
			Check:    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
			Timeout:  time.Second,
			Optional: true,
		})
	}
	healthHandler := health.Handler{Probes: probes}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(authMiddleware.RequireAuth)

		v.Route("/transactions", func(t chi.Router) {
			t.Use(writeLimit.Middleware)
			t.Use(idem.Middleware)
			settlementHandler.Routes(t)
		})

		v.With(
			auth.RequirePermission(common.PermInventoryAdjust),
			writeLimit.Middleware,
			auditRoute(audit.Route{Action: "inventory.adjust", ResourceType: "product", IDParam: "productId"}),
		).Post("/inventory/{productId}/adjust", inventoryHandler.Adjust)

		v.Route("/admin/coupons", func(a chi.Router) {
			a.Use(auth.RequirePermission(common.PermCouponsManage))
			a.With(auditRoute(audit.Route{Action: "coupon.create", ResourceType: "coupon"})).
				Post("/", couponHandler.Create)
			a.Get("/{code}", couponHandler.Get)
		})

		if counters != nil {
			statsHandler := &cashier.Handler{Counters: counters, Debug: cfg.Debug}
			v.Get("/cashiers/{id}/stats", statsHandler.Stats)
		}
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	go func() {
		logger.Info().Str("addr", srv.Addr).Str("store", cfg.StoreDriver).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-stop.Done()
	health.SetReady(false)
	logger.Info().Msg("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

func openStore(ctx context.Context, cfg *config.Config, trace bool, logger zerolog.Logger) (backend, func()) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migrate database")
		}
		pg, err := postgres.New(ctx, postgres.Options{URL: cfg.DatabaseURL, ApplicationName: "grocery-pos", Trace: trace})
		if err != nil {
			logger.Fatal().Err(err).Msg("connect database")
		}
		return pg, pg.Close
	default:
		mem := memory.New()
		if cfg.SeedDemoData {
			if err := mem.Seed(ctx); err != nil {
				logger.Fatal().Err(err).Msg("seed demo data")
			}
			logger.Info().Msg("demo data loaded")
		}
		return mem, func() {}
	}
}

func openRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	if cfg.Obs.TracingEnabled {
		if err := redisotel.InstrumentTracing(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
	}
	if cfg.Obs.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}

func newLimiter(cfg *config.Config, client *redis.Client, logger zerolog.Logger) ratelimit.Allower {
	if client == nil {
		return ratelimit.NewMemoryFixed("pos-rl")
	}
	if cfg.RateLimitStrategy == "sliding" {
		return ratelimit.Sliding{Client: client, Prefix: "pos:rl:"}
	}
	fixed, err := ratelimit.NewRedisFixed(client, "pos-rl")
	if err != nil {
		logger.Error().Err(err).Msg("redis rate limiter store; falling back to memory")
		return ratelimit.NewMemoryFixed("pos-rl")
	}
	return fixed
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
