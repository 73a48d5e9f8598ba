package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	identityhandler "qualitrack/internal/identity/handler"
	identityservice "qualitrack/internal/identity/service"
	identitystore "qualitrack/internal/identity/store"
	"qualitrack/internal/jwttoken"
	"qualitrack/internal/platform/config"
	"qualitrack/internal/platform/httpserver"
	"qualitrack/internal/platform/logger"
	"qualitrack/internal/platform/metrics"
	"qualitrack/internal/platform/middleware"
	redisplatform "qualitrack/internal/platform/redis"
	protocolhandler "qualitrack/internal/protocol/handler"
	protocolservice "qualitrack/internal/protocol/service"
	protocolstore "qualitrack/internal/protocol/store"
	"qualitrack/internal/refdata/cache"
	refdatahandler "qualitrack/internal/refdata/handler"
	refdataservice "qualitrack/internal/refdata/service"
	refdatastore "qualitrack/internal/refdata/store"
	reporthandler "qualitrack/internal/report/handler"
	reportservice "qualitrack/internal/report/service"
	reportstore "qualitrack/internal/report/store"
	"qualitrack/pkg/domain"
	"qualitrack/pkg/platform/middleware/metadata"
)

// tokenValidator adapts the jwttoken service to the auth middleware.
type tokenValidator struct {
	svc *jwttoken.JWTService
}

func (v tokenValidator) ValidateToken(token string) (*middleware.JWTClaims, error) {
	claims, err := v.svc.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	return &middleware.JWTClaims{UserID: claims.UserID, Role: claims.Role}, nil
}

// main wires the dependency graph and owns the server lifecycle. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	m := metrics.New()

	var db *sql.DB
	var userStore identityservice.UserStore
	var refStore refdataservice.Store
	var protoStore protocolservice.Store
	var repStore reportservice.Store

	if cfg.PostgresDSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		if err := db.Ping(); err != nil {
			log.Error("failed to ping postgres", "error", err)
			os.Exit(1)
		}
		userStore = identitystore.NewPostgres(db)
		refStore = refdatastore.NewPostgres(db)
		protoStore = protocolstore.NewPostgres(db)
		repStore = reportstore.NewPostgres(db)
	} else {
		log.Warn("no postgres DSN configured, using in-memory stores")
		userStore = identitystore.NewInMemory()
		refStore = refdatastore.NewInMemory()
		protoStore = protocolstore.NewInMemory()
		repStore = reportstore.NewInMemory()
	}

	redisClient, err := redisplatform.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	var departmentCache *cache.DepartmentCache
	if redisClient != nil {
		departmentCache = cache.NewDepartmentCache(redisClient.Client, config.ReferenceCacheTTL)
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)

	refdataSvc := refdataservice.New(refStore,
		refdataservice.WithLogger(log),
		refdataservice.WithDepartmentCache(departmentCache),
	)
	identitySvc := identityservice.New(userStore, refdataSvc, jwtService, cfg.TokenTTL,
		identityservice.WithLogger(log),
		identityservice.WithMetrics(m),
	)
	protocolSvc := protocolservice.New(protoStore,
		protocolservice.WithLogger(log),
		protocolservice.WithMetrics(m),
	)
	reportSvc := reportservice.New(repStore, protocolSvc, identitySvc,
		reportservice.Config{
			MaintenanceDepartment: cfg.MaintenanceDepartment,
			SafetyDepartment:      cfg.SafetyDepartment,
		},
		reportservice.WithLogger(log),
		reportservice.WithMetrics(m),
	)

	identityHandler := identityhandler.New(identitySvc, log)
	refdataHandler := refdatahandler.New(refdataSvc, log)
	protocolHandler := protocolhandler.New(protocolSvc, log)
	reportHandler := reporthandler.New(reportSvc, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(metadata.ClientMetadata)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if db != nil {
			if err := db.PingContext(req.Context()); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	identityHandler.RegisterPublic(r)
	refdataHandler.RegisterPublic(r)

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.RequireAuth(tokenValidator{svc: jwtService}, identitySvc, log))
		refdataHandler.Register(api)
		protocolHandler.Register(api)
		reportHandler.Register(api)
		api.Group(func(admin chi.Router) {
			admin.Use(middleware.RequireRole(log, domain.RoleAdmin))
			identityHandler.RegisterAdmin(admin)
		})
	})

	srv := httpserver.New(httpserver.Config{
		Addr:              cfg.Addr,
		ReadHeaderTimeout: cfg.HTTPReadHeaderTimeout,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}, r)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting qualitrack", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}

	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		_ = db.Close()
	}
	log.Info("shutdown complete")
}
