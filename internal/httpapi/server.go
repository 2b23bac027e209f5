package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hamed0406/netmanager/internal/auth"
	"github.com/hamed0406/netmanager/internal/domain"
	apimw "github.com/hamed0406/netmanager/internal/httpapi/middleware"
	"github.com/hamed0406/netmanager/internal/optimize"
	"github.com/hamed0406/netmanager/internal/repo"
)

// Assessor is satisfied by *netquality.Assessor.
type Assessor interface {
	Assess(ctx context.Context) (domain.MeasurementResult, error)
}

// Optimizer is satisfied by *optimize.Optimizer.
type Optimizer interface {
	Optimize(ctx context.Context) (optimize.Report, error)
}

// HTTPObserver is satisfied by *metrics.Collector.
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, d time.Duration)
	Handler() http.Handler
}

type Server struct {
	Logger    *zap.Logger
	Auth      *auth.Service
	Assessor  Assessor
	Optimizer Optimizer
	History   repo.HistoryStore
	Metrics   HTTPObserver // optional
}

func NewServer(l *zap.Logger, a *auth.Service, as Assessor, op Optimizer, h repo.HistoryStore, m HTTPObserver) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{Logger: l, Auth: a, Assessor: as, Optimizer: op, History: h, Metrics: m}
}

type RouterConfig struct {
	AdminKeys      apimw.Keys
	AllowedOrigins []string      // empty allows all
	Redis          *redis.Client // nil uses the in-process limiter

	NetworkRPM   int
	NetworkBurst int
	AuthRPM      int
	AuthBurst    int

	// HistoryLink is the monitored link served by the history route.
	HistoryLink string

	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Only enable behind a proxy that overwrites those headers.
	TrustProxy bool
}

func (s *Server) Router(rc RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.StripSlashes)
	r.Use(chimw.RequestID)
	if rc.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(s.accessLog)
	r.Use(chimw.Recoverer)
	r.Use(corsHandler(rc.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics.Handler())
	}

	historyLink := rc.HistoryLink
	if historyLink == "" {
		historyLink = "default"
	}

	r.Route("/api", func(api chi.Router) {
		// identity
		api.Group(func(g chi.Router) {
			g.Use(s.limiter(rc, "auth", rc.AuthRPM, rc.AuthBurst))
			g.Post("/register", s.handleRegister)
			g.Post("/login", s.handleLogin)
			g.Post("/token/refresh", s.handleRefresh)
		})
		api.With(apimw.RequireAdmin(rc.AdminKeys)).Get("/register", s.handleListUsers)

		// network
		api.Group(func(g chi.Router) {
			g.Use(apimw.RequireUser(s.Auth))
			g.Use(s.limiter(rc, "network", rc.NetworkRPM, rc.NetworkBurst))
			g.Get("/network-stats", s.handleNetworkStats)
			g.Post("/optimize-network", s.handleOptimize)
		})
		api.With(apimw.RequireUser(s.Auth)).Get("/network-stats/history", s.handleHistory(historyLink))
	})

	return r
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return cors.AllowAll().Handler
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

func (s *Server) limiter(rc RouterConfig, name string, rpm, burst int) func(http.Handler) http.Handler {
	if rc.Redis != nil {
		return apimw.RedisRateLimit(apimw.RedisLimitConfig{
			Client:    rc.Redis,
			Limit:     rpm,
			Window:    time.Minute,
			KeyPrefix: "netmanager:rl:" + name + ":",
			Logger:    s.Logger,
		})
	}
	return apimw.RateLimit(rpm, burst)
}

// accessLog logs each request and feeds the HTTP metrics.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		d := time.Since(start)
		if s.Metrics != nil {
			s.Metrics.ObserveHTTP(r.Method, route, status, d)
		}
		s.Logger.Info("http_request",
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Float64("duration_ms", float64(d.Microseconds())/1000),
		)
	})
}
