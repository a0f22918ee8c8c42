package http

import (
	"context"
	"net/http"
	"time"

	applog "saldo/internal/log"
	"saldo/internal/middleware/ratelimit"
	"saldo/internal/middleware/security"
	"saldo/internal/middleware/trace"
	"saldo/internal/services"
	"saldo/internal/tabular"
)

// Deps are the collaborators the server needs.
type Deps struct {
	Services *services.Services
	Uploads  *tabular.UploadStore
	Logger   *applog.Logger
	// Ready reports whether the backing store is reachable. Optional.
	Ready func(ctx context.Context) error
	// RequestsPerMinute limits mutating requests per client; zero uses the default.
	RequestsPerMinute int
}

type Server struct {
	http.Server

	transactions *services.TransactionService
	importer     *services.ImportService
	uploads      *tabular.UploadStore
	ready        func(ctx context.Context) error

	limiter *ratelimit.Limiter
	tracer  *trace.Middleware
}

func NewServer(addr string, deps Deps) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	resolver, err := security.NewClientIPResolver()
	if err != nil {
		return nil, err
	}

	s := &Server{
		transactions: deps.Services.Transactions,
		importer:     deps.Services.Import,
		uploads:      deps.Uploads,
		ready:        deps.Ready,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: deps.RequestsPerMinute,
			CleanupInterval:   5 * time.Minute,
		}),
		tracer: trace.NewMiddleware(logger.WithComponent(applog.ComponentHTTP), resolver.ClientIP),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /transactions", s.handleList)
	mux.HandleFunc("POST /transactions", s.handleCreate)
	mux.HandleFunc("POST /transactions/import", s.handleImport)
	mux.HandleFunc("DELETE /transactions/{id}", s.handleDelete)

	limited := s.limiter.Middleware(resolver.ClientIP, func(w http.ResponseWriter, _ *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
	})

	var handler http.Handler = mux
	handler = limited(handler)
	handler = security.APIHeaders(handler)
	handler = s.tracer.Middleware(handler)
	handler = applog.Middleware(logger.WithComponent(applog.ComponentHTTP))(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Shutdown stops background goroutines, then drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}
