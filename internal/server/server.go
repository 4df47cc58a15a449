// Package server assembles the services, routes and middleware of the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/rexlx/mindhaven/internal/account"
	"github.com/rexlx/mindhaven/internal/blob"
	"github.com/rexlx/mindhaven/internal/chat"
	"github.com/rexlx/mindhaven/internal/completion"
	"github.com/rexlx/mindhaven/internal/config"
	"github.com/rexlx/mindhaven/internal/forum"
	"github.com/rexlx/mindhaven/internal/mail"
	"github.com/rexlx/mindhaven/internal/messaging"
	"github.com/rexlx/mindhaven/internal/mood"
	"github.com/rexlx/mindhaven/internal/notify"
	"github.com/rexlx/mindhaven/internal/profile"
	"github.com/rexlx/mindhaven/internal/reset"
	"github.com/rexlx/mindhaven/internal/store"
	"github.com/rexlx/mindhaven/internal/store/postgres"
	"github.com/rexlx/mindhaven/internal/store/sqlite"
	"github.com/rexlx/mindhaven/internal/telemetry"
	"github.com/rexlx/mindhaven/internal/web"
)

// ServiceName identifies the server in traces.
const ServiceName = "mindhaven"

// Deps are the external collaborators of a Server. Nil fields get defaults from the config.
type Deps struct {
	Store      store.Store
	Mailer     mail.Mailer
	Completion chat.Completer
}

type Server struct {
	logger  *log.Logger
	limiter *web.RateLimiter
	otp     *reset.OTP
	handler http.Handler
}

// OpenStore connects to Postgres or opens the SQLite file named by cfg.DatabaseURL.
func OpenStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	if cfg.UsesPostgres() {
		db, err := postgres.NewDatabase(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.CreateTables(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("create tables: %w", err)
		}
		return db, nil
	}
	db, err := sqlite.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// NewMailer sends through Resend when an API key is configured and logs otherwise.
func NewMailer(cfg config.Config, logger *log.Logger) mail.Mailer {
	if cfg.ResendAPIKey == "" {
		logger.Println("RESEND_API_KEY is not set, reset codes will not be emailed")
		return mail.Log{Logger: logger}
	}
	return mail.NewResend(cfg.ResendAPIKey, cfg.MailFrom)
}

// New wires every service onto one handler.
func New(cfg config.Config, deps Deps, logger *log.Logger) (*Server, error) {
	if deps.Store == nil {
		return nil, errors.New("server: a store is required")
	}
	if deps.Mailer == nil {
		deps.Mailer = NewMailer(cfg, logger)
	}
	if deps.Completion == nil {
		deps.Completion = completion.New(completion.Config{
			URL:    cfg.CompletionURL,
			Model:  cfg.CompletionModel,
			APIKey: cfg.CompletionAPIKey(),
			Logger: logger,
		})
	}

	blobs, err := blob.NewStore(cfg.StorageDir, cfg.PublicURL)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	secret := []byte(cfg.JWTSecret)
	s := deps.Store

	notifier := notify.NewService(s, logger)
	accounts := account.NewService(s, blobs, notifier, cfg.BcryptCost, logger)
	security := reset.NewSecurity(s, accounts, cfg.BcryptCost, logger)
	otp := reset.NewOTP(s, accounts, deps.Mailer, cfg.ResetCodeTTL, logger)

	sessions := &web.Sessions{Manager: web.NewSessionManager(cfg.SessionLifetime, cfg.CookieSecure)}
	accountHandlers := account.NewHandlers(accounts, sessions, secret)
	chatHandlers := chat.NewHandlers(chat.NewService(s, deps.Completion, logger), sessions, secret)

	// Session routes carry a cookie; function, admin and storage routes do not.
	app := http.NewServeMux()
	accountHandlers.RegisterRoutes(app)
	profile.NewHandlers(profile.NewService(s, blobs, logger), security, sessions).RegisterRoutes(app)
	chatHandlers.RegisterRoutes(app)
	forum.NewHandlers(forum.NewService(s, notifier, logger), sessions).RegisterRoutes(app)
	messaging.NewHandlers(messaging.NewService(s, blobs, notifier, logger), blobs, sessions).RegisterRoutes(app)
	mood.NewHandlers(mood.NewService(s, logger), sessions).RegisterRoutes(app)
	notify.NewHandlers(notifier, sessions).RegisterRoutes(app)

	mux := http.NewServeMux()
	withSession := sessions.Manager.LoadAndSave(app)
	mux.Handle("/auth/", withSession)
	mux.Handle("/api/", withSession)
	chatHandlers.RegisterFunctionRoutes(mux)
	reset.NewHandlers(security, otp, secret).RegisterRoutes(mux)
	accountHandlers.RegisterAdminRoutes(mux)
	blobs.RegisterRoutes(mux)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		web.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	limiter := web.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	handler := web.Chain(
		web.Recovery(logger),
		web.Tracing(ServiceName),
		web.Logging(logger),
		web.CORS(cfg.AllowedOrigins),
		limiter.Middleware,
	)(mux)

	return &Server{logger: logger, limiter: limiter, otp: otp, handler: handler}, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Sweep runs one janitor pass.
func (s *Server) Sweep(ctx context.Context) {
	n, err := s.otp.PurgeExpired(ctx)
	if err != nil {
		s.logger.Printf("janitor: purge reset codes: %v", err)
	} else if n > 0 {
		s.logger.Printf("janitor: purged %d reset codes", n)
	}
	s.limiter.Sweep(10 * time.Minute)
}

// StartJanitor sweeps on every tick until ctx is done.
func (s *Server) StartJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, ServiceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Printf("shutdown tracing: %v", err)
		}
	}()

	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("could not initialize database: %w", err)
	}
	defer st.Close()
	logger.Println("Successfully connected to the database.")

	srv, err := New(cfg, Deps{Store: st}, logger)
	if err != nil {
		return err
	}
	go srv.StartJanitor(ctx, cfg.JanitorInterval)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Printf("Starting server on %s", cfg.Addr)
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	srv.otp.Wait()
	logger.Println("Server stopped.")
	return nil
}
