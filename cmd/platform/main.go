package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/resolveit/grievance-platform/internal/adapters/legacy"
	complaintapi "github.com/resolveit/grievance-platform/internal/complaint/api"
	"github.com/resolveit/grievance-platform/internal/complaint/domain"
	"github.com/resolveit/grievance-platform/internal/complaint/infrastructure"
	"github.com/resolveit/grievance-platform/internal/complaint/service"
	"github.com/resolveit/grievance-platform/internal/escalation"
	"github.com/resolveit/grievance-platform/internal/identity"
	"github.com/resolveit/grievance-platform/internal/notification"
	"github.com/resolveit/grievance-platform/internal/shared/auth"
	"github.com/resolveit/grievance-platform/internal/shared/config"
	"github.com/resolveit/grievance-platform/internal/shared/database"
	"github.com/resolveit/grievance-platform/internal/shared/events"
	"github.com/resolveit/grievance-platform/internal/shared/metrics"
	secmiddleware "github.com/resolveit/grievance-platform/internal/shared/middleware"
	"github.com/resolveit/grievance-platform/internal/shared/types"
)

// App holds all application dependencies
type App struct {
	Config *config.Config
	DB     *database.DB
	Bus    *events.Bus
	Users  *identity.Repository
	Store  domain.Store
	Logger *zap.SugaredLogger
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Server.Env)
	defer logger.Sync()

	app := &App{Config: cfg, Logger: logger}

	// Database (optional - fall back to in-memory limited mode)
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.Warnw("database not available, running in limited mode with in-memory storage", "error", err)
	} else {
		app.DB = db
		defer db.Close()

		if err := database.Migrate(ctx, db.Pool); err != nil {
			logger.Warnw("migration failed", "error", err)
		}
	}

	// Event bus (optional)
	var publisher events.Publisher
	if cfg.EventStore.Enabled {
		bus, err := events.NewBus(ctx, cfg.EventStore)
		if err != nil {
			logger.Warnw("event store not available, running without event streaming", "error", err)
		} else {
			app.Bus = bus
			publisher = bus
			defer bus.Close()
			logger.Info("event bus initialized")
		}
	}

	// Complaint store
	var memStore *infrastructure.MemoryStore
	if app.DB != nil {
		app.Store = infrastructure.NewPostgresStore(app.DB.Pool)
		app.Users = identity.NewRepository(app.DB.Pool)
		seedOfficers(ctx, app.Users, logger)
	} else {
		memStore = infrastructure.NewMemoryStore()
		app.Store = memStore
		seedMemoryOfficers(memStore)
	}

	// Notification dispatcher
	var provider notification.EmailProvider
	if cfg.SMTP.Enabled {
		provider = notification.NewSMTPProvider(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password)
		logger.Infow("SMTP notifications enabled", "relay", cfg.SMTP.Addr())
	} else {
		provider = notification.NewMockProvider()
		logger.Info("SMTP disabled, notifications are recorded only")
	}
	dispatcher := notification.NewDispatcher(provider, storeUserFinder{app.Store}, cfg.SMTP.From, logger)

	// Core lifecycle and escalation sweeper
	lifecycle := service.NewLifecycle(app.Store, dispatcher, publisher, logger)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	sweeper := escalation.NewSweeper(app.Store, lifecycle, cfg.Escalation.Interval, rng, logger)
	if cfg.Escalation.Enabled {
		go sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	// One-shot legacy helpdesk import
	if cfg.Legacy.Enabled {
		importer, err := legacy.NewImporter(cfg.Legacy, lifecycle, logger)
		if err != nil {
			logger.Warnw("legacy import unavailable", "error", err)
		} else {
			go func() {
				defer importer.Close()
				if _, err := importer.Run(ctx); err != nil {
					logger.Errorw("legacy import failed", "error", err)
				}
			}()
		}
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.NewIPRateLimiter(20, 40).Middleware)
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())
	r.Get("/", infoHandler)

	r.Route("/api/v1", func(r chi.Router) {
		// Dev token endpoint; production deployments front the API with
		// an identity provider
		if app.Users != nil && cfg.Server.Env != "production" {
			r.Post("/auth/token", tokenHandler(app))
		}

		handler := complaintapi.NewHandler(lifecycle, sweeper, app.Store)
		r.Mount("/complaints", handler.Routes(auth.Middleware(cfg.Auth)))
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorw("server shutdown error", "error", err)
		}
		close(done)
	}()

	fmt.Println("=========================================")
	fmt.Println("ResolveIT Grievance Platform")
	fmt.Println("=========================================")
	fmt.Printf("Environment:  %s\n", cfg.Server.Env)
	fmt.Printf("Server:       http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("API:          http://localhost:%d/api/v1\n", cfg.Server.Port)
	fmt.Printf("Health:       http://localhost:%d/health\n", cfg.Server.Port)
	fmt.Printf("Escalation:   enabled=%v interval=%s\n", cfg.Escalation.Enabled, cfg.Escalation.Interval)
	fmt.Println("=========================================")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalw("server error", "error", err)
	}

	<-done
	logger.Info("server stopped")
}

func newLogger(env string) *zap.SugaredLogger {
	var logger *zap.Logger
	var err error
	if env == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return logger.Sugar()
}

// storeUserFinder adapts the complaint store's user lookup to the
// dispatcher's recipient resolution
type storeUserFinder struct {
	store domain.Store
}

func (f storeUserFinder) FindByID(ctx context.Context, id types.ID) (*identity.User, error) {
	return f.store.FindUser(ctx, id)
}

// seedOfficers creates the initial officer and admin accounts on an
// empty database so escalation has somewhere to go
func seedOfficers(ctx context.Context, repo *identity.Repository, logger *zap.SugaredLogger) {
	count, err := repo.Count(ctx)
	if err != nil || count > 0 {
		return
	}

	for _, u := range defaultUsers() {
		user := u
		if err := repo.Create(ctx, &user); err != nil {
			logger.Warnw("failed to seed user", "username", user.Username, "error", err)
		}
	}
	logger.Info("seeded default officer and admin accounts")
}

func seedMemoryOfficers(store *infrastructure.MemoryStore) {
	for _, u := range defaultUsers() {
		user := u
		store.AddUser(&user)
	}
}

func defaultUsers() []identity.User {
	now := time.Now()
	return []identity.User{
		{ID: types.NewID(), Username: "officer.l1.anand", Email: "anand@resolveit.local", FirstName: "Anand", LastName: "Kumar", Role: identity.RoleOfficer, OfficerLevel: identity.LevelL1, Active: true, CreatedAt: now},
		{ID: types.NewID(), Username: "officer.l1.meera", Email: "meera@resolveit.local", FirstName: "Meera", LastName: "Sharma", Role: identity.RoleOfficer, OfficerLevel: identity.LevelL1, Active: true, CreatedAt: now},
		{ID: types.NewID(), Username: "officer.l2.rajesh", Email: "rajesh@resolveit.local", FirstName: "Rajesh", LastName: "Verma", Role: identity.RoleOfficer, OfficerLevel: identity.LevelL2, Active: true, CreatedAt: now},
		{ID: types.NewID(), Username: "officer.l2.priya", Email: "priya@resolveit.local", FirstName: "Priya", LastName: "Nair", Role: identity.RoleOfficer, OfficerLevel: identity.LevelL2, Active: true, CreatedAt: now},
		{ID: types.NewID(), Username: "admin", Email: "admin@resolveit.local", FirstName: "System", LastName: "Admin", Role: identity.RoleAdmin, Active: true, CreatedAt: now},
	}
}

func tokenHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
			http.Error(w, `{"error":"username is required"}`, http.StatusBadRequest)
			return
		}

		user, err := app.Users.FindByUsernameOrEmail(r.Context(), req.Username)
		if err != nil {
			http.Error(w, `{"error":"unknown user"}`, http.StatusNotFound)
			return
		}

		token, err := auth.IssueToken(app.Config.Auth, user, 24*time.Hour)
		if err != nil {
			http.Error(w, `{"error":"failed to issue token"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"token": token})
	}
}

func infoHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "ResolveIT Grievance Platform",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if app.DB != nil {
			if err := app.DB.Health(r.Context()); err != nil {
				checks["database"] = "not ready: " + err.Error()
			} else {
				checks["database"] = "ready"
			}
		} else {
			checks["database"] = "not configured"
		}

		if app.Bus != nil {
			if err := app.Bus.Health(); err != nil {
				checks["eventstore"] = "not ready: " + err.Error()
			} else {
				checks["eventstore"] = "ready"
			}
		} else {
			checks["eventstore"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
