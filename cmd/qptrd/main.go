// Command qptrd serves the QPTR retrieval agent: a small HTTP control
// surface in front of an automated Creator Dashboard login and scrape.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/joho/godotenv"

	"github.com/creatorstats/qptrd/internal/api/handlers"
	"github.com/creatorstats/qptrd/internal/authflow"
	"github.com/creatorstats/qptrd/internal/browser"
	"github.com/creatorstats/qptrd/internal/challenge"
	"github.com/creatorstats/qptrd/internal/config"
	"github.com/creatorstats/qptrd/internal/consent"
	"github.com/creatorstats/qptrd/internal/credential"
	"github.com/creatorstats/qptrd/internal/geo"
	"github.com/creatorstats/qptrd/internal/http/mw"
	"github.com/creatorstats/qptrd/internal/journal"
	"github.com/creatorstats/qptrd/internal/logging"
	"github.com/creatorstats/qptrd/internal/login"
	"github.com/creatorstats/qptrd/internal/roblox"
	"github.com/creatorstats/qptrd/internal/scraper"
	"github.com/creatorstats/qptrd/internal/shutdown"
	"github.com/creatorstats/qptrd/internal/solver"
	"github.com/creatorstats/qptrd/internal/version"
)

func main() {
	// Local development convenience; the file is optional.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.SetDefault()

	v := version.Get()
	logger.Info("starting qptrd",
		"version", v.Version,
		"commit", v.Commit,
		"go_version", v.GoVersion,
	)

	if cfg.RobloxUsername == "" || cfg.RobloxPassword == "" {
		logger.Warn("no target credentials configured, interactive login will fail with form input")
	}

	// Run journal (optional).
	var jnl *journal.Store
	if cfg.JournalDBPath != "" {
		var err error
		jnl, err = journal.Open(cfg.JournalDBPath, logger)
		if err != nil {
			logger.Error("failed to open run journal", "error", err)
			os.Exit(1)
		}
		defer jnl.Close()
	}

	// External solver (optional).
	var slv solver.Solver
	if cfg.TwoCaptchaAPIKey != "" {
		slv = solver.NewTwoCaptcha(cfg.TwoCaptchaAPIKey, "", logger)
		logger.Info("captcha solver configured", "provider", "2captcha")
	} else {
		logger.Warn("no solver API key configured, challenges rely on the fallback ladder")
	}

	// Core components.
	probe := geo.New(cfg.GeoEndpoint, cfg.RestrictedCountries, cfg.RestrictedContinents, logger)
	leaser := browser.NewLeaser(cfg, logger)
	suppressor := consent.NewSuppressor(logger)
	detector := challenge.NewDetector(cfg.DefaultFunCaptchaSiteKey, logger)
	runner := challenge.NewRunner(detector, slv, cfg.LoginURL, logger)
	flow := login.NewFlow(probe, suppressor, runner, cfg, logger)
	scr := scraper.New(cfg, logger)
	store := credential.NewStore()
	api := roblox.NewClient("", cfg.SessionCookieName, logger)
	interactive := authflow.NewBrowserLogin(leaser, flow, scr, cfg, logger)
	strategy := authflow.NewStrategy(store, api, interactive, logger)

	// Handlers.
	statusHandler := handlers.NewStatusHandler(probe, store)
	scrapeHandler := handlers.NewScrapeHandler(strategy, jnl, logger)
	validateHandler := handlers.NewValidateHandler(store, api, logger)
	regionHandler := handlers.NewRegionHandler(probe)
	debugLoginHandler := handlers.NewDebugLoginHandler(interactive, store, logger)
	balanceHandler := handlers.NewBalanceHandler(slv, logger)

	idle := shutdown.NewIdleMonitor(cfg.IdleTimeout, logger)

	// Router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(8 * time.Minute))
	r.Use(idle.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	humaConfig := huma.DefaultConfig("QPTR Agent", v.Version)
	humaConfig.Info.Description = "Automated QPTR retrieval from the Creator Dashboard"

	// Public surface: health only.
	publicAPI := humachi.New(r, humaConfig)
	huma.Register(publicAPI, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Health and region",
		Tags:        []string{"Health"},
	}, func(ctx context.Context, input *struct{}) (*handlers.StatusOutput, error) {
		return &handlers.StatusOutput{Body: *statusHandler.Handle(ctx)}, nil
	})

	// Protected surface.
	protected := chi.NewRouter()
	if cfg.OperatorJWTSecret != "" {
		logger.Info("operator authentication enabled")
	} else {
		logger.Warn("no operator JWT secret configured, control surface is unprotected")
	}
	protected.Use(mw.Auth(cfg.OperatorJWTSecret, logger))
	protected.Use(httprate.LimitByIP(30, time.Minute))

	protectedAPI := humachi.New(protected, humaConfig)

	huma.Register(protectedAPI, huma.Operation{
		OperationID: "scrape",
		Method:      http.MethodPost,
		Path:        "/scrape",
		Summary:     "Retrieve QPTR for a game",
		Tags:        []string{"Scrape"},
	}, func(ctx context.Context, input *handlers.ScrapeInput) (*handlers.ScrapeOutput, error) {
		return scrapeHandler.Handle(ctx, &input.Body), nil
	})

	huma.Register(protectedAPI, huma.Operation{
		OperationID: "validateCredential",
		Method:      http.MethodPost,
		Path:        "/auth/validate",
		Summary:     "Check stored credential liveness",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *struct{}) (*handlers.ValidateOutput, error) {
		return &handlers.ValidateOutput{Body: *validateHandler.Handle(ctx)}, nil
	})

	huma.Register(protectedAPI, huma.Operation{
		OperationID: "debugRegion",
		Method:      http.MethodPost,
		Path:        "/debug/region",
		Summary:     "Probe egress region",
		Tags:        []string{"Debug"},
	}, func(ctx context.Context, input *struct{}) (*handlers.RegionOutput, error) {
		return &handlers.RegionOutput{Body: *regionHandler.Handle(ctx)}, nil
	})

	huma.Register(protectedAPI, huma.Operation{
		OperationID: "debugLogin",
		Method:      http.MethodPost,
		Path:        "/debug/login",
		Summary:     "Run the login flow in isolation",
		Tags:        []string{"Debug"},
	}, func(ctx context.Context, input *struct{}) (*handlers.DebugLoginOutput, error) {
		return debugLoginHandler.Handle(ctx), nil
	})

	huma.Register(protectedAPI, huma.Operation{
		OperationID: "solverBalance",
		Method:      http.MethodGet,
		Path:        "/solver/balance",
		Summary:     "Solver account balance",
		Tags:        []string{"Solver"},
	}, func(ctx context.Context, input *struct{}) (*handlers.BalanceOutput, error) {
		return &handlers.BalanceOutput{Body: *balanceHandler.Handle(ctx)}, nil
	})

	if jnl != nil {
		runsHandler := handlers.NewRunsHandler(jnl, logger)
		huma.Register(protectedAPI, huma.Operation{
			OperationID: "listRuns",
			Method:      http.MethodGet,
			Path:        "/runs",
			Summary:     "Recent scrape attempts",
			Tags:        []string{"Debug"},
		}, func(ctx context.Context, input *handlers.RunsInput) (*handlers.RunsOutput, error) {
			return &handlers.RunsOutput{Body: *runsHandler.Handle(ctx, input.Limit)}, nil
		})
	}

	r.Mount("/", protected)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 9 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	idle.Start()
	defer idle.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("signal received, shutting down")
	case <-idle.ShutdownChan():
		logger.Info("idle timeout reached, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}
