package main

import (
	"crypto/tls"
	"encoding/json"
	stdlog "log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/username/isincheck/backend/src/config"
	"github.com/username/isincheck/backend/src/database"
	"github.com/username/isincheck/backend/src/handlers"
	"github.com/username/isincheck/backend/src/logger"
	"github.com/username/isincheck/backend/src/parsers/csvfile"
	"github.com/username/isincheck/backend/src/services"
	"golang.org/x/time/rate"
)

func proxyHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Forwarded-Proto") == "https" {
			r.URL.Scheme = "https"
			r.TLS = &tls.ConnectionState{}
		}
		next.ServeHTTP(w, r)
	})
}

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000":    true,
			config.Cfg.FrontendBaseURL: true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-Requested-With")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("ISIN check backend server starting...")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath)

	isinCache := services.NewISINCache(config.Cfg.ISINCacheTTL, config.Cfg.ISINCacheCleanupInterval)
	finnhubService := services.NewFinnhubService(config.Cfg)
	resolveService := services.NewResolveService(finnhubService, isinCache)
	jobStore := services.NewJobStore()
	persistService := services.NewPersistService(database.DB)
	checkService := services.NewCheckService(
		database.DB,
		resolveService,
		jobStore,
		persistService,
		config.Cfg.FinnhubConcurrencyLimit,
	)

	uploadHandler := handlers.NewUploadHandler(csvfile.NewParser(), jobStore)
	checkHandler := handlers.NewCheckHandler(checkService)
	downloadHandler := handlers.NewDownloadHandler(jobStore, csvfile.NewWriter())
	categoriesHandler := handlers.NewCategoriesHandler()
	searchHandler := handlers.NewSearchHandler()
	webhookHandler := handlers.NewWebhookHandler()

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(proxyHeadersMiddleware)
	r.Use(enableCORS)
	r.Use(rateLimitMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "ISIN check backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", uploadHandler.HandleUpload)
		r.Post("/check", checkHandler.HandleCheck)
		r.Get("/download", downloadHandler.HandleDownload)
		r.Get("/categories", categoriesHandler.HandleListCategories)
		r.Get("/categories/stats", categoriesHandler.HandleCategoryStats)
		r.Post("/isin-search", searchHandler.HandleSearch)
		r.Post("/webhooks/finnhub", webhookHandler.HandleFinnhubWebhook)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
		}
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
