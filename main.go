package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kaizhangyahoo/st-my-investment/src/config"
	"github.com/kaizhangyahoo/st-my-investment/src/database"
	"github.com/kaizhangyahoo/st-my-investment/src/handlers"
	"github.com/kaizhangyahoo/st-my-investment/src/logger"
	"github.com/kaizhangyahoo/st-my-investment/src/mappings"
	"github.com/kaizhangyahoo/st-my-investment/src/reference"
	"github.com/kaizhangyahoo/st-my-investment/src/resolver"
	"github.com/kaizhangyahoo/st-my-investment/src/services"
	"github.com/patrickmn/go-cache"
)

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Ticker resolution backend server starting...")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing mapping store...", "path", config.Cfg.MappingStorePath)
	store := mappings.NewStore(config.Cfg.MappingStorePath)
	if _, err := store.Load(); err != nil {
		logger.L.Warn("Mapping store load failed, resolution will start from an empty cache", "error", err)
	}

	logger.L.Info("Initializing reference adapters...")
	secAdapter := reference.NewSECAdapter(config.Cfg.SECTickerURL, config.Cfg.FetchTimeout)
	shareListAdapter := reference.NewShareListAdapter(config.Cfg.ShareListPath)

	tickerResolver := resolver.NewResolver(store, secAdapter, shareListAdapter, resolver.Options{
		BulkCutoff:     config.Cfg.BulkFuzzyCutoff,
		DocumentCutoff: config.Cfg.DocumentFuzzyCutoff,
		Workers:        config.Cfg.MatcherWorkers,
	})

	logger.L.Info("Initializing report cache...")
	reportCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	logger.L.Info("Initializing services and handlers...")
	resolutionService := services.NewResolutionService(tickerResolver, store, reportCache)
	uploadHandler := handlers.NewUploadHandler(resolutionService)
	resolutionHandler := handlers.NewResolutionHandler(resolutionService)

	logger.L.Info("Configuring routes...")
	router := chi.NewRouter()
	router.Use(handlers.EnableCORS)
	router.Use(handlers.RateLimitMiddleware)

	router.Route("/api", func(r chi.Router) {
		r.Post("/upload", uploadHandler.HandleUpload)
		r.Post("/resolve", resolutionHandler.HandleResolveNames)
		r.Get("/mappings", resolutionHandler.HandleGetMappings)
		r.Get("/unresolved", resolutionHandler.HandleGetUnresolved)
		r.Get("/records", resolutionHandler.HandleGetRecords)
	})

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Ticker resolution backend is running"})
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
