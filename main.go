package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"stocksignals/config"
	"stocksignals/models"
	"stocksignals/routes"
	"stocksignals/scheduler"
	"stocksignals/services/batch"
	"stocksignals/services/marketdata"
	"stocksignals/services/signals"
	"stocksignals/services/syncer"
	"stocksignals/store"
)

// dbInitialized tracks whether the store has been successfully opened.
// Guarded by dbInitMutex so the /ready endpoint can check it from the
// request goroutines.
var dbInitialized bool
var dbInitMutex sync.RWMutex

func main() {
	log.Println("==============================================")
	log.Println("  Stock Signals API - Starting...")
	log.Println("==============================================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("Warning: Config load issue: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()

	// Add middlewares
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	// Setup health check endpoints FIRST so the platform can detect the
	// service is up; the store is opened in background. Both handles are
	// assigned from the init goroutine, so every read goes through a getter
	// that takes the same lock.
	var st *store.Store
	var jobScheduler *scheduler.Scheduler
	getStore := func() *store.Store {
		dbInitMutex.RLock()
		defer dbInitMutex.RUnlock()
		return st
	}
	getScheduler := func() *scheduler.Scheduler {
		dbInitMutex.RLock()
		defer dbInitMutex.RUnlock()
		return jobScheduler
	}
	setupHealthEndpoints(router, getStore)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	// Start server immediately so orchestration knows we're listening
	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		log.Println("==============================================")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Open the store and wire services in background
	go func() {
		opened, err := store.Open(store.Config{
			DSN:     cfg.DSN(),
			Verbose: cfg.Environment != "production",
		})
		if err != nil {
			log.Printf("ERROR: Database connection failed: %v", err)
			log.Println("Service will continue in limited mode (health check only)")
			return
		}
		dbInitMutex.Lock()
		st = opened
		dbInitMutex.Unlock()

		// Run database migrations
		log.Println("Running database migrations...")
		if err := runMigrations(opened); err != nil {
			log.Printf("ERROR: Migration failed: %v", err)
		} else {
			log.Println("Database migrations completed successfully")
		}

		// Wire services: provider client, per-entity syncers, the rule
		// engine and the batch orchestrator
		client := marketdata.NewClient(cfg.ProviderBaseURL, cfg.ProviderTimeout)

		profileSyncer, err := syncer.NewProfileSyncer(opened, client, cfg)
		if err != nil {
			log.Fatalf("Failed to build profile syncer: %v", err)
		}
		priceSyncer, err := syncer.NewPriceSyncer(opened, client, cfg)
		if err != nil {
			log.Fatalf("Failed to build price syncer: %v", err)
		}
		ratingSyncer, err := syncer.NewRatingSyncer(opened, client, cfg)
		if err != nil {
			log.Fatalf("Failed to build rating syncer: %v", err)
		}
		earningsSyncer, err := syncer.NewEarningsSyncer(opened, client, cfg)
		if err != nil {
			log.Fatalf("Failed to build earnings syncer: %v", err)
		}

		engine, err := signals.NewEngine(opened, priceSyncer, ratingSyncer, earningsSyncer, signals.DefaultConfig())
		if err != nil {
			log.Fatalf("Failed to build signal engine: %v", err)
		}

		orchestrator, err := batch.NewOrchestrator(opened,
			&syncer.ProfileRefresher{Syncer: profileSyncer}, engine, cfg.BatchConcurrency)
		if err != nil {
			log.Fatalf("Failed to build batch orchestrator: %v", err)
		}

		// Mark the store as ready
		dbInitMutex.Lock()
		dbInitialized = true
		dbInitMutex.Unlock()

		// Setup all API routes
		routes.SetupRoutes(router, opened, priceSyncer, orchestrator, cfg)

		// Start background scheduler
		js := scheduler.NewScheduler(opened, orchestrator, cfg)
		dbInitMutex.Lock()
		jobScheduler = js
		dbInitMutex.Unlock()
		go js.Start()

		log.Println("Application fully initialized with database")
	}()

	// Graceful shutdown
	gracefulShutdown(server, getScheduler, getStore)
}

// runMigrations runs all database migrations
func runMigrations(st *store.Store) error {
	if err := models.MigrateMarketModels(st.DB()); err != nil {
		return err
	}
	if err := models.MigrateSignalModels(st.DB()); err != nil {
		return err
	}
	return nil
}

// setupHealthEndpoints sets up liveness and readiness endpoints
func setupHealthEndpoints(router *gin.Engine, getStore func() *store.Store) {
	// Root endpoint
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Stock Signals API",
			"version": "1.0.0",
		})
	})

	// Liveness probe - always returns OK if server is running
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Readiness probe - checks if service is ready to receive traffic
	router.GET("/ready", func(c *gin.Context) {
		dbInitMutex.RLock()
		ready := dbInitialized
		dbInitMutex.RUnlock()

		st := getStore()
		if !ready || st == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database not connected",
			})
			return
		}

		if err := st.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database ping failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns a request logging middleware
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for health checks to reduce noise
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		// Only log errors or slow requests
		if c.Writer.Status() >= 400 || duration > 1*time.Second {
			log.Printf("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		}
	}
}

// gracefulShutdown handles graceful shutdown of the server. The scheduler and
// store are resolved through getters because both are assigned after startup,
// once the background initialization finishes.
func gracefulShutdown(server *http.Server, getScheduler func() *scheduler.Scheduler, getStore func() *store.Store) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	sig := <-quit
	log.Printf("Received signal %v, shutting down gracefully...", sig)

	// Stop scheduler first
	if jobScheduler := getScheduler(); jobScheduler != nil {
		jobScheduler.Stop()
	}

	// Create context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Close the store
	if st := getStore(); st != nil {
		if err := st.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}

	log.Println("Server shutdown completed")
}
