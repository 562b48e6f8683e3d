package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"foodcourt/internal/config"
	"foodcourt/internal/database"
	"foodcourt/internal/logger"
	"foodcourt/internal/messaging"
	"foodcourt/internal/middleware"
	"foodcourt/internal/services/cart"
	"foodcourt/internal/services/catalog"
	"foodcourt/internal/services/order"
	"foodcourt/internal/storage"
)

func main() {
	var (
		port           = flag.Int("port", 0, "HTTP port (overrides PORT)")
		migrationsPath = flag.String("migrations", "migrations", "Path to SQL migrations")
	)
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}

	log := logger.New("storefront", cfg.LogLevel)
	requestID := logger.GenerateRequestID()

	log.Info("service_started", "Starting storefront", requestID, map[string]interface{}{
		"port": cfg.Port,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("graceful_shutdown", "Received shutdown signal", requestID, nil)
		cancel()
	}()

	if err := run(ctx, cfg, log, *migrationsPath, requestID); err != nil {
		log.Error("service_failed", "Storefront failed", requestID, err, nil)
		os.Exit(1)
	}

	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, migrationsPath, requestID string) error {
	db, err := database.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	log.Info("db_connected", "Connected to PostgreSQL database", requestID, nil)

	if err := db.RunMigrations(ctx, migrationsPath); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}
	defer conn.Close()

	log.Info("rabbitmq_connected", "Connected to RabbitMQ", requestID, nil)

	publisher := messaging.NewPublisher(conn, log)
	store := storage.NewPostgres(db)

	catalogHandler := catalog.NewHandler(catalog.NewService(store, log), log)
	cartHandler := cart.NewHandler(cart.NewService(store, log), log)
	orderHandler := order.NewHandler(order.NewService(store, publisher, log), log)

	router := setupRouter(cfg, db, catalogHandler, cartHandler, orderHandler)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		log.Info("http_listening", fmt.Sprintf("Storefront listening on port %d", cfg.Port), requestID, nil)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server_failed", "HTTP server failed", requestID, err, nil)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return server.Shutdown(shutdownCtx)
}

func setupRouter(cfg *config.Config, db *database.DB, catalogHandler *catalog.Handler, cartHandler *cart.Handler, orderHandler *order.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Prometheus())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	public := router.Group("/api")
	catalogHandler.RegisterPublic(public)

	authed := router.Group("/api")
	authed.Use(middleware.Auth(cfg.JWTSecret))
	catalogHandler.RegisterAuthed(authed)
	cartHandler.Register(authed)
	orderHandler.Register(authed)

	return router
}
