package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/roomcast/chat_backend/config"
	"github.com/roomcast/chat_backend/controllers"
	"github.com/roomcast/chat_backend/database"
	"github.com/roomcast/chat_backend/directory"
	"github.com/roomcast/chat_backend/metrics"
	"github.com/roomcast/chat_backend/middleware"
	"github.com/roomcast/chat_backend/transport"
	"github.com/roomcast/chat_backend/websocket"
)

func main() {
	cfg := config.Load()

	// Initialize database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	dir := directory.New(db)
	if err := dir.SeedDefaults(); err != nil {
		log.Fatalf("Failed to seed default rooms: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Transport adapter, selected by PUBSUB_BACKEND
	adapter, err := transport.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize transport: %v", err)
	}
	defer adapter.Close()

	// Core: registry + broadcast router, constructed once and passed in
	stats := metrics.New()
	registry := websocket.NewRegistry(dir)
	broadcastRouter := websocket.NewRouter(registry, dir, adapter, stats)
	wsHandler := websocket.NewHandler(registry, broadcastRouter)

	// Single inbound listener drives all dispatches
	go func() {
		if err := adapter.Listen(ctx, broadcastRouter); err != nil {
			log.Printf("Transport listener stopped: %v", err)
		}
	}()

	// Set up router
	router := gin.Default()

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	authController := controllers.NewAuthController(db, cfg.JWTSecret)
	roomController := controllers.NewRoomController(db, dir, broadcastRouter)
	publishController := controllers.NewPublishController(broadcastRouter)
	metricsController := controllers.NewMetricsController(registry, broadcastRouter, stats)

	router.GET("/health", metricsController.Health)
	router.GET("/metrics", metricsController.Metrics)

	// Authentication routes
	auth := router.Group("/api")
	{
		auth.POST("/register", authController.Register)
		auth.POST("/login", authController.Login)
	}

	// Room reads are public
	api := router.Group("/api")
	{
		api.GET("/rooms", roomController.GetRooms)
		api.GET("/rooms/:id", roomController.GetRoom)
	}

	// Protected routes
	protected := router.Group("/api")
	protected.Use(middleware.JWTAuth(cfg.JWTSecret))
	{
		protected.POST("/rooms", roomController.CreateRoom)
		protected.DELETE("/rooms/:id", roomController.DeleteRoom)
		protected.POST("/publish", publishController.Publish)
	}

	// WebSocket route
	router.GET("/ws", wsHandler.HandleConnection)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server running on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
