package app

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"pipecrm/internal/config"
	"pipecrm/internal/handlers"
	"pipecrm/internal/middleware"
	"pipecrm/internal/pdf"
	"pipecrm/internal/realtime"
	"pipecrm/internal/remote"
	"pipecrm/internal/routes"
	"pipecrm/internal/services"
	"pipecrm/internal/storage"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "pipecrm/docs"
)

func Run() {
	cfg := config.LoadConfig()

	// === Durable config storage ===
	var blobs storage.Store
	switch cfg.Storage.Driver {
	case "postgres":
		db, err := sql.Open("postgres", cfg.Storage.DSN)
		if err != nil {
			log.Fatal("open postgres: ", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Printf("close postgres: %v", err)
			}
		}()
		pg := storage.NewPostgresStore(db)
		if err := pg.EnsureSchema(); err != nil {
			log.Fatal("prepare storage schema: ", err)
		}
		blobs = pg
	case "file":
		fs, err := storage.NewFileStore(cfg.Storage.RootDir)
		if err != nil {
			log.Fatal("open file storage: ", err)
		}
		blobs = fs
	default:
		log.Fatalf("unknown storage driver %q", cfg.Storage.Driver)
	}

	// === Remote system of record ===
	remoteClient := remote.NewClient(
		cfg.Remote.BaseURL,
		cfg.Remote.APIKey,
		time.Duration(cfg.Remote.TimeoutSeconds)*time.Second,
	)

	// === Engine ===
	hub := realtime.NewHub()
	engineService := services.NewEngineService(remoteClient, blobs, hub)
	defer engineService.Close()

	// === Handlers ===
	dealHandler := handlers.NewDealHandler(engineService)
	stageHandler := handlers.NewStageHandler(engineService)
	fieldHandler := handlers.NewFieldHandler(engineService)
	reportHandler := handlers.NewReportHandler(engineService, pdf.NewReportGenerator())
	wsHandler := handlers.NewWSHandler(hub)

	// === Gin ===
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.Use(middleware.AuthMiddleware([]byte(cfg.Auth.JWTSecret)))

	routes.SetupRoutes(
		router,
		dealHandler,
		stageHandler,
		fieldHandler,
		reportHandler,
		wsHandler,
	)

	// === Run ===
	listenAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("listening on %s", listenAddr)
	if err := router.Run(listenAddr); err != nil {
		log.Fatal("server: ", err)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
