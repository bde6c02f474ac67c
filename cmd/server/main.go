package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/nexusportal/backend/internal/application/services"
	"github.com/nexusportal/backend/internal/bootstrap"
	"github.com/nexusportal/backend/internal/domain/ports"
	"github.com/nexusportal/backend/internal/infrastructure/database"
	"github.com/nexusportal/backend/internal/infrastructure/definition"
	"github.com/nexusportal/backend/internal/infrastructure/persistence"
	redisstore "github.com/nexusportal/backend/internal/infrastructure/redis"
	"github.com/nexusportal/backend/internal/interfaces/middleware"
	"github.com/nexusportal/backend/internal/interfaces/rest"
	"github.com/nexusportal/backend/pkg/expression"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "3002"
	}

	db, err := database.GetInstance()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("✅ Database connection established")

	ctx := context.Background()
	if err := bootstrap.EnsureSystemTables(ctx, db.DB()); err != nil {
		log.Fatalf("Failed to create system tables: %v", err)
	}

	// Step graph definitions come from YAML files when a directory is
	// configured, otherwise from the system tables seeded at startup.
	var graph ports.StepGraphSource
	if dir := os.Getenv("WEBFORM_DEFINITIONS_DIR"); dir != "" {
		source, err := definition.LoadDir(dir)
		if err != nil {
			log.Fatalf("Failed to load web form definitions: %v", err)
		}
		graph = source
	} else {
		if err := bootstrap.InitializeWebForms(ctx, db.DB()); err != nil {
			log.Fatalf("Failed to initialize web forms: %v", err)
		}
		graph = persistence.NewWebFormRepository(db.DB())
	}

	sessions := buildSessionStore(db)
	records := persistence.NewRecordRepository(db.DB())

	controller := services.NewSessionController(graph, sessions, records, expression.NewConditions())
	projector := services.NewProgressProjector(graph)
	log.Println("🔧 Web form services initialized")

	router := gin.Default()
	router.Use(middleware.Cors())
	router.Use(middleware.IdentifyVisitor())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"server": "golang",
		})
	})

	api := router.Group("/api")
	rest.NewWebFormHandler(controller, projector, sessions).RegisterRoutes(api)

	log.Println("\n═══════════════════════════════════════════════════════════════════════════")
	log.Println("🚀 NexusPortal Web Form Backend Started Successfully")
	log.Println("═══════════════════════════════════════════════════════════════════════════")
	log.Printf("\n📍 Server:         http://localhost:%s", port)
	log.Printf("📝 Web Forms API:  http://localhost:%s/api/webforms", port)
	log.Printf("💚 Health check:   http://localhost:%s/health\n", port)

	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	log.Println("Server exiting")
}

// buildSessionStore picks where sessions live: Redis when configured,
// the database otherwise.
func buildSessionStore(db *database.TiDBConnection) ports.SessionPersistence {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return persistence.NewWebFormSessionRepository(db.DB())
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			redisDB = parsed
		}
	}

	ttl := 72 * time.Hour
	if v := os.Getenv("SESSION_TTL_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil && hours > 0 {
			ttl = time.Duration(hours) * time.Hour
		}
	}

	log.Printf("✅ Using Redis session store at %s (TTL %s)", addr, ttl)
	return redisstore.New(addr, os.Getenv("REDIS_PASSWORD"), redisDB, redisstore.WithTTL(ttl))
}
