package main

import (
	"context"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"clue-duel-system/catalog"
	"clue-duel-system/handlers"
	"clue-duel-system/middleware"
	"clue-duel-system/services"
	"clue-duel-system/store"
	"clue-duel-system/workers"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024, // duel payloads are tiny
	})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	duelStore := buildStore()

	subjects, err := catalog.Load(rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		log.Fatal("failed to load subject catalog:", err)
	}
	log.Printf("📚 Subject catalog loaded: %d subjects", subjects.Len())

	judgeURL := os.Getenv("JUDGE_SERVICE_URL")
	if judgeURL == "" {
		log.Fatal("JUDGE_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("DUEL_SERVICE_TOKEN")
	judgeClient := services.NewJudgeServiceClient(judgeURL, serviceToken)

	authURL := os.Getenv("AUTH_SERVICE_URL")
	if authURL == "" {
		log.Fatal("AUTH_SERVICE_URL environment variable not set")
	}
	authClient := services.NewAuthServiceClient(authURL, serviceToken)

	clock := clockwork.NewRealClock()
	roundService := services.NewRoundService(duelStore, subjects, clock)
	scoreService := services.NewScoreService(duelStore, clock)
	guessService := services.NewGuessService(duelStore, subjects, judgeClient, clock)
	matchService := services.NewMatchService(duelStore, roundService, scoreService, clock)
	hub := services.NewFlowHub()
	reactionService := services.NewReactionService(duelStore, hub)
	profileService := services.NewProfileService(duelStore)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := workers.NewInactivityWorker(duelStore, matchService, clock)
	sched, err := sweeper.Start(ctx)
	if err != nil {
		log.Fatal("failed to start inactivity sweep:", err)
	}
	defer func() { _ = sched.Shutdown() }()

	duelHandler := &handlers.DuelHandler{
		Store:     duelStore,
		Match:     matchService,
		Rounds:    roundService,
		Scores:    scoreService,
		Guesses:   guessService,
		Reactions: reactionService,
		Catalog:   subjects,
		Unlocks:   services.NopUnlockChecker{},
		Hub:       hub,
		Clock:     clock,
	}
	playerHandler := &handlers.PlayerHandler{Profiles: profileService}

	handlers.SetupDuelRoutes(app, duelHandler, authClient)
	handlers.SetupPlayerRoutes(app, playerHandler)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	_ = app.Shutdown()
}

// buildStore picks the shared-state backend: Postgres when DATABASE_URL is
// set, the in-memory store otherwise (local play and tests).
func buildStore() store.Store {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Println("⚠️  DATABASE_URL not set — using in-memory store (single instance only)")
		return store.NewMemoryStore()
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	pg := store.NewPostgresStore(db)
	if err := pg.AutoMigrate(); err != nil {
		log.Fatal("failed to migrate database:", err)
	}
	return pg
}
