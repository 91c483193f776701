package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"NutriScan/internal/auth"
	"NutriScan/internal/database"
	"NutriScan/internal/geminiservice"
	"NutriScan/internal/imagehost"
	"NutriScan/internal/questionnaire"
	"NutriScan/internal/scan"
	"NutriScan/internal/server"
	"NutriScan/internal/user"
	"NutriScan/internal/utility"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Info().Msg("shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func openStore(ctx context.Context) (database.Store, database.Service) {
	switch driver := utility.EnvString("STORE_DRIVER", "postgres"); driver {
	case "memory":
		log.Warn().Msg("Using in-memory store, records are lost on restart")
		return database.NewMemoryStore(), nil
	case "postgres":
		dbService, err := database.NewService()
		if err != nil {
			log.Fatal().Err(err).Msg("Could not connect to database")
		}
		if err := dbService.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("Could not apply database schema")
		}
		return dbService.Queries(), dbService
	default:
		log.Fatal().Str("driver", driver).Msg("Unknown STORE_DRIVER")
		return nil, nil
	}
}

func profileBackend(ctx context.Context) scan.ProfileBackend {
	if utility.EnvString("PROFILE_CACHE", "lru") != "redis" {
		return scan.NewLRUProfileBackend(utility.EnvInt("PROFILE_CACHE_SIZE", 1024))
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     utility.EnvString("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("Could not connect to Redis")
	}
	return scan.NewRedisProfileBackend(rdb)
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	ctx := context.Background()

	store, dbService := openStore(ctx)
	if dbService != nil {
		defer dbService.Close() // Ensure the database connection is closed on exit.
	}

	if err := auth.InitAuth(os.Getenv("AUTH_JWT_SECRET")); err != nil {
		log.Fatal().Err(err).Msg("Could not initialize authentication")
	}

	uploader, err := imagehost.NewFromEnv(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not configure image host")
	}

	bank := questionnaire.Default()
	hub := utility.NewProgressHub()
	profiles := scan.NewProfileCache(store, bank, profileBackend(ctx))
	scanner := scan.NewService(store, uploader, geminiservice.NewClientFromEnv(), profiles,
		scan.WithNotifier(hub),
		scan.WithPendingCapacity(utility.EnvInt("PENDING_SCAN_CAPACITY", 256), 30*time.Minute),
	)

	user.InitUserPackage(user.Deps{
		Store:    store,
		Bank:     bank,
		Profiles: profiles,
		Scanner:  scanner,
		Hub:      hub,
		Limiter:  utility.NewKeyedLimiter(utility.EnvInt("SCAN_RATE_PER_MINUTE", 10), 3, 4096),
	})

	server := server.NewServer(dbService)

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	log.Info().Str("addr", server.Addr).Msg("NutriScan API listening")
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Info().Msg("Graceful shutdown complete.")
}
