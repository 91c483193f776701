/*
Package server implements the application's network transport layer.
It initializes the HTTP server, configures timeouts, and mounts the
NutriScan routes.
*/
package server

import (
	"fmt"
	"net/http"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/echo/v4"

	"NutriScan/internal/database"
	"NutriScan/internal/utility"
)

// Server defines the configuration and dependencies for the HTTP service.
type Server struct {
	// port specifies the TCP port the server will listen on.
	port int

	// db is the Postgres service. It is nil when records live in memory.
	db database.Service

	startedAt time.Time

	// Echo is the underlying web framework instance.
	*echo.Echo
}

// NewServer returns a configured *http.Server. Handlers must already be initialized with
// user.InitUserPackage.
func NewServer(db database.Service) *http.Server {
	// Fallback to 8080 if not set or invalid.
	port := utility.EnvInt("PORT", 8080)
	if port == 0 {
		port = 8080
	}

	newApp := &Server{
		port:      port,
		db:        db,
		startedAt: time.Now(),
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", newApp.port),
		Handler:      newApp.RegisterRoutes(),
		IdleTimeout:  time.Minute,      // Time to wait for the next request on keep-alive connections.
		ReadTimeout:  10 * time.Second, // Maximum duration for reading the entire request.
		WriteTimeout: 60 * time.Second, // A scan waits on the upload and the model.
	}

	return server
}
