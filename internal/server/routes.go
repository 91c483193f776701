package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"NutriScan/internal/auth"
	"NutriScan/internal/user"
	"NutriScan/internal/utility"
)

const maxBodySize = "12M"

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	e.Use(middleware.BodyLimit(maxBodySize))
	e.Use(LoggerMiddleware)

	e.GET("/health", s.healthHandler)
	e.GET("/questionnaire/bank", user.GetQuestionBankHandler)

	protected := e.Group("", auth.JwtAuthMiddleware)

	// Questionnaire & profile
	protected.GET("/questionnaire", user.GetQuestionnaireHandler)
	protected.PUT("/questionnaire", user.SaveQuestionnaireHandler)
	protected.GET("/profile/health", user.GetHealthProfileHandler)
	protected.PATCH("/profile/preferences", user.UpdatePreferencesHandler)

	// Scans
	protected.POST("/scans", user.ScanFoodHandler)
	protected.POST("/scans/pending/:id/save", user.RetryPendingScanHandler)
	protected.GET("/scans/ws", user.ScanProgressWebSocketHandler)

	// Records
	protected.GET("/records", user.ListRecordsHandler)
	protected.DELETE("/records", user.DeleteRecordsHandler)
	protected.GET("/records/:id", user.GetRecordHandler)
	protected.POST("/records/:id/consume", user.ConsumeRecordHandler)
	protected.DELETE("/records/:id", user.DeleteRecordHandler)

	// Summaries
	protected.GET("/summary/weekly", user.GetWeeklyCaloriesHandler)
	protected.GET("/summary/overview", user.GetNutritionOverviewHandler)
	protected.GET("/summary/daily", user.GetDailySummaryHandler)
	protected.GET("/dashboard", user.GetDashboardHandler)
	protected.POST("/calorie-target", user.CalculateCalorieTargetHandler)

	return e
}

// LoggerMiddleware attaches a request scoped logger carrying the request id. Downstream code
// reads it from the echo context or from the request context.
func LoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Response().Header().Set("X-Request-ID", requestID)

		logger := log.With().
			Str("request_id", requestID).
			Str("ip", utility.GetRealIP(c)).
			Logger()

		c.Set("logger", &logger)
		c.SetRequest(c.Request().WithContext(logger.WithContext(c.Request().Context())))

		return next(c)
	}
}
