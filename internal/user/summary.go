package user

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"NutriScan/internal/database"
	"NutriScan/internal/nutrition"
	"NutriScan/internal/utility"
)

const dashboardRecentScans = 5

// DashboardResponse is the home screen in a single request.
type DashboardResponse struct {
	UserID        string                     `json:"userId"`
	RecentScans   []database.NutritionRecord `json:"recentScans"`
	Weekly        nutrition.WeeklyCalories   `json:"weekly"`
	Today         nutrition.DailySummary     `json:"today"`
	HealthProfile nutrition.HealthProfile    `json:"healthProfile"`
}

/* =================================================================================
								SUMMARY HANDLERS
=================================================================================*/

// GetWeeklyCaloriesHandler serves the seven day calorie tracker.
func GetWeeklyCaloriesHandler(c echo.Context) error {
	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	target := float64(nutrition.DefaultCalorieTarget)
	if raw := c.QueryParam("target"); raw != "" {
		target, err = strconv.ParseFloat(raw, 64)
		if err != nil || target <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid target"})
		}
	}

	today := clock()
	records, err := lastWeekRecords(c, userID, today, false)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load records"})
	}
	return c.JSON(http.StatusOK, nutrition.WeeklyCalorieTracker(records, today, target))
}

// GetNutritionOverviewHandler serves consumed macros per day and today's progress.
func GetNutritionOverviewHandler(c echo.Context) error {
	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	today := clock()
	records, err := lastWeekRecords(c, userID, today, true)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load records"})
	}
	return c.JSON(http.StatusOK, nutrition.NutritionOverview(records, today))
}

// GetDailySummaryHandler sums one scan date, defaulting to today.
func GetDailySummaryHandler(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	date := c.QueryParam("date")
	if date == "" {
		date = nutrition.ScanDate(clock())
	} else if _, err := time.Parse(nutrition.ScanDateLayout, date); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid date format, use YYYY-MM-DD"})
	}

	records, err := store.ListNutritionRecords(ctx, database.ListRecordsParams{UserID: userID, FromDate: date, ToDate: date})
	if err != nil {
		utility.LoggerFromContext(c).Error().Err(err).Msg("Failed to list records")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load records"})
	}
	return c.JSON(http.StatusOK, nutrition.Daily(records, date))
}

// CalculateCalorieTargetHandler estimates a daily calorie goal from body metrics.
func CalculateCalorieTargetHandler(c echo.Context) error {
	var req nutrition.CalorieTargetInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	res, err := nutrition.CalculateCalorieTarget(req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, res)
}

// GetDashboardHandler loads the home screen's sections concurrently.
func GetDashboardHandler(c echo.Context) error {
	ctx := c.Request().Context()
	logger := utility.LoggerFromContext(c)
	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	today := clock()
	res := DashboardResponse{
		UserID:        userID,
		RecentScans:   []database.NutritionRecord{},
		HealthProfile: nutrition.EmptyProfile(),
	}

	g, grpCtx := errgroup.WithContext(ctx)
	var mu sync.Mutex

	g.Go(func() error {
		recent, err := store.ListNutritionRecords(grpCtx, database.ListRecordsParams{UserID: userID, Limit: dashboardRecentScans})
		if err != nil {
			return err
		}
		mu.Lock()
		res.RecentScans = recent
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		week, err := store.ListNutritionRecords(grpCtx, database.ListRecordsParams{
			UserID:   userID,
			FromDate: nutrition.ScanDate(today.AddDate(0, 0, -6)),
		})
		if err != nil {
			return err
		}
		weekly := nutrition.WeeklyCalorieTracker(week, today, nutrition.DefaultCalorieTarget)
		daily := nutrition.Daily(week, nutrition.ScanDate(today))
		mu.Lock()
		res.Weekly = weekly
		res.Today = daily
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		p, err := profiles.Profile(grpCtx, userID)
		if err != nil {
			// Profile is optional on the dashboard.
			logger.Warn().Err(err).Msg("Dashboard health profile unavailable")
			return nil
		}
		mu.Lock()
		res.HealthProfile = p
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Failed to build dashboard")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load dashboard"})
	}
	return c.JSON(http.StatusOK, res)
}

func lastWeekRecords(c echo.Context, userID string, today time.Time, consumedOnly bool) ([]database.NutritionRecord, error) {
	records, err := store.ListNutritionRecords(c.Request().Context(), database.ListRecordsParams{
		UserID:       userID,
		ConsumedOnly: consumedOnly,
		FromDate:     nutrition.ScanDate(today.AddDate(0, 0, -6)),
	})
	if err != nil {
		utility.LoggerFromContext(c).Error().Err(err).Msg("Failed to list records")
	}
	return records, err
}
