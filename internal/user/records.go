package user

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"NutriScan/internal/database"
	"NutriScan/internal/nutrition"
	"NutriScan/internal/utility"
)

type ConsumeRequest struct {
	AcknowledgeConflicts bool `json:"acknowledgeConflicts"`
}

type DeleteRecordsRequest struct {
	IDs []string `json:"ids"`
}

/* =================================================================================
								RECORD HANDLERS
=================================================================================*/

// ListRecordsHandler serves the scan history with the search, filter and range options
// of the history screen.
func ListRecordsHandler(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	q := nutrition.HistoryQuery{
		Search: c.QueryParam("q"),
		Filter: nutrition.HistoryFilter(c.QueryParam("filter")),
		Range:  nutrition.HistoryRange(c.QueryParam("range")),
	}
	if !q.Filter.Valid() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid filter"})
	}
	if !q.Range.Valid() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid range"})
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid limit"})
		}
	}

	params := database.ListRecordsParams{UserID: userID, ConsumedOnly: q.Filter == nutrition.FilterConsumed}
	if q.Range == nutrition.RangeToday {
		params.FromDate = nutrition.ScanDate(clock())
	}
	records, err := store.ListNutritionRecords(ctx, params)
	if err != nil {
		utility.LoggerFromContext(c).Error().Err(err).Msg("Failed to list records")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load history"})
	}

	records = nutrition.FilterHistory(records, q, clock())
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// GetRecordHandler returns one of the user's records.
func GetRecordHandler(c echo.Context) error {
	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	rec, err := store.GetNutritionRecord(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return recordErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

// ConsumeRecordHandler marks a record as eaten. Records flagged by the safety check need the
// user's explicit acknowledgement first.
func ConsumeRecordHandler(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	var req ConsumeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	rec, err := store.GetNutritionRecord(ctx, userID, c.Param("id"))
	if err != nil {
		return recordErrorResponse(c, err)
	}

	if rec.HasConflicts() && !rec.IsConsumed && !req.AcknowledgeConflicts {
		report := nutrition.SafetyReport{AllergenConflicts: rec.AllergenConflicts, DietaryConflicts: rec.DietaryConflicts}
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error": "This food conflicts with your health profile",
			"alert": report.Alert(),
		})
	}

	rec, err = store.MarkRecordConsumed(ctx, userID, rec.ID)
	if err != nil {
		return recordErrorResponse(c, err)
	}

	utility.LoggerFromContext(c).Info().Str("record_id", rec.ID).Bool("acknowledged", req.AcknowledgeConflicts).Msg("Record consumed")
	return c.JSON(http.StatusOK, rec)
}

// DeleteRecordHandler removes one record.
func DeleteRecordHandler(c echo.Context) error {
	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	n, err := store.DeleteNutritionRecords(c.Request().Context(), userID, []string{c.Param("id")})
	if err != nil {
		return recordErrorResponse(c, err)
	}
	if n == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Record not found"})
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteRecordsHandler removes several records at once. Ids the user does not own are skipped.
func DeleteRecordsHandler(c echo.Context) error {
	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	var req DeleteRecordsRequest
	if err := c.Bind(&req); err != nil || len(req.IDs) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "ids is required"})
	}

	n, err := store.DeleteNutritionRecords(c.Request().Context(), userID, req.IDs)
	if err != nil {
		return recordErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"deleted": n})
}

func recordErrorResponse(c echo.Context, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Record not found"})
	}
	utility.LoggerFromContext(c).Error().Err(err).Msg("Record operation failed")
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
}
