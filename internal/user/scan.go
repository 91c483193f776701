package user

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"NutriScan/internal/imagehost"
	"NutriScan/internal/scan"
	"NutriScan/internal/utility"
)

const (
	maxUploadBytes = 10 << 20

	// nginx convention for a client that went away before the response.
	statusClientClosedRequest = 499
)

// ScanRequest is the JSON form of a scan: a base64 data URI.
type ScanRequest struct {
	Image string `json:"image"`
}

type ScanResponse struct {
	scan.Result
	RequiresConfirmation bool `json:"requiresConfirmation"`
	IsPlaceholder        bool `json:"isPlaceholder"`
}

/* =================================================================================
								SCAN HANDLERS
=================================================================================*/

// ScanFoodHandler runs the full scan pipeline on one uploaded food image.
func ScanFoodHandler(c echo.Context) error {
	ctx := c.Request().Context()
	logger := utility.LoggerFromContext(c)
	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	if !scanLimiter.Allow(userID) {
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "Too many scans, please try again later"})
	}

	img, err := readScanImage(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	res, err := scanner.Scan(ctx, userID, img)
	if err != nil {
		return scanErrorResponse(c, err)
	}

	logger.Info().Str("record_id", res.Record.ID).Str("outcome", string(res.Outcome)).Msg("Food scan saved")
	return c.JSON(http.StatusCreated, scanResponse(res))
}

// RetryPendingScanHandler saves a scan whose first save attempt failed.
func RetryPendingScanHandler(c echo.Context) error {
	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	res, err := scanner.RetryPending(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		if errors.Is(err, scan.ErrPendingNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Pending scan not found or expired"})
		}
		return scanErrorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, scanResponse(res))
}

// ScanProgressWebSocketHandler streams scan progress events to the user until the socket closes.
func ScanProgressWebSocketHandler(c echo.Context) error {
	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	conn, err := utility.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		utility.LoggerFromContext(c).Error().Err(err).Msg("WebSocket upgrade failed")
		return nil
	}

	hub.Register(userID, conn)
	defer hub.Unregister(userID, conn)

	// Clients only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

/* =================================================================================
								HELPERS
=================================================================================*/

func readScanImage(c echo.Context) (imagehost.Image, error) {
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := c.FormFile("image")
		if err != nil {
			return imagehost.Image{}, errors.New("image file is required")
		}
		if fh.Size > maxUploadBytes {
			return imagehost.Image{}, fmt.Errorf("image exceeds %d bytes", maxUploadBytes)
		}
		f, err := fh.Open()
		if err != nil {
			return imagehost.Image{}, errors.New("failed to read image")
		}
		defer f.Close()

		data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
		if err != nil {
			return imagehost.Image{}, errors.New("failed to read image")
		}
		return imagehost.Image{Data: data, ContentType: fh.Header.Get("Content-Type")}, nil
	}

	var req ScanRequest
	if err := c.Bind(&req); err != nil || req.Image == "" {
		return imagehost.Image{}, errors.New("image is required")
	}
	return imagehost.DecodeDataURI(req.Image)
}

func scanErrorResponse(c echo.Context, err error) error {
	logger := utility.LoggerFromContext(c)

	var pending *scan.PendingError
	switch {
	case errors.Is(err, context.Canceled):
		logger.Info().Msg("Scan cancelled by client")
		return c.NoContent(statusClientClosedRequest)
	case errors.Is(err, imagehost.ErrInvalidImage):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "The uploaded file is not a supported image"})
	case errors.Is(err, imagehost.ErrUpload):
		return c.JSON(http.StatusBadGateway, map[string]interface{}{
			"error":     "Failed to upload image. Please try again.",
			"retryable": true,
		})
	case errors.As(err, &pending):
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"error":         "Scan analyzed but could not be saved. Please retry.",
			"pendingScanId": pending.PendingID,
			"retryable":     true,
		})
	default:
		logger.Error().Err(err).Msg("Scan failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Scan failed"})
	}
}

func scanResponse(res scan.Result) ScanResponse {
	return ScanResponse{
		Result:               res,
		RequiresConfirmation: res.Alert != nil,
		IsPlaceholder:        res.Record.IsPlaceholder,
	}
}
