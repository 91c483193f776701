/*
Package user implements the authenticated HTTP surface of NutriScan: the dietary
questionnaire, the derived health profile, food scans and the nutrition readers
built on top of the stored scan records.
*/
package user

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"NutriScan/internal/database"
	"NutriScan/internal/nutrition"
	"NutriScan/internal/questionnaire"
	"NutriScan/internal/scan"
	"NutriScan/internal/utility"
)

var (
	store       database.Store
	bank        *questionnaire.Bank
	profiles    *scan.ProfileCache
	scanner     *scan.Service
	hub         *utility.ProgressHub
	scanLimiter *utility.KeyedLimiter
	clock       = time.Now
)

// Deps are the collaborators shared by every handler in the package.
type Deps struct {
	Store    database.Store
	Bank     *questionnaire.Bank
	Profiles *scan.ProfileCache
	Scanner  *scan.Service
	Hub      *utility.ProgressHub
	Limiter  *utility.KeyedLimiter
}

// InitUserPackage wires the handlers to their collaborators. It must run before routes are served.
func InitUserPackage(d Deps) {
	store = d.Store
	bank = d.Bank
	profiles = d.Profiles
	scanner = d.Scanner
	hub = d.Hub
	scanLimiter = d.Limiter
	if scanLimiter == nil {
		scanLimiter = utility.NewKeyedLimiter(0, 1, 1)
	}
	log.Info().Int("bank_version", bank.Version).Msg("User package initialized.")
}

/* =================================================================================
							DTOs (Data Transfer Objects)
=================================================================================*/

// QuestionnaireRequest replaces the user's whole answer set.
type QuestionnaireRequest struct {
	DietaryPreferences questionnaire.Answers `json:"dietaryPreferences"`
}

// UpdatePreferencesRequest edits allergies and restrictions only. A nil field is left untouched.
type UpdatePreferencesRequest struct {
	Allergies           *[]string `json:"allergies"`
	DietaryRestrictions *[]string `json:"dietaryRestrictions"`
}

type PreferencesResponse struct {
	database.UserPreferences
	HealthProfile nutrition.HealthProfile `json:"healthProfile"`
}

/* =================================================================================
							QUESTIONNAIRE HANDLERS
=================================================================================*/

// GetQuestionBankHandler serves the question bank the client renders the questionnaire from.
func GetQuestionBankHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, bank)
}

// GetQuestionnaireHandler returns the stored answers of the authenticated user.
func GetQuestionnaireHandler(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	prefs, err := store.GetUserPreferences(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Questionnaire not completed"})
	}
	if err != nil {
		utility.LoggerFromContext(c).Error().Err(err).Msg("Failed to load preferences")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load questionnaire"})
	}
	return c.JSON(http.StatusOK, preferencesResponse(prefs))
}

// SaveQuestionnaireHandler validates and stores a complete answer set.
func SaveQuestionnaireHandler(c echo.Context) error {
	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	var req QuestionnaireRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if len(req.DietaryPreferences) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "dietaryPreferences is required"})
	}
	return storeAnswers(c, userID, req.DietaryPreferences)
}

/* =================================================================================
								PROFILE HANDLERS
=================================================================================*/

// GetHealthProfileHandler returns the profile derived from the stored answers.
func GetHealthProfileHandler(c echo.Context) error {
	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	p, err := profiles.Profile(c.Request().Context(), userID)
	if err != nil {
		utility.LoggerFromContext(c).Error().Err(err).Msg("Failed to build health profile")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load health profile"})
	}
	return c.JSON(http.StatusOK, p)
}

// UpdatePreferencesHandler merges allergy and restriction edits into the stored answers.
func UpdatePreferencesHandler(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	var req UpdatePreferencesRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if req.Allergies == nil && req.DietaryRestrictions == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Nothing to update"})
	}

	answers := questionnaire.Answers{}
	prefs, err := store.GetUserPreferences(ctx, userID)
	switch {
	case err == nil:
		answers = prefs.DietaryPreferences
	case !errors.Is(err, database.ErrNotFound):
		utility.LoggerFromContext(c).Error().Err(err).Msg("Failed to load preferences")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update preferences"})
	}

	answers, err = mergePreferences(answers, req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return storeAnswers(c, userID, answers)
}

/* =================================================================================
								HELPERS
=================================================================================*/

func mergePreferences(answers questionnaire.Answers, req UpdatePreferencesRequest) (questionnaire.Answers, error) {
	var err error
	if req.Allergies != nil {
		list := compact(*req.Allergies)
		gate := "No"
		if len(list) > 0 {
			gate = "Yes"
		}
		if answers, err = bank.Set(answers, questionnaire.KeyHasAllergies, questionnaire.Answer{Value: gate}); err != nil {
			return nil, err
		}
		if answers, err = bank.Set(answers, questionnaire.KeyAllergyList, questionnaire.Answer{Values: list, IsList: true}); err != nil {
			return nil, err
		}
	}
	if req.DietaryRestrictions != nil {
		list := compact(*req.DietaryRestrictions)
		if len(list) == 0 {
			list = []string{questionnaire.NoneOption}
		}
		if answers, err = bank.Set(answers, questionnaire.KeyDietaryRestrictions, questionnaire.Answer{Values: list, IsList: true}); err != nil {
			return nil, err
		}
	}
	return answers, nil
}

func storeAnswers(c echo.Context, userID string, answers questionnaire.Answers) error {
	ctx := c.Request().Context()
	logger := utility.LoggerFromContext(c)

	answers = bank.Canonical(answers)
	if err := bank.Validate(answers); err != nil {
		var verr *questionnaire.ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
				"error":    "Invalid questionnaire answers",
				"problems": verr.Problems,
			})
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	prefs, err := store.UpsertUserPreferences(ctx, userID, answers)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to save preferences")
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Failed to save preferences"})
	}
	profiles.Invalidate(ctx, userID)

	logger.Info().Int64("revision", prefs.Revision).Msg("Questionnaire saved")
	return c.JSON(http.StatusOK, preferencesResponse(prefs))
}

func preferencesResponse(prefs database.UserPreferences) PreferencesResponse {
	return PreferencesResponse{
		UserPreferences: prefs,
		HealthProfile:   nutrition.ExtractHealthProfile(bank.Named(prefs.DietaryPreferences)),
	}
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
