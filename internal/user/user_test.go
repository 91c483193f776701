package user

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NutriScan/internal/database"
	"NutriScan/internal/geminiservice"
	"NutriScan/internal/imagehost"
	"NutriScan/internal/nutrition"
	"NutriScan/internal/questionnaire"
	"NutriScan/internal/scan"
	"NutriScan/internal/utility"
)

type stubUploader struct{}

func (stubUploader) Upload(ctx context.Context, img imagehost.Image) (string, error) {
	return "https://images.example.com/food_scan_1.jpg", nil
}

type stubCompleter struct{ text string }

func (s *stubCompleter) Complete(ctx context.Context, p geminiservice.ScanPrompt) (string, error) {
	return s.text, nil
}

type env struct {
	e         *echo.Echo
	store     *database.MemoryStore
	completer *stubCompleter
}

func setup(t *testing.T) *env {
	t.Helper()
	mem := database.NewMemoryStore()
	b := questionnaire.Default()
	cache := scan.NewProfileCache(mem, b, nil)
	completer := &stubCompleter{text: `{"foodName":"Apple","calories":"300 kcal","protein":"1g","carbs":"25g"}`}
	svc := scan.NewService(mem, stubUploader{}, completer, cache)

	InitUserPackage(Deps{
		Store:    mem,
		Bank:     b,
		Profiles: cache,
		Scanner:  svc,
		Hub:      utility.NewProgressHub(),
		Limiter:  utility.NewKeyedLimiter(60, 3, 16),
	})
	clock = time.Now
	return &env{e: echo.New(), store: mem, completer: completer}
}

func (v *env) call(t *testing.T, h echo.HandlerFunc, method, target string, body any, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := v.e.NewContext(req, rec)
	c.Set("user_id", "user-1")
	if len(params) > 0 {
		var names, values []string
		for i := 0; i+1 < len(params); i += 2 {
			names = append(names, params[i])
			values = append(values, params[i+1])
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	require.NoError(t, h(c))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func pngDataURI(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestQuestionnaireRoundTrip(t *testing.T) {
	v := setup(t)

	rec := v.call(t, GetQuestionnaireHandler, http.MethodGet, "/questionnaire", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body := map[string]any{"dietaryPreferences": map[string]any{
		"1": "Yes",
		"2": []string{"Peanuts"},
		"3": []string{"Vegan"},
		"7": "Yes",
	}}
	rec = v.call(t, SaveQuestionnaireHandler, http.MethodPut, "/questionnaire", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[PreferencesResponse](t, rec)
	assert.Equal(t, int64(1), resp.Revision)
	assert.Equal(t, []string{"Peanuts"}, resp.HealthProfile.Allergies)
	assert.True(t, resp.HealthProfile.Hypertension)

	rec = v.call(t, GetHealthProfileHandler, http.MethodGet, "/profile/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Vegan"}, decode[nutrition.HealthProfile](t, rec).DietaryRestrictions)
}

func TestSaveQuestionnaireRejectsInvalidAnswers(t *testing.T) {
	v := setup(t)

	body := map[string]any{"dietaryPreferences": map[string]any{
		"2":  []string{"Kryptonite"},
		"99": "Yes",
	}}
	rec := v.call(t, SaveQuestionnaireHandler, http.MethodPut, "/questionnaire", body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	resp := decode[struct {
		Problems []questionnaire.FieldProblem `json:"problems"`
	}](t, rec)
	require.Len(t, resp.Problems, 2)
	assert.Equal(t, 2, resp.Problems[0].QuestionID)
	assert.Equal(t, 99, resp.Problems[1].QuestionID)
}

func TestUpdatePreferencesMerges(t *testing.T) {
	v := setup(t)

	rec := v.call(t, SaveQuestionnaireHandler, http.MethodPut, "/questionnaire",
		map[string]any{"dietaryPreferences": map[string]any{"7": "Yes", "3": []string{"Vegan"}}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = v.call(t, UpdatePreferencesHandler, http.MethodPatch, "/profile/preferences",
		map[string]any{"allergies": []string{"Soy", "Sesame"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[PreferencesResponse](t, rec)
	assert.Equal(t, []string{"Soy", "Sesame"}, resp.HealthProfile.Allergies)
	assert.Equal(t, []string{"Vegan"}, resp.HealthProfile.DietaryRestrictions, "untouched field kept")
	assert.True(t, resp.HealthProfile.Hypertension, "other answers kept")
	assert.Equal(t, int64(2), resp.Revision)

	rec = v.call(t, UpdatePreferencesHandler, http.MethodPatch, "/profile/preferences",
		map[string]any{"dietaryRestrictions": []string{}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[PreferencesResponse](t, rec).HealthProfile.DietaryRestrictions)

	rec = v.call(t, UpdatePreferencesHandler, http.MethodPatch, "/profile/preferences", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdatePreferencesAcceptsOptionSpellingVariants(t *testing.T) {
	v := setup(t)

	rec := v.call(t, UpdatePreferencesHandler, http.MethodPatch, "/profile/preferences",
		map[string]any{"dietaryRestrictions": []string{"Gluten-free", "vegan"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[PreferencesResponse](t, rec)
	assert.Equal(t, []string{"Gluten-Free", "Vegan"}, resp.HealthProfile.DietaryRestrictions)
}

func TestScanFoodHandler(t *testing.T) {
	v := setup(t)

	rec := v.call(t, ScanFoodHandler, http.MethodPost, "/scans", ScanRequest{Image: pngDataURI(t)})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[ScanResponse](t, rec)
	assert.Equal(t, 300.0, resp.Record.CaloriesNum)
	assert.False(t, resp.Record.IsConsumed)
	assert.False(t, resp.RequiresConfirmation)
	assert.False(t, resp.IsPlaceholder)
	assert.Nil(t, resp.Alert)

	rec = v.call(t, ScanFoodHandler, http.MethodPost, "/scans", ScanRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = v.call(t, ScanFoodHandler, http.MethodPost, "/scans", ScanRequest{Image: "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("junk"))})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanFoodHandlerMultipart(t *testing.T) {
	v := setup(t)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	var body bytes.Buffer
	w := newMultipart(t, &body, "image", "meal.png", buf.Bytes())

	req := httptest.NewRequest(http.MethodPost, "/scans", &body)
	req.Header.Set(echo.HeaderContentType, w)
	rec := httptest.NewRecorder()
	c := v.e.NewContext(req, rec)
	c.Set("user_id", "user-1")
	require.NoError(t, ScanFoodHandler(c))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestScanFoodHandlerRateLimited(t *testing.T) {
	v := setup(t)
	uri := pngDataURI(t)

	codes := []int{}
	for i := 0; i < 4; i++ {
		codes = append(codes, v.call(t, ScanFoodHandler, http.MethodPost, "/scans", ScanRequest{Image: uri}).Code)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
}

func TestConsumeRequiresAcknowledgementForConflicts(t *testing.T) {
	v := setup(t)
	rec := v.call(t, SaveQuestionnaireHandler, http.MethodPut, "/questionnaire",
		map[string]any{"dietaryPreferences": map[string]any{"1": "Yes", "2": []string{"Peanuts"}}})
	require.Equal(t, http.StatusOK, rec.Code)

	v.completer.text = `{"foodName":"Satay","calories":"450","allergens":["Peanuts"]}`
	rec = v.call(t, ScanFoodHandler, http.MethodPost, "/scans", ScanRequest{Image: pngDataURI(t)})
	require.Equal(t, http.StatusCreated, rec.Code)
	scanned := decode[ScanResponse](t, rec)
	require.True(t, scanned.RequiresConfirmation)
	require.NotNil(t, scanned.Alert)
	id := scanned.Record.ID

	rec = v.call(t, ConsumeRecordHandler, http.MethodPost, "/records/"+id+"/consume", nil, "id", id)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), nutrition.SafetyAlertTitle)

	rec = v.call(t, ConsumeRecordHandler, http.MethodPost, "/records/"+id+"/consume", ConsumeRequest{AcknowledgeConflicts: true}, "id", id)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[database.NutritionRecord](t, rec)
	require.True(t, first.IsConsumed)
	require.NotNil(t, first.ConsumedAt)

	rec = v.call(t, ConsumeRecordHandler, http.MethodPost, "/records/"+id+"/consume", nil, "id", id)
	require.Equal(t, http.StatusOK, rec.Code, "already consumed needs no acknowledgement")
	second := decode[database.NutritionRecord](t, rec)
	assert.True(t, first.ConsumedAt.Equal(*second.ConsumedAt))
}

func TestRecordHandlers(t *testing.T) {
	v := setup(t)

	var ids []string
	for _, text := range []string{
		`{"foodName":"Steak","calories":"600","protein":"45g","carbs":"0g"}`,
		`{"foodName":"Salad","calories":"150","protein":"4g","carbs":"10g"}`,
	} {
		v.completer.text = text
		rec := v.call(t, ScanFoodHandler, http.MethodPost, "/scans", ScanRequest{Image: pngDataURI(t)})
		require.Equal(t, http.StatusCreated, rec.Code)
		ids = append(ids, decode[ScanResponse](t, rec).Record.ID)
	}

	type listResp struct {
		Records []database.NutritionRecord `json:"records"`
		Count   int                        `json:"count"`
	}

	rec := v.call(t, ListRecordsHandler, http.MethodGet, "/records?filter=high_protein", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[listResp](t, rec)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "Steak", list.Records[0].FoodName)

	rec = v.call(t, ListRecordsHandler, http.MethodGet, "/records?q=sal&range=today", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[listResp](t, rec).Count)

	rec = v.call(t, ListRecordsHandler, http.MethodGet, "/records?limit=1", nil)
	assert.Equal(t, 1, decode[listResp](t, rec).Count)

	for _, bad := range []string{"/records?filter=spicy", "/records?range=year", "/records?limit=-2"} {
		assert.Equal(t, http.StatusBadRequest, v.call(t, ListRecordsHandler, http.MethodGet, bad, nil).Code, bad)
	}

	rec = v.call(t, GetRecordHandler, http.MethodGet, "/records/"+ids[0], nil, "id", ids[0])
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = v.call(t, GetRecordHandler, http.MethodGet, "/records/nope", nil, "id", "nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = v.call(t, DeleteRecordHandler, http.MethodDelete, "/records/"+ids[0], nil, "id", ids[0])
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = v.call(t, DeleteRecordHandler, http.MethodDelete, "/records/"+ids[0], nil, "id", ids[0])
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = v.call(t, DeleteRecordsHandler, http.MethodDelete, "/records", DeleteRecordsRequest{IDs: []string{ids[1], "missing"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[map[string]int64](t, rec)["deleted"])
}

func TestSummaryHandlers(t *testing.T) {
	v := setup(t)

	rec := v.call(t, ScanFoodHandler, http.MethodPost, "/scans", ScanRequest{Image: pngDataURI(t)})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[ScanResponse](t, rec).Record.ID

	rec = v.call(t, GetWeeklyCaloriesHandler, http.MethodGet, "/summary/weekly", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	weekly := decode[nutrition.WeeklyCalories](t, rec)
	assert.Len(t, weekly.Days, 7)
	assert.Equal(t, 300.0, weekly.WeeklyTotal)
	assert.Equal(t, 1, weekly.TotalScans)
	assert.Equal(t, float64(nutrition.DefaultCalorieTarget), weekly.Target)

	assert.Equal(t, http.StatusBadRequest, v.call(t, GetWeeklyCaloriesHandler, http.MethodGet, "/summary/weekly?target=abc", nil).Code)

	rec = v.call(t, GetNutritionOverviewHandler, http.MethodGet, "/summary/overview", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[nutrition.Overview](t, rec).Today.Calories.Current, "not consumed yet")

	rec = v.call(t, ConsumeRecordHandler, http.MethodPost, "/records/"+id+"/consume", nil, "id", id)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = v.call(t, GetNutritionOverviewHandler, http.MethodGet, "/summary/overview", nil)
	assert.Equal(t, 300.0, decode[nutrition.Overview](t, rec).Today.Calories.Current)

	rec = v.call(t, GetDailySummaryHandler, http.MethodGet, "/summary/daily", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	daily := decode[nutrition.DailySummary](t, rec)
	assert.Equal(t, 1, daily.Scans)
	assert.Equal(t, 300.0, daily.Consumed.Calories)

	assert.Equal(t, http.StatusBadRequest, v.call(t, GetDailySummaryHandler, http.MethodGet, "/summary/daily?date=07-03-2026", nil).Code)

	rec = v.call(t, GetDashboardHandler, http.MethodGet, "/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decode[DashboardResponse](t, rec)
	assert.Len(t, dash.RecentScans, 1)
	assert.Equal(t, 300.0, dash.Weekly.WeeklyTotal)
	assert.Equal(t, 1, dash.Today.Scans)
	assert.False(t, dash.HealthProfile.Completed)
}

func TestCalculateCalorieTargetHandler(t *testing.T) {
	v := setup(t)

	rec := v.call(t, CalculateCalorieTargetHandler, http.MethodPost, "/calorie-target", nutrition.CalorieTargetInput{
		WeightKg: 70, HeightCm: 175, Age: 30, Gender: "male", ActivityLevel: "moderate", Goal: "lose",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[nutrition.CalorieTarget](t, rec)
	assert.Equal(t, 1649.0, res.BMR)
	assert.Equal(t, 2056.0, res.RecommendedCalories)

	rec = v.call(t, CalculateCalorieTargetHandler, http.MethodPost, "/calorie-target", nutrition.CalorieTargetInput{ActivityLevel: "moderate"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRetryPendingScanHandlerNotFound(t *testing.T) {
	v := setup(t)
	rec := v.call(t, RetryPendingScanHandler, http.MethodPost, "/scans/pending/x/save", nil, "id", "x")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "Pending scan"))
}
