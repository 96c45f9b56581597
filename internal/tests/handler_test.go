package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet/internal/app"
	"fleet/internal/domain"
	"fleet/internal/handler"
	"fleet/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiFixture struct {
	router *gin.Engine
	trips  *MockTripRepository
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	return newAPIFixtureWithRedis(t, nil)
}

// newAPIFixtureWithRedis builds the router with an optional Redis client for
// Idempotency-Key replay.
func newAPIFixtureWithRedis(t *testing.T, redisClient *redis.Client) *apiFixture {
	t.Helper()
	f := newTripFixture(t)

	sessions := service.NewSessionService(NewMockSessionStore(), service.NewTokenIssuer([]byte("api-secret")), nil, time.Hour, discardLogger())
	sessions.AddListener(f.service)

	accounts := NewMockAccountRepository()
	accounts.AssignVehicle(driver.ID, "MH12AB1234")
	documents := service.NewDocumentService(NewMockDocumentRepository(vaultDocs()...), accounts)
	expenses := service.NewExpenseService(NewMockExpenseRepository(), accounts, service.NewNotificationService(nil, discardLogger()), discardLogger())

	router := app.NewRouter(app.RouterDeps{
		SessionService:  sessions,
		SessionHandler:  handler.NewSessionHandler(sessions),
		DocumentHandler: handler.NewDocumentHandler(documents),
		TripHandler:     handler.NewTripHandler(f.service),
		BayHandler:      handler.NewBayHandler(f.service),
		ExpenseHandler:  handler.NewExpenseHandler(expenses),
		RedisClient:     redisClient,
		Logger:          discardLogger(),
	})

	return &apiFixture{router: router, trips: f.trips}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return f.doWithHeaders(t, method, path, token, body, nil)
}

func (f *apiFixture) doWithHeaders(t *testing.T, method, path, token string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) login(t *testing.T, role domain.Role, name string) string {
	t.Helper()

	w := f.do(t, http.MethodPost, "/v1/sessions", "", handler.LoginRequest{Role: string(role), Name: name})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp handler.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decodeTrip(t *testing.T, w *httptest.ResponseRecorder) handler.TripResponse {
	t.Helper()
	var resp handler.TripResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestAPI_HealthIsPublic(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPI_AnonymousGets401(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	for _, path := range []string{"/v1/trips", "/v1/documents", "/v1/sessions/me"} {
		w := f.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}

	w := f.do(t, http.MethodGet, "/v1/trips", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPI_WrongRoleGets403(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	token := f.login(t, domain.RoleSupplier, supplier.ID)

	w := f.do(t, http.MethodPost, "/v1/trips/trip-1/start", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/v1/documents", token, handler.CreateDocumentRequest{Name: "RC", Category: "RC", ExpiryDate: "2026-01-01"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAPI_LoginValidation(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/v1/sessions", "", handler.LoginRequest{Role: "auditor", Name: "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/v1/sessions", "", handler.LoginRequest{Role: "driver", Name: ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_MeAndLogout(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	token := f.login(t, domain.RoleDriver, driver.ID)

	w := f.do(t, http.MethodGet, "/v1/sessions/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me handler.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, string(domain.RoleDriver), me.Role)
	assert.Empty(t, me.Token)

	w = f.do(t, http.MethodDelete, "/v1/sessions", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodDelete, "/v1/sessions", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, http.MethodGet, "/v1/sessions/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPI_TripLifecycleOverHTTP(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	dispatch := f.login(t, domain.RoleSupplier, supplier.ID)
	drv := f.login(t, domain.RoleDriver, driver.ID)

	w := f.do(t, http.MethodPost, "/v1/trips", dispatch, handler.CreateTripRequest{
		DriverID:    driver.ID,
		VehicleID:   "MH12AB1234",
		BayID:       "bay-4",
		Origin:      "Pune Warehouse",
		Destination: "Mumbai Port",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tripID := decodeTrip(t, w).TripID
	base := "/v1/trips/" + tripID

	// Not ready yet.
	w = f.do(t, http.MethodPost, base+"/start", drv, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPost, base+"/ready", dispatch, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(domain.TripStateReady), decodeTrip(t, w).State)

	w = f.do(t, http.MethodPost, base+"/otp", dispatch, handler.IssueOTPRequest{Code: "482913"})
	require.Equal(t, http.StatusAccepted, w.Code)

	w = f.do(t, http.MethodPost, base+"/start", drv, nil)
	require.Equal(t, http.StatusOK, w.Code)
	started := decodeTrip(t, w)
	require.NotNil(t, started.Verification)
	assert.Equal(t, string(domain.VerificationPending), started.Verification.Status)

	w = f.do(t, http.MethodPost, base+"/verification/method", drv, handler.SelectMethodRequest{Method: "OTP"})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, base+"/verification/otp", drv, handler.SubmitOTPRequest{Code: "000000"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var rejected handler.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rejected))
	require.NotNil(t, rejected.Trip)
	assert.Equal(t, string(domain.TripStateReady), rejected.Trip.State)
	assert.Equal(t, string(domain.VerificationFailed), rejected.Trip.Verification.Status)
	assert.NotContains(t, w.Body.String(), "482913")

	w = f.do(t, http.MethodPost, base+"/verification/otp", drv, handler.SubmitOTPRequest{Code: "482913"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, string(domain.TripStateActive), decodeTrip(t, w).State)

	w = f.do(t, http.MethodPost, base+"/end/confirm", drv, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "confirm without request")

	w = f.do(t, http.MethodPost, base+"/end/request", drv, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeTrip(t, w).EndRequested)

	w = f.do(t, http.MethodPost, base+"/end/confirm", drv, nil)
	require.Equal(t, http.StatusOK, w.Code)
	ended := decodeTrip(t, w)
	assert.Equal(t, string(domain.TripStateEnded), ended.State)
	assert.NotEmpty(t, ended.EndedAt)
}

func TestAPI_OtherDriverCannotSeeTrip(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	f.trips.AddTrip(&domain.Trip{
		ID:        "trip-9",
		DriverID:  driver.ID,
		BayID:     "bay-4",
		State:     domain.TripStateReady,
		Route:     domain.Route{Origin: "A", Destination: "B"},
		CreatedAt: time.Now(),
	})
	token := f.login(t, domain.RoleDriver, other.ID)

	w := f.do(t, http.MethodPost, "/v1/trips/trip-9/start", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAPI_UnknownTripIs404(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	token := f.login(t, domain.RoleAdmin, admin.ID)

	w := f.do(t, http.MethodGet, "/v1/trips/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_DocumentsForDriver(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	token := f.login(t, domain.RoleDriver, driver.ID)

	w := f.do(t, http.MethodGet, "/v1/documents?as_of=2025-04-01", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp handler.ListDocumentsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2025-04-01", resp.AsOf)
	assert.Len(t, resp.Documents, 4)
	assert.Equal(t, handler.SummaryResponse{Expired: 1, Critical: 1, Warning: 1, Valid: 1}, resp.Summary)

	for _, d := range resp.Documents {
		switch d.Level {
		case string(domain.ExpiryCritical), string(domain.ExpiryWarning):
			assert.NotNil(t, d.DaysLeft, d.ID)
		default:
			assert.Nil(t, d.DaysLeft, d.ID)
		}
	}

	w = f.do(t, http.MethodGet, "/v1/documents?as_of=01-04-2025", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_AdminCreatesDocument(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	token := f.login(t, domain.RoleAdmin, admin.ID)

	w := f.do(t, http.MethodPost, "/v1/documents", token, handler.CreateDocumentRequest{
		Name:         "Pollution Certificate",
		Category:     "Fitness",
		ExpiryDate:   "2026-03-31",
		OwnerVehicle: "MH12AB1234",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var doc handler.DocumentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "2026-03-31", doc.ExpiryDate)

	w = f.do(t, http.MethodPost, "/v1/documents", token, handler.CreateDocumentRequest{Name: "x", Category: "Fitness", ExpiryDate: "tomorrow"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_BayLocationIsAdminOnly(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	adminToken := f.login(t, domain.RoleAdmin, admin.ID)
	driverToken := f.login(t, domain.RoleDriver, driver.ID)

	w := f.do(t, http.MethodPut, "/v1/bays/bay-7/location", driverToken, handler.BayLocationRequest{Lat: 18.5, Lng: 73.8})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPut, "/v1/bays/bay-7/location", adminToken, handler.BayLocationRequest{Lat: 18.5, Lng: 73.8})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestAPI_GetDocument(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	token := f.login(t, domain.RoleDriver, driver.ID)

	w := f.do(t, http.MethodGet, "/v1/documents/lic-1?as_of=2025-04-01", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var doc handler.DocumentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, string(domain.ExpiryCritical), doc.Level)
	require.NotNil(t, doc.DaysLeft)
	assert.Equal(t, 7, *doc.DaysLeft)

	w = f.do(t, http.MethodGet, "/v1/documents/ins-1", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_ExpenseApprovalHub(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	adminToken := f.login(t, domain.RoleAdmin, admin.ID)
	driverToken := f.login(t, domain.RoleDriver, driver.ID)
	supplierToken := f.login(t, domain.RoleSupplier, supplier.ID)

	w := f.do(t, http.MethodPost, "/v1/expenses", driverToken, handler.SubmitExpenseRequest{Category: "Fuel", AmountPaise: 250000, Note: "Full tank at Lonavala"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var claim handler.ExpenseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &claim))
	assert.Equal(t, "PENDING", claim.Status)
	assert.Equal(t, "MH12AB1234", claim.VehicleID)

	w = f.do(t, http.MethodPost, "/v1/expenses", adminToken, handler.SubmitExpenseRequest{Category: "Fuel", AmountPaise: 100})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = f.do(t, http.MethodPost, "/v1/expenses", driverToken, handler.SubmitExpenseRequest{Category: "Fuel"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(t, http.MethodGet, "/v1/expenses", supplierToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodGet, "/v1/expenses?status=PENDING", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var list handler.ListExpensesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Expenses, 1)
	assert.Equal(t, 1, list.Pending)
	assert.Equal(t, int64(250000), list.PendingAmountPaise)

	w = f.do(t, http.MethodPost, "/v1/expenses/"+claim.ID+"/approve", driverToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/v1/expenses/"+claim.ID+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &claim))
	assert.Equal(t, "APPROVED", claim.Status)
	assert.Equal(t, admin.ID, claim.DecidedBy)
	assert.NotEmpty(t, claim.DecidedAt)

	w = f.do(t, http.MethodPost, "/v1/expenses/"+claim.ID+"/reject", adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodGet, "/v1/expenses/"+claim.ID, driverToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, http.MethodGet, "/v1/expenses/missing", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
