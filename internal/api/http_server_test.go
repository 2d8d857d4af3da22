package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hallbook/internal/booking"
	"hallbook/internal/config"
	"hallbook/internal/models"
	"hallbook/internal/repository"
	"hallbook/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const testToday = "2025-05-01"

var testHalls = []models.Hall{
	{ID: 1, Name: "Navruz", District: "Chilanzar", Capacity: 100, PricePerGuest: 25, OwnerID: 20, Approved: true},
	{ID: 2, Name: "Oqsaroy", District: "Yunusabad", Capacity: 300, PricePerGuest: 40, OwnerID: 20, Approved: true},
	{ID: 3, Name: "Bahor", District: "Chilanzar", Capacity: 200, PricePerGuest: 30, OwnerID: 21, Approved: true},
	{ID: 4, Name: "Yangi", District: "Sergeli", Capacity: 80, PricePerGuest: 15, OwnerID: 21},
}

var (
	alice   = models.User{ID: 100, Role: models.RoleCustomer}
	bob     = models.User{ID: 101, Role: models.RoleCustomer}
	owner20 = models.User{ID: 20, Role: models.RoleOwner}
	owner21 = models.User{ID: 21, Role: models.RoleOwner}
	root    = models.User{ID: 1, Role: models.RoleAdmin}
)

type testAPI struct {
	ts       *httptest.Server
	server   *HTTPServer
	bookings *service.BookingService
	halls    *service.HallService
}

func newTestServices(t *testing.T) (*service.BookingService, *service.HallService) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	today, err := models.ParseDate(testToday)
	require.NoError(t, err)

	catalog := repository.NewMemoryHallCatalog(testHalls...)
	bookings, err := service.NewBookingService(service.BookingServiceDeps{
		Store:   repository.NewMemoryBookingStore(),
		Catalog: catalog,
		Clock:   booking.FixedClock(today),
		Intake:  booking.IntakeConfig{MaxBookingDays: models.DefaultMaxBookingDays},
	}, &logger)
	require.NoError(t, err)
	return bookings, service.NewHallService(catalog, nil, &logger)
}

func newTestAPI(t *testing.T, cfg config.APIConfig) *testAPI {
	t.Helper()
	bookings, halls := newTestServices(t)
	logger := zerolog.New(io.Discard)
	server := NewHTTPServer(cfg, bookings, halls, HeaderIdentity{}, &logger)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return &testAPI{ts: ts, server: server, bookings: bookings, halls: halls}
}

func (a *testAPI) do(t *testing.T, method, path string, user *models.User, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.ts.URL+path, reader)
	require.NoError(t, err)
	if user != nil {
		req.Header.Set("X-User-Id", fmt.Sprint(user.ID))
		req.Header.Set("X-User-Role", string(user.Role))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func bookingBody(hallID int64, date string, guests int) map[string]any {
	return map[string]any{
		"hall_id":     hallID,
		"date":        date,
		"guest_count": guests,
		"customer": map[string]string{
			"first_name": "Dilnoza",
			"last_name":  "Yusupova",
			"phone":      "+998901234567",
		},
	}
}

func (a *testAPI) create(t *testing.T, user models.User, hallID int64, date string) bookingJSON {
	t.Helper()
	resp := a.do(t, http.MethodPost, "/api/v1/bookings", &user, bookingBody(hallID, date, 50))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[bookingJSON](t, resp)
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{})
	resp := api.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestReadyz(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{})
	api.server.AddReadinessCheck("db", func(context.Context) error { return nil })

	resp := api.do(t, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	api.server.AddReadinessCheck("redis", func(context.Context) error { return errors.New("down") })
	resp = api.do(t, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHalls(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{})

	resp := api.do(t, http.MethodGet, "/api/v1/halls?district=Chilanzar", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		Halls []models.Hall `json:"halls"`
	}](t, resp)
	require.Len(t, body.Halls, 2)
	assert.Equal(t, "Navruz", body.Halls[0].Name)

	resp = api.do(t, http.MethodGet, "/api/v1/halls/4", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = api.do(t, http.MethodGet, "/api/v1/halls/4", &owner21, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/api/v1/halls/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListHallsSortAndSearch(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{})

	names := func(query string) []string {
		resp := api.do(t, http.MethodGet, "/api/v1/halls"+query, nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[struct {
			Halls []models.Hall `json:"halls"`
		}](t, resp)
		out := make([]string, 0, len(body.Halls))
		for _, h := range body.Halls {
			out = append(out, h.Name)
		}
		return out
	}

	assert.Equal(t, []string{"Navruz", "Oqsaroy", "Bahor"}, names(""))
	assert.Equal(t, []string{"Navruz", "Bahor", "Oqsaroy"}, names("?sort=price_asc"))
	assert.Equal(t, []string{"Oqsaroy", "Bahor", "Navruz"}, names("?sort=capacity_desc"))
	assert.Equal(t, []string{"Bahor"}, names("?q=BAH"))
	assert.Equal(t, []string{"Bahor", "Navruz"}, names("?district=chilanzar&sort=capacity_desc"))
	assert.Empty(t, names("?q=yangi"), "unapproved halls are not listed")

	resp := api.do(t, http.MethodGet, "/api/v1/halls?sort=rating", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnapprovedHallAvailability(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{})

	resp := api.do(t, http.MethodGet, "/api/v1/halls/4/availability?date=2025-06-01", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = api.do(t, http.MethodGet, "/api/v1/halls/4/availability?date=2025-06-01", &owner21, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "availability is public and ignores the caller")

	resp = api.do(t, http.MethodGet, "/api/v1/halls/4/calendar?days=3", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = api.do(t, http.MethodGet, "/api/v1/halls/4/calendar?days=3", &alice, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = api.do(t, http.MethodGet, "/api/v1/halls/4/calendar?days=3", &owner20, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	for _, u := range []*models.User{&owner21, &root} {
		resp = api.do(t, http.MethodGet, "/api/v1/halls/4/calendar?days=3", u, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		cal := decode[struct {
			Days []dayJSON `json:"days"`
		}](t, resp)
		assert.Len(t, cal.Days, 3)
	}

	resp = api.do(t, http.MethodGet, "/api/v1/halls/4/booking?date=2025-06-01", &alice, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = api.do(t, http.MethodGet, "/api/v1/halls/4/booking?date=2025-06-01", &owner21, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestApproveHall(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{})

	resp := api.do(t, http.MethodPost, "/api/v1/halls/4/approve", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = api.do(t, http.MethodPost, "/api/v1/halls/4/approve", &owner21, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = api.do(t, http.MethodPost, "/api/v1/halls/4/approve", &root, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[models.Hall](t, resp).Approved)

	resp = api.do(t, http.MethodGet, "/api/v1/halls/4", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSuspendHall(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{})

	resp := api.do(t, http.MethodPost, "/api/v1/halls/1/suspend", &owner20, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = api.do(t, http.MethodPost, "/api/v1/halls/1/suspend", &root, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[models.Hall](t, resp).Approved)

	resp = api.do(t, http.MethodGet, "/api/v1/halls/1", &alice, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = api.do(t, http.MethodGet, "/api/v1/halls/1/availability?date=2025-06-01", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = api.do(t, http.MethodGet, "/api/v1/halls/1/calendar?days=3", &owner20, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOwnedHalls(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{})

	resp := api.do(t, http.MethodGet, "/api/v1/me/halls", &owner21, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		Halls []models.Hall `json:"halls"`
	}](t, resp)
	require.Len(t, body.Halls, 2)
	assert.Equal(t, int64(3), body.Halls[0].ID)

	resp = api.do(t, http.MethodGet, "/api/v1/me/halls", &alice, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCreateBooking(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		api := newTestAPI(t, config.APIConfig{})
		b := api.create(t, alice, 1, "2025-06-01")
		assert.NotZero(t, b.ID)
		assert.Equal(t, "2025-06-01", b.Date)
		assert.Equal(t, alice.ID, b.CustomerID)
	})

	cases := []struct {
		name   string
		user   *models.User
		body   map[string]any
		status int
		code   string
	}{
		{"CapacityExceeded", &alice, bookingBody(1, "2025-06-01", 150), http.StatusUnprocessableEntity, "capacity_exceeded"},
		{"PastDate", &alice, bookingBody(1, "2025-04-30", 20), http.StatusConflict, "date_unavailable"},
		{"BadShape", &alice, bookingBody(1, "June 1st", 0), http.StatusBadRequest, "shape_invalid"},
		{"UnknownHall", &alice, bookingBody(99, "2025-06-01", 20), http.StatusNotFound, "not_found"},
		{"Owner", &owner20, bookingBody(1, "2025-06-01", 20), http.StatusForbidden, "unauthorized"},
		{"Anonymous", nil, bookingBody(1, "2025-06-01", 20), http.StatusUnauthorized, "unauthenticated"},
		{"UnknownField", &alice, map[string]any{"hall_id": 1, "nights": 2}, http.StatusBadRequest, "shape_invalid"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := newTestAPI(t, config.APIConfig{})
			resp := api.do(t, http.MethodPost, "/api/v1/bookings", tc.user, tc.body)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.code, decode[errorBody](t, resp).Code)
		})
	}

	t.Run("ShapeFieldsReported", func(t *testing.T) {
		api := newTestAPI(t, config.APIConfig{})
		resp := api.do(t, http.MethodPost, "/api/v1/bookings", &alice, bookingBody(1, "", 0))
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		body := decode[errorBody](t, resp)
		fields := make([]string, 0, len(body.Fields))
		for _, f := range body.Fields {
			fields = append(fields, f.Field)
		}
		assert.ElementsMatch(t, []string{"date", "guest_count"}, fields)
	})

	t.Run("DateTaken", func(t *testing.T) {
		api := newTestAPI(t, config.APIConfig{})
		api.create(t, alice, 1, "2025-06-01")
		resp := api.do(t, http.MethodPost, "/api/v1/bookings", &bob, bookingBody(1, "2025-06-01", 20))
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})
}

func TestCancelBooking(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{})
	b := api.create(t, alice, 1, "2025-06-01")
	path := fmt.Sprintf("/api/v1/bookings/%d", b.ID)

	resp := api.do(t, http.MethodDelete, path, &bob, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = api.do(t, http.MethodDelete, path, &owner21, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = api.do(t, http.MethodDelete, path, &owner20, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = api.do(t, http.MethodDelete, path, &root, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/api/v1/halls/1/availability?date=2025-06-01", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decode[map[string]any](t, resp)["available"])
}

func TestAvailabilityAndBookingOn(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{})
	created := api.create(t, alice, 1, "2025-06-01")

	resp := api.do(t, http.MethodGet, "/api/v1/halls/1/availability?date=2025-06-01", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decode[map[string]any](t, resp)["available"])

	resp = api.do(t, http.MethodGet, "/api/v1/halls/1/availability", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	type bookingOn struct {
		Booked  bool         `json:"booked"`
		Booking *bookingJSON `json:"booking"`
	}

	resp = api.do(t, http.MethodGet, "/api/v1/halls/1/booking?date=2025-06-01", &alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	on := decode[bookingOn](t, resp)
	assert.True(t, on.Booked)
	require.NotNil(t, on.Booking)
	assert.Equal(t, created, *on.Booking)

	resp = api.do(t, http.MethodGet, "/api/v1/halls/1/booking?date=2025-06-01", &bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	on = decode[bookingOn](t, resp)
	assert.True(t, on.Booked)
	assert.Nil(t, on.Booking)

	resp = api.do(t, http.MethodGet, "/api/v1/halls/1/booking?date=2025-06-01", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCalendarAndQuote(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{})
	api.create(t, alice, 1, "2025-05-02")

	resp := api.do(t, http.MethodGet, "/api/v1/halls/1/calendar?from=2025-04-30&days=3", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cal := decode[struct {
		Days []dayJSON `json:"days"`
	}](t, resp)
	assert.Equal(t, []dayJSON{
		{Date: "2025-04-30", State: models.DayPast},
		{Date: "2025-05-01", State: models.DayFree},
		{Date: "2025-05-02", State: models.DayBooked},
	}, cal.Days)

	resp = api.do(t, http.MethodGet, "/api/v1/halls/1/calendar?days=1000", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/api/v1/halls/1/quote?guests=40", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 1000.0, decode[map[string]any](t, resp)["total"], 0.001)

	resp = api.do(t, http.MethodGet, "/api/v1/halls/1/quote?guests=101", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestListBookings(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{})
	api.create(t, alice, 2, "2025-09-10")
	api.create(t, alice, 1, "2025-06-01")
	api.create(t, bob, 3, "2025-07-01")
	api.create(t, bob, 1, "2025-08-15")

	list := func(user *models.User, query string) []bookingJSON {
		resp := api.do(t, http.MethodGet, "/api/v1/bookings"+query, user, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		return decode[struct {
			Bookings []bookingJSON `json:"bookings"`
		}](t, resp).Bookings
	}
	dates := func(bs []bookingJSON) []string {
		out := make([]string, 0, len(bs))
		for _, b := range bs {
			out = append(out, b.Date)
		}
		return out
	}

	assert.Equal(t, []string{"2025-06-01", "2025-08-15", "2025-09-10"}, dates(list(&owner20, "?status=upcoming")))
	assert.Equal(t, []string{"2025-07-01", "2025-08-15"}, dates(list(&bob, "")))
	assert.Len(t, list(&root, ""), 4)
	assert.Len(t, list(&root, "?district=Chilanzar"), 3)
	assert.Len(t, list(&root, "?hall_id=1"), 2)
	assert.Empty(t, list(&root, "?status=past"))

	all := list(&root, "")
	assert.Equal(t, models.StatusUpcoming, all[0].Status)
	assert.Equal(t, "Chilanzar", all[0].District)

	resp := api.do(t, http.MethodGet, "/api/v1/bookings?status=soon", &root, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = api.do(t, http.MethodGet, "/api/v1/bookings", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestExportBookings(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{})
	api.create(t, alice, 1, "2025-06-01")
	api.create(t, bob, 3, "2025-07-01")

	resp := api.do(t, http.MethodGet, "/api/v1/bookings/export", &alice, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/api/v1/bookings/export", &owner20, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, xlsxContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "bookings_")

	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	// заголовок, шапка таблицы и одна бронь зала владельца
	require.Len(t, rows, 3)
	assert.Equal(t, "2025-06-01", rows[2][3])
}

func TestRateLimit(t *testing.T) {
	api := newTestAPI(t, config.APIConfig{RateLimit: config.APIRateLimitConfig{RPS: 0.001, Burst: 1}})

	resp := api.do(t, http.MethodGet, "/api/v1/halls", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = api.do(t, http.MethodGet, "/api/v1/halls", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// у авторизованного клиента свой лимит
	resp = api.do(t, http.MethodGet, "/api/v1/halls", &alice, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTokenIdentityOverHTTP(t *testing.T) {
	bookings, halls := newTestServices(t)
	logger := zerolog.New(io.Discard)
	server := NewHTTPServer(config.APIConfig{}, bookings, halls, NewTokenIdentity("secret"), &logger)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	token, _, err := IssueToken("secret", alice, 0)
	require.NoError(t, err)

	get := func(auth string) int {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/bookings", nil)
		require.NoError(t, err)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, get("Bearer "+token))
	assert.Equal(t, http.StatusUnauthorized, get(""))
	assert.Equal(t, http.StatusUnauthorized, get("Bearer "+strings.Repeat("x", 20)))
	assert.Equal(t, http.StatusUnauthorized, get("Basic abc"))
}
