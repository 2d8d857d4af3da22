package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"time"

	"hallbook/internal/booking"
	"hallbook/internal/config"
	"hallbook/internal/domain"
	"hallbook/internal/metrics"
	"hallbook/internal/models"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the booking engine as a JSON API.
type HTTPServer struct {
	cfg      config.APIConfig
	bookings domain.BookingService
	halls    domain.HallService
	identity domain.IdentityProvider
	limiter  *rateLimiter
	checks   map[string]func(context.Context) error
	server   *http.Server
	log      zerolog.Logger
	now      func() time.Time
}

func NewHTTPServer(cfg config.APIConfig, bookings domain.BookingService, halls domain.HallService, identity domain.IdentityProvider, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		bookings: bookings,
		halls:    halls,
		identity: identity,
		limiter:  newRateLimiter(cfg.RateLimit),
		checks:   make(map[string]func(context.Context) error),
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}

	mux := http.NewServeMux()
	srv.route(mux, "GET /healthz", srv.handleHealthz)
	srv.route(mux, "GET /readyz", srv.handleReadyz)

	srv.route(mux, "GET /api/v1/halls", srv.handleListHalls)
	srv.route(mux, "GET /api/v1/halls/{id}", srv.handleGetHall)
	srv.route(mux, "POST /api/v1/halls/{id}/approve", srv.handleSetApproval(true))
	srv.route(mux, "POST /api/v1/halls/{id}/suspend", srv.handleSetApproval(false))
	srv.route(mux, "GET /api/v1/me/halls", srv.handleOwnedHalls)
	srv.route(mux, "GET /api/v1/halls/{id}/availability", srv.handleAvailability)
	srv.route(mux, "GET /api/v1/halls/{id}/booking", srv.handleBookingOn)
	srv.route(mux, "GET /api/v1/halls/{id}/calendar", srv.handleCalendar)
	srv.route(mux, "GET /api/v1/halls/{id}/quote", srv.handleQuote)

	srv.route(mux, "POST /api/v1/bookings", srv.handleCreateBooking)
	srv.route(mux, "GET /api/v1/bookings", srv.handleListBookings)
	srv.route(mux, "GET /api/v1/bookings/export", srv.handleExportBookings)
	srv.route(mux, "DELETE /api/v1/bookings/{id}", srv.handleCancelBooking)

	handler := srv.recoverMiddleware(srv.loggingMiddleware(srv.identityMiddleware(mux)))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// AddReadinessCheck registers a dependency checked by /readyz.
func (s *HTTPServer) AddReadinessCheck(name string, check func(context.Context) error) {
	s.checks[name] = check
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	endpoint := pattern
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		metrics.IncHTTP(endpoint)
		h(w, r)
	})
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			s.log.Warn().Err(err).Str("check", name).Msg("readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": name + " not ready"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Halls

func (s *HTTPServer) handleListHalls(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	halls, err := s.halls.ListHalls(r.Context(), models.HallQuery{
		ApprovedOnly: true,
		District:     query.Get("district"),
		Search:       query.Get("q"),
		Sort:         models.HallSort(query.Get("sort")),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"halls": halls})
}

func (s *HTTPServer) handleGetHall(w http.ResponseWriter, r *http.Request) {
	hallID, ok := s.pathID(w, r)
	if !ok {
		return
	}
	hall, err := s.halls.GetHall(r.Context(), hallID, userFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hall)
}

// handleSetApproval одобряет или приостанавливает зал (только администратор).
func (s *HTTPServer) handleSetApproval(approved bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.requireUser(w, r)
		if !ok {
			return
		}
		hallID, ok := s.pathID(w, r)
		if !ok {
			return
		}

		change := s.halls.SuspendHall
		if approved {
			change = s.halls.ApproveHall
		}
		if err := change(r.Context(), hallID, user); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		hall, err := s.halls.GetHall(r.Context(), hallID, user)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, hall)
	}
}

func (s *HTTPServer) handleOwnedHalls(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	halls, err := s.halls.OwnedHalls(r.Context(), user)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"halls": halls})
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	hallID, ok := s.pathID(w, r)
	if !ok {
		return
	}
	date, ok := s.queryDate(w, r, "date")
	if !ok {
		return
	}

	available, err := s.bookings.CheckAvailability(r.Context(), hallID, date)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"hall_id":   hallID,
		"date":      models.FormatDate(date),
		"available": available,
	})
}

func (s *HTTPServer) handleBookingOn(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	hallID, ok := s.pathID(w, r)
	if !ok {
		return
	}
	date, ok := s.queryDate(w, r, "date")
	if !ok {
		return
	}

	b, booked, err := s.bookings.BookingOnFor(r.Context(), user, hallID, date)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := map[string]any{"booked": booked}
	if b != nil {
		resp["booking"] = newBookingJSON(*b)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleCalendar(w http.ResponseWriter, r *http.Request) {
	hallID, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var from time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		var err error
		if from, err = models.ParseDate(raw); err != nil {
			s.writeServiceError(w, r, fieldError("from", err.Error()))
			return
		}
	}
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeServiceError(w, r, fieldError("days", "must be an integer"))
			return
		}
		days = n
	}

	calendar, err := s.bookings.CalendarFor(r.Context(), userFrom(r.Context()), hallID, from, days)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	out := make([]dayJSON, 0, len(calendar))
	for _, d := range calendar {
		out = append(out, dayJSON{Date: models.FormatDate(d.Date), State: d.State})
	}
	writeJSON(w, http.StatusOK, map[string]any{"hall_id": hallID, "days": out})
}

func (s *HTTPServer) handleQuote(w http.ResponseWriter, r *http.Request) {
	hallID, ok := s.pathID(w, r)
	if !ok {
		return
	}
	guests, err := strconv.Atoi(r.URL.Query().Get("guests"))
	if err != nil {
		s.writeServiceError(w, r, fieldError("guests", "must be a positive integer"))
		return
	}

	total, err := s.bookings.Quote(r.Context(), hallID, guests)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hall_id": hallID, "guests": guests, "total": total})
}

// Bookings

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req domain.CreateBookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		s.writeServiceError(w, r, fieldError("body", "invalid JSON body"))
		return
	}

	created, err := s.bookings.CreateBooking(r.Context(), user, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newBookingJSON(*created))
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if err := s.bookings.CancelBooking(r.Context(), id, user); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	views, ok := s.listBookings(w, r)
	if !ok {
		return
	}

	out := make([]bookingJSON, 0, len(views))
	for _, v := range views {
		out = append(out, newBookingViewJSON(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": out})
}

func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	if user := userFrom(r.Context()); user != nil && user.Role == models.RoleCustomer {
		s.writeServiceError(w, r, fmt.Errorf("%w: export is for owners and admins", booking.ErrUnauthorized))
		return
	}
	views, ok := s.listBookings(w, r)
	if !ok {
		return
	}

	now := s.now()
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="bookings_%s.xlsx"`, now.Format("20060102_150405")))
	if err := writeBookingsXLSX(w, views, now); err != nil {
		s.log.Error().Err(err).Msg("export bookings")
	}
}

func (s *HTTPServer) listBookings(w http.ResponseWriter, r *http.Request) ([]models.BookingView, bool) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return nil, false
	}
	filter, err := parseFilter(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return nil, false
	}

	views, err := s.bookings.ListBookings(r.Context(), user, filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return nil, false
	}
	return views, true
}

func parseFilter(r *http.Request) (models.BookingFilter, error) {
	q := r.URL.Query()
	var filter models.BookingFilter

	if raw := strings.TrimSpace(q.Get("hall_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return filter, fieldError("hall_id", "must be a positive integer")
		}
		filter.HallID = &id
	}
	filter.District = strings.TrimSpace(q.Get("district"))
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		st := models.BookingStatus(strings.ToLower(raw))
		if st != models.StatusUpcoming && st != models.StatusPast {
			return filter, fieldError("status", "must be upcoming or past")
		}
		filter.Status = &st
	}
	return filter, nil
}

// Middleware

type ctxKey int

const userKey ctxKey = iota

func userFrom(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

// identityMiddleware resolves the caller and applies the per-client rate
// limit. Anonymous requests pass; handlers that need a user reject them.
func (s *HTTPServer) identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var user *models.User
		if s.identity != nil {
			var err error
			user, err = s.identity.CurrentUser(r)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error(), Code: "unauthenticated"})
				return
			}
		}

		if !s.limiter.Allow(clientKey(r, user)) {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded", Code: "rate_limited"})
			return
		}

		if user != nil {
			r = r.WithContext(context.WithValue(r.Context(), userKey, user))
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request, user *models.User) string {
	if user != nil {
		return "user:" + strconv.FormatInt(user.ID, 10)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := ensureRequestID(r.Header.Get(requestIDKey))
		w.Header().Set(requestIDKey, requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *HTTPServer) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error().Interface("panic", rec).Bytes("stack", debug.Stack()).Str("path", r.URL.Path).Msg("http handler panic")
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Code: "internal"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Helpers

func (s *HTTPServer) requireUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user := userFrom(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required", Code: "unauthenticated"})
		return nil, false
	}
	return user, true
}

func (s *HTTPServer) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeServiceError(w, r, fieldError("id", "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func (s *HTTPServer) queryDate(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	date, err := models.ParseDate(r.URL.Query().Get(name))
	if err != nil {
		s.writeServiceError(w, r, fieldError(name, err.Error()))
		return time.Time{}, false
	}
	return date, true
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := httpStatus(err)
	if code >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, code, newErrorBody(err))
}

func fieldError(field, reason string) error {
	return &booking.ShapeError{Fields: []booking.FieldError{{Field: field, Reason: reason}}}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
