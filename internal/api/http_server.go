package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"halltime/internal/config"
	"halltime/internal/database"
	"halltime/internal/metrics"
	"halltime/internal/models"
	"halltime/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HTTPServer exposes the booking API.
type HTTPServer struct {
	cfg      config.APIConfig
	halls    *service.HallService
	avails   *service.AvailabilityService
	bookings *service.BookingService
	auth     *HTTPAuth
	server   *http.Server
	logger   *zerolog.Logger
}

func NewHTTPServer(
	cfg config.APIConfig,
	halls *service.HallService,
	avails *service.AvailabilityService,
	bookings *service.BookingService,
	logger *zerolog.Logger,
) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:      cfg,
		halls:    halls,
		avails:   avails,
		bookings: bookings,
		logger:   logger,
	}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/api/v1/halls", srv.handleHalls)
	mux.HandleFunc("/api/v1/halls/", srv.handleHallByID)
	mux.HandleFunc("/api/v1/my/halls", srv.handleMyHalls)
	mux.HandleFunc("/api/v1/my/appointments", srv.handleMyAppointments)
	mux.HandleFunc("/api/v1/availabilities", srv.handleAvailabilities)
	mux.HandleFunc("/api/v1/availabilities/bulk", srv.handleAvailabilityBulk)
	mux.HandleFunc("/api/v1/availabilities/", srv.handleAvailabilityByID)
	mux.HandleFunc("/api/v1/appointments", srv.handleAppointments)
	mux.HandleFunc("/api/v1/appointments/", srv.handleAppointmentByID)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

// Handler returns the composed handler, used by tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// --- halls ---

func (s *HTTPServer) handleHalls(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		halls, err := s.halls.List(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"halls": halls})
	case http.MethodPost:
		actor, ok := s.requireActor(w, r)
		if !ok {
			return
		}
		var hall models.Hall
		if !decodeBody(w, r, &hall) {
			return
		}
		if err := s.halls.Create(r.Context(), actor, &hall); err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, &hall)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleHallByID routes /api/v1/halls/{id}, /{id}/free and /{id}/pending.
func (s *HTTPServer) handleHallByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/halls/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	hallID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || hallID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid hall id")
		return
	}

	if len(parts) == 2 {
		switch parts[1] {
		case "free":
			s.handleFreeSlots(w, r, hallID)
		case "pending":
			s.handlePendingAppointments(w, r, hallID)
		default:
			writeError(w, http.StatusNotFound, "not found")
		}
		return
	}
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		hall, err := s.halls.Get(r.Context(), hallID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, hall)
	case http.MethodPut:
		actor, ok := s.requireActor(w, r)
		if !ok {
			return
		}
		var hall models.Hall
		if !decodeBody(w, r, &hall) {
			return
		}
		hall.ID = hallID
		if err := s.halls.Update(r.Context(), actor, &hall); err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, &hall)
	case http.MethodDelete:
		actor, ok := s.requireActor(w, r)
		if !ok {
			return
		}
		if err := s.halls.Delete(r.Context(), actor, hallID); err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleMyHalls(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	halls, err := s.halls.Mine(r.Context(), actor)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"halls": halls})
}

// --- availabilities ---

func (s *HTTPServer) handleAvailabilities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		hallID, err := optionalID(r.URL.Query().Get("hall_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid hall_id")
			return
		}
		avails, err := s.avails.List(r.Context(), hallID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"availabilities": avails})
	case http.MethodPost:
		actor, ok := s.requireActor(w, r)
		if !ok {
			return
		}
		var body struct {
			HallID int64     `json:"hall_id"`
			Start  time.Time `json:"start"`
			End    time.Time `json:"end"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		avail, err := s.avails.Create(r.Context(), actor, body.HallID, body.Start, body.End)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, avail)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleAvailabilityBulk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	var body struct {
		HallID    int64    `json:"hall_id"`
		FromDate  string   `json:"from_date"`
		ToDate    string   `json:"to_date"`
		StartTime string   `json:"start_time"`
		EndTime   string   `json:"end_time"`
		Weekdays  []string `json:"weekdays"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	from, err := time.Parse("2006-01-02", body.FromDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from_date; expected YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", body.ToDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to_date; expected YYYY-MM-DD")
		return
	}
	startTOD, err := parseTimeOfDay(body.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_time; expected HH:MM")
		return
	}
	endTOD, err := parseTimeOfDay(body.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_time; expected HH:MM")
		return
	}
	weekdays, err := parseWeekdays(body.Weekdays)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.avails.BulkCreate(r.Context(), actor, service.BulkCreateParams{
		HallID:    body.HallID,
		FromDate:  from,
		ToDate:    to,
		StartTime: startTOD,
		EndTime:   endTOD,
		Weekdays:  weekdays,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleAvailabilityByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/availabilities/"), "/")
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid availability id")
		return
	}

	if err := s.avails.Delete(r.Context(), actor, id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// --- free slots ---

func (s *HTTPServer) handleFreeSlots(w http.ResponseWriter, r *http.Request, hallID int64) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	from, err := parseTimeParam(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from; expected RFC3339 or YYYY-MM-DD")
		return
	}
	to, err := parseTimeParam(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to; expected RFC3339 or YYYY-MM-DD")
		return
	}

	var slotLength time.Duration
	if raw := strings.TrimSpace(q.Get("slot_minutes")); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			writeError(w, http.StatusBadRequest, "invalid slot_minutes")
			return
		}
		slotLength = time.Duration(minutes) * time.Minute
	}

	result, err := s.bookings.FreeSlots(r.Context(), hallID, from, to, slotLength)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- appointments ---

func (s *HTTPServer) handleAppointments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		hallID, err := optionalID(r.URL.Query().Get("hall_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid hall_id")
			return
		}
		var day time.Time
		if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
			day, err = time.Parse("2006-01-02", raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid date; expected YYYY-MM-DD")
				return
			}
		}
		appts, err := s.bookings.ListAppointments(r.Context(), hallID, day)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})
	case http.MethodPost:
		actor, ok := s.requireActor(w, r)
		if !ok {
			return
		}
		var body struct {
			HallID int64     `json:"hall_id"`
			Start  time.Time `json:"start"`
			End    time.Time `json:"end"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		appt, err := s.bookings.RequestBooking(r.Context(), actor, body.HallID, body.Start, body.End)
		if err != nil {
			metrics.IncBooking("request", outcomeLabel(err))
			s.writeServiceError(w, err)
			return
		}
		metrics.IncBooking("request", "created")
		writeJSON(w, http.StatusCreated, appt)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleAppointmentByID routes /api/v1/appointments/{id}[/action].
func (s *HTTPServer) handleAppointmentByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/appointments/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		actor, ok := s.requireActor(w, r)
		if !ok {
			return
		}
		appt, err := s.bookings.GetAppointment(r.Context(), actor, id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
		return
	}
	if len(parts) != 2 || r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	action := parts[1]
	switch action {
	case "approve", "reject":
		err = s.bookings.Decide(r.Context(), actor, id, action)
	case "cancel":
		err = s.bookings.Cancel(r.Context(), actor, id)
	case "checkin":
		err = s.bookings.CheckIn(r.Context(), actor, id)
	default:
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if err != nil {
		metrics.IncBooking(action, outcomeLabel(err))
		s.writeServiceError(w, err)
		return
	}
	metrics.IncBooking(action, "ok")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handlePendingAppointments(w http.ResponseWriter, r *http.Request, hallID int64) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	appts, err := s.bookings.ListPending(r.Context(), actor, hallID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})
}

func (s *HTTPServer) handleMyAppointments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	appts, err := s.bookings.ListMine(r.Context(), actor)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})
}

// --- plumbing ---

func (s *HTTPServer) requireActor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return models.Actor{}, false
	}
	return actor, true
}

// writeServiceError translates domain errors into HTTP status codes.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	var windowErr *service.CheckInWindowError

	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, service.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.As(err, &windowErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, database.ErrInvalidRange),
		errors.Is(err, database.ErrPastDate),
		errors.Is(err, database.ErrRangeTooLong),
		errors.Is(err, service.ErrEmptyHallName):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrAvailabilityOverlap),
		errors.Is(err, database.ErrOutsideAvailability),
		errors.Is(err, database.ErrAppointmentConflict),
		errors.Is(err, database.ErrInvalidTransition),
		errors.Is(err, database.ErrAlreadyCheckedIn),
		errors.Is(err, database.ErrConcurrentModification):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, database.ErrAppointmentConflict),
		errors.Is(err, database.ErrOutsideAvailability):
		return "conflict"
	case errors.Is(err, service.ErrRateLimited):
		return "rate_limited"
	default:
		return "error"
	}
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.New().String()

		l := s.logger.With().Str("request_id", requestID).Logger()
		ctx := l.WithContext(r.Context())

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r.WithContext(ctx))

		metrics.IncHTTP(r.URL.Path)
		l.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func optionalID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id")
	}
	return id, nil
}

// parseTimeParam accepts RFC3339 or a bare date meaning midnight UTC.
func parseTimeParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func parseTimeOfDay(raw string) (service.TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return service.TimeOfDay{}, err
	}
	return service.TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseWeekdays(raw []string) ([]time.Weekday, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]time.Weekday, 0, len(raw))
	for _, name := range raw {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday: %s", name)
		}
		out = append(out, wd)
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
