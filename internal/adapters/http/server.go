package httpadapter

import (
    "context"
    "crypto/subtle"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "net/http"
    "net/url"

    "github.com/go-chi/chi/v5"
    "github.com/go-chi/chi/v5/middleware"
    "github.com/golang-sql/civil"
    "github.com/oapi-codegen/runtime"
    openapi_types "github.com/oapi-codegen/runtime/types"

    "tripcrew/internal/domain"
    "tripcrew/internal/ports"
    "tripcrew/internal/services/assignment"
)

const adminTokenHeader = "X-Admin-Token"

type Server struct {
    assigner   ports.Assigner
    calendars  ports.Calendars
    pool       ports.CandidatePoolProvider
    adminToken string
    metrics    http.Handler
}

// New wires the HTTP surface. An empty adminToken leaves the admin routes
// unmounted; a nil metrics handler leaves /metrics unmounted.
func New(assigner ports.Assigner, calendars ports.Calendars, pool ports.CandidatePoolProvider, adminToken string, metrics http.Handler) *Server {
    return &Server{assigner: assigner, calendars: calendars, pool: pool, adminToken: adminToken, metrics: metrics}
}

func (s *Server) Routes() chi.Router {
    r := chi.NewRouter()
    r.Use(middleware.RequestID, middleware.Logger, middleware.Recoverer)

    r.Get("/healthz", s.getHealthz)
    if s.metrics != nil {
        r.Handle("/metrics", s.metrics)
    }
    r.Route("/calendars/{role}/{contractor}", func(r chi.Router) {
        r.Get("/", s.getCalendar)
        r.Post("/unavailable", s.postMark(domain.StatusUnavailable))
        r.Post("/available", s.postMark(domain.StatusAvailable))
    })
    r.Post("/assignments", s.postAssignment)
    if s.adminToken != "" {
        r.With(s.requireAdmin).Delete("/admin/trips/{tripId}/locks", s.deleteTripLocks)
    }
    return r
}

func (s *Server) getHealthz(w http.ResponseWriter, _ *http.Request) {
    writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// calendarPath reads {role} and {contractor}.
func calendarPath(r *http.Request) (domain.Role, string, error) {
    role, err := domain.ParseRole(chi.URLParam(r, "role"))
    if err != nil {
        return "", "", err
    }
    contractor, err := url.PathUnescape(chi.URLParam(r, "contractor"))
    if err != nil {
        return "", "", fmt.Errorf("%w: contractor: %v", domain.ErrInvalidRequest, err)
    }
    id, err := domain.NormalizeContractorID(contractor)
    if err != nil {
        return "", "", err
    }
    return role, id, nil
}

func (s *Server) getCalendar(w http.ResponseWriter, r *http.Request) {
    role, id, err := calendarPath(r)
    if err != nil {
        writeError(w, err)
        return
    }
    var from, to openapi_types.Date
    if err := runtime.BindQueryParameter("form", true, true, "from", r.URL.Query(), &from); err != nil {
        writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
        return
    }
    if err := runtime.BindQueryParameter("form", true, true, "to", r.URL.Query(), &to); err != nil {
        writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
        return
    }
    dates, err := domain.Span(civil.DateOf(from.Time), civil.DateOf(to.Time))
    if err != nil {
        writeError(w, err)
        return
    }
    statuses, err := s.calendars.Days(r.Context(), id, role, dates)
    if err != nil {
        writeError(w, err)
        return
    }
    resp := calendarResponse{Contractor: id, Role: string(role), Days: make([]dayStatus, len(dates))}
    for i, d := range dates {
        resp.Days[i] = dayStatus{Date: fromCivil(d), Status: string(statuses[d])}
    }
    writeJSON(w, http.StatusOK, resp)
}

func (s *Server) postMark(to domain.Status) http.HandlerFunc {
    return func(w http.ResponseWriter, r *http.Request) {
        var mark func(context.Context, string, domain.Role, []civil.Date) ([]domain.DayResult, error)
        if to == domain.StatusUnavailable {
            mark = s.calendars.MarkUnavailable
        } else {
            mark = s.calendars.MarkAvailable
        }
        role, id, err := calendarPath(r)
        if err != nil {
            writeError(w, err)
            return
        }
        var body datesRequest
        if err := decode(r, &body); err != nil {
            writeError(w, err)
            return
        }
        results, err := mark(r.Context(), id, role, toCivil(body.Dates))
        if err != nil {
            writeError(w, err)
            return
        }
        writeJSON(w, http.StatusOK, markResponse{Contractor: id, Role: string(role), Results: toDayResults(results)})
    }
}

func (s *Server) postAssignment(w http.ResponseWriter, r *http.Request) {
    var body assignmentRequest
    if err := decode(r, &body); err != nil {
        writeError(w, err)
        return
    }
    role, err := domain.ParseRole(body.Role)
    if err != nil {
        writeError(w, err)
        return
    }
    pool, err := assignment.Restrict(s.pool, body.Candidates)
    if err != nil {
        writeError(w, err)
        return
    }
    res, err := s.assigner.RequestAssignment(r.Context(), role, body.TripID, toCivil(body.Dates), pool)
    if err != nil {
        writeError(w, err)
        return
    }
    writeJSON(w, http.StatusOK, assignmentResponse{
        TripID:      body.TripID,
        Role:        string(role),
        WinnerEmail: res.WinnerEmail,
        Score:       res.Score,
        LockedDates: fromCivilAll(res.LockedDates),
    })
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        got := r.Header.Get(adminTokenHeader)
        if subtle.ConstantTimeCompare([]byte(got), []byte(s.adminToken)) != 1 {
            writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden", Message: "admin token required"})
            return
        }
        next.ServeHTTP(w, r)
    })
}

func (s *Server) deleteTripLocks(w http.ResponseWriter, r *http.Request) {
    tripID := chi.URLParam(r, "tripId")
    released, err := s.calendars.ReleaseTrip(r.Context(), tripID)
    if err != nil {
        writeError(w, err)
        return
    }
    resp := releaseResponse{TripID: tripID, Released: make([]releasedDay, len(released))}
    for i, d := range released {
        resp.Released[i] = releasedDay{Contractor: d.ContractorID, Role: string(d.Role), Date: fromCivil(d.Date)}
    }
    writeJSON(w, http.StatusOK, resp)
}

func decode(r *http.Request, dst any) error {
    dec := json.NewDecoder(r.Body)
    dec.DisallowUnknownFields()
    if err := dec.Decode(dst); err != nil {
        return fmt.Errorf("%w: body: %v", domain.ErrInvalidRequest, err)
    }
    return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(code)
    if err := json.NewEncoder(w).Encode(v); err != nil {
        log.Printf("write response: %v", err)
    }
}

// writeError maps the domain taxonomy onto status codes. Order matters:
// ErrAllIneligible also matches ErrNoAvailable.
func writeError(w http.ResponseWriter, err error) {
    switch {
    case errors.Is(err, domain.ErrInvalidRequest):
        writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: err.Error()})
    case errors.Is(err, domain.ErrAllIneligible):
        writeJSON(w, http.StatusConflict, errorResponse{Error: "all_ineligible", Message: err.Error()})
    case errors.Is(err, domain.ErrNoAvailable):
        writeJSON(w, http.StatusConflict, errorResponse{Error: "no_available", Message: err.Error()})
    case errors.Is(err, domain.ErrDayLocked):
        writeJSON(w, http.StatusConflict, errorResponse{Error: "locked", Message: err.Error()})
    case errors.Is(err, domain.ErrInvariantViolation):
        writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "invariant_violation", Message: "calendar store is inconsistent"})
    default:
        log.Printf("request failed: %v", err)
        writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal", Message: "internal error"})
    }
}
