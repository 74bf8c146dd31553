package server

import (
	"encoding/json"
	"errors"
	"expvar"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"curetrack/internal/core"
	"curetrack/internal/temporal"
	"curetrack/pkg/domain"
)

// StatusView is the JSON form of temporal.Status.
type StatusView struct {
	Label    string            `json:"label"`
	Severity temporal.Severity `json:"severity"`
	Color    string            `json:"color"`
	Amount   int               `json:"amount,omitempty"`
	Unit     temporal.Unit     `json:"unit,omitempty"`
}

// SampleView is the JSON form of a sample as observed at the request time.
type SampleView struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	CureStart    time.Time  `json:"cureStart"`
	CureDays     int        `json:"cureDays"`
	DueDate      time.Time  `json:"dueDate"`
	DueDay       string     `json:"dueDay"`
	Completed    bool       `json:"completed"`
	CreatedAt    time.Time  `json:"createdAt"`
	PhotoURI     string     `json:"photoUri,omitempty"`
	Reminders    int        `json:"reminders"`
	CalendarSync bool       `json:"calendarSync"`
	Status       StatusView `json:"status"`
}

// NewSampleView classifies s at now.
func NewSampleView(s domain.Sample, now time.Time, loc *time.Location) SampleView {
	st := temporal.Classify(s.DueDate, now, s.Completed)
	return SampleView{
		ID:           s.ID,
		Name:         s.Name,
		CureStart:    s.CureStart,
		CureDays:     s.CureDays,
		DueDate:      s.DueDate,
		DueDay:       temporal.FormatDate(s.DueDate, loc),
		Completed:    s.Completed,
		CreatedAt:    s.CreatedAt,
		PhotoURI:     s.PhotoURI(),
		Reminders:    len(s.ReminderIDs),
		CalendarSync: s.CalendarSyncEnabled,
		Status: StatusView{
			Label:    st.Label,
			Severity: st.Severity,
			Color:    st.Color,
			Amount:   st.Amount,
			Unit:     st.Unit,
		},
	}
}

type errorBody struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// Router wires the HTTP routes.
func (s *Server) Router() *mux.Router {
	root := mux.NewRouter()
	root.Use(s.recoverPanics)

	root.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	root.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	root.Handle("/debug/vars", expvar.Handler()).Methods(http.MethodGet)

	api := root.PathPrefix("/api").Subrouter()
	api.HandleFunc("/samples", s.listSamples).Methods(http.MethodGet)
	api.HandleFunc("/samples/{id}", s.getSample).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.stats).Methods(http.MethodGet)
	api.HandleFunc("/next", s.next).Methods(http.MethodGet)
	return root
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered",
					"panic", rec,
					"method", r.Method,
					"url", r.URL.String(),
					"stack", string(debug.Stack()))
				writeError(w, http.StatusInternalServerError, "Internal Server Error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listSamples(w http.ResponseWriter, r *http.Request) {
	samples, err := s.samples.List(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	now, loc := s.samples.Now(), s.samples.Location()
	out := make([]SampleView, 0, len(samples))
	for _, sample := range samples {
		out = append(out, NewSampleView(sample, now, loc))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getSample(w http.ResponseWriter, r *http.Request) {
	sample, err := s.samples.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewSampleView(sample, s.samples.Now(), s.samples.Location()))
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	samples, err := s.samples.List(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, core.ComputeStats(samples, s.samples.Now()))
}

func (s *Server) next(w http.ResponseWriter, r *http.Request) {
	samples, err := s.samples.List(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	now := s.samples.Now()
	up, ok := core.SoonestDue(samples, now)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, NewSampleView(up.Sample, now, s.samples.Location()))
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	var notFound core.ErrNotFound
	if errors.As(err, &notFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Error("request failed", "err", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: status})
}
