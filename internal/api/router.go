package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/harrylevesque/pinauth/internal/auth"
)

const requestIDHeader = "X-Request-ID"

// NewRouter returns the HTTP API for svc.
func NewRouter(svc *auth.Service, log zerolog.Logger) *mux.Router {
	h := &Handler{svc: svc, log: log}

	r := mux.NewRouter()
	r.Use(h.requestLogger)
	r.HandleFunc("/health", h.Health).Methods("GET")

	pin := r.PathPrefix("/pin").Subrouter()
	pin.HandleFunc("/validate/registration", h.ValidateRegistration).Methods("POST")
	pin.HandleFunc("/validate/login", h.ValidateLogin).Methods("POST")
	pin.HandleFunc("/register", h.Register).Methods("POST")
	pin.HandleFunc("/login", h.Login).Methods("POST")
	pin.HandleFunc("/change", h.Change).Methods("POST")
	pin.HandleFunc("/status", h.Status).Methods("GET")
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLogger tags each request with an id and logs its outcome.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		logger := h.log.With().Str("request_id", id).Logger()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(logger.WithContext(r.Context())))

		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
