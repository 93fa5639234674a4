package handlers

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/petermazzocco/photostockage/internal/auth"
	"github.com/petermazzocco/photostockage/internal/events"
	"github.com/petermazzocco/photostockage/internal/metrics"
	"github.com/petermazzocco/photostockage/internal/storage"
)

// Server holds what the same-origin routes need. Ledger, Mailer and the
// health dependencies are optional.
type Server struct {
	Log      zerolog.Logger
	Blobs    storage.Blobs
	Ledger   Ledger
	Mailer   Mailer
	Mail     MailSettings
	Sessions sessions.Store
	Broker   auth.Broker
	Hub      *events.Hub
	// StaticDir is served under /images/users when set.
	StaticDir string
	Health    map[string]Pinger
	// RateLimit is requests per minute per client and endpoint on /api.
	RateLimit int
}

// NewRouter builds the chi router with every route registered.
func NewRouter(s Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(s.Log))
	r.Use(requestIDField)
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Instrument)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		HealthHandler(w, r, s.Health)
	})
	r.Handle("/metrics", promhttp.Handler())

	if s.StaticDir != "" {
		fs := http.StripPrefix(storage.PublicPrefix, http.FileServer(noDirs{http.Dir(s.StaticDir)}))
		r.Get(storage.PublicPrefix+"*", fs.ServeHTTP)
	}

	limit := s.RateLimit
	if limit <= 0 {
		limit = 20
	}
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(httprate.Limit(
				limit,
				1*time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
			))
			r.Post("/upload", func(w http.ResponseWriter, r *http.Request) {
				UploadImageHandler(w, r, s.Blobs, s.Ledger)
			})
			r.Delete("/upload/{name}", func(w http.ResponseWriter, r *http.Request) {
				DeleteUploadHandler(w, r, s.Blobs, s.Ledger)
			})
			r.Post("/email", func(w http.ResponseWriter, r *http.Request) {
				EmailHandler(w, r, s.Mailer, s.Mail)
			})

			session := r.With(auth.SessionMiddleware(s.Sessions))
			session.Get("/session", func(w http.ResponseWriter, r *http.Request) {
				GetSessionHandler(w, r, s.Broker)
			})
			session.Put("/session", func(w http.ResponseWriter, r *http.Request) {
				PutSessionHandler(w, r, s.Broker)
			})
			session.Patch("/session", func(w http.ResponseWriter, r *http.Request) {
				PatchSessionHandler(w, r, s.Broker)
			})
			session.Delete("/session", func(w http.ResponseWriter, r *http.Request) {
				DeleteSessionHandler(w, r, s.Broker)
			})
		})

		// Listeners stay connected, so they are not rate limited.
		if s.Hub != nil {
			r.Get("/session/events", s.Hub.ServeWS)
		}
	})
	return r
}

// requestIDField adds chi's request id to the request logger.
func requestIDField(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("req_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

// noDirs hides directory listings.
type noDirs struct {
	fs http.FileSystem
}

func (n noDirs) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	if st, err := f.Stat(); err == nil && st.IsDir() {
		f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}
