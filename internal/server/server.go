package server

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"participants-bot/internal/models"
	"participants-bot/internal/util"
)

// exportScope is the message the export token signs.
const exportScope = "export:participants"

// Lister returns every participant record.
type Lister interface {
	All(ctx context.Context) ([]models.Participant, error)
}

type Server struct {
	records  Lister
	gatherer prometheus.Gatherer
	secret   string
	log      zerolog.Logger
}

func New(records Lister, gatherer prometheus.Gatherer, exportSecret string, log zerolog.Logger) *Server {
	return &Server{
		records:  records,
		gatherer: gatherer,
		secret:   exportSecret,
		log:      log.With().Str("component", "http").Logger(),
	}
}

// HTTPServer wraps the router in an *http.Server listening on addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	// CSV export (admin link with token = HMAC), off without a secret
	if s.secret != "" {
		r.Get("/export/participants.csv", s.export)
	}

	return r
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "token required", http.StatusBadRequest)
		return
	}
	if !util.VerifyHMACSHA256Hex(s.secret, exportScope, token) {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}

	records, err := s.records.All(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("export participants")
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="participants.csv"`)

	cw := csv.NewWriter(w)
	header := []string{"ID"}
	for _, f := range models.AllFields {
		header = append(header, string(f))
	}
	_ = cw.Write(header)
	for i := range records {
		row := []string{records[i].ID}
		for _, f := range models.AllFields {
			row = append(row, records[i].Get(f))
		}
		_ = cw.Write(row)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.log.Warn().Err(err).Msg("write csv")
	}
}

// ExportURL builds the signed export link. It returns "" unless both the
// base URL and the secret are set.
func ExportURL(baseURL, secret string) string {
	if baseURL == "" || secret == "" {
		return ""
	}
	q := url.Values{"token": {util.HMACSHA256Hex(secret, exportScope)}}
	return baseURL + "/export/participants.csv?" + q.Encode()
}
