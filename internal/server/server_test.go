package server

import (
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"participants-bot/internal/metrics"
	"participants-bot/internal/models"
	"participants-bot/internal/util"
)

type lister struct {
	records []models.Participant
	err     error
}

func (l lister) All(context.Context) ([]models.Participant, error) {
	return l.records, l.err
}

func newTestServer(l Lister) (http.Handler, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return New(l, reg, "secret", zerolog.Nop()).Router(), reg
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	h, _ := newTestServer(lister{})
	rec := get(h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestMetrics(t *testing.T) {
	h, reg := newTestServer(lister{})
	metrics.New(reg).IncRecord("created")

	rec := get(h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `participants_bot_records_total{op="created"} 1`)
}

func TestExport(t *testing.T) {
	h, _ := newTestServer(lister{records: []models.Participant{
		{ID: "1", FullNameRU: "Анна Иванова", Gender: "F", Role: "TEAM", Department: "Worship"},
		{ID: "2", FullNameRU: "Пётр, «Младший»", Gender: "M", Role: "CANDIDATE"},
	}})

	link := ExportURL("https://bot.example.org", "secret")
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/export/participants.csv", u.Path)

	rec := get(h, u.RequestURI())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))

	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "FullNameRU", rows[0][1])
	assert.Equal(t, []string{"1", "Анна Иванова"}, rows[1][:2])
	assert.Equal(t, "Пётр, «Младший»", rows[2][1])
	assert.Len(t, rows[1], len(models.AllFields)+1)
}

func TestExportRejectsBadToken(t *testing.T) {
	h, _ := newTestServer(lister{})

	assert.Equal(t, http.StatusBadRequest, get(h, "/export/participants.csv").Code)
	assert.Equal(t, http.StatusForbidden, get(h, "/export/participants.csv?token=deadbeef").Code)

	other := ExportURL("http://x", "another-secret")
	u, err := url.Parse(other)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, get(h, u.RequestURI()).Code)
}

func TestExportStorageFailure(t *testing.T) {
	h, _ := newTestServer(lister{err: errors.New("sheets down")})
	u, err := url.Parse(ExportURL("http://x", "secret"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, get(h, u.RequestURI()).Code)
}

func TestExportURLWithoutBase(t *testing.T) {
	assert.Empty(t, ExportURL("", "secret"))
	assert.Empty(t, ExportURL("https://bot.example.org", ""))
}

func TestExportDisabledWithoutSecret(t *testing.T) {
	h := New(lister{records: []models.Participant{{ID: "1", FullNameRU: "Анна"}}}, prometheus.NewRegistry(), "", zerolog.Nop()).Router()

	// a token computed with an empty key must not open the export
	target := "/export/participants.csv?token=" + util.HMACSHA256Hex("", "export:participants")
	assert.Equal(t, http.StatusNotFound, get(h, target).Code)
}
