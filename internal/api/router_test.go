package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/LJTian/JuventudHub/internal/ingest"
	"github.com/LJTian/JuventudHub/internal/processor"
	"github.com/LJTian/JuventudHub/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var bogota = time.FixedZone("COT", -5*60*60)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, bogota)
}

type fakeLoader struct {
	articles []processor.Article
	err      error
}

func (f *fakeLoader) Load(context.Context) ([]processor.Article, error) {
	return f.articles, f.err
}

type fakeReports struct {
	report *ingest.Report
	err    error
}

func (f *fakeReports) LastReport() (*ingest.Report, error) {
	return f.report, f.err
}

func fixtures() []processor.Article {
	return []processor.Article{
		{Date: day(5), Title: "Jóvenes marchan en Bogotá", Source: "Blu Radio", City: "Bogotá", URL: "https://a/1", Summary: "Cientos de jóvenes"},
		{Date: day(5), Title: "Colegios cerrados en Cali", Source: "Pulzo", City: "Cali", URL: "https://b/2"},
		{Date: day(3), Title: "Niños vacunados", Source: "Pulzo", City: "Bogotá", URL: "https://b/3", Summary: "Campaña de primera infancia"},
		{Date: day(1), Title: "Estudiantes en paro", Source: "Infobae", City: processor.CityUnidentified, URL: "https://c/4"},
	}
}

func newTestRouter(t *testing.T, loader Loader, reports ReportSource) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	s := NewServer(loader, reports, nil, bogota, nil)
	s.now = func() time.Time { return time.Date(2024, 3, 5, 12, 0, 0, 0, bogota) }
	s.RegisterRoutes(r)
	return r
}

func get(t *testing.T, r http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type articlesResp struct {
	Code  string              `json:"code"`
	Total int                 `json:"total"`
	Data  []processor.Article `json:"data"`
}

func decodeArticles(t *testing.T, w *httptest.ResponseRecorder) articlesResp {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp articlesResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func urls(items []processor.Article) []string {
	out := make([]string, len(items))
	for i, a := range items {
		out[i] = a.URL
	}
	return out
}

func TestHealth(t *testing.T) {
	w := get(t, newTestRouter(t, &fakeLoader{}, nil), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	w := get(t, newTestRouter(t, &fakeLoader{}, nil), "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestListArticlesFilters(t *testing.T) {
	r := newTestRouter(t, &fakeLoader{articles: fixtures()}, nil)

	tests := []struct {
		name string
		path string
		want []string
	}{
		{"all", "/api/v1/articles", []string{"https://a/1", "https://b/2", "https://b/3", "https://c/4"}},
		{"date range inclusive", "/api/v1/articles?from=2024-03-03&to=2024-03-05", []string{"https://a/1", "https://b/2", "https://b/3"}},
		{"city list", "/api/v1/articles?city=Cali,unidentified", []string{"https://b/2", "https://c/4"}},
		{"source", "/api/v1/articles?source=pulzo", []string{"https://b/2", "https://b/3"}},
		{"term in summary", "/api/v1/articles?term=primera%20infancia", []string{"https://b/3"}},
		{"free text in title", "/api/v1/articles?q=paro", []string{"https://c/4"}},
		{"combined", "/api/v1/articles?city=Bogot%C3%A1&source=Pulzo", []string{"https://b/3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := decodeArticles(t, get(t, r, tt.path))
			assert.Equal(t, tt.want, urls(resp.Data))
			assert.Equal(t, len(tt.want), resp.Total)
		})
	}
}

func TestListArticlesLimit(t *testing.T) {
	r := newTestRouter(t, &fakeLoader{articles: fixtures()}, nil)
	resp := decodeArticles(t, get(t, r, "/api/v1/articles?limit=2"))
	assert.Len(t, resp.Data, 2)
	assert.Equal(t, 4, resp.Total)
}

func TestListArticlesBadQuery(t *testing.T) {
	r := newTestRouter(t, &fakeLoader{articles: fixtures()}, nil)
	for _, path := range []string{
		"/api/v1/articles?from=05-03-2024",
		"/api/v1/articles?limit=-1",
		"/api/v1/articles?limit=abc",
		"/api/v1/articles?from=2024-03-05&to=2024-03-01",
	} {
		w := get(t, r, path)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestLoadErrors(t *testing.T) {
	corrupt := newTestRouter(t, &fakeLoader{err: storage.ErrCorrupt}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, corrupt, "/api/v1/articles").Code)

	broken := newTestRouter(t, &fakeLoader{err: errors.New("boom")}, nil)
	assert.Equal(t, http.StatusInternalServerError, get(t, broken, "/api/v1/stats").Code)
}

func TestStats(t *testing.T) {
	r := newTestRouter(t, &fakeLoader{articles: fixtures()}, nil)
	w := get(t, r, "/api/v1/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data Stats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	st := resp.Data
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 3, st.Sources)
	assert.Equal(t, 3, st.Cities)
	assert.Equal(t, 2, st.Today)
	assert.Equal(t, 4, st.Last7)
	assert.Equal(t, Count{Key: "Pulzo", Count: 2}, st.BySource[0])
	assert.Equal(t, Count{Key: "Bogotá", Count: 2}, st.ByCity[0])
	assert.Equal(t, []Count{{"2024-03-01", 1}, {"2024-03-03", 1}, {"2024-03-05", 2}}, st.ByDay)
	require.NotEmpty(t, st.TopTerms)
	// "jóvenes" 同时出现在标题和摘要里，只计一次
	assert.Contains(t, st.TopTerms, Count{Key: "jóvenes", Count: 1})
}

func TestFilters(t *testing.T) {
	r := newTestRouter(t, &fakeLoader{articles: fixtures()}, nil)
	w := get(t, r, "/api/v1/filters")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data Filters `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"Bogotá", "Cali", processor.CityUnidentified}, resp.Data.Cities)
	assert.Equal(t, []string{"Blu Radio", "Infobae", "Pulzo"}, resp.Data.Sources)
	assert.Equal(t, processor.DefaultTerms, resp.Data.Terms)
	assert.Equal(t, "2024-03-01", resp.Data.MinDate)
	assert.Equal(t, "2024-03-05", resp.Data.MaxDate)
}

func TestReport(t *testing.T) {
	none := newTestRouter(t, &fakeLoader{}, &fakeReports{})
	assert.Equal(t, http.StatusNotFound, get(t, none, "/api/v1/report").Code)

	detached := newTestRouter(t, &fakeLoader{}, nil)
	assert.Equal(t, http.StatusNotFound, get(t, detached, "/api/v1/report").Code)

	r := newTestRouter(t, &fakeLoader{}, &fakeReports{
		report: &ingest.Report{Total: 9, Added: 2},
		err:    storage.ErrPersist,
	})
	w := get(t, r, "/api/v1/report")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"added":2`)
	assert.Contains(t, w.Body.String(), "persist articles failed")
}

func TestExport(t *testing.T) {
	r := newTestRouter(t, &fakeLoader{articles: fixtures()}, nil)
	w := get(t, r, "/api/v1/export?source=Pulzo")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "noticias-20240305.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, storage.Columns, rows[0])
	assert.Equal(t, "https://b/2", rows[1][4])
}

func TestBasicAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BasicAuth("admin", "secret"))
	NewServer(&fakeLoader{}, nil, nil, bogota, nil).RegisterRoutes(r)

	assert.Equal(t, http.StatusOK, get(t, r, "/health").Code)

	w := get(t, r, "/api/v1/articles")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/articles", nil)
	req.SetBasicAuth("admin", "secret")
	ok := httptest.NewRecorder()
	r.ServeHTTP(ok, req)
	assert.Equal(t, http.StatusOK, ok.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/articles", nil)
	req.SetBasicAuth("admin", "wrong")
	bad := httptest.NewRecorder()
	r.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusUnauthorized, bad.Code)
}
