package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LJTian/DailyBriefing/internal/briefing"
	"github.com/LJTian/DailyBriefing/internal/publish"
	"github.com/LJTian/DailyBriefing/internal/storage"
)

type fakeStore struct {
	list      []storage.Briefing
	latest    *storage.Briefing
	err       error
	lastLimit int
}

func (f *fakeStore) LatestBriefing(ctx context.Context) (*storage.Briefing, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.latest == nil {
		return nil, storage.ErrNotFound
	}
	return f.latest, nil
}

func (f *fakeStore) ListBriefings(ctx context.Context, limit int) ([]storage.Briefing, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.list, nil
}

type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(s *Server) *gin.Engine {
	r := gin.New()
	s.RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

var sampleBriefing = storage.Briefing{
	ID:             "8a4d1c52-7f0e-4a55-9d7a-1f0c7d0b9e11",
	BriefingDate:   "2026-10-19",
	FeedUID:        "savannah-latest",
	Title:          "Savannah Daily Briefing",
	ObjectKey:      "savannah-briefings/latest.mp3",
	StreamURL:      "https://b.s3.us-east-2.amazonaws.com/savannah-briefings/latest.mp3",
	RedirectionURL: "https://example.github.io/",
	PublishedAt:    time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC),
}

func TestHealth(t *testing.T) {
	w := do(newRouter(NewServer(nil, nil, "")), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestListBriefings(t *testing.T) {
	store := &fakeStore{list: []storage.Briefing{sampleBriefing}}
	r := newRouter(NewServer(store, nil, ""))

	w := do(r, http.MethodGet, "/api/v1/briefings?limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, store.lastLimit)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "ok", env.Code)
	var list []storage.Briefing
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, sampleBriefing.StreamURL, list[0].StreamURL)

	do(r, http.MethodGet, "/api/v1/briefings?limit=abc")
	assert.Equal(t, 20, store.lastLimit)
}

func TestListBriefingsStoreError(t *testing.T) {
	r := newRouter(NewServer(&fakeStore{err: errors.New("db down")}, nil, ""))
	w := do(r, http.MethodGet, "/api/v1/briefings")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal_error")
}

func TestHistoryDisabledWithoutStore(t *testing.T) {
	r := newRouter(NewServer(nil, nil, ""))
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/api/v1/briefings").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/api/v1/briefings/latest").Code)
}

func TestLatestBriefing(t *testing.T) {
	r := newRouter(NewServer(&fakeStore{}, nil, ""))
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/briefings/latest").Code)

	b := sampleBriefing
	r = newRouter(NewServer(&fakeStore{latest: &b}, nil, ""))
	w := do(r, http.MethodGet, "/api/v1/briefings/latest")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"objectKey":"savannah-briefings/latest.mp3"`)
}

func TestFeedFromLatestBriefing(t *testing.T) {
	b := sampleBriefing
	r := newRouter(NewServer(&fakeStore{latest: &b}, nil, ""))

	w := do(r, http.MethodGet, "/feed.json")
	require.Equal(t, http.StatusOK, w.Code)

	var feed []publish.FeedRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &feed))
	require.Len(t, feed, 1)
	assert.Equal(t, "savannah-latest", feed[0].UID)
	assert.Equal(t, "2026-10-19T10:00:00.0Z", feed[0].UpdateDate)
	assert.Equal(t, sampleBriefing.StreamURL, feed[0].StreamURL)
	assert.Equal(t, "", feed[0].MainText)
}

func TestFeedUpdateDateDropsSubSeconds(t *testing.T) {
	b := sampleBriefing
	b.PublishedAt = time.Date(2026, 10, 19, 10, 0, 7, 654321000, time.UTC)
	r := newRouter(NewServer(&fakeStore{latest: &b}, nil, ""))

	w := do(r, http.MethodGet, "/feed.json")
	require.Equal(t, http.StatusOK, w.Code)

	var feed []publish.FeedRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &feed))
	require.Len(t, feed, 1)
	assert.Equal(t, "2026-10-19T10:00:07.0Z", feed[0].UpdateDate)
}

func TestFeedFallsBackToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.json")
	content := `[{"uid":"savannah-latest"}]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	r := newRouter(NewServer(&fakeStore{}, nil, path))
	w := do(r, http.MethodGet, "/feed.json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, content, w.Body.String())

	r = newRouter(NewServer(nil, nil, filepath.Join(t.TempDir(), "missing.json")))
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/feed.json").Code)
}

func TestRunBriefing(t *testing.T) {
	run := func(ctx context.Context) (*briefing.Outcome, error) {
		return &briefing.Outcome{
			ObjectKey: "savannah-briefings/latest.mp3",
			StreamURL: sampleBriefing.StreamURL,
		}, nil
	}
	r := newRouter(NewServer(nil, run, ""))

	w := do(r, http.MethodPost, "/api/v1/briefings/run")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), sampleBriefing.StreamURL)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/briefings/run").Code)
}

func TestRunBriefingConflictAndFailure(t *testing.T) {
	busy := func(ctx context.Context) (*briefing.Outcome, error) {
		return nil, briefing.ErrRunInProgress
	}
	w := do(newRouter(NewServer(nil, busy, "")), http.MethodPost, "/api/v1/briefings/run")
	assert.Equal(t, http.StatusConflict, w.Code)

	broken := func(ctx context.Context) (*briefing.Outcome, error) {
		return nil, errors.New("polly down")
	}
	w = do(newRouter(NewServer(nil, broken, "")), http.MethodPost, "/api/v1/briefings/run")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = do(newRouter(NewServer(nil, nil, "")), http.MethodPost, "/api/v1/briefings/run")
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestBasicAuth(t *testing.T) {
	r := gin.New()
	r.Use(BasicAuth("editor", "s3cret"))
	b := sampleBriefing
	NewServer(&fakeStore{latest: &b}, nil, "").RegisterRoutes(r)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health").Code)
	// 播放端不带密码拉取订阅源
	w := do(r, http.MethodGet, "/feed.json")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), sampleBriefing.StreamURL)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/v1/briefings/latest").Code)

	w = do(r, http.MethodGet, "/api/v1/briefings")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/briefings", nil)
	req.SetBasicAuth("editor", "wrong")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/briefings", nil)
	req.SetBasicAuth("editor", "s3cret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
