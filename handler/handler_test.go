package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Pawfulness/umamusume-tracker/cache"
	"github.com/Pawfulness/umamusume-tracker/model"
	"github.com/Pawfulness/umamusume-tracker/refresh"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	records []model.RawRecord
	gate    chan struct{}
}

func (s *stubSource) Fetch(ctx context.Context) ([]model.RawRecord, error) {
	if s.gate != nil {
		<-s.gate
	}
	return s.records, nil
}

func newTestRouter(store *cache.Store, coord *refresh.Coordinator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := New(store, coord)
	r.GET("/api/events", h.GetEvents)
	r.POST("/api/refresh", h.TriggerRefresh)
	return r
}

func TestGetEventsNeverPopulated(t *testing.T) {
	store := cache.NewStore()
	coord := refresh.NewCoordinator(&stubSource{}, store, time.Second)
	r := newTestRouter(store, coord)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		GeneratedAt time.Time       `json:"generated_at"`
		Freshness   model.Freshness `json:"freshness"`
		Slides      []model.Slide   `json:"slides"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, model.FreshnessNeverPopulated, payload.Freshness)
	require.NotNil(t, payload.Slides)
	require.Empty(t, payload.Slides)
}

func TestGetEventsServesSnapshot(t *testing.T) {
	store := cache.NewStore()
	coord := refresh.NewCoordinator(&stubSource{}, store, time.Second)
	r := newTestRouter(store, coord)

	generated := time.Date(2025, time.August, 23, 12, 0, 0, 0, time.UTC)
	store.Publish(&model.Snapshot{
		Slides: []model.Slide{
			{ID: "a", Title: "A", Category: model.CategoryBanner},
			{ID: "b", Title: "B", Category: model.CategoryEvent},
		},
		GeneratedAt: generated,
		Freshness:   model.FreshnessOK,
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var payload model.DashboardPayload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, model.FreshnessOK, payload.Freshness)
	require.True(t, payload.GeneratedAt.Equal(generated))
	require.Len(t, payload.Slides, 2)
	require.Equal(t, "a", payload.Slides[0].ID)
}

func TestTriggerRefreshReportsInProgress(t *testing.T) {
	store := cache.NewStore()
	source := &stubSource{gate: make(chan struct{})}
	coord := refresh.NewCoordinator(source, store, 5*time.Second)
	r := newTestRouter(store, coord)

	post := func() string {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusAccepted, w.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return body["status"]
	}

	require.Equal(t, "refresh-triggered", post())
	require.Equal(t, "already-in-progress", post())

	close(source.gate)
	require.Eventually(t, func() bool {
		return coord.State() == refresh.StateIdle
	}, time.Second, 5*time.Millisecond)
}
