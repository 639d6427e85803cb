package handler

import (
	"log"
	"net/http"

	"github.com/Pawfulness/umamusume-tracker/cache"
	"github.com/Pawfulness/umamusume-tracker/metrics"
	"github.com/Pawfulness/umamusume-tracker/model"
	"github.com/Pawfulness/umamusume-tracker/refresh"

	"github.com/gin-gonic/gin"
)

// Handler serves the dashboard read path and the refresh trigger. Reads
// never wait on a refresh and never start one.
type Handler struct {
	store *cache.Store
	coord *refresh.Coordinator
}

func New(store *cache.Store, coord *refresh.Coordinator) *Handler {
	return &Handler{store: store, coord: coord}
}

// GetEvents returns the current snapshot as the dashboard payload. It
// always answers 200 with the best available data, regardless of refresh
// state or upstream health.
func (h *Handler) GetEvents(c *gin.Context) {
	snap := h.store.Current()

	payload := model.DashboardPayload{
		GeneratedAt: snap.GeneratedAt,
		Freshness:   snap.Freshness,
		Slides:      snap.Slides,
	}
	if payload.Slides == nil {
		payload.Slides = []model.Slide{}
	}

	metrics.SlidesServed.Add(float64(len(payload.Slides)))
	c.JSON(http.StatusOK, payload)
}

// TriggerRefresh starts a refresh without waiting for it and answers 202
// immediately. Whether the run eventually succeeds is observable only
// through the freshness marker on subsequent reads.
func (h *Handler) TriggerRefresh(c *gin.Context) {
	status := "refresh-triggered"
	if !h.coord.TriggerAsync() {
		status = "already-in-progress"
	}

	log.Printf("[INFO] Manual refresh requested: %s", status)
	c.JSON(http.StatusAccepted, gin.H{"status": status})
}
