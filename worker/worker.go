package worker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/Pawfulness/umamusume-tracker/config"
	"github.com/Pawfulness/umamusume-tracker/model"
	"github.com/Pawfulness/umamusume-tracker/refresh"

	"github.com/nats-io/nats.go"
)

// Worker owns the background refresh triggers: a periodic scheduler and an
// optional NATS subject for dashboard-initiated refreshes. Both funnel into
// the same coordinator entry points the HTTP API uses.
type Worker struct {
	cfg        *config.Config
	coord      *refresh.Coordinator
	natsConn   *nats.Conn
	cancelFunc context.CancelFunc
}

func NewWorker(cfg *config.Config, coord *refresh.Coordinator) *Worker {
	w := &Worker{
		cfg:   cfg,
		coord: coord,
	}

	if cfg.NATSUrl != "" {
		nc, err := nats.Connect(cfg.NATSUrl)
		if err != nil {
			// Messaging is an extra trigger path, not a dependency; the
			// scheduler keeps the cache fresh without it.
			log.Printf("[WARN] Failed to connect to NATS at %s: %v", cfg.NATSUrl, err)
		} else {
			w.natsConn = nc
		}
	}

	return w
}

func (w *Worker) Start(ctx context.Context) error {
	log.Println("Starting refresh worker...")

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	if w.natsConn != nil {
		_, err := w.natsConn.Subscribe(w.cfg.RefreshSubject, func(msg *nats.Msg) {
			w.handleRefreshRequest(workerCtx, msg)
		})
		if err != nil {
			return err
		}
		log.Printf("Successfully subscribed to %s", w.cfg.RefreshSubject)
	}

	go w.startScheduler(workerCtx)

	log.Println("Worker started successfully")
	return nil
}

func (w *Worker) Stop() {
	log.Println("Stopping refresh worker...")
	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	if w.natsConn != nil {
		w.natsConn.Close()
	}
}

// handleRefreshRequest runs a blocking refresh for a message-initiated
// trigger and publishes the outcome so the requester can observe it.
func (w *Worker) handleRefreshRequest(ctx context.Context, msg *nats.Msg) {
	log.Printf("Processing refresh request from subject %s", msg.Subject)

	outcome, err := w.coord.Refresh(ctx)
	if err != nil {
		log.Printf("[WARN] Refresh request abandoned: %v", err)
		return
	}

	result := model.RefreshResult{
		Success:     outcome.Err == nil,
		SlideCount:  outcome.SlideCount,
		Dropped:     outcome.Dropped,
		Expired:     outcome.Expired,
		ProcessedAt: outcome.CompletedAt,
	}
	if outcome.Err != nil {
		result.Error = outcome.Err.Error()
	} else {
		result.GeneratedAt = outcome.Snapshot.GeneratedAt
	}

	data, _ := json.Marshal(result)
	if err := w.natsConn.Publish(w.cfg.RefreshSubject+".result", data); err != nil {
		log.Printf("Failed to publish refresh result: %v", err)
	}
}

func (w *Worker) startScheduler(ctx context.Context) {
	log.Printf("Scheduling periodic refresh every %v", w.cfg.RefreshInterval)

	ticker := time.NewTicker(w.cfg.RefreshInterval)
	defer ticker.Stop()

	// Initial refresh so the cache is populated shortly after startup.
	w.coord.TriggerAsync()

	for {
		select {
		case <-ctx.Done():
			log.Println("Scheduler stopped")
			return
		case <-ticker.C:
			log.Println("Triggering scheduled refresh")
			w.coord.TriggerAsync()
		}
	}
}
