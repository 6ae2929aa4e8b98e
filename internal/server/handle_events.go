package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/geotagger/client/internal/bus"
	"github.com/geotagger/client/internal/presenter"
)

const pointsBuffer = 16

// subscribePoints forwards point notifications as encoded payloads. A slow
// reader loses updates instead of stalling the publisher.
func subscribePoints(b *bus.Bus, logger *slog.Logger) (<-chan []byte, func()) {
	ch := make(chan []byte, pointsBuffer)
	unsubscribe := b.Subscribe(bus.TopicPointsUpdated, func(p bus.Payload) {
		data, err := json.Marshal(p)
		if err != nil {
			logger.Error("encoding points payload", "error", err)
			return
		}
		select {
		case ch <- data:
		default:
			logger.Debug("dropping points update for slow subscriber")
		}
	})
	return ch, unsubscribe
}

func handleEvents(b *bus.Bus, badge *presenter.Badge, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		ch, unsubscribe := subscribePoints(b, logger)
		defer unsubscribe()

		view, _ := json.Marshal(badge.View())
		fmt.Fprintf(w, "event: badge\ndata: %s\n\n", view)
		flusher.Flush()

		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case data := <-ch:
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", bus.TopicPointsUpdated, data)
				flusher.Flush()
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}
