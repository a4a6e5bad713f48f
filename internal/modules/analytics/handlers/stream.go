package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/aristath/portfolio-analytics/internal/events"
	"github.com/aristath/portfolio-analytics/internal/modules/portfolio"
)

// streamMessage is one frame of the report feed
type streamMessage struct {
	Type      string           `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Report    portfolio.Report `json:"report"`
}

// HandleStream handles GET /api/analytics/stream. It upgrades to a websocket,
// sends the latest report if one exists and then every newly computed one.
// Reports that arrive while the client is slow are dropped.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	reports := make(chan portfolio.Report, 4)
	if h.bus != nil {
		unsubscribe := h.bus.Subscribe(events.ReportReady, func(e events.Event) {
			data, ok := e.Data.(*events.ReportReadyData)
			if !ok {
				return
			}
			report, ok := data.Report.(portfolio.Report)
			if !ok {
				return
			}
			select {
			case reports <- report:
			default:
				h.log.Warn().Str("report_id", report.ID).Msg("Stream client is slow, dropping report")
			}
		})
		defer unsubscribe()
	}

	// the client never sends; CloseRead handles control frames and cancels ctx on close
	ctx := conn.CloseRead(r.Context())
	h.log.Info().Msg("Client connected to report stream")

	if report, ok := h.service.Latest(); ok {
		if err := h.send(ctx, conn, report); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from report stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case report := <-reports:
			if err := h.send(ctx, conn, report); err != nil {
				return
			}
		}
	}
}

func (h *Handler) send(ctx context.Context, conn *websocket.Conn, report portfolio.Report) error {
	data, err := json.Marshal(streamMessage{Type: "report", Timestamp: time.Now().UTC(), Report: report})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode report")
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		h.log.Debug().Err(err).Msg("Failed to write to report stream")
		return err
	}
	return nil
}
