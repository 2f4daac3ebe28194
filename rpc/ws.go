package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"contractorium/core/events"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsBuffer       = 256
)

// handleEventsWS streams committed events. Clients resume with ?after=<seq>;
// retained history above the cursor is replayed before live records.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s == nil || s.node == nil {
		http.Error(w, "node unavailable", http.StatusServiceUnavailable)
		return
	}
	var after uint64
	if cursor := strings.TrimSpace(r.URL.Query().Get("after")); cursor != "" {
		parsed, err := strconv.ParseUint(cursor, 10, 64)
		if err != nil {
			http.Error(w, "invalid cursor", http.StatusBadRequest)
			return
		}
		after = parsed
	}
	filter := strings.TrimSpace(r.URL.Query().Get("type"))
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, after, filter); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, after uint64, filter string) error {
	feed := s.node.Feed()
	updates, cancel := feed.Subscribe(wsBuffer)
	defer cancel()

	last := after
	for _, rec := range feed.Since(after, 0) {
		if err := writeRecord(ctx, conn, rec, filter); err != nil {
			return err
		}
		last = rec.Seq
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-updates:
			if !ok {
				return nil
			}
			if rec.Seq <= last {
				continue
			}
			if err := writeRecord(ctx, conn, rec, filter); err != nil {
				return err
			}
			last = rec.Seq
		}
	}
}

func writeRecord(ctx context.Context, conn *websocket.Conn, rec events.Record, filter string) error {
	if filter != "" && (rec.Event == nil || !strings.HasPrefix(rec.Event.Type, filter)) {
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
