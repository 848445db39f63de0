package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"

	"github.com/therealkaiharper-wq/openclaw-mission-control/internal/feed"
)

type wsWriter interface {
	Write(ctx context.Context, msgType websocket.MessageType, data []byte) error
}

func (s *Server) handleActivityWS(w http.ResponseWriter, r *http.Request) {
	if s.Feed == nil {
		writeError(w, http.StatusInternalServerError, errNotFound("activity feed"))
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	ctx := r.Context()
	if err := streamActivities(ctx, s.Feed, conn); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "stream error")
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "done")
}

func streamActivities(ctx context.Context, fd *feed.Feed, writer wsWriter) error {
	sub := fd.Subscribe(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case act, ok := <-sub:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(act)
			if err != nil {
				return err
			}
			if err := writer.Write(ctx, websocket.MessageText, payload); err != nil {
				return err
			}
		}
	}
}
