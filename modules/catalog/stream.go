package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pic2catalog-server/modules/common/utils"
)

const (
	streamTimeout = 5 * time.Minute
	readTimeout   = 30 * time.Second
	writeTimeout  = 10 * time.Second
)

// Stream message types
const (
	MessageStage  = "stage"
	MessageResult = "result"
	MessageError  = "error"
)

var upgrader = websocket.Upgrader{
	// any origin, same as the CORS policy
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamMessage - one server-to-client frame on /ws/catalog
type StreamMessage struct {
	Type      string       `json:"type"`
	RequestID string       `json:"request_id"`
	Stage     string       `json:"stage,omitempty"`
	Result    *ProductInfo `json:"result,omitempty"`
	Kind      string       `json:"kind,omitempty"`
	Message   string       `json:"message,omitempty"`
}

// handleStream - client sends one binary frame holding the image; the server
// reports each pipeline stage and ends with a result or an error frame.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("⚠️  [Catalog Stream] WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	requestID := uuid.NewString()
	logger := h.logger.With("request_id", requestID)

	send := func(msg StreamMessage) bool {
		msg.RequestID = requestID
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			logger.Warn("⚠️  [Catalog Stream] Write failed", "error", err)
			return false
		}
		return true
	}
	fail := func(err error) {
		_, kind := Classify(err)
		send(StreamMessage{Type: MessageError, Kind: kind, Message: ErrorDetail(err)})
	}

	svc, err := h.Service()
	if err != nil {
		logger.Error("❌ [Catalog Stream] Configuration error", "error", err)
		fail(err)
		return
	}

	// the frame is read through ReadImage so an oversized image is reported as
	// an upload error instead of tearing the connection down
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	msgType, frame, err := conn.NextReader()
	if err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			logger.Warn("⚠️  [Catalog Stream] Read failed", "error", err)
		}
		fail(fmt.Errorf("%w: %v", ErrMissingFile, err))
		return
	}
	if msgType != websocket.BinaryMessage {
		fail(fmt.Errorf("%w: expected a binary image frame", ErrMissingFile))
		return
	}

	img, err := utils.ReadImage(frame, h.maxUpload)
	if err != nil {
		logger.Warn("⚠️  [Catalog Stream] Rejected upload", "error", err)
		if !errors.Is(err, utils.ErrImageTooLarge) && !errors.Is(err, utils.ErrInvalidImage) {
			err = fmt.Errorf("%w: %v", ErrMissingFile, err)
		}
		fail(err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), streamTimeout)
	defer cancel()

	logger.Info("📸 [Catalog Stream] Generating product info", "mime_type", img.MIMEType, "bytes", len(img.Data))

	info, err := svc.Generate(ctx, img.Data, img.MIMEType, func(stage string) {
		if stage == StageDone {
			return
		}
		if !send(StreamMessage{Type: MessageStage, Stage: stage}) {
			cancel()
		}
	})
	if err != nil {
		logger.Error("❌ [Catalog Stream] Generation failed", "error", err)
		fail(err)
		return
	}

	send(StreamMessage{Type: MessageResult, Result: info})
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
