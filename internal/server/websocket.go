package server

import (
	"time"

	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/menta2k/overlay-editor/internal/middleware"
	"github.com/menta2k/overlay-editor/internal/response"
	"github.com/menta2k/overlay-editor/internal/session"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// handleWebSocket streams pointer and wheel events into a session and replies
// with the session state after each one
func (h *sessionHandler) handleWebSocket(c *websocket.Conn) {
	id := c.Params("id")
	log := h.srv.log.WithFields(logrus.Fields{"session_id": id})

	sess, ok := h.srv.store.Get(id)
	if !ok {
		_ = h.writeJSON(c, response.ErrorResponse{Error: ErrSessionNotFound.Error()})
		return
	}

	log.Info("Session WebSocket client connected")
	defer log.Info("Session WebSocket client disconnected")

	eventRate, eventBurst := h.srv.settings.EventRate, h.srv.settings.EventBurst
	if eventRate <= 0 || eventBurst <= 0 {
		eventRate, eventBurst = 120, 60
	}
	limiter := middleware.NewEventLimiter(eventRate, eventBurst)

	for {
		if err := c.SetReadDeadline(time.Now().Add(wsReadTimeout)); err != nil {
			log.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Errorf("Session WebSocket error: %v", err)
			}
			break
		}

		if messageType != websocket.TextMessage {
			log.Warnf("Received unexpected message type: %d", messageType)
			continue
		}

		var event EventMessage
		if err := jsoniter.Unmarshal(message, &event); err != nil {
			if err := h.writeJSON(c, response.ErrorResponse{Error: ErrInvalidBody.Error()}); err != nil {
				break
			}
			continue
		}
		if err := h.srv.validator.Struct(event); err != nil {
			if err := h.writeJSON(c, response.ErrorResponse{Error: err.Error(), Code: "VALIDATION_ERROR"}); err != nil {
				break
			}
			continue
		}

		// Only moves and wheel steps are throttled
		if throttled(event.Kind) && !limiter.Allow() {
			continue
		}

		sess.Touch(time.Now())
		changed := applyEvent(sess, event)

		if err := h.writeJSON(c, sessionResponse(sess, changed)); err != nil {
			log.Errorf("Error writing JSON response: %v", err)
			break
		}
	}

	// A dropped connection ends any drag in progress
	sess.Editor.PointerCancel()
}

func (h *sessionHandler) writeJSON(c *websocket.Conn, v any) error {
	if err := c.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	if err := c.WriteJSON(v); err != nil {
		return err
	}
	return c.SetWriteDeadline(time.Time{})
}

func throttled(kind string) bool {
	return kind == PointerMove || kind == EventWheel
}

func applyEvent(sess *session.Session, event EventMessage) bool {
	switch event.Kind {
	case EventWheel:
		return sess.Editor.Wheel(event.DeltaY, event.X, event.Y)
	case EventAngle:
		return sess.Editor.SetAngle(event.Angle)
	default:
		return applyPointer(sess.Editor, event.Kind, event.X, event.Y)
	}
}
