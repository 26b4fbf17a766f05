package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/menta2k/overlay-editor/internal/response"
	"github.com/menta2k/overlay-editor/internal/session"
	"github.com/menta2k/overlay-editor/internal/utils"
	"github.com/menta2k/overlay-editor/pkg/editor"
	"github.com/menta2k/overlay-editor/pkg/placement"
)

type sessionHandler struct {
	srv        *Server
	errHandler *response.ErrorHandler
}

func newSessionHandler(srv *Server) *sessionHandler {
	return &sessionHandler{
		srv:        srv,
		errHandler: response.NewErrorHandler(srv.log),
	}
}

func (h *sessionHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	srv.Post("/sessions", h.srv.middleware.NewRateLimiter, h.Create)

	sessions := srv.Group("/sessions")
	sessions.Get("/:id", h.Get)
	sessions.Delete("/:id", h.Delete)
	sessions.Post("/:id/pointer", h.Pointer)
	sessions.Post("/:id/wheel", h.Wheel)
	sessions.Post("/:id/angle", h.Angle)
	sessions.Put("/:id/placement", h.Placement)
	sessions.Post("/:id/detect", h.srv.middleware.NewRateLimiter, h.Detect)
	sessions.Get("/:id/frame", h.Frame)
	sessions.Get("/:id/debug", h.Debug)
	sessions.Get("/:id/export", h.Export)
	sessions.Get("/:id/ws", wsMiddleware, websocket.New(h.handleWebSocket))
}

// Create loads the uploaded photo into a new session and auto-places the overlay
func (h *sessionHandler) Create(ctx *fiber.Ctx) error {
	requestID := h.srv.middleware.GetRequestID(ctx)

	file, err := ctx.FormFile("image")
	if err != nil {
		return h.errHandler.Handle(ctx, requestID, ErrNoFile, "read_form_file")
	}

	h.srv.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"file_name":  file.Filename,
		"file_size":  utils.FormatFileSize(file.Size),
	}).Debug("Processing file upload")

	fileContent, err := file.Open()
	if err != nil {
		return h.errHandler.Handle(ctx, requestID, err, "open_file")
	}
	defer fileContent.Close()

	data, err := io.ReadAll(fileContent)
	if err != nil {
		return h.errHandler.Handle(ctx, requestID, err, "read_file")
	}

	img, format, err := h.srv.analyzer.LoadImageFromBytes(data)
	if err == nil {
		err = h.srv.analyzer.ValidateImage(img)
	}
	if err != nil {
		return h.errHandler.HandleWithDetails(ctx, requestID,
			response.Wrap(http.StatusUnprocessableEntity, err), "decode_image", decodeFailedStatus)
	}

	ed := editor.New(h.srv.processor, h.srv.overlay, h.srv.placement)
	ed.Load(img)
	h.autoPlace(ctx.UserContext(), requestID, ed)

	sess := session.New(ed)
	if err := h.srv.store.Add(sess); err != nil {
		if errors.Is(err, session.ErrStoreFull) {
			return h.errHandler.Handle(ctx, requestID, ErrTooManySessions, "store_session")
		}
		return h.errHandler.Handle(ctx, requestID, err, "store_session")
	}

	h.srv.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"session_id": sess.ID,
		"format":     format,
		"width":      img.Bounds().Dx(),
		"height":     img.Bounds().Dy(),
	}).Info("Session created")

	return h.errHandler.HandleSuccess(ctx, fiber.StatusCreated, sessionResponse(sess, true))
}

func (h *sessionHandler) Get(ctx *fiber.Ctx) error {
	requestID := h.srv.middleware.GetRequestID(ctx)
	sess, err := h.lookup(ctx)
	if err != nil {
		return h.errHandler.Handle(ctx, requestID, err, "get_session")
	}
	return h.errHandler.HandleSuccess(ctx, fiber.StatusOK, sessionResponse(sess, false))
}

func (h *sessionHandler) Delete(ctx *fiber.Ctx) error {
	requestID := h.srv.middleware.GetRequestID(ctx)
	if !h.srv.store.Delete(ctx.Params("id")) {
		return h.errHandler.Handle(ctx, requestID, ErrSessionNotFound, "delete_session")
	}
	return h.errHandler.HandleSuccess(ctx, fiber.StatusNoContent, nil)
}

func (h *sessionHandler) Pointer(ctx *fiber.Ctx) error {
	requestID := h.srv.middleware.GetRequestID(ctx)
	sess, err := h.lookup(ctx)
	if err != nil {
		return h.errHandler.Handle(ctx, requestID, err, "pointer")
	}

	var req PointerRequest
	if err := ctx.BodyParser(&req); err != nil {
		return h.errHandler.Handle(ctx, requestID, ErrInvalidBody, "parse_request_body")
	}
	if err := h.srv.validator.Struct(req); err != nil {
		return h.errHandler.HandleValidationError(ctx, requestID, err)
	}

	changed := applyPointer(sess.Editor, req.Type, req.X, req.Y)
	return h.errHandler.HandleSuccess(ctx, fiber.StatusOK, sessionResponse(sess, changed))
}

func (h *sessionHandler) Wheel(ctx *fiber.Ctx) error {
	requestID := h.srv.middleware.GetRequestID(ctx)
	sess, err := h.lookup(ctx)
	if err != nil {
		return h.errHandler.Handle(ctx, requestID, err, "wheel")
	}

	var req WheelRequest
	if err := ctx.BodyParser(&req); err != nil {
		return h.errHandler.Handle(ctx, requestID, ErrInvalidBody, "parse_request_body")
	}
	if err := h.srv.validator.Struct(req); err != nil {
		return h.errHandler.HandleValidationError(ctx, requestID, err)
	}

	changed := sess.Editor.Wheel(req.DeltaY, req.X, req.Y)
	return h.errHandler.HandleSuccess(ctx, fiber.StatusOK, sessionResponse(sess, changed))
}

func (h *sessionHandler) Angle(ctx *fiber.Ctx) error {
	requestID := h.srv.middleware.GetRequestID(ctx)
	sess, err := h.lookup(ctx)
	if err != nil {
		return h.errHandler.Handle(ctx, requestID, err, "angle")
	}

	var req AngleRequest
	if err := ctx.BodyParser(&req); err != nil {
		return h.errHandler.Handle(ctx, requestID, ErrInvalidBody, "parse_request_body")
	}
	if err := h.srv.validator.Struct(req); err != nil {
		return h.errHandler.HandleValidationError(ctx, requestID, err)
	}

	changed := sess.Editor.SetAngle(req.Angle)
	return h.errHandler.HandleSuccess(ctx, fiber.StatusOK, sessionResponse(sess, changed))
}

func (h *sessionHandler) Placement(ctx *fiber.Ctx) error {
	requestID := h.srv.middleware.GetRequestID(ctx)
	sess, err := h.lookup(ctx)
	if err != nil {
		return h.errHandler.Handle(ctx, requestID, err, "placement")
	}

	var req PlacementRequest
	if err := ctx.BodyParser(&req); err != nil {
		return h.errHandler.Handle(ctx, requestID, ErrInvalidBody, "parse_request_body")
	}
	if err := h.srv.validator.Struct(req); err != nil {
		return h.errHandler.HandleValidationError(ctx, requestID, err)
	}

	pl := placement.Placement{
		X:      req.X,
		Y:      req.Y,
		Width:  req.Width,
		Height: req.Height,
		Scale:  req.Width / float64(h.srv.overlay.Bounds().Dx()),
		Angle:  req.Angle,
	}
	if err := sess.Editor.SetPlacement(pl); err != nil {
		return h.errHandler.Handle(ctx, requestID, mapEditorError(err), "placement")
	}
	return h.errHandler.HandleSuccess(ctx, fiber.StatusOK, sessionResponse(sess, true))
}

// Detect runs auto-placement again, for example after the detector finished loading
func (h *sessionHandler) Detect(ctx *fiber.Ctx) error {
	requestID := h.srv.middleware.GetRequestID(ctx)
	sess, err := h.lookup(ctx)
	if err != nil {
		return h.errHandler.Handle(ctx, requestID, err, "detect")
	}

	h.autoPlace(ctx.UserContext(), requestID, sess.Editor)
	return h.errHandler.HandleSuccess(ctx, fiber.StatusOK, sessionResponse(sess, true))
}

func (h *sessionHandler) Frame(ctx *fiber.Ctx) error {
	requestID := h.srv.middleware.GetRequestID(ctx)
	sess, err := h.lookup(ctx)
	if err != nil {
		return h.errHandler.Handle(ctx, requestID, err, "frame")
	}

	var buf bytes.Buffer
	if err := sess.Editor.ExportPNG(&buf); err != nil {
		return h.errHandler.Handle(ctx, requestID, mapEditorError(err), "encode_frame")
	}

	ctx.Set(fiber.HeaderContentType, "image/png")
	ctx.Set(fiber.HeaderCacheControl, "no-store")
	return ctx.Send(buf.Bytes())
}

// Export downloads the last drawn frame as an attachment
func (h *sessionHandler) Export(ctx *fiber.Ctx) error {
	requestID := h.srv.middleware.GetRequestID(ctx)
	sess, err := h.lookup(ctx)
	if err != nil {
		return h.errHandler.Handle(ctx, requestID, err, "export")
	}

	var buf bytes.Buffer
	if err := sess.Editor.ExportPNG(&buf); err != nil {
		return h.errHandler.Handle(ctx, requestID, mapEditorError(err), "export")
	}

	h.srv.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"session_id": sess.ID,
		"bytes":      buf.Len(),
	}).Info("Frame exported")

	ctx.Attachment(h.srv.exportName)
	ctx.Set(fiber.HeaderContentType, "image/png")
	return ctx.Send(buf.Bytes())
}

func (h *sessionHandler) Debug(ctx *fiber.Ctx) error {
	requestID := h.srv.middleware.GetRequestID(ctx)
	sess, err := h.lookup(ctx)
	if err != nil {
		return h.errHandler.Handle(ctx, requestID, err, "debug")
	}

	img, err := sess.Editor.DebugFrame()
	if err != nil {
		return h.errHandler.Handle(ctx, requestID, mapEditorError(err), "debug_frame")
	}

	var buf bytes.Buffer
	if err := h.srv.processor.EncodePNG(&buf, img); err != nil {
		return h.errHandler.Handle(ctx, requestID, err, "encode_debug")
	}

	ctx.Set(fiber.HeaderContentType, "image/png")
	return ctx.Send(buf.Bytes())
}

func (h *sessionHandler) lookup(ctx *fiber.Ctx) (*session.Session, error) {
	sess, ok := h.srv.store.Get(ctx.Params("id"))
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// autoPlace runs detection with the server timeout. Detector problems are logged
// and leave the session in manual mode.
func (h *sessionHandler) autoPlace(parent context.Context, requestID string, ed *editor.Editor) {
	c, cancel := context.WithTimeout(parent, h.srv.detTimeout)
	defer cancel()

	start := time.Now()
	status, err := ed.AutoPlace(c, h.srv.currentDetector())

	fields := logrus.Fields{
		"request_id":  requestID,
		"status":      status.Kind,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
		h.srv.log.WithFields(fields).Warn("Face detection failed, manual placement")
		return
	}
	h.srv.log.WithFields(fields).Debug("Auto placement done")
}

func applyPointer(ed *editor.Editor, kind string, x, y float64) bool {
	switch kind {
	case PointerDown:
		return ed.PointerDown(x, y)
	case PointerMove:
		return ed.PointerMove(x, y)
	case PointerUp:
		ed.PointerUp(x, y)
	case PointerCancel:
		ed.PointerCancel()
	}
	return false
}

func mapEditorError(err error) error {
	switch {
	case errors.Is(err, editor.ErrNoBackground):
		return ErrNoFrame
	case errors.Is(err, placement.ErrOutOfBounds):
		return response.Wrap(http.StatusUnprocessableEntity, err)
	}
	return err
}

func sessionResponse(sess *session.Session, changed bool) SessionResponse {
	return SessionResponse{
		ID:       sess.ID,
		Changed:  changed,
		Snapshot: sess.Editor.Snapshot(),
	}
}
