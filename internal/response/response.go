package response

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/menta2k/overlay-editor/internal/logger"
)

// Error is an error with an HTTP status code
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var t *Error
	ok := errors.As(target, &t)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Err.Error() == t.Err.Error()
}

func NewError(code int, err string) error {
	return &Error{code, errors.New(err)}
}

// Wrap attaches an HTTP status code to an existing error
func Wrap(code int, err error) error {
	return &Error{code, err}
}

// ErrorResponse is the JSON body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// ErrorHandler turns errors into JSON replies and logs them
type ErrorHandler struct {
	logger *logrus.Logger
}

func NewErrorHandler(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// Handle replies with the status carried by err, or 500 for anything else
func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, operation string) error {
	fields := logrus.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       c.Path(),
		"operation":  operation,
	}

	var respErr *Error
	if errors.As(err, &respErr) {
		fields["code"] = respErr.Code
		h.logger.WithFields(fields).Warn("Operation failed with error response")
		return c.Status(respErr.Code).JSON(ErrorResponse{Error: err.Error()})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		fields["code"] = fiberErr.Code
		h.logger.WithFields(fields).Warn("Request rejected")
		return c.Status(fiberErr.Code).JSON(ErrorResponse{Error: fiberErr.Message})
	}

	h.logger.WithFields(fields).Error("Unexpected error")

	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error: "An unexpected error occurred",
	})
}

// HandleWithDetails is Handle with an extra payload in the reply
func (h *ErrorHandler) HandleWithDetails(c *fiber.Ctx, requestID string, err error, operation string, details any) error {
	code := fiber.StatusInternalServerError
	var respErr *Error
	if errors.As(err, &respErr) {
		code = respErr.Code
	}

	h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       c.Path(),
		"operation":  operation,
		"code":       code,
	}).Warn("Operation failed with error response")

	return c.Status(code).JSON(ErrorResponse{Error: err.Error(), Details: details})
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error) error {
	h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       c.Path(),
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error: "Validation failed: " + err.Error(),
		Code:  "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data any) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}

// FiberErrorHandler is the app-level fallback for errors no handler replied to
func FiberErrorHandler(log *logrus.Logger) fiber.ErrorHandler {
	h := NewErrorHandler(log)
	return func(c *fiber.Ctx, err error) error {
		requestID, _ := c.Locals(logger.RequestIDKey).(string)
		return h.Handle(c, requestID, err, "fiber")
	}
}
