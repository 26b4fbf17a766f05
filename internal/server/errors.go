package server

import (
	"net/http"

	"github.com/menta2k/overlay-editor/internal/response"
)

var (
	ErrNoFile          = response.NewError(http.StatusBadRequest, "no file selected")
	ErrInvalidBody     = response.NewError(http.StatusBadRequest, "invalid request body")
	ErrSessionNotFound = response.NewError(http.StatusNotFound, "session not found")
	ErrNoFrame         = response.NewError(http.StatusConflict, "nothing has been drawn yet")
	ErrTooManySessions = response.NewError(http.StatusServiceUnavailable, "too many active sessions")
	ErrInternal        = response.NewError(http.StatusInternalServerError, "internal server error")
)

// decodeFailedStatus is shown when an upload is not a readable image
var decodeFailedStatus = map[string]string{
	"kind":    "decode_error",
	"message": "Could not read that image, try another photo",
}
