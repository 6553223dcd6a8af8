package handler

import (
	"errors"
	"net/http"

	"github.com/wagate/wagate/internal/engine"
	"github.com/wagate/wagate/internal/media"
	"github.com/wagate/wagate/internal/service/messaging"
	"github.com/wagate/wagate/internal/storage"
)

// statusForError maps domain sentinels to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, engine.ErrChatNotFound):
		return http.StatusNotFound
	case errors.Is(err, messaging.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, media.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, media.ErrConversion):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
