package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	pkgerrors "github.com/yungbote/conceptlab-backend/internal/pkg/errors"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// FromError maps domain sentinel errors onto HTTP statuses and stable
// error codes. Anything unrecognized is reported as a 500.
func FromError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pkgerrors.ErrDraftNotFound):
		RespondError(c, http.StatusNotFound, "draft_not_found", err)
	case errors.Is(err, pkgerrors.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, pkgerrors.ErrAlreadyExists):
		RespondError(c, http.StatusConflict, "already_exists", err)
	case errors.Is(err, pkgerrors.ErrTypeMismatch):
		RespondError(c, http.StatusBadRequest, "type_mismatch", err)
	case errors.Is(err, pkgerrors.ErrUnsupportedModality):
		RespondError(c, http.StatusBadRequest, "unsupported_modality", err)
	case errors.Is(err, pkgerrors.ErrInvalidArgument):
		RespondError(c, http.StatusBadRequest, "invalid_argument", err)
	case errors.Is(err, pkgerrors.ErrUnauthorized):
		RespondError(c, http.StatusUnauthorized, "unauthorized", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal", err)
	}
}
