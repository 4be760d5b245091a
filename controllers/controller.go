package controllers

import (
	"errors"
	"net/http"

	"vitrine/apperrors"
	"vitrine/logging"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

func RespondError(c *gin.Context, msg string, code int) {
	c.JSON(code, gin.H{"success": false, "error": msg})
}

func RespondSuccess(c *gin.Context, payload gin.H) {
	payload["success"] = true
	c.JSON(http.StatusOK, payload)
}

// RespondAppError maps an engine error to its HTTP status.
// Store failures never leak the driver message to the client.
func RespondAppError(c *gin.Context, err error) {
	logger := logging.FromContext(c.Request.Context())

	appErr, ok := apperrors.As(err)
	if !ok {
		logger.Error().Err(err).Str("path", c.FullPath()).Msg("unexpected error")
		RespondError(c, "erro interno", http.StatusInternalServerError)
		return
	}

	switch appErr.Kind {
	case apperrors.KindValidation, apperrors.KindMalformedPayload:
		logger.Debug().Err(err).Msg("request rejected")
		RespondError(c, appErr.Message, http.StatusBadRequest)
	case apperrors.KindNotFound:
		RespondError(c, appErr.Message, http.StatusNotFound)
	default:
		logger.Error().Err(err).Str("op", appErr.Op).Bool("timeout", appErr.Timeout).Msg("store failure")
		code := http.StatusInternalServerError
		if appErr.Timeout {
			code = http.StatusServiceUnavailable
		}
		RespondError(c, appErr.Message, code)
	}
}

// bindingMessage turns a gin binding error into the same message a ValidationError carries.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return fe.Field() + " é obrigatório"
		default:
			return fe.Field() + " inválido"
		}
	}
	return err.Error()
}
