package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"vitrine/apperrors"
	"vitrine/logging"
	"vitrine/metrics"
	"vitrine/tools"

	"github.com/gin-gonic/gin"
)

// MaxWebhookBody caps the payment notification body.
const MaxWebhookBody = 1 << 20

/************************************************
/**** MARK: WEBHOOK OUTCOMES ****/
/************************************************/
const (
	OUTCOME_GRANTED   = "granted"
	OUTCOME_DUPLICATE = "duplicate"
	OUTCOME_IGNORED   = "ignored"
	OUTCOME_INVALID   = "invalid"
	OUTCOME_MALFORMED = "malformed"
	OUTCOME_FORBIDDEN = "forbidden"
	OUTCOME_ERROR     = "error"
)

// POST /api/webhook
// Quando secret está configurado, exige X-Webhook-Signature: sha256=<hex>.
func WebhookUpdate(secret string) gin.HandlerFunc {
	secret = strings.TrimSpace(secret)

	return func(c *gin.Context) {
		start := time.Now()
		outcome := OUTCOME_ERROR
		defer func() {
			metrics.WebhookEventsTotal.WithLabelValues(outcome).Inc()
			metrics.WebhookDuration.Observe(time.Since(start).Seconds())
		}()

		engine, ok := requireEngine(c)
		if !ok {
			return
		}
		logger := logging.FromContext(c.Request.Context())

		// Lê o body cru uma vez só, para validar a assinatura.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxWebhookBody)
		raw, err := c.GetRawData()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				outcome = OUTCOME_MALFORMED
				RespondError(c, "payload muito grande", http.StatusRequestEntityTooLarge)
				return
			}
			outcome = OUTCOME_MALFORMED
			RespondError(c, "falha ao ler o body", http.StatusBadRequest)
			return
		}

		if secret != "" {
			if ok, reason := tools.VerifySignature(secret, raw, c.GetHeader(tools.SignatureHeader)); !ok {
				outcome = OUTCOME_FORBIDDEN
				logger.Warn().Str("reason", reason).Str("remote", c.ClientIP()).Msg("webhook: signature rejected")
				RespondError(c, "forbidden: "+reason, http.StatusForbidden)
				return
			}
		}

		res, err := engine.Ingestor.Ingest(c.Request.Context(), raw)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrMalformedPayload):
				outcome = OUTCOME_MALFORMED
			case errors.Is(err, apperrors.ErrValidation):
				outcome = OUTCOME_INVALID
			}
			RespondAppError(c, err)
			return
		}

		if res.Ignored {
			outcome = OUTCOME_IGNORED
			RespondSuccess(c, gin.H{"message": res.Message})
			return
		}

		outcome = OUTCOME_GRANTED
		if !res.Created {
			outcome = OUTCOME_DUPLICATE
		}
		RespondSuccess(c, gin.H{
			"message":   res.Message,
			"grant_id":  res.Grant.ID,
			"plan":      res.Grant.PlanName,
			"email":     res.Grant.Email,
			"plan_code": res.Grant.PlanCode,
		})
	}
}
