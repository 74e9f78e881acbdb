package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/minelance/minelance-backend/api/responses"
	"github.com/minelance/minelance-backend/internal/payments"
	pkgerrors "github.com/minelance/minelance-backend/pkg/errors"
	"github.com/minelance/minelance-backend/pkg/logger"
)

const maxWebhookBytes = 64 << 10

type paymentGuard interface {
	CheckAndMark(ctx context.Context, operationID string) (bool, error)
	Delete(ctx context.Context, operationID string) error
}

// PaymentWebhook receives gateway payment notifications. The signature is
// checked against the raw body before anything is decoded.
func PaymentWebhook(svc payments.Service, secret, signatureHeader string, guard paymentGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodePayloadTooLarge, err, "request body too large"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		if !payments.VerifySignature(secret, payload, r.Header.Get(signatureHeader)) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInvalidSignature, "invalid signature"))
			return
		}

		var event payments.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}

		operationID := strings.TrimSpace(event.OperationID)
		marked := false
		if guard != nil && operationID != "" {
			alreadyProcessed, err := guard.CheckAndMark(ctx, operationID)
			switch {
			case err != nil:
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"operation_id": operationID,
						"error":        err.Error(),
					}), "payment.guard_unavailable")
				}
			case alreadyProcessed:
				responses.WriteSuccess(w, payments.Result{OrderID: event.OrderID, Replayed: true})
				return
			default:
				marked = true
			}
		}

		result, err := svc.Confirm(ctx, event)
		if err != nil {
			if marked {
				_ = guard.Delete(ctx, operationID)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(logg.WithField(ctx, "operation_id", operationID), "payment.webhook_processed")
		}
		responses.WriteSuccess(w, result)
	}
}
