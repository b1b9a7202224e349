package controllers

import (
	"io"
	"net/http"
	"strings"

	"github.com/sponzahq/sponza-backend/api/responses"
	"github.com/sponzahq/sponza-backend/internal/webhooks"
	pkgerrors "github.com/sponzahq/sponza-backend/pkg/errors"
	"github.com/sponzahq/sponza-backend/pkg/logger"
)

const (
	gatewaySignatureHeader = "X-Razorpay-Signature"
	gatewayEventIDHeader   = "X-Razorpay-Event-Id"
)

// GatewayWebhook receives payment provider callbacks. The body is consumed
// raw because the HMAC covers the exact bytes delivered.
func GatewayWebhook(svc webhooks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhooks service unavailable"))
			return
		}

		signature := strings.TrimSpace(r.Header.Get(gatewaySignatureHeader))
		if signature == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing webhook signature"))
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read webhook body"))
			return
		}

		eventID := strings.TrimSpace(r.Header.Get(gatewayEventIDHeader))
		if err := svc.HandleEvent(r.Context(), eventID, body, signature); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"received": true})
	}
}
