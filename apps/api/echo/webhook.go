package echoapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/DexterJames00/EduTrack360/core/registration"
	"github.com/DexterJames00/EduTrack360/services/metrics"
	"github.com/DexterJames00/EduTrack360/services/telegram"
)

type webhookApi struct {
	svc    *registration.Service
	secret string
}

func registerWebhookAPI(app *echo.Echo, svc *registration.Service, secret string) {
	api := webhookApi{svc: svc, secret: secret}
	app.POST("/webhook", api.receive)
}

// receive handles a provider update. Every parseable update is acknowledged with 200:
// the provider retries on anything else, and registration outcomes are reported to the chat, not to the provider.
func (api *webhookApi) receive(ctx echo.Context) error {
	if api.secret != "" {
		got := ctx.Request().Header.Get(telegram.SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(api.secret)) != 1 {
			return errBadSecretToken
		}
	}

	var upd telegram.Update
	if err := json.NewDecoder(ctx.Request().Body).Decode(&upd); err != nil {
		return errMalformedUpdate
	}

	chatID := upd.ChatID()
	if chatID == "" {
		metrics.WebhookUpdates.WithLabelValues("ignored").Inc()
		return ctx.JSON(http.StatusOK, echo.Map{})
	}

	intent, _ := registration.Classify(upd.Text())
	metrics.WebhookUpdates.WithLabelValues(intent.String()).Inc()

	// finish the registration even if the provider drops the connection
	reqCtx := context.WithoutCancel(ctx.Request().Context())
	outcome := api.svc.HandleMessage(reqCtx, registration.Message{ChatID: chatID, Text: upd.Text()})
	metrics.RegistrationOutcomes.WithLabelValues(outcome.String()).Inc()

	return ctx.JSON(http.StatusOK, echo.Map{})
}
