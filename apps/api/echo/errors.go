package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/DexterJames00/EduTrack360/core"
	"github.com/DexterJames00/EduTrack360/core/channel"
	"github.com/DexterJames00/EduTrack360/core/credential"
	"github.com/DexterJames00/EduTrack360/core/school"
)

var (
	errMissingToken     = echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed jwt")
	errInvalidToken     = echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired jwt")
	errUnauthorized     = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden    = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound     = echo.NewHTTPError(http.StatusNotFound, "not found")
	errBadSecretToken   = echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook secret")
	errMalformedUpdate  = echo.NewHTTPError(http.StatusBadRequest, "malformed update")
	errNoActiveBot      = echo.NewHTTPError(http.StatusConflict, "no active bot credential")
	errProviderDown     = echo.NewHTTPError(http.StatusBadGateway, "messaging provider unreachable")
	errTokenRejected    = echo.NewHTTPError(http.StatusBadRequest, "bot token rejected by the provider")
	errInvalidPublicURL = echo.NewHTTPError(http.StatusBadRequest, credential.ErrInvalidPublicURL.Error())
)

// domainHTTPError maps known domain errors to their HTTP counterpart.
func domainHTTPError(err error) (*echo.HTTPError, bool) {
	switch errors.Cause(err) {
	case school.ErrNotFound, channel.ErrNotFound, credential.ErrNotFound:
		return errHttpNotFound, true
	case credential.ErrNoActiveCredential:
		return errNoActiveBot, true
	case credential.ErrEmptyToken:
		return echo.NewHTTPError(http.StatusBadRequest, credential.ErrEmptyToken.Error()), true
	case credential.ErrInvalidPublicURL:
		return errInvalidPublicURL, true
	case core.ErrInvalidCredential:
		return errTokenRejected, true
	case core.ErrProviderUnreachable:
		return errProviderDown, true
	}
	return nil, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		if herr, ok := domainHTTPError(err); ok {
			err = herr
		}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var person core.LogPerson
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				person = core.LogPerson{ID: claims.Subject, Name: claims.Name}
			}
			logger.Error(msg, errors.Wrap(err, msg), person)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
