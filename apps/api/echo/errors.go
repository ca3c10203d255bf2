package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/eskwela/core"
	"github.com/trezcool/eskwela/core/account"
	"github.com/trezcool/eskwela/core/teacher"
)

var (
	errUnauthorized   = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errRefreshExpired = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden  = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound   = echo.NewHTTPError(http.StatusNotFound, "not found")

	invalidDataMsg = "invalid data"
)

type httpError struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(translator ut.Translator, logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var body httpError

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				body.Error = "missing or malformed jwt"
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			body.Error = http.StatusText(code)
			if msg, ok := origErr.Message.(string); ok {
				body.Error = msg
			}
		case validator.ValidationErrors:
			body.Details = make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				body.Details[core.FieldPath(vErr)] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			body.Error = invalidDataMsg
		case *core.ValidationError:
			if len(origErr.Fields) > 0 {
				body.Details = make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					body.Details[fErr.Field] = fErr.Error
				}
			}
			code = http.StatusBadRequest
			body.Error = invalidDataMsg
			if origErr.Err != nil {
				body.Error = origErr.Err.Error()
			}
		case *core.NotFoundError:
			code = http.StatusNotFound
			body.Error = origErr.Error()
		case *core.ConflictError:
			code = http.StatusConflict
			body.Error = origErr.Error()
		case *core.PermissionError:
			code = http.StatusForbidden
			body.Error = origErr.Error()
		default:
			switch origErr {
			case account.ErrInvalidCredentials:
				code = http.StatusUnauthorized
				body.Error = origErr.Error()
			case account.ErrAccountInactive, teacher.ErrVerificationPending, teacher.ErrRegistrationDenied:
				code = http.StatusForbidden
				body.Error = origErr.Error()
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				body.Error = msg

				var extras []interface{}
				extras = append(extras, errors.Wrap(err, msg))
				if p, pErr := getContextPrincipal(ctx); pErr == nil {
					extras = append(extras, p)
				}
				logger.Error(msg, extras...)

				if ctx.Echo().Debug {
					body.Error = err.Error()
				}

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, body)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
