package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kumbukumbu/core"
	"github.com/trezcool/kumbukumbu/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
)

// errorResponse is the body of every error. Error is a message, or a map of field messages.
type errorResponse struct {
	Error interface{} `json:"error"`
	Code  string      `json:"code,omitempty"`
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var (
			code    int
			message interface{}
			kind    string
		)

		var herr *echo.HTTPError
		var fldErrs validator.ValidationErrors
		var verr *core.ValidationError

		switch {
		case errors.As(err, &herr):
			code = herr.Code
			message = herr.Message
		case errors.As(err, &fldErrs):
			msgs := make(map[string]string, len(fldErrs))
			for _, fe := range fldErrs {
				msgs[fe.Field()] = fe.Translate(translator)
			}
			code, message, kind = http.StatusBadRequest, msgs, core.KindValidation.String()
		case errors.As(err, &verr):
			if len(verr.Fields) > 0 {
				msgs := make(map[string]string, len(verr.Fields))
				for _, fe := range verr.Fields {
					msgs[fe.Field] = fe.Error
				}
				message = msgs
			} else {
				message = verr.Error()
			}
			code, kind = http.StatusBadRequest, core.KindValidation.String()
		default:
			switch core.KindOf(err) {
			case core.KindConflict:
				code = http.StatusBadRequest
			case core.KindUnauthenticated:
				code = http.StatusUnauthorized
			case core.KindAccessDenied:
				code = http.StatusForbidden
			case core.KindNotFound:
				code = http.StatusNotFound
			default: // any other error is a server error
				code = http.StatusInternalServerError
			}
			if code != http.StatusInternalServerError {
				var cerr *core.Error
				if errors.As(err, &cerr) {
					message = cerr.Msg
				}
				kind = core.KindOf(err).String()
				break
			}

			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Name = claims.Name
				usr.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}

			if ctx.Echo().Debug {
				message = err.Error()
			}
		}
		if message == nil || message == "" {
			message = http.StatusText(code)
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, errorResponse{Error: message, Code: kind})
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
