package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/royalacademy/backoffice/core"
	"github.com/royalacademy/backoffice/core/admission"
	"github.com/royalacademy/backoffice/core/session"
	"github.com/royalacademy/backoffice/core/teacher"
)

var (
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountBanned        = echo.NewHTTPError(http.StatusForbidden, "account banned")
	errNotLoggedIn          = echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
)

// statusFor maps domain errors to an HTTP error. It returns nil for errors that are not expected.
func statusFor(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, core.ErrInvalidCredentials), errors.Is(err, session.ErrNoPrincipal):
		return errAuthenticationFailed
	case errors.Is(err, teacher.ErrBanned):
		return errAccountBanned
	case errors.Is(err, session.ErrNotLoggedIn):
		return errNotLoggedIn
	case errors.Is(err, session.ErrWrongRole):
		return errHttpForbidden
	case errors.Is(err, core.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, core.ErrConflict), errors.Is(err, admission.ErrPaymentInProgress), errors.Is(err, admission.ErrAlreadyPaid):
		return echo.NewHTTPError(http.StatusConflict, errors.Cause(err).Error())
	case errors.Is(err, admission.ErrNoMethodSelected):
		return echo.NewHTTPError(http.StatusBadRequest, admission.ErrNoMethodSelected.Error())
	case errors.Is(err, admission.ErrPaymentCanceled), errors.Is(err, admission.ErrPaymentFailed):
		return echo.NewHTTPError(http.StatusPaymentRequired, err.Error())
	}
	return nil
}

func fieldErrors(flds []core.FieldError) map[string]string {
	fldErrs := make(map[string]string, len(flds))
	for _, fErr := range flds {
		fldErrs[fErr.Field] = fErr.Error
	}
	return fldErrs
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
func newAppHTTPErrorHandler(logger core.Logger) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var (
			code    int
			message interface{}
			httpErr *echo.HTTPError
			stepErr *admission.StepError
			valErr  *core.ValidationError
		)

		switch {
		case errors.As(err, &stepErr):
			code = http.StatusBadRequest
			body := echo.Map{"step": stepErr.Step.String(), "error": stepErr.Err.Error()}
			if errors.As(stepErr.Err, &valErr) && valErr.Fields != nil {
				body["fields"] = fieldErrors(valErr.Fields)
			}
			message = body
		case errors.As(err, &valErr):
			if valErr.Fields != nil {
				message = fieldErrors(valErr.Fields)
			} else {
				message = valErr.Error()
			}
			code = http.StatusBadRequest
		case statusFor(err) != nil:
			httpErr = statusFor(err)
			code = httpErr.Code
			message = httpErr.Message
		case errors.As(err, &httpErr):
			if httpErr.Internal != nil {
				if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
					httpErr = herr
				}
			}
			code = httpErr.Code
			message = httpErr.Message
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var id core.Identity
			if flags, ok := contextSession(ctx); ok {
				id = flags.Identity()
			}
			logger.Error(msg, errors.Wrap(err, msg), id)
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
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
