package ops

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	xe "github.com/opst/pht-central/pkg/errors"
)

// ErrorResponse is the body of error responses.
type ErrorResponse struct {
	Message ErrorMessage `json:"message"`
}

type ErrorMessage struct {
	Reason string `json:"reason"`
	Advice string `json:"advice,omitempty"`
}

var statusOfKind = map[xe.Kind]int{
	xe.Validation:           http.StatusBadRequest,
	xe.Precondition:         http.StatusConflict,
	xe.NotFound:             http.StatusNotFound,
	xe.InvalidState:         http.StatusConflict,
	xe.TransientIntegration: http.StatusBadGateway,
	xe.StreamError:          http.StatusBadGateway,
}

// errorResponse builds a echo.HTTPError with ErrorResponse body.
func errorResponse(status int, reason string, advice string) *echo.HTTPError {
	return echo.NewHTTPError(
		status, ErrorResponse{Message: ErrorMessage{Reason: reason, Advice: advice}},
	)
}

// ErrorHandler writes errors as ErrorResponse.
//
// Kinds of errors are mapped to statuses. Unknown errors are 500.
func ErrorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var herr *echo.HTTPError
		if !errors.As(err, &herr) {
			status := http.StatusInternalServerError
			reason := "internal server error"
			if kind, ok := xe.KindOf(err); ok {
				if s, ok := statusOfKind[kind]; ok {
					status = s
					reason = err.Error()
				}
			}
			herr = errorResponse(status, reason, "")
		} else if _, ok := herr.Message.(ErrorResponse); !ok {
			herr = errorResponse(herr.Code, http.StatusText(herr.Code), "")
		}

		if herr.Code >= http.StatusInternalServerError {
			c.Logger().Error(err)
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(herr.Code)
		} else {
			err = c.JSON(herr.Code, herr.Message)
		}
		if err != nil {
			c.Logger().Error(err)
		}
	}
}
