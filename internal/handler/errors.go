package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-marketplace/internal/identity"
	"github.com/iliyamo/property-marketplace/internal/repository"
	"github.com/iliyamo/property-marketplace/internal/service"
	"github.com/iliyamo/property-marketplace/internal/utils"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
	Detail  string            `json:"detail,omitempty"`
}

// MapError translates a handler error into a status code and body.  Raw
// backend messages are only exposed when exposeInternal is true.
func MapError(err error, exposeInternal bool) (int, ErrorResponse) {
	var (
		he *echo.HTTPError
		ve *service.ValidationError
		se *service.StoreError
	)
	switch {
	case errors.As(err, &he):
		return he.Code, ErrorResponse{Error: fmt.Sprint(he.Message)}
	case errors.As(err, &ve):
		return http.StatusBadRequest, ErrorResponse{Error: "validation failed", Details: ve.Fields}
	case errors.Is(err, utils.ErrWeakPassword):
		return http.StatusBadRequest, ErrorResponse{Error: "validation failed",
			Details: map[string]string{"password": fmt.Sprintf("must be at least %d characters", utils.MinPasswordLen)}}
	case errors.Is(err, service.ErrInsufficientCredits):
		return http.StatusPaymentRequired, ErrorResponse{Error: "insufficient credits"}
	case errors.Is(err, service.ErrNegativeBalance):
		return http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()}
	case errors.Is(err, service.ErrProfileNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "profile not found"}
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "not found"}
	case errors.Is(err, repository.ErrForbidden), errors.Is(err, service.ErrRoleMismatch):
		return http.StatusForbidden, ErrorResponse{Error: "forbidden"}
	case errors.Is(err, service.ErrAuthRequired):
		return http.StatusUnauthorized, ErrorResponse{Error: "authentication required"}
	case errors.Is(err, repository.ErrEmailExists), errors.Is(err, identity.ErrEmailTaken):
		return http.StatusConflict, ErrorResponse{Error: "email already registered"}
	case errors.Is(err, identity.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"}
	case errors.Is(err, identity.ErrInvalidToken):
		return http.StatusUnauthorized, ErrorResponse{Error: "invalid or expired token"}
	case errors.Is(err, identity.ErrUnsupported):
		return http.StatusNotImplemented, ErrorResponse{Error: err.Error()}
	case errors.As(err, &se):
		resp := ErrorResponse{Error: "internal error"}
		if exposeInternal {
			resp.Detail = se.Error()
		}
		return http.StatusInternalServerError, resp
	}
	resp := ErrorResponse{Error: "internal error"}
	if exposeInternal {
		resp.Detail = err.Error()
	}
	return http.StatusInternalServerError, resp
}

// ErrorHandler is the echo HTTPErrorHandler of the service.
func ErrorHandler(exposeInternal bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := MapError(err, exposeInternal)
		if status >= http.StatusInternalServerError {
			slog.Error("request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			slog.Error("write error response", "err", err)
		}
	}
}

// Validator adapts go-playground/validator to echo.  Failures come back as
// *service.ValidationError keyed by JSON field name.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	return &Validator{v: v}
}

func (cv *Validator) Validate(i interface{}) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &service.ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fe.Field()] = fmt.Sprintf("failed on '%s' tag", fe.Tag())
	}
	return out
}

// bindAndValidate decodes the body into dst and validates it.
func bindAndValidate(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return service.NewValidationError("body", "invalid request body")
	}
	return c.Validate(dst)
}
