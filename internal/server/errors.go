package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	billingstatsdomain "github.com/smallbiznis/dealbill/internal/billingstats/domain"
	eventdomain "github.com/smallbiznis/dealbill/internal/outcomeevent/domain"
	plandomain "github.com/smallbiznis/dealbill/internal/pricingplan/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: strings.ReplaceAll(code, "_", " "),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, plandomain.ErrInvalidOrganization),
		errors.Is(err, eventdomain.ErrInvalidOrganization),
		errors.Is(err, billingstatsdomain.ErrInvalidOrganization),
		errors.Is(err, eventdomain.ErrInvalidAction):
		return true
	case isPlanValidationError(err):
		return true
	default:
		return false
	}
}

func isPlanValidationError(err error) bool {
	switch {
	case errors.Is(err, plandomain.ErrInvalidPricingModel),
		errors.Is(err, plandomain.ErrMissingRevenueShare),
		errors.Is(err, plandomain.ErrMissingTierConfig),
		errors.Is(err, plandomain.ErrInvalidTierConfig),
		errors.Is(err, plandomain.ErrMissingFlatFee),
		errors.Is(err, plandomain.ErrMissingOutcomePercent),
		errors.Is(err, plandomain.ErrNegativeAmount),
		errors.Is(err, plandomain.ErrInvalidBillingDay):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, plandomain.ErrPlanNotFound),
		errors.Is(err, plandomain.ErrOrganizationNotFound),
		errors.Is(err, eventdomain.ErrEventNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, plandomain.ErrPlanAlreadyExists),
		errors.Is(err, plandomain.ErrPlanHasBilledEvents),
		errors.Is(err, eventdomain.ErrInvalidState):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, eventdomain.ErrInvalidState):
		return "invalid event state"
	case errors.Is(err, plandomain.ErrPlanAlreadyExists):
		return "pricing plan already exists"
	case errors.Is(err, plandomain.ErrPlanHasBilledEvents):
		return "pricing plan has billed events"
	default:
		return "conflict"
	}
}

func validationErrorField(code string) string {
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	if strings.HasPrefix(code, "missing_") {
		return strings.TrimPrefix(code, "missing_")
	}
	return "request"
}

func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError {
		return "error", payload.Type
	}
	return "warn", payload.Type
}
