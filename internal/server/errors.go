package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	billingdomain "github.com/smallbiznis/voltway/internal/billing/domain"
	cashierdomain "github.com/smallbiznis/voltway/internal/cashier/domain"
	meterdomain "github.com/smallbiznis/voltway/internal/meter/domain"
	paymentdomain "github.com/smallbiznis/voltway/internal/payment/domain"
	tariffdomain "github.com/smallbiznis/voltway/internal/tariff/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var ErrInvalidRequest = errors.New("invalid_request")

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

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, billingdomain.ErrInvalidPeriod),
		errors.Is(err, billingdomain.ErrInvalidPaymentAmount),
		errors.Is(err, billingdomain.ErrNegativeConsumption),
		errors.Is(err, billingdomain.ErrVoidReasonRequired),
		errors.Is(err, cashierdomain.ErrInvalidBusinessDate),
		errors.Is(err, cashierdomain.ErrVarianceReasonRequired),
		errors.Is(err, paymentdomain.ErrInvalidMethod):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, billingdomain.ErrBillNotFound),
		errors.Is(err, meterdomain.ErrMeterNotFound),
		errors.Is(err, meterdomain.ErrNoReadingForPeriod),
		errors.Is(err, tariffdomain.ErrCategoryNotFound),
		errors.Is(err, cashierdomain.ErrCloseNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: err.Error(),
		}
	case errors.Is(err, billingdomain.ErrDuplicateBillingPeriod),
		errors.Is(err, billingdomain.ErrPaymentConflict),
		errors.Is(err, billingdomain.ErrAlreadyVoided),
		errors.Is(err, cashierdomain.ErrDayAlreadyClosed),
		errors.Is(err, paymentdomain.ErrDuplicateReference):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, billingdomain.ErrOverpaymentRejected),
		errors.Is(err, billingdomain.ErrCannotVoidPaid),
		errors.Is(err, billingdomain.ErrCannotRecalculateVoided),
		errors.Is(err, billingdomain.ErrCannotRecalculatePaid),
		errors.Is(err, billingdomain.ErrRecalculateBelowPaid),
		errors.Is(err, paymentdomain.ErrCashierDayClosed),
		errors.Is(err, tariffdomain.ErrNoTariffCategory),
		errors.Is(err, tariffdomain.ErrMalformedSlabs):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "unprocessable",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}
