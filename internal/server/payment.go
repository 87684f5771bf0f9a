package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	paymentdomain "github.com/smallbiznis/voltway/internal/payment/domain"
)

type recordPaymentRequest struct {
	BillID    string `json:"bill_id"`
	CashierID string `json:"cashier_id"`
	Amount    string `json:"amount"`
	Method    string `json:"method"`
	Reference string `json:"reference"`
}

type paymentResponse struct {
	ID           string `json:"id"`
	BillID       string `json:"bill_id"`
	CashierID    string `json:"cashier_id"`
	Amount       string `json:"amount"`
	Method       string `json:"method"`
	Reference    string `json:"reference,omitempty"`
	BusinessDate string `json:"business_date"`
}

func (s *Server) RecordPayment(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	billID, err := snowflake.ParseString(strings.TrimSpace(req.BillID))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	cashierID, err := snowflake.ParseString(strings.TrimSpace(req.CashierID))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	payment, err := s.paymentSvc.Record(c.Request.Context(), paymentdomain.RecordRequest{
		BillID:    billID,
		CashierID: cashierID,
		Amount:    amount,
		Method:    paymentdomain.Method(strings.ToUpper(strings.TrimSpace(req.Method))),
		Reference: strings.TrimSpace(req.Reference),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := paymentResponse{
		ID:           payment.ID.String(),
		BillID:       payment.BillID.String(),
		CashierID:    payment.CashierID.String(),
		Amount:       payment.Amount.StringFixed(2),
		Method:       string(payment.Method),
		BusinessDate: payment.BusinessDate.Format("2006-01-02"),
	}
	if payment.Reference != nil {
		resp.Reference = *payment.Reference
	}
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}
