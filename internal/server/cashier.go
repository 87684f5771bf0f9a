package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	cashierdomain "github.com/smallbiznis/voltway/internal/cashier/domain"
)

type closeDayRequest struct {
	BusinessDate   string `json:"business_date"`
	OpeningBalance string `json:"opening_balance"`
	CountedTotal   string `json:"counted_total"`
	VarianceReason string `json:"variance_reason"`
}

type dayCloseResponse struct {
	ID             string  `json:"id"`
	CashierID      string  `json:"cashier_id"`
	BusinessDate   string  `json:"business_date"`
	OpeningBalance string  `json:"opening_balance"`
	CashTotal      string  `json:"cash_total"`
	NonCashTotal   string  `json:"non_cash_total"`
	ExpectedTotal  string  `json:"expected_total"`
	CountedTotal   string  `json:"counted_total"`
	Variance       string  `json:"variance"`
	VarianceReason *string `json:"variance_reason,omitempty"`
	ClosedAt       string  `json:"closed_at"`
}

func toDayCloseResponse(close *cashierdomain.CashierDayClose) dayCloseResponse {
	return dayCloseResponse{
		ID:             close.ID.String(),
		CashierID:      close.CashierID.String(),
		BusinessDate:   close.BusinessDate.Format("2006-01-02"),
		OpeningBalance: close.OpeningBalance.StringFixed(2),
		CashTotal:      close.CashTotal.StringFixed(2),
		NonCashTotal:   close.NonCashTotal.StringFixed(2),
		ExpectedTotal:  close.ExpectedTotal.StringFixed(2),
		CountedTotal:   close.CountedTotal.StringFixed(2),
		Variance:       close.Variance.StringFixed(2),
		VarianceReason: close.VarianceReason,
		ClosedAt:       close.ClosedAt.Format(time.RFC3339),
	}
}

func (s *Server) CloseCashierDay(c *gin.Context) {
	cashierID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req closeDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	businessDate, err := time.Parse("2006-01-02", strings.TrimSpace(req.BusinessDate))
	if err != nil {
		AbortWithError(c, cashierdomain.ErrInvalidBusinessDate)
		return
	}
	counted, err := decimal.NewFromString(strings.TrimSpace(req.CountedTotal))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	var opening *decimal.Decimal
	if trimmed := strings.TrimSpace(req.OpeningBalance); trimmed != "" {
		parsed, err := decimal.NewFromString(trimmed)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		opening = &parsed
	}

	close, err := s.cashierSvc.CloseDay(c.Request.Context(), cashierdomain.CloseDayRequest{
		CashierID:      cashierID,
		BusinessDate:   businessDate,
		OpeningBalance: opening,
		CountedTotal:   counted,
		VarianceReason: strings.TrimSpace(req.VarianceReason),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": toDayCloseResponse(close)})
}

func (s *Server) GetCashierDayClose(c *gin.Context) {
	cashierID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	businessDate, err := time.Parse("2006-01-02", c.Param("date"))
	if err != nil {
		AbortWithError(c, cashierdomain.ErrInvalidBusinessDate)
		return
	}

	close, err := s.cashierSvc.GetClose(c.Request.Context(), cashierID, businessDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toDayCloseResponse(close)})
}
