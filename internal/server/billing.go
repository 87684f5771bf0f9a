package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	billingdomain "github.com/smallbiznis/voltway/internal/billing/domain"
)

type billPeriodRequest struct {
	MeterID          string    `json:"meter_id"`
	PeriodStart      time.Time `json:"period_start"`
	PeriodEnd        time.Time `json:"period_end"`
	ApplySubsidy     bool      `json:"apply_subsidy"`
	ApplySolarCredit bool      `json:"apply_solar_credit"`
}

type generateBillRequest struct {
	billPeriodRequest
	DueDate time.Time `json:"due_date"`
}

type billLineItemResponse struct {
	Position    int     `json:"position"`
	FromUnit    string  `json:"from_unit"`
	ToUnit      *string `json:"to_unit"`
	Units       string  `json:"units"`
	RatePerUnit string  `json:"rate_per_unit"`
	Amount      string  `json:"amount"`
}

type billTaxLineResponse struct {
	Position      int    `json:"position"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	RatePercent   string `json:"rate_percent"`
	TaxableAmount string `json:"taxable_amount"`
	TaxAmount     string `json:"tax_amount"`
}

type billResponse struct {
	ID               string                 `json:"id"`
	MeterID          string                 `json:"meter_id"`
	TariffCategoryID string                 `json:"tariff_category_id"`
	PeriodStart      time.Time              `json:"period_start"`
	PeriodEnd        time.Time              `json:"period_end"`
	DueDate          time.Time              `json:"due_date"`
	Status           string                 `json:"status"`
	ReadingSource    string                 `json:"reading_source"`
	ConsumedUnits    string                 `json:"consumed_units"`
	ExportUnits      string                 `json:"export_units"`
	EnergySubtotal   string                 `json:"energy_subtotal"`
	FixedCharge      string                 `json:"fixed_charge"`
	Subsidy          string                 `json:"subsidy"`
	SolarCredit      string                 `json:"solar_credit"`
	TaxTotal         string                 `json:"tax_total"`
	TotalAmount      string                 `json:"total_amount"`
	PaidAmount       string                 `json:"paid_amount"`
	Outstanding      string                 `json:"outstanding"`
	VoidReason       *string                `json:"void_reason,omitempty"`
	LineItems        []billLineItemResponse `json:"line_items"`
	TaxLines         []billTaxLineResponse  `json:"tax_lines"`
}

func toBillResponse(bill *billingdomain.Bill) billResponse {
	resp := billResponse{
		ID:               bill.ID.String(),
		MeterID:          bill.MeterID.String(),
		TariffCategoryID: bill.TariffCategoryID.String(),
		PeriodStart:      bill.PeriodStart,
		PeriodEnd:        bill.PeriodEnd,
		DueDate:          bill.DueDate,
		Status:           string(bill.Status),
		ReadingSource:    string(bill.ReadingSource),
		ConsumedUnits:    bill.ConsumedUnits.String(),
		ExportUnits:      bill.ExportUnits.String(),
		EnergySubtotal:   bill.EnergySubtotal.StringFixed(2),
		FixedCharge:      bill.FixedCharge.StringFixed(2),
		Subsidy:          bill.Subsidy.StringFixed(2),
		SolarCredit:      bill.SolarCredit.StringFixed(2),
		TaxTotal:         bill.TaxTotal.StringFixed(2),
		TotalAmount:      bill.TotalAmount.StringFixed(2),
		PaidAmount:       bill.PaidAmount.StringFixed(2),
		Outstanding:      bill.Outstanding().StringFixed(2),
		VoidReason:       bill.VoidReason,
		LineItems:        make([]billLineItemResponse, 0, len(bill.LineItems)),
		TaxLines:         make([]billTaxLineResponse, 0, len(bill.TaxLines)),
	}
	for _, item := range bill.LineItems {
		line := billLineItemResponse{
			Position:    item.Position,
			FromUnit:    item.FromUnit.String(),
			Units:       item.Units.String(),
			RatePerUnit: item.RatePerUnit.String(),
			Amount:      item.Amount.StringFixed(2),
		}
		if item.ToUnit != nil {
			to := item.ToUnit.String()
			line.ToUnit = &to
		}
		resp.LineItems = append(resp.LineItems, line)
	}
	for _, line := range bill.TaxLines {
		resp.TaxLines = append(resp.TaxLines, billTaxLineResponse{
			Position:      line.Position,
			Code:          line.Code,
			Name:          line.Name,
			RatePercent:   line.RatePercent.String(),
			TaxableAmount: line.TaxableAmount.StringFixed(2),
			TaxAmount:     line.TaxAmount.StringFixed(2),
		})
	}
	return resp
}

type previewResponse struct {
	MeterID          string                 `json:"meter_id"`
	TariffCategoryID string                 `json:"tariff_category_id"`
	PeriodStart      time.Time              `json:"period_start"`
	PeriodEnd        time.Time              `json:"period_end"`
	ReadingSource    string                 `json:"reading_source"`
	ConsumedUnits    string                 `json:"consumed_units"`
	ExportUnits      string                 `json:"export_units"`
	EnergySubtotal   string                 `json:"energy_subtotal"`
	FixedCharge      string                 `json:"fixed_charge"`
	Subsidy          string                 `json:"subsidy"`
	SolarCredit      string                 `json:"solar_credit"`
	TaxTotal         string                 `json:"tax_total"`
	TotalAmount      string                 `json:"total_amount"`
	LineItems        []billLineItemResponse `json:"line_items"`
	TaxLines         []billTaxLineResponse  `json:"tax_lines"`
}

func toPreviewResponse(c *billingdomain.Computation) previewResponse {
	resp := previewResponse{
		MeterID:          c.MeterID.String(),
		TariffCategoryID: c.TariffCategoryID.String(),
		PeriodStart:      c.PeriodStart,
		PeriodEnd:        c.PeriodEnd,
		ReadingSource:    string(c.ReadingSource),
		ConsumedUnits:    c.ConsumedUnits.String(),
		ExportUnits:      c.ExportUnits.String(),
		EnergySubtotal:   c.EnergySubtotal.String(),
		FixedCharge:      c.FixedCharge.String(),
		Subsidy:          c.Subsidy.String(),
		SolarCredit:      c.SolarCredit.String(),
		TaxTotal:         c.TaxTotal.String(),
		TotalAmount:      c.TotalAmount.String(),
		LineItems:        make([]billLineItemResponse, 0, len(c.LineItems)),
		TaxLines:         make([]billTaxLineResponse, 0, len(c.TaxLines)),
	}
	for i, allocation := range c.LineItems {
		line := billLineItemResponse{
			Position:    i,
			FromUnit:    allocation.FromUnit.String(),
			Units:       allocation.Units.String(),
			RatePerUnit: allocation.RatePerUnit.String(),
			Amount:      allocation.Amount.String(),
		}
		if allocation.ToUnit != nil {
			to := allocation.ToUnit.String()
			line.ToUnit = &to
		}
		resp.LineItems = append(resp.LineItems, line)
	}
	for i, line := range c.TaxLines {
		resp.TaxLines = append(resp.TaxLines, billTaxLineResponse{
			Position:      i,
			Code:          line.Code,
			Name:          line.Name,
			RatePercent:   line.RatePercent.String(),
			TaxableAmount: line.TaxableAmount.String(),
			TaxAmount:     line.TaxAmount.String(),
		})
	}
	return resp
}

func (r billPeriodRequest) toPreviewRequest() (billingdomain.PreviewRequest, error) {
	meterID, err := snowflake.ParseString(strings.TrimSpace(r.MeterID))
	if err != nil {
		return billingdomain.PreviewRequest{}, ErrInvalidRequest
	}
	return billingdomain.PreviewRequest{
		MeterID:          meterID,
		PeriodStart:      r.PeriodStart,
		PeriodEnd:        r.PeriodEnd,
		ApplySubsidy:     r.ApplySubsidy,
		ApplySolarCredit: r.ApplySolarCredit,
	}, nil
}

func (s *Server) PreviewBill(c *gin.Context) {
	var req billPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	preview, err := req.toPreviewRequest()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	computation, err := s.billingSvc.Preview(c.Request.Context(), preview)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toPreviewResponse(computation)})
}

func (s *Server) GenerateBill(c *gin.Context) {
	var req generateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	preview, err := req.toPreviewRequest()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	bill, err := s.billingSvc.Generate(c.Request.Context(), billingdomain.GenerateRequest{
		PreviewRequest: preview,
		DueDate:        req.DueDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": toBillResponse(bill)})
}

func (s *Server) GetBill(c *gin.Context) {
	billID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	bill, err := s.billingSvc.GetByID(c.Request.Context(), billID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toBillResponse(bill)})
}

func (s *Server) RecalculateBill(c *gin.Context) {
	billID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	bill, err := s.billingSvc.Recalculate(c.Request.Context(), billID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toBillResponse(bill)})
}

func (s *Server) VoidBill(c *gin.Context) {
	billID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	bill, err := s.billingSvc.Void(c.Request.Context(), billID, strings.TrimSpace(req.Reason))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toBillResponse(bill)})
}

func (s *Server) MarkOverdue(c *gin.Context) {
	var req struct {
		AsOf time.Time `json:"as_of"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	count, err := s.billingSvc.MarkOverdue(c.Request.Context(), asOf)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"transitioned": count}})
}
