package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	bulkgendomain "github.com/smallbiznis/voltway/internal/bulkgen/domain"
	meterdomain "github.com/smallbiznis/voltway/internal/meter/domain"
	tariffdomain "github.com/smallbiznis/voltway/internal/tariff/domain"
)

type bulkRunRequest struct {
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	DueDate     time.Time `json:"due_date"`

	UtilityType  string   `json:"utility_type"`
	CustomerType string   `json:"customer_type"`
	AreaCode     string   `json:"area_code"`
	MeterIDs     []string `json:"meter_ids"`
	Offset       int      `json:"offset"`
	Limit        int      `json:"limit"`

	DryRun           bool `json:"dry_run"`
	SkipExisting     bool `json:"skip_existing"`
	ApplySubsidy     bool `json:"apply_subsidy"`
	ApplySolarCredit bool `json:"apply_solar_credit"`
}

type bulkItemResponse struct {
	MeterID     string `json:"meter_id"`
	Outcome     string `json:"outcome"`
	BillID      string `json:"bill_id,omitempty"`
	TotalAmount string `json:"total_amount,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

type bulkRunResponse struct {
	RunID       string             `json:"run_id"`
	DryRun      bool               `json:"dry_run"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
	Total       int                `json:"total"`
	Generated   int                `json:"generated"`
	Skipped     int                `json:"skipped"`
	Failed      int                `json:"failed"`
	Interrupted bool               `json:"interrupted"`
	Items       []bulkItemResponse `json:"items"`
}

func (s *Server) RunBulkGeneration(c *gin.Context) {
	var req bulkRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	filter := meterdomain.CandidateFilter{
		UtilityType:  tariffdomain.UtilityType(strings.TrimSpace(req.UtilityType)),
		CustomerType: meterdomain.CustomerType(strings.TrimSpace(req.CustomerType)),
		AreaCode:     strings.TrimSpace(req.AreaCode),
	}
	for _, raw := range req.MeterIDs {
		meterID, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		filter.MeterIDs = append(filter.MeterIDs, meterID)
	}

	summary, err := s.bulkSvc.Run(c.Request.Context(), bulkgendomain.RunRequest{
		PeriodStart:      req.PeriodStart,
		PeriodEnd:        req.PeriodEnd,
		DueDate:          req.DueDate,
		Filter:           filter,
		Offset:           req.Offset,
		Limit:            req.Limit,
		DryRun:           req.DryRun,
		SkipExisting:     req.SkipExisting,
		ApplySubsidy:     req.ApplySubsidy,
		ApplySolarCredit: req.ApplySolarCredit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := bulkRunResponse{
		RunID:       summary.RunID,
		DryRun:      summary.DryRun,
		StartedAt:   summary.StartedAt,
		FinishedAt:  summary.FinishedAt,
		Total:       summary.Total,
		Generated:   summary.Generated,
		Skipped:     summary.Skipped,
		Failed:      summary.Failed,
		Interrupted: summary.Interrupted,
		Items:       make([]bulkItemResponse, 0, len(summary.Items)),
	}
	for _, item := range summary.Items {
		out := bulkItemResponse{
			MeterID: item.MeterID.String(),
			Outcome: string(item.Outcome),
			Reason:  item.Reason,
		}
		if item.BillID != nil {
			out.BillID = item.BillID.String()
		}
		if item.Outcome == bulkgendomain.OutcomeGenerated {
			out.TotalAmount = item.TotalAmount.StringFixed(2)
		}
		resp.Items = append(resp.Items, out)
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
