package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/waybillflow/reporting"
	"github.com/BaSui01/waybillflow/types"
)

// =============================================================================
// 📊 统计报表 Handler
// =============================================================================

// ReportsHandler 统计报表处理器
type ReportsHandler struct {
	reports *reporting.Service
	logger  *zap.Logger
}

// NewReportsHandler 创建报表处理器
func NewReportsHandler(reports *reporting.Service, logger *zap.Logger) *ReportsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportsHandler{
		reports: reports,
		logger:  logger.With(zap.String("component", "reports_handler")),
	}
}

// HandleSummary 处理 GET /api/reports/summary
func (h *ReportsHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}

	summary, err := h.reports.Summary(r.Context())
	if err != nil {
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, "loading summary stats failed", h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, summary)
}

// HandleDaily 处理 GET /api/reports/daily
func (h *ReportsHandler) HandleDaily(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}

	daily, err := h.reports.DailyReport(r.Context())
	if err != nil {
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, "loading daily stats failed", h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, daily)
}

// HandleOperational 处理 GET /api/reports/operational
func (h *ReportsHandler) HandleOperational(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, h.reports.Operational())
}
