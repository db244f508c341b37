package handlers

import (
	"context"
	"math"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/waybillflow/api"
	"github.com/BaSui01/waybillflow/automation/location"
	"github.com/BaSui01/waybillflow/reporting"
	"github.com/BaSui01/waybillflow/service"
	"github.com/BaSui01/waybillflow/traffic"
	"github.com/BaSui01/waybillflow/types"
)

// =============================================================================
// 🚚 运单 Handler
// =============================================================================

// WorkflowService 运单工作流的处理器侧视图（*service.Orchestrator 实现）
type WorkflowService interface {
	CreateWaybill(ctx context.Context, req *types.WaybillRequest) (*types.WorkflowResult, error)
	DetectMap(ctx context.Context, sessionID string) (*service.MapDetection, error)
	TrafficStatus() traffic.Snapshot
}

// WaybillHandler 运单 API 处理器
type WaybillHandler struct {
	workflows     WorkflowService
	reports       *reporting.Service
	maxConcurrent int
	minGapSeconds float64
	logger        *zap.Logger
}

// NewWaybillHandler 创建运单处理器。maxConcurrent/minGapSeconds 仅用于
// traffic-status 响应中的配置回显。
func NewWaybillHandler(workflows WorkflowService, reports *reporting.Service, maxConcurrent int, minGapSeconds float64, logger *zap.Logger) *WaybillHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WaybillHandler{
		workflows:     workflows,
		reports:       reports,
		maxConcurrent: maxConcurrent,
		minGapSeconds: minGapSeconds,
		logger:        logger.With(zap.String("component", "waybill_handler")),
	}
}

// HandleCreate 处理 POST /api/waybill/create-with-map
func (h *WaybillHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req types.WaybillRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if verr := api.ValidateWaybillRequest(&req); verr != nil {
		WriteError(w, verr, h.logger)
		return
	}

	result, err := h.workflows.CreateWaybill(r.Context(), &req)
	if err != nil {
		WriteFailure(w, err, h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// HandleDetectMap 处理 POST /api/waybill/detect-map?session_id=...
func (h *WaybillHandler) HandleDetectMap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}

	detection, err := h.workflows.DetectMap(r.Context(), r.URL.Query().Get("session_id"))
	if err != nil {
		WriteFailure(w, err, h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, api.MapDetectionResponse{
		RequestID: detection.RequestID,
		HasMap:    detection.HasMap,
		MapType:   string(detection.MapType),
		SessionID: detection.SessionID,
	})
}

// HandleTrafficStatus 处理 GET /api/waybill/traffic-status
func (h *WaybillHandler) HandleTrafficStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}

	snap := h.workflows.TrafficStatus()
	resp := api.TrafficStatusResponse{
		ActiveRequests:       snap.ActiveRequests,
		QueuedRequests:       snap.QueuedRequests,
		NextAllowedInSeconds: round2(snap.NextAllowedInSeconds),
		BlockedForSeconds:    round2(snap.BlockedForSeconds),
		MaxConcurrent:        h.maxConcurrent,
		MinGapSeconds:        h.minGapSeconds,
		ActiveByMode: map[string]int{
			string(types.ModeSafe): snap.ActiveSafe,
			string(types.ModeFull): snap.ActiveFull,
		},
		QueuedByMode: map[string]int{
			string(types.ModeSafe): snap.QueuedSafe,
			string(types.ModeFull): snap.QueuedFull,
		},
		ModeCounters: map[string]api.ModeCountersView{},
	}

	if h.reports != nil {
		for mode, counters := range h.reports.Operational().ModeCounters {
			resp.ModeCounters[string(mode)] = api.ModeCountersView{
				Requests: counters.Requests,
				Success:  counters.Success,
				Failure:  counters.Failure,
			}
		}
	}

	WriteJSON(w, http.StatusOK, resp)
}

// HandleCalculateRoute 处理 POST /api/waybill/calculate-route，
// 纯几何计算，不占用准入额度。
func (h *WaybillHandler) HandleCalculateRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.RouteRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	route := location.EstimateRoute(req.Origin, req.Destination)
	WriteJSON(w, http.StatusOK, api.RouteResponse{
		DistanceKm:  round2(route.DistanceKm),
		DurationMin: math.Round(route.DurationMin),
		Origin:      req.Origin,
		Destination: req.Destination,
		Method:      route.Method,
	})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
