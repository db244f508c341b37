package api

import (
	"strings"

	"github.com/BaSui01/waybillflow/types"
)

// =============================================================================
// 📦 运单 API 数据模型
// =============================================================================

// RouteRequest 两点路线计算请求
type RouteRequest struct {
	Origin      types.Coordinate `json:"origin"`
	Destination types.Coordinate `json:"destination"`
}

// RouteResponse 路线计算结果（纯几何，不经过浏览器）
type RouteResponse struct {
	DistanceKm  float64          `json:"distance_km"`
	DurationMin float64          `json:"duration_min"`
	Origin      types.Coordinate `json:"origin"`
	Destination types.Coordinate `json:"destination"`
	Method      string           `json:"method"`
}

// ModeCountersView 按模式的请求计数
type ModeCountersView struct {
	Requests int64 `json:"requests"`
	Success  int64 `json:"success"`
	Failure  int64 `json:"failure"`
}

// TrafficStatusResponse 准入控制状态投影
type TrafficStatusResponse struct {
	ActiveRequests       int                         `json:"active_requests"`
	QueuedRequests       int                         `json:"queued_requests"`
	NextAllowedInSeconds float64                     `json:"next_allowed_in_seconds"`
	BlockedForSeconds    float64                     `json:"blocked_for_seconds"`
	MaxConcurrent        int                         `json:"max_concurrent"`
	MinGapSeconds        float64                     `json:"min_gap_seconds"`
	ActiveByMode         map[string]int              `json:"active_by_mode"`
	QueuedByMode         map[string]int              `json:"queued_by_mode"`
	ModeCounters         map[string]ModeCountersView `json:"mode_counters"`
}

// MapDetectionResponse 地图探测结果
type MapDetectionResponse struct {
	RequestID string `json:"request_id"`
	HasMap    bool   `json:"has_map"`
	MapType   string `json:"map_type,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// =============================================================================
// 🛡️ 请求校验
// =============================================================================

// ValidateWaybillRequest 校验必填字段，对应门户表单的硬性要求。
// 返回 nil 表示通过。
func ValidateWaybillRequest(req *types.WaybillRequest) *types.Error {
	missing := make([]string, 0, 4)

	requireField(&missing, "sender.name", req.Sender.Name)
	requireField(&missing, "sender.phone", req.Sender.Phone)
	requireField(&missing, "sender.address", req.Sender.Address)
	requireField(&missing, "sender.national_code", req.Sender.NationalCode)
	requireField(&missing, "receiver.name", req.Receiver.Name)
	requireField(&missing, "receiver.phone", req.Receiver.Phone)
	requireField(&missing, "receiver.address", req.Receiver.Address)
	requireField(&missing, "cargo.weight", req.Cargo.Weight)

	validateLocation(&missing, "origin", req.Origin)
	validateLocation(&missing, "destination", req.Destination)

	if len(missing) > 0 {
		return types.NewError(types.ErrInvalidRequest,
			"missing required fields: "+strings.Join(missing, ", ")).
			WithHTTPStatus(400)
	}

	if mode := req.OperationMode; mode != "" &&
		mode != types.ModeSafe && mode != types.ModeFull {
		return types.NewError(types.ErrInvalidRequest,
			"operation_mode must be \"safe\" or \"full\"").
			WithHTTPStatus(400)
	}

	return nil
}

func validateLocation(missing *[]string, prefix string, loc types.LocationSpec) {
	requireField(missing, prefix+".province", loc.Province)
	requireField(missing, prefix+".city", loc.City)
	requireField(missing, prefix+".address", loc.Address)
}

func requireField(missing *[]string, name, value string) {
	if strings.TrimSpace(value) == "" {
		*missing = append(*missing, name)
	}
}
