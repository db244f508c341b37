package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/waybillflow/api"
	"github.com/BaSui01/waybillflow/reporting"
	"github.com/BaSui01/waybillflow/service"
	"github.com/BaSui01/waybillflow/traffic"
	"github.com/BaSui01/waybillflow/types"
)

// =============================================================================
// 🧪 测试辅助类型
// =============================================================================

// stubWorkflows 可脚本化的工作流服务
type stubWorkflows struct {
	createResult *types.WorkflowResult
	createErr    error
	lastRequest  *types.WaybillRequest

	detection *service.MapDetection
	detectErr error

	snapshot traffic.Snapshot
}

func (s *stubWorkflows) CreateWaybill(ctx context.Context, req *types.WaybillRequest) (*types.WorkflowResult, error) {
	s.lastRequest = req
	return s.createResult, s.createErr
}

func (s *stubWorkflows) DetectMap(ctx context.Context, sessionID string) (*service.MapDetection, error) {
	if s.detectErr != nil {
		return nil, s.detectErr
	}
	d := *s.detection
	d.SessionID = sessionID
	return &d, nil
}

func (s *stubWorkflows) TrafficStatus() traffic.Snapshot {
	return s.snapshot
}

func validRequestBody() string {
	req := types.WaybillRequest{
		OperationMode: types.ModeSafe,
		Sender: types.Sender{
			Name:         "علی رضایی",
			Phone:        "09120000001",
			Address:      "تهران، خیابان آزادی",
			NationalCode: "0012345678",
		},
		Receiver: types.Receiver{
			Name:    "حسین موسوی",
			Phone:   "09150000002",
			Address: "مشهد، خیابان امام رضا",
		},
		Origin: types.LocationSpec{
			Province: "تهران",
			City:     "تهران",
			Address:  "خیابان آزادی",
		},
		Destination: types.LocationSpec{
			Province: "خراسان رضوی",
			City:     "مشهد",
			Address:  "خیابان امام رضا",
		},
		Cargo: types.Cargo{Weight: "1200"},
	}
	body, _ := json.Marshal(req)
	return string(body)
}

func postJSON(path, body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// =============================================================================
// 🧪 WaybillHandler 测试
// =============================================================================

func TestHandleCreateSuccess(t *testing.T) {
	stub := &stubWorkflows{
		createResult: &types.WorkflowResult{
			Success:   true,
			RequestID: "req-1",
			Mode:      types.ModeSafe,
			Status:    "validated",
			ValidationSummary: &types.ValidationSummary{
				ReadyForSubmit: true,
			},
		},
	}
	h := NewWaybillHandler(stub, nil, 2, 10, zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleCreate(w, postJSON("/api/waybill/create-with-map", validRequestBody()))

	assert.Equal(t, http.StatusOK, w.Code)

	var result types.WorkflowResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.True(t, result.Success)
	assert.Equal(t, "validated", result.Status)
	assert.Equal(t, "req-1", result.RequestID)
	require.NotNil(t, stub.lastRequest)
	assert.Equal(t, "علی رضایی", stub.lastRequest.Sender.Name)
}

func TestHandleCreateRejectsMissingFields(t *testing.T) {
	stub := &stubWorkflows{}
	h := NewWaybillHandler(stub, nil, 2, 10, zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleCreate(w, postJSON("/api/waybill/create-with-map", `{"sender":{"name":"x"}}`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, stub.lastRequest, "invalid requests must not reach the workflow")

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrInvalidRequest), resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "receiver.name")
}

func TestHandleCreateRejectsBadMode(t *testing.T) {
	h := NewWaybillHandler(&stubWorkflows{}, nil, 2, 10, zap.NewNop())

	body := strings.Replace(validRequestBody(), `"safe"`, `"dry_run"`, 1)
	w := httptest.NewRecorder()
	h.HandleCreate(w, postJSON("/api/waybill/create-with-map", body))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleCreateSurfacesWorkflowError(t *testing.T) {
	stub := &stubWorkflows{
		createErr: types.NewError(types.ErrForbidden, "live submission is disabled").WithHTTPStatus(403),
	}
	h := NewWaybillHandler(stub, nil, 2, 10, zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleCreate(w, postJSON("/api/waybill/create-with-map", validRequestBody()))

	assert.Equal(t, http.StatusForbidden, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrForbidden), resp.Error.Code)
}

func TestHandleCreateMethodNotAllowed(t *testing.T) {
	h := NewWaybillHandler(&stubWorkflows{}, nil, 2, 10, zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleCreate(w, httptest.NewRequest(http.MethodGet, "/api/waybill/create-with-map", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleDetectMap(t *testing.T) {
	stub := &stubWorkflows{
		detection: &service.MapDetection{
			RequestID: "req-9",
			HasMap:    true,
			MapType:   types.EngineLeaflet,
		},
	}
	h := NewWaybillHandler(stub, nil, 2, 10, zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleDetectMap(w, httptest.NewRequest(http.MethodPost, "/api/waybill/detect-map?session_id=cli-1", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp api.MapDetectionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.HasMap)
	assert.Equal(t, "leaflet", resp.MapType)
	assert.Equal(t, "cli-1", resp.SessionID)
}

func TestHandleTrafficStatus(t *testing.T) {
	db, err := reporting.Open(":memory:")
	require.NoError(t, err)
	reports := reporting.NewService(db, 0, nil)
	reports.RecordRequest(context.Background(), types.ModeSafe)

	stub := &stubWorkflows{
		snapshot: traffic.Snapshot{
			ActiveRequests:       1,
			QueuedRequests:       2,
			NextAllowedInSeconds: 1.234,
			ActiveSafe:           1,
			QueuedSafe:           2,
		},
	}
	h := NewWaybillHandler(stub, reports, 3, 45, zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleTrafficStatus(w, httptest.NewRequest(http.MethodGet, "/api/waybill/traffic-status", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp api.TrafficStatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 1, resp.ActiveRequests)
	assert.Equal(t, 2, resp.QueuedRequests)
	assert.Equal(t, 1.23, resp.NextAllowedInSeconds)
	assert.Equal(t, 3, resp.MaxConcurrent)
	assert.Equal(t, 45.0, resp.MinGapSeconds)
	assert.Equal(t, 1, resp.ActiveByMode["safe"])
	assert.Equal(t, int64(1), resp.ModeCounters["safe"].Requests)
}

func TestHandleCalculateRoute(t *testing.T) {
	h := NewWaybillHandler(&stubWorkflows{}, nil, 2, 10, zap.NewNop())

	// Tehran -> Mashhad, known great-circle distance
	body := `{"origin":{"lat":35.6892,"lng":51.3890},"destination":{"lat":36.2605,"lng":59.6168}}`
	w := httptest.NewRecorder()
	h.HandleCalculateRoute(w, postJSON("/api/waybill/calculate-route", body))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp api.RouteResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.InDelta(t, 742.9, resp.DistanceKm, 5)
	assert.Equal(t, "haversine", resp.Method)
	assert.InDelta(t, resp.DistanceKm, resp.DurationMin, 1.5)
}
