package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/waybillflow/reporting"
	"github.com/BaSui01/waybillflow/types"
)

func newReportsHandler(t *testing.T) (*ReportsHandler, *reporting.Service) {
	t.Helper()
	db, err := reporting.Open(":memory:")
	require.NoError(t, err)
	reports := reporting.NewService(db, 0, nil)
	return NewReportsHandler(reports, nil), reports
}

func TestHandleSummary(t *testing.T) {
	h, reports := newReportsHandler(t)

	ctx := context.Background()
	reports.RecordRequest(ctx, types.ModeSafe)
	reports.RecordSuccess(ctx, types.ModeSafe, 1200*time.Millisecond)
	reports.RecordRequest(ctx, types.ModeFull)
	reports.RecordFailure(ctx, types.ModeFull, "form")
	reports.RecordMapUsage(ctx, types.EngineLeaflet)

	w := httptest.NewRecorder()
	h.HandleSummary(w, httptest.NewRequest(http.MethodGet, "/api/reports/summary", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var summary reporting.Summary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&summary))
	assert.Equal(t, int64(2), summary.TotalRequests)
	assert.Equal(t, int64(1), summary.SuccessfulWaybills)
	assert.Equal(t, int64(1), summary.FailedAttempts)
	assert.Equal(t, "50.0%", summary.SuccessRate)
	assert.Equal(t, int64(1), summary.MapUsage["leaflet"])
}

func TestHandleDaily(t *testing.T) {
	h, reports := newReportsHandler(t)

	ctx := context.Background()
	reports.RecordSuccess(ctx, types.ModeSafe, 0)
	reports.RecordFailure(ctx, types.ModeSafe, "network")

	w := httptest.NewRecorder()
	h.HandleDaily(w, httptest.NewRequest(http.MethodGet, "/api/reports/daily", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var daily map[string]reporting.DayOutcome
	require.NoError(t, json.NewDecoder(w.Body).Decode(&daily))
	today := time.Now().Format("2006-01-02")
	assert.Equal(t, int64(1), daily[today].Success)
	assert.Equal(t, int64(1), daily[today].Fail)
}

func TestHandleOperational(t *testing.T) {
	h, reports := newReportsHandler(t)

	ctx := context.Background()
	reports.RecordRequest(ctx, types.ModeSafe)
	reports.RecordSuccess(ctx, types.ModeSafe, 800*time.Millisecond)
	reports.RecordFailure(ctx, types.ModeFull, "auth")

	w := httptest.NewRecorder()
	h.HandleOperational(w, httptest.NewRequest(http.MethodGet, "/api/reports/operational", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var report reporting.OperationalReport
	require.NoError(t, json.NewDecoder(w.Body).Decode(&report))
	assert.Equal(t, 1, report.Latency.Count)
	assert.Equal(t, int64(1), report.ModeCounters[types.ModeSafe].Success)
	assert.Equal(t, int64(1), report.ModeCounters[types.ModeFull].Failure)
	assert.Equal(t, int64(1), report.ErrorCategories["auth"])
}

func TestReportsMethodNotAllowed(t *testing.T) {
	h, _ := newReportsHandler(t)

	for _, handle := range []http.HandlerFunc{h.HandleSummary, h.HandleDaily, h.HandleOperational} {
		w := httptest.NewRecorder()
		handle(w, httptest.NewRequest(http.MethodPost, "/api/reports", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	}
}
