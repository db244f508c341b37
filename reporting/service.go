// Package reporting persists per-day workflow statistics to SQLite and
// keeps an in-memory operational window (latency samples, per-mode
// counters, failure categories) that resets on restart.
package reporting

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/waybillflow/types"
)

const defaultLatencySampleMax = 1000

// Open opens (or creates) the stats database and migrates the schema.
// Pass ":memory:" for a throwaway instance.
func Open(path string) (*gorm.DB, error) {
	if path == "" {
		path = "waybillflow_stats.db"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open stats database: %w", err)
	}
	if err := db.AutoMigrate(&DailyStats{}); err != nil {
		return nil, fmt.Errorf("migrate stats schema: %w", err)
	}
	return db, nil
}

// ModeCounters tracks one operation mode's request outcomes since process
// start.
type ModeCounters struct {
	Requests int64 `json:"requests"`
	Success  int64 `json:"success"`
	Failure  int64 `json:"failure"`
}

// Summary aggregates every persisted day.
type Summary struct {
	TotalRequests      int64            `json:"total_requests"`
	SuccessfulWaybills int64            `json:"successful_waybills"`
	FailedAttempts     int64            `json:"failed_attempts"`
	SuccessRate        string           `json:"success_rate"`
	MapUsage           map[string]int64 `json:"map_usage_distribution"`
}

// DayOutcome is one day's success/failure split.
type DayOutcome struct {
	Success int64 `json:"success"`
	Fail    int64 `json:"fail"`
}

// LatencyStats summarizes the in-memory latency window in milliseconds.
type LatencyStats struct {
	Count int     `json:"count"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	Max   float64 `json:"max"`
}

// OperationalReport is the non-persisted, since-startup view.
type OperationalReport struct {
	Latency         LatencyStats                         `json:"latency_ms"`
	ModeCounters    map[types.OperationMode]ModeCounters `json:"mode_counters"`
	ErrorCategories map[string]int64                     `json:"error_categories"`
}

// Service is safe for concurrent use. Database writes serialize on the
// daily row; in-memory counters take a separate mutex so a slow disk never
// stalls counter reads.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger

	mu         sync.Mutex
	latMax     int
	latencies  []float64
	modes      map[types.OperationMode]*ModeCounters
	categories map[string]int64

	dbMu sync.Mutex
}

func NewService(db *gorm.DB, latencySampleMax int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if latencySampleMax < 100 {
		latencySampleMax = defaultLatencySampleMax
	}
	return &Service{
		db:     db,
		logger: logger,
		latMax: latencySampleMax,
		modes: map[types.OperationMode]*ModeCounters{
			types.ModeSafe: {},
			types.ModeFull: {},
		},
		categories: map[string]int64{
			"auth": 0, "map": 0, "captcha": 0, "network": 0, "form": 0, "unknown": 0,
		},
	}
}

func today() string {
	return time.Now().Format("2006-01-02")
}

// updateToday applies mutate to today's row, creating it on first touch.
// The find-or-create runs inside a transaction so two workflows landing on
// a fresh day cannot both insert.
func (s *Service) updateToday(ctx context.Context, mutate func(*DailyStats)) {
	s.dbMu.Lock()
	defer s.dbMu.Unlock()

	day := today()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row DailyStats
		if err := tx.Where(DailyStats{ReportDate: day}).FirstOrCreate(&row).Error; err != nil {
			return err
		}
		mutate(&row)
		return tx.Save(&row).Error
	})
	if err != nil {
		s.logger.Warn("stats persistence failed", zap.String("day", day), zap.Error(err))
	}
}

func (s *Service) counters(mode types.OperationMode) *ModeCounters {
	c, ok := s.modes[mode.Normalized()]
	if !ok {
		c = &ModeCounters{}
		s.modes[mode.Normalized()] = c
	}
	return c
}

// RecordRequest counts an admitted workflow before it runs.
func (s *Service) RecordRequest(ctx context.Context, mode types.OperationMode) {
	s.mu.Lock()
	s.counters(mode).Requests++
	s.mu.Unlock()

	s.updateToday(ctx, func(row *DailyStats) { row.TotalRequests++ })
}

// RecordSuccess counts a completed workflow and its end-to-end latency.
func (s *Service) RecordSuccess(ctx context.Context, mode types.OperationMode, latency time.Duration) {
	s.mu.Lock()
	s.counters(mode).Success++
	if latency > 0 {
		s.latencies = append(s.latencies, float64(latency.Milliseconds()))
		if len(s.latencies) > s.latMax {
			s.latencies = s.latencies[len(s.latencies)-s.latMax:]
		}
	}
	s.mu.Unlock()

	s.updateToday(ctx, func(row *DailyStats) { row.SuccessfulWaybills++ })
}

// RecordFailure counts a terminally failed workflow under its category.
func (s *Service) RecordFailure(ctx context.Context, mode types.OperationMode, category string) {
	s.mu.Lock()
	if _, known := s.categories[category]; !known {
		category = "unknown"
	}
	s.counters(mode).Failure++
	s.categories[category]++
	s.mu.Unlock()

	s.updateToday(ctx, func(row *DailyStats) { row.FailedAttempts++ })
}

// RecordMapUsage counts which map engine a detection found.
func (s *Service) RecordMapUsage(ctx context.Context, engine types.MapEngine) {
	s.updateToday(ctx, func(row *DailyStats) {
		switch engine {
		case types.EngineGoogleMaps:
			row.MapGoogle++
		case types.EngineOpenLayers:
			row.MapOpenLayers++
		case types.EngineLeaflet:
			row.MapLeaflet++
		case types.EngineMapbox:
			row.MapMapbox++
		case types.EngineNone:
			row.MapNone++
		default:
			row.MapUnknown++
		}
	})
}

// Summary aggregates all persisted days.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	var rows []DailyStats
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}

	out := &Summary{MapUsage: map[string]int64{
		string(types.EngineGoogleMaps): 0,
		string(types.EngineOpenLayers): 0,
		string(types.EngineLeaflet):    0,
		string(types.EngineMapbox):     0,
		"unknown":                      0,
		"none":                         0,
	}}
	for _, r := range rows {
		out.TotalRequests += r.TotalRequests
		out.SuccessfulWaybills += r.SuccessfulWaybills
		out.FailedAttempts += r.FailedAttempts
		out.MapUsage[string(types.EngineGoogleMaps)] += r.MapGoogle
		out.MapUsage[string(types.EngineOpenLayers)] += r.MapOpenLayers
		out.MapUsage[string(types.EngineLeaflet)] += r.MapLeaflet
		out.MapUsage[string(types.EngineMapbox)] += r.MapMapbox
		out.MapUsage["unknown"] += r.MapUnknown
		out.MapUsage["none"] += r.MapNone
	}
	out.SuccessRate = successRate(out.SuccessfulWaybills, out.FailedAttempts)
	return out, nil
}

// DailyReport returns the per-day success/failure split keyed by ISO date.
func (s *Service) DailyReport(ctx context.Context) (map[string]DayOutcome, error) {
	var rows []DailyStats
	if err := s.db.WithContext(ctx).Order("report_date").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	out := make(map[string]DayOutcome, len(rows))
	for _, r := range rows {
		out[r.ReportDate] = DayOutcome{Success: r.SuccessfulWaybills, Fail: r.FailedAttempts}
	}
	return out, nil
}

// Operational returns the since-startup window without touching the
// database.
func (s *Service) Operational() *OperationalReport {
	s.mu.Lock()
	latencies := make([]float64, len(s.latencies))
	copy(latencies, s.latencies)
	modes := make(map[types.OperationMode]ModeCounters, len(s.modes))
	for m, c := range s.modes {
		modes[m] = *c
	}
	categories := make(map[string]int64, len(s.categories))
	for k, v := range s.categories {
		categories[k] = v
	}
	s.mu.Unlock()

	stats := LatencyStats{Count: len(latencies)}
	if len(latencies) > 0 {
		stats.P50 = percentile(latencies, 50)
		stats.P95 = percentile(latencies, 95)
		maxVal := latencies[0]
		for _, v := range latencies[1:] {
			if v > maxVal {
				maxVal = v
			}
		}
		stats.Max = round2(maxVal)
	}
	return &OperationalReport{Latency: stats, ModeCounters: modes, ErrorCategories: categories}
}

func successRate(success, failed int64) string {
	total := success + failed
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", float64(success)/float64(total)*100)
}

// percentile uses nearest-rank on a sorted copy.
func percentile(samples []float64, p int) float64 {
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	idx := int(math.Round(float64(p) / 100 * float64(len(sorted)-1)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return round2(sorted[idx])
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
