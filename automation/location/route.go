package location

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/BaSui01/waybillflow/browser"
	"github.com/BaSui01/waybillflow/types"
)

const (
	earthRadiusKm = 6371.0
	// Average intercity driving speed used to estimate duration when no
	// routing service is reachable.
	estimateSpeedKmh = 60.0
)

// Haversine returns the great-circle distance between two points in
// kilometers.
func Haversine(a, b types.Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// EstimateRoute builds a RouteInfo from pure geometry: haversine distance
// and a fixed-speed duration estimate.
func EstimateRoute(origin, dest types.Coordinate) types.RouteInfo {
	km := Haversine(origin, dest)
	mins := km / estimateSpeedKmh * 60
	return types.RouteInfo{
		DistanceKm:   km,
		DistanceText: fmt.Sprintf("%.2f km", km),
		DurationMin:  mins,
		DurationText: fmt.Sprintf("%d mins", int(math.Round(mins))),
		Method:       "haversine",
	}
}

// RouteCalculator measures origin→destination distance. It asks the page's
// routing service first (accurate road distance when the map is Google) and
// falls back to haversine.
type RouteCalculator struct {
	page   browser.Page
	logger *zap.Logger
}

func NewRouteCalculator(page browser.Page, logger *zap.Logger) *RouteCalculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RouteCalculator{page: page, logger: logger}
}

// Calculate never fails: any in-page error degrades to the geometric
// estimate.
func (rc *RouteCalculator) Calculate(ctx context.Context, origin, dest types.Coordinate) types.RouteInfo {
	if rc.page != nil {
		var out *struct {
			Distance      string  `json:"distance"`
			DistanceValue float64 `json:"distance_value"`
			Duration      string  `json:"duration"`
			DurationValue float64 `json:"duration_value"`
		}
		script := distanceMatrixJS(origin.Lat, origin.Lng, dest.Lat, dest.Lng)
		if err := rc.page.Eval(ctx, script, &out); err != nil {
			rc.logger.Debug("in-page route lookup failed", zap.Error(err))
		} else if out != nil && out.DistanceValue > 0 {
			return types.RouteInfo{
				DistanceKm:   out.DistanceValue / 1000,
				DistanceText: out.Distance,
				DurationMin:  out.DurationValue / 60,
				DurationText: out.Duration,
				Method:       "page",
			}
		}
	}
	return EstimateRoute(origin, dest)
}
