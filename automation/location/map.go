package location

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/waybillflow/automation/selectors"
	"github.com/BaSui01/waybillflow/browser"
	"github.com/BaSui01/waybillflow/types"
)

// mapIdleTimeout bounds how long we wait for a map library to settle after a
// programmatic move.
const mapIdleTimeout = 3 * time.Second

// MapAdapter drives whichever map library the portal page embeds behind a
// single interface. Detect must run before SelectPoint; the detected engine
// and container are cached for the lifetime of the adapter, which is one
// page visit.
type MapAdapter struct {
	page   browser.Page
	logger *zap.Logger

	engine    types.MapEngine
	container string
	detected  bool
}

func NewMapAdapter(page browser.Page, logger *zap.Logger) *MapAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MapAdapter{page: page, logger: logger}
}

// Engine returns the last detection result.
func (m *MapAdapter) Engine() types.MapEngine { return m.engine }

// Detect probes known map globals in fixed priority order, then falls back
// to a container-element scan. The probe is intentionally cheap: one JS
// evaluation plus at most a handful of existence checks.
func (m *MapAdapter) Detect(ctx context.Context) (types.MapEngine, error) {
	m.detected = true
	m.engine = types.EngineNone
	m.container = ""

	var name string
	if err := m.page.Eval(ctx, detectEngineJS, &name); err != nil {
		return types.EngineNone, fmt.Errorf("map engine probe: %w", err)
	}
	switch name {
	case "google_maps":
		m.engine = types.EngineGoogleMaps
	case "openlayers":
		m.engine = types.EngineOpenLayers
	case "leaflet":
		m.engine = types.EngineLeaflet
	case "mapbox":
		m.engine = types.EngineMapbox
	}
	if m.engine != types.EngineNone {
		m.container = m.findContainer(ctx)
		m.logger.Debug("map engine detected",
			zap.String("engine", string(m.engine)),
			zap.String("container", m.container))
		return m.engine, nil
	}

	// No known library. A map-like container still means something renders
	// tiles there; we can click it even without API access.
	if sel := m.findContainer(ctx); sel != "" {
		m.engine = types.EngineUnknownContainer
		m.container = sel
		m.logger.Debug("unknown map container found", zap.String("container", sel))
		return m.engine, nil
	}
	return types.EngineNone, nil
}

func (m *MapAdapter) findContainer(ctx context.Context) string {
	for _, sel := range selectors.MapContainerSelectors {
		ok, err := m.page.Exists(ctx, sel)
		if err == nil && ok {
			return sel
		}
	}
	return ""
}

// SelectPoint centers the map on coord and places the marker there. For
// known engines it goes through the library API; for an unknown container it
// clicks the container center after panning is impossible, which still works
// on portals that geocode the click position.
func (m *MapAdapter) SelectPoint(ctx context.Context, coord types.Coordinate) error {
	if !m.detected {
		if _, err := m.Detect(ctx); err != nil {
			return err
		}
	}

	var script string
	switch m.engine {
	case types.EngineGoogleMaps:
		script = googleSelectJS(coord.Lat, coord.Lng)
	case types.EngineOpenLayers:
		script = openLayersSelectJS(m.containerOr(".ol-map"), coord.Lat, coord.Lng)
	case types.EngineLeaflet:
		script = leafletSelectJS(m.containerOr(".leaflet-container"), coord.Lat, coord.Lng)
	case types.EngineMapbox:
		script = mapboxSelectJS(coord.Lat, coord.Lng)
	case types.EngineUnknownContainer:
		return m.clickContainerCenter(ctx)
	default:
		return fmt.Errorf("no map engine on page")
	}

	var ok bool
	if err := m.page.Eval(ctx, script, &ok); err != nil {
		return fmt.Errorf("map select (%s): %w", m.engine, err)
	}
	if !ok {
		return fmt.Errorf("map select (%s): map object not reachable", m.engine)
	}
	return m.WaitIdle(ctx)
}

// SelectBySearch resolves the location through the map's own search box:
// types the query, submits it, and clicks the first suggestion. Returns
// false when the page has no usable search input.
func (m *MapAdapter) SelectBySearch(ctx context.Context, query, prefix string, suggestionDelay time.Duration) (bool, error) {
	candidates := selectors.Expand(selectors.MapSearchTemplates, prefix)
	var input string
	for _, sel := range candidates {
		ok, err := m.page.Exists(ctx, sel)
		if err == nil && ok {
			input = sel
			break
		}
	}
	if input == "" {
		return false, nil
	}

	if err := m.page.Fill(ctx, input, query); err != nil {
		return false, fmt.Errorf("map search fill: %w", err)
	}
	// Enter is best-effort: some portals search on keystroke alone.
	_ = m.page.Eval(ctx, pressEnterJS(input), nil)
	sleepCtx(ctx, suggestionDelay)

	for _, sel := range selectors.SuggestionSelectors {
		ok, err := m.page.Exists(ctx, sel)
		if err != nil || !ok {
			continue
		}
		if err := m.page.Click(ctx, sel); err != nil {
			continue
		}
		_ = m.WaitIdle(ctx)
		return true, nil
	}
	// Query submitted but no suggestion list; treat the search itself as
	// the selection.
	_ = m.WaitIdle(ctx)
	return true, nil
}

func (m *MapAdapter) clickContainerCenter(ctx context.Context) error {
	var rect struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	if err := m.page.Eval(ctx, containerRectJS(m.container), &rect); err != nil {
		return fmt.Errorf("map container rect: %w", err)
	}
	if rect.Width <= 0 || rect.Height <= 0 {
		return fmt.Errorf("map container %q has no size", m.container)
	}
	return m.page.ClickAt(ctx, rect.X+rect.Width/2, rect.Y+rect.Height/2)
}

// WaitIdle blocks until the map reports it finished moving, or a short
// timeout elapses. Unknown engines get a fixed settle delay.
func (m *MapAdapter) WaitIdle(ctx context.Context) error {
	script := waitIdleJS(string(m.engine), int(mapIdleTimeout.Milliseconds()))
	if script == "" {
		sleepCtx(ctx, 500*time.Millisecond)
		return ctx.Err()
	}
	var done bool
	if err := m.page.Eval(ctx, script, &done); err != nil {
		m.logger.Debug("map idle wait failed", zap.Error(err))
	}
	return ctx.Err()
}

// Center reads the current map center, when the engine exposes one.
func (m *MapAdapter) Center(ctx context.Context) (*types.Coordinate, error) {
	var out *struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}
	if err := m.page.Eval(ctx, mapCenterJS, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	return &types.Coordinate{Lat: out.Lat, Lng: out.Lng}, nil
}

// ExtractRouteInfo scrapes the distance/duration readout the portal renders
// after both endpoints are set. Both values are optional; empty strings mean
// the page showed nothing.
func (m *MapAdapter) ExtractRouteInfo(ctx context.Context) (distance, duration string, err error) {
	var out struct {
		Distance string `json:"distance"`
		Duration string `json:"duration"`
	}
	if m.engine == types.EngineGoogleMaps {
		if err := m.page.Eval(ctx, extractRouteGoogleJS, &out); err == nil &&
			(out.Distance != "" || out.Duration != "") {
			return strings.TrimSpace(out.Distance), strings.TrimSpace(out.Duration), nil
		}
	}
	if err := m.page.Eval(ctx, extractRouteGenericJS, &out); err != nil {
		return "", "", fmt.Errorf("route info extraction: %w", err)
	}
	return strings.TrimSpace(out.Distance), strings.TrimSpace(out.Duration), nil
}

// WaitForRouteResult polls for a distance readout to appear after route
// endpoints are set, up to timeout.
func (m *MapAdapter) WaitForRouteResult(ctx context.Context, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return false
		}
		var present bool
		if err := m.page.Eval(ctx, routeResultPresentJS, &present); err == nil && present {
			return true
		}
		sleepCtx(ctx, 300*time.Millisecond)
	}
	return false
}

func (m *MapAdapter) containerOr(fallback string) string {
	if m.container != "" {
		return m.container
	}
	return fallback
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
