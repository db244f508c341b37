package location

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/waybillflow/automation/selectors"
	"github.com/BaSui01/waybillflow/browser"
	"github.com/BaSui01/waybillflow/config"
	"github.com/BaSui01/waybillflow/types"
)

// Metrics receives resolution and geocoding outcomes. *metrics.Collector
// satisfies it; a nil observer disables recording.
type Metrics interface {
	RecordLocationResolution(method, status string)
	RecordGeocode(status string)
}

// Resolver runs the location resolution strategy chain for one form field
// group (origin or destination): map first, then cascading dropdowns, then
// autocomplete. Each strategy either fully succeeds or leaves nothing
// behind, so a later strategy never sees half-filled state it must undo.
type Resolver struct {
	page     browser.Page
	it       *browser.Interactor
	adapter  *MapAdapter
	geocoder Geocoder
	portal   config.PortalConfig
	metrics  Metrics
	logger   *zap.Logger
}

func NewResolver(page browser.Page, geocoder Geocoder, portal config.PortalConfig, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		page:     page,
		it:       browser.NewInteractor(page, portal.ActionTimeout, logger),
		adapter:  NewMapAdapter(page, logger),
		geocoder: geocoder,
		portal:   portal,
		logger:   logger,
	}
}

// Adapter exposes the map adapter so workflow code can reuse the detection
// result for route extraction.
func (r *Resolver) Adapter() *MapAdapter { return r.adapter }

// SetMetrics attaches an outcome observer, propagated to the geocoder when
// it supports one.
func (r *Resolver) SetMetrics(m Metrics) {
	r.metrics = m
	if g, ok := r.geocoder.(*NominatimGeocoder); ok {
		g.SetMetrics(m)
	}
}

func (r *Resolver) observe(method, status string) {
	if r.metrics != nil {
		r.metrics.RecordLocationResolution(method, status)
	}
}

// Resolve tries each strategy in order and returns the first success.
// When every strategy fails, the outcome carries Success=false and the
// returned error is a typed LOCATION_FAILURE.
func (r *Resolver) Resolve(ctx context.Context, loc types.LocationSpec, prefix string) (*types.ResolutionOutcome, error) {
	log := r.logger.With(zap.String("field_group", prefix), zap.String("city", loc.City))

	if out := r.tryMap(ctx, loc, prefix, log); out.Success {
		log.Info("location resolved", zap.String("method", string(out.Method)),
			zap.String("map_engine", string(out.MapEngine)))
		r.observe(string(out.Method), "success")
		return out, nil
	}
	if out := r.tryDropdown(ctx, loc, prefix, log); out.Success {
		log.Info("location resolved", zap.String("method", string(out.Method)))
		r.observe(string(out.Method), "success")
		return out, nil
	}
	if out := r.tryAutocomplete(ctx, loc, prefix, log); out.Success {
		log.Info("location resolved", zap.String("method", string(out.Method)))
		r.observe(string(out.Method), "success")
		return out, nil
	}

	log.Warn("all location strategies failed")
	r.observe("none", "failure")
	out := &types.ResolutionOutcome{
		Success: false,
		Error:   fmt.Sprintf("could not resolve %s location %q by map, dropdown, or autocomplete", strings.ToLower(prefix), loc.City),
	}
	return out, types.NewError(types.ErrLocationFailure, out.Error)
}

// tryMap resolves through the embedded map: detect the engine, obtain
// coordinates (given or geocoded), and place the point. When coordinates
// cannot be obtained the map search box is tried before giving up.
func (r *Resolver) tryMap(ctx context.Context, loc types.LocationSpec, prefix string, log *zap.Logger) *types.ResolutionOutcome {
	engine, err := r.adapter.Detect(ctx)
	if err != nil {
		log.Debug("map detection failed", zap.Error(err))
		return &types.ResolutionOutcome{Success: false}
	}
	if engine == types.EngineNone {
		log.Debug("no map on page")
		return &types.ResolutionOutcome{Success: false}
	}

	coords := loc.Coordinates
	if coords == nil && r.geocoder != nil {
		geocoded, err := r.geocoder.Geocode(ctx, loc.City, loc.Address)
		if err != nil {
			log.Debug("geocoding failed", zap.Error(err))
		} else {
			coords = geocoded
		}
	}

	if coords != nil {
		if err := r.adapter.SelectPoint(ctx, *coords); err != nil {
			log.Debug("map point selection failed", zap.Error(err))
			return &types.ResolutionOutcome{Success: false}
		}
		return &types.ResolutionOutcome{
			Success:     true,
			Method:      types.MethodMap,
			Coordinates: coords,
			MapEngine:   engine,
		}
	}

	// No coordinates from any source; the map's own search is the last
	// map-strategy option.
	query := strings.TrimSpace(strings.Join([]string{loc.City, loc.Address}, " "))
	if query == "" {
		return &types.ResolutionOutcome{Success: false}
	}
	ok, err := r.adapter.SelectBySearch(ctx, query, prefix, r.portal.SuggestionDelay)
	if err != nil || !ok {
		if err != nil {
			log.Debug("map search failed", zap.Error(err))
		}
		return &types.ResolutionOutcome{Success: false}
	}
	out := &types.ResolutionOutcome{Success: true, Method: types.MethodMap, MapEngine: engine}
	if center, err := r.adapter.Center(ctx); err == nil && center != nil {
		out.Coordinates = center
	}
	return out
}

// tryDropdown walks the province→city→district cascade. Province and city
// are mandatory; district is filled only when the form has the select and
// the location carries one. The cascade delay between selections lets the
// portal
// load the dependent option list.
func (r *Resolver) tryDropdown(ctx context.Context, loc types.LocationSpec, prefix string, log *zap.Logger) *types.ResolutionOutcome {
	if !r.selectFromOptions(ctx, selectors.Expand(selectors.ProvinceTemplates, prefix), loc.Province) {
		log.Debug("province dropdown not matched", zap.String("province", loc.Province))
		return &types.ResolutionOutcome{Success: false}
	}
	sleepCtx(ctx, r.portal.CascadeDelay)

	if !r.selectFromOptions(ctx, selectors.Expand(selectors.CityTemplates, prefix), loc.City) {
		log.Debug("city dropdown not matched")
		return &types.ResolutionOutcome{Success: false}
	}
	sleepCtx(ctx, r.portal.CascadeDelay)

	if loc.District != "" {
		if !r.selectFromOptions(ctx, selectors.Expand(selectors.DistrictTemplates, prefix), loc.District) {
			log.Debug("district dropdown not matched, continuing without it")
		}
	}

	if loc.Address != "" {
		r.it.FillFirst(ctx, selectors.Expand(selectors.AddressTemplates, prefix), loc.Address)
	}
	return &types.ResolutionOutcome{Success: true, Method: types.MethodDropdown, Coordinates: loc.Coordinates}
}

// selectFromOptions finds the first present <select> among candidates and
// picks the option matching target: exact containment of the target in the
// option first, then a looser pass matching either direction. Empty targets
// never match.
func (r *Resolver) selectFromOptions(ctx context.Context, candidates []string, target string) bool {
	target = strings.TrimSpace(target)
	if target == "" {
		return false
	}
	for _, sel := range candidates {
		ok, err := r.page.Exists(ctx, sel)
		if err != nil || !ok {
			continue
		}
		opts, err := r.page.Options(ctx, sel)
		if err != nil || len(opts) == 0 {
			continue
		}

		match := ""
		for _, o := range opts {
			if strings.Contains(o.Label, target) || o.Value == target {
				match = o.Value
				break
			}
		}
		if match == "" {
			for _, o := range opts {
				if strings.Contains(target, strings.TrimSpace(o.Label)) && strings.TrimSpace(o.Label) != "" {
					match = o.Value
					break
				}
			}
		}
		if match == "" {
			return false
		}
		if err := r.page.SelectByValue(ctx, sel, match); err != nil {
			r.logger.Debug("dropdown select failed", zap.String("selector", sel), zap.Error(err))
			return false
		}
		return true
	}
	return false
}

// tryAutocomplete types "city address" into a free-text location input and
// clicks the first rendered suggestion.
func (r *Resolver) tryAutocomplete(ctx context.Context, loc types.LocationSpec, prefix string, log *zap.Logger) *types.ResolutionOutcome {
	query := strings.TrimSpace(strings.Join([]string{loc.City, loc.Address}, " "))
	if query == "" {
		return &types.ResolutionOutcome{Success: false}
	}

	filled := r.it.FillFirst(ctx, selectors.Expand(selectors.AutocompleteInputTemplates, prefix), query)
	if filled == "" {
		log.Debug("no autocomplete input on page")
		return &types.ResolutionOutcome{Success: false}
	}
	sleepCtx(ctx, r.portal.SuggestionDelay)

	for _, sel := range selectors.SuggestionSelectors {
		ok, err := r.page.Exists(ctx, sel)
		if err != nil || !ok {
			continue
		}
		if err := r.page.Click(ctx, sel); err != nil {
			log.Debug("suggestion click failed", zap.String("selector", sel), zap.Error(err))
			continue
		}
		return &types.ResolutionOutcome{Success: true, Method: types.MethodAutocomplete, Coordinates: loc.Coordinates}
	}
	log.Debug("no suggestion appeared", zap.String("input", filled))
	return &types.ResolutionOutcome{Success: false}
}
