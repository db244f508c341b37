package location_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/waybillflow/automation/location"
	"github.com/BaSui01/waybillflow/testutil"
	"github.com/BaSui01/waybillflow/types"
)

// engineEvalHook scripts a page whose map probe reports engine and whose
// library-API calls succeed.
func engineEvalHook(engine string) func(string) (any, bool) {
	return func(expr string) (any, bool) {
		switch {
		case strings.Contains(expr, "typeof google !== 'undefined'") && strings.Contains(expr, "typeof mapboxgl"):
			return engine, true
		case strings.Contains(expr, "setCenter") || strings.Contains(expr, "setView") ||
			strings.Contains(expr, "fromLonLat"):
			return true, true
		case strings.HasPrefix(expr, "new Promise"):
			return true, true
		}
		return nil, false
	}
}

func TestMapAdapterDetectsKnownEngines(t *testing.T) {
	for _, tc := range []struct {
		probe string
		want  types.MapEngine
	}{
		{"google_maps", types.EngineGoogleMaps},
		{"openlayers", types.EngineOpenLayers},
		{"leaflet", types.EngineLeaflet},
		{"mapbox", types.EngineMapbox},
	} {
		t.Run(tc.probe, func(t *testing.T) {
			page := testutil.NewFakePage()
			page.EvalHook = engineEvalHook(tc.probe)
			adapter := location.NewMapAdapter(page, nil)

			engine, err := adapter.Detect(testutil.TestContext(t))
			require.NoError(t, err)
			assert.Equal(t, tc.want, engine)
		})
	}
}

func TestMapAdapterDetectsUnknownContainer(t *testing.T) {
	page := testutil.NewFakePage()
	page.EvalHook = engineEvalHook("")
	page.AddVisible(`#map`)
	adapter := location.NewMapAdapter(page, nil)

	engine, err := adapter.Detect(testutil.TestContext(t))
	require.NoError(t, err)
	assert.Equal(t, types.EngineUnknownContainer, engine)
}

func TestMapAdapterDetectsNoMap(t *testing.T) {
	page := testutil.NewFakePage()
	page.EvalHook = engineEvalHook("")
	adapter := location.NewMapAdapter(page, nil)

	engine, err := adapter.Detect(testutil.TestContext(t))
	require.NoError(t, err)
	assert.Equal(t, types.EngineNone, engine)
}

func TestMapAdapterSelectPointThroughLibrary(t *testing.T) {
	page := testutil.NewFakePage()
	page.EvalHook = engineEvalHook("leaflet")
	adapter := location.NewMapAdapter(page, nil)
	ctx := testutil.TestContext(t)

	_, err := adapter.Detect(ctx)
	require.NoError(t, err)

	err = adapter.SelectPoint(ctx, types.Coordinate{Lat: 35.6892, Lng: 51.3890})
	require.NoError(t, err)
	// Library selection never needs a physical click.
	assert.Empty(t, page.ClickPoints)
}

func TestMapAdapterSelectPointUnknownContainerClicksCenter(t *testing.T) {
	page := testutil.NewFakePage()
	page.AddVisible(`#map`)
	page.EvalHook = func(expr string) (any, bool) {
		switch {
		case strings.Contains(expr, "typeof mapboxgl"):
			return "", true
		case strings.Contains(expr, "getBoundingClientRect"):
			return map[string]float64{"x": 100, "y": 50, "width": 400, "height": 300}, true
		}
		return nil, false
	}
	adapter := location.NewMapAdapter(page, nil)
	ctx := testutil.TestContext(t)

	engine, err := adapter.Detect(ctx)
	require.NoError(t, err)
	require.Equal(t, types.EngineUnknownContainer, engine)

	require.NoError(t, adapter.SelectPoint(ctx, types.Coordinate{Lat: 35, Lng: 51}))
	require.Len(t, page.ClickPoints, 1)
	assert.Equal(t, [2]float64{300, 200}, page.ClickPoints[0])
}

func TestMapAdapterSelectPointFailsWhenLibraryUnreachable(t *testing.T) {
	page := testutil.NewFakePage()
	page.EvalHook = func(expr string) (any, bool) {
		switch {
		case strings.Contains(expr, "typeof mapboxgl"):
			return "leaflet", true
		case strings.Contains(expr, "setView"):
			return false, true // map object missing from the container
		}
		return nil, false
	}
	adapter := location.NewMapAdapter(page, nil)
	ctx := testutil.TestContext(t)

	_, err := adapter.Detect(ctx)
	require.NoError(t, err)

	err = adapter.SelectPoint(ctx, types.Coordinate{Lat: 35, Lng: 51})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not reachable")
}

func TestMapAdapterSelectBySearch(t *testing.T) {
	page := testutil.NewFakePage()
	page.AddVisible(`.map-search input`)
	page.AddVisible(`.pac-item:first-child`)
	page.EvalHook = func(expr string) (any, bool) {
		switch {
		case strings.Contains(expr, "KeyboardEvent"):
			return true, true
		case strings.HasPrefix(expr, "new Promise"):
			return true, true
		}
		return nil, false
	}
	adapter := location.NewMapAdapter(page, nil)
	ctx := testutil.TestContext(t)

	ok, err := adapter.SelectBySearch(ctx, "Tehran Valiasr", "Origin", 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Tehran Valiasr", page.Fills[`.map-search input`])
	assert.Contains(t, page.Clicks, `.pac-item:first-child`)
}

func TestMapAdapterSelectBySearchNoInput(t *testing.T) {
	page := testutil.NewFakePage()
	adapter := location.NewMapAdapter(page, nil)

	ok, err := adapter.SelectBySearch(testutil.TestContext(t), "Tehran", "Origin", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMapAdapterExtractRouteInfoGeneric(t *testing.T) {
	page := testutil.NewFakePage()
	page.EvalHook = func(expr string) (any, bool) {
		switch {
		case strings.Contains(expr, "typeof mapboxgl"):
			return "leaflet", true
		case strings.Contains(expr, "durationEl"):
			return map[string]string{"distance": " 25 km ", "duration": "30 mins"}, true
		}
		return nil, false
	}
	adapter := location.NewMapAdapter(page, nil)
	ctx := testutil.TestContext(t)
	_, err := adapter.Detect(ctx)
	require.NoError(t, err)

	distance, duration, err := adapter.ExtractRouteInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "25 km", distance)
	assert.Equal(t, "30 mins", duration)
}

func TestMapAdapterExtractRouteInfoGooglePreferred(t *testing.T) {
	page := testutil.NewFakePage()
	page.EvalHook = func(expr string) (any, bool) {
		switch {
		case strings.Contains(expr, "typeof mapboxgl"):
			return "google_maps", true
		case strings.Contains(expr, "jstcache"):
			return map[string]string{"distance": "894 km", "duration": "9 h"}, true
		case strings.Contains(expr, "durationEl"):
			t.Fatal("generic extraction should not run when the google panel has data")
		}
		return nil, false
	}
	adapter := location.NewMapAdapter(page, nil)
	ctx := testutil.TestContext(t)
	_, err := adapter.Detect(ctx)
	require.NoError(t, err)

	distance, duration, err := adapter.ExtractRouteInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "894 km", distance)
	assert.Equal(t, "9 h", duration)
}
