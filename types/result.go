package types

// AuthState is the result of evaluating the portal session. It is derived on
// every check, never cached, because portal session state can change
// out-of-band (expiry, concurrent logout).
type AuthState int

const (
	AuthUnknown AuthState = iota
	AuthLoggedIn
	AuthOnLoginPage
)

func (s AuthState) String() string {
	switch s {
	case AuthLoggedIn:
		return "logged_in"
	case AuthOnLoginPage:
		return "on_login_page"
	default:
		return "unknown"
	}
}

// MapEngine identifies which map-rendering engine a page uses. Detection
// probes engines in this fixed priority order and stops at the first match.
type MapEngine string

const (
	EngineGoogleMaps       MapEngine = "google_maps"
	EngineOpenLayers       MapEngine = "openlayers"
	EngineLeaflet          MapEngine = "leaflet"
	EngineMapbox           MapEngine = "mapbox"
	EngineUnknownContainer MapEngine = "unknown_map"
	EngineNone             MapEngine = ""
)

// ResolutionMethod names the strategy that resolved a location.
type ResolutionMethod string

const (
	MethodMap          ResolutionMethod = "map"
	MethodDropdown     ResolutionMethod = "dropdown"
	MethodAutocomplete ResolutionMethod = "autocomplete"
)

// ResolutionOutcome is the tagged result of one origin/destination resolution
// attempt. A successful outcome is fully self-consistent: it never mixes
// partial results from two strategies.
type ResolutionOutcome struct {
	Success     bool             `json:"success"`
	Method      ResolutionMethod `json:"method"`
	Coordinates *Coordinate      `json:"coordinates,omitempty"`
	MapEngine   MapEngine        `json:"map_engine,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// RouteInfo carries the best-effort distance/duration between origin and
// destination. Method records how it was measured ("page" for in-page
// extraction, "haversine" for the pure-geometry fallback).
type RouteInfo struct {
	DistanceKm    float64 `json:"distance_km"`
	DistanceText  string  `json:"distance"`
	DurationMin   float64 `json:"duration_min"`
	DurationText  string  `json:"duration"`
	Method        string  `json:"method"`
	RoutePolyline string  `json:"route_polyline,omitempty"`
}

// ValidationSummary is returned by safe-mode workflows instead of a tracking
// code.
type ValidationSummary struct {
	ReadyForSubmit  bool `json:"ready_for_submit"`
	RouteCalculated bool `json:"route_calculated"`
}

// WorkflowResult is created once per top-level operation and handed to the
// API layer for serialization.
type WorkflowResult struct {
	Success   bool          `json:"success"`
	RequestID string        `json:"request_id"`
	Mode      OperationMode `json:"mode"`
	// Status is "validated" in safe mode, "submitted" in full mode.
	Status            string             `json:"status"`
	TrackingCode      string             `json:"tracking_code,omitempty"`
	ValidationSummary *ValidationSummary `json:"validation_summary,omitempty"`
	Route             *RouteInfo         `json:"route,omitempty"`
	OriginMethod      ResolutionMethod   `json:"origin_method,omitempty"`
	DestinationMethod ResolutionMethod   `json:"destination_method,omitempty"`
	OriginMapEngine   MapEngine          `json:"origin_map_type,omitempty"`
	DestMapEngine     MapEngine          `json:"destination_map_type,omitempty"`
	URL               string             `json:"url,omitempty"`
}
