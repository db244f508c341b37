package reporting

// DailyStats is one persisted row per calendar day. ReportDate holds the
// day in ISO format so the unique index survives SQLite's loose typing.
type DailyStats struct {
	ID         uint   `gorm:"primaryKey" json:"-"`
	ReportDate string `gorm:"uniqueIndex;size:10" json:"report_date"`

	TotalRequests      int64 `json:"total_requests"`
	SuccessfulWaybills int64 `json:"successful_waybills"`
	FailedAttempts     int64 `json:"failed_attempts"`

	MapGoogle     int64 `json:"map_google"`
	MapOpenLayers int64 `json:"map_openlayers"`
	MapLeaflet    int64 `json:"map_leaflet"`
	MapMapbox     int64 `json:"map_mapbox"`
	MapUnknown    int64 `json:"map_unknown"`
	MapNone       int64 `json:"map_none"`
}
