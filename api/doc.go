// Package api defines the public HTTP data contracts for the WaybillFlow API.
//
// # API Overview
//
// WaybillFlow exposes a RESTful API for:
//   - Map-aware waybill creation in safe (validate-only) and full (submit) modes
//   - Map-engine detection on the portal's waybill page
//   - Admission-control status for operational monitoring
//   - Pure-geometry route calculation between two coordinates
//   - Daily, summary, and operational statistics reports
//
// # Authentication
//
// Sensitive endpoints require authentication via the configured API key
// header (default X-API-Key) or a bearer JWT, depending on api.mode:
//
//	X-API-Key: your-api-key
//	Authorization: Bearer <token>
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
package api
