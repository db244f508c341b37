package location

import (
	"fmt"
	"strconv"
)

// JS snippets injected into the portal page to drive whichever map library
// it embeds. Each select snippet centers the map on the target point and
// fires the library's click event so the portal's own handlers place the
// marker.

// detectEngineJS probes the known map globals in priority order.
const detectEngineJS = `(function() {
	if (typeof google !== 'undefined' && typeof google.maps !== 'undefined') return 'google_maps';
	if (typeof ol !== 'undefined' && typeof ol.Map !== 'undefined') return 'openlayers';
	if (typeof L !== 'undefined' && typeof L.Map !== 'undefined') return 'leaflet';
	if (typeof mapboxgl !== 'undefined') return 'mapbox';
	return '';
})()`

func googleSelectJS(lat, lng float64) string {
	return fmt.Sprintf(`(function() {
	const el = document.querySelector('[data-map]') ||
		document.querySelector('#map') ||
		document.querySelector('.map');
	if (!el) return false;

	const map = el.__gm || el._map;
	if (!map) return false;

	const latLng = new google.maps.LatLng(%s, %s);
	map.setCenter(latLng);
	map.setZoom(15);
	google.maps.event.trigger(map, 'click', {latLng: latLng});
	return true;
})()`, jsFloat(lat), jsFloat(lng))
}

func openLayersSelectJS(selector string, lat, lng float64) string {
	return fmt.Sprintf(`(function() {
	const el = document.querySelector(%s);
	if (!el) return false;

	const map = el._map || window.map;
	if (!map) return false;

	const coordinate = ol.proj.fromLonLat([%s, %s]);
	map.getView().setCenter(coordinate);
	map.getView().setZoom(15);
	map.dispatchEvent({
		type: 'click',
		coordinate: coordinate,
		pixel: map.getPixelFromCoordinate(coordinate)
	});
	return true;
})()`, strconv.Quote(selector), jsFloat(lng), jsFloat(lat))
}

func leafletSelectJS(selector string, lat, lng float64) string {
	return fmt.Sprintf(`(function() {
	const el = document.querySelector(%s);
	if (!el) return false;

	const map = el._leaflet_map || window.map;
	if (!map) return false;

	const latLng = L.latLng(%s, %s);
	map.setView(latLng, 15);
	map.fire('click', {
		latlng: latLng,
		layerPoint: map.latLngToLayerPoint(latLng),
		containerPoint: map.latLngToContainerPoint(latLng)
	});
	return true;
})()`, strconv.Quote(selector), jsFloat(lat), jsFloat(lng))
}

func mapboxSelectJS(lat, lng float64) string {
	return fmt.Sprintf(`(function() {
	const container = document.querySelector('.mapboxgl-map');
	const map = window.map || (container && container._map);
	if (!map) return false;

	map.setCenter([%s, %s]);
	map.setZoom(15);
	map.fire('click', {lngLat: [%s, %s]});
	return true;
})()`, jsFloat(lng), jsFloat(lat), jsFloat(lng), jsFloat(lat))
}

// containerRectJS returns the bounding rect of the map container, for the
// last-resort physical click at its center.
func containerRectJS(selector string) string {
	return fmt.Sprintf(`(function() {
	const el = document.querySelector(%s);
	if (!el) return null;
	const r = el.getBoundingClientRect();
	return {x: r.x, y: r.y, width: r.width, height: r.height};
})()`, strconv.Quote(selector))
}

func pressEnterJS(selector string) string {
	return fmt.Sprintf(`(function() {
	const el = document.querySelector(%s);
	if (!el) return false;
	for (const type of ['keydown', 'keypress', 'keyup']) {
		el.dispatchEvent(new KeyboardEvent(type, {key: 'Enter', code: 'Enter', keyCode: 13, bubbles: true}));
	}
	return true;
})()`, strconv.Quote(selector))
}

// waitIdleJS resolves once the map settles, or after timeoutMs.
func waitIdleJS(engine string, timeoutMs int) string {
	switch engine {
	case "google_maps":
		return fmt.Sprintf(`new Promise((resolve) => {
	const el = document.querySelector('[data-map]') || document.querySelector('#map') || document.querySelector('.map');
	const map = el && (el.__gm || el._map);
	if (!map) return resolve(true);
	google.maps.event.addListenerOnce(map, 'idle', () => resolve(true));
	setTimeout(() => resolve(true), %d);
})`, timeoutMs)
	case "openlayers":
		return fmt.Sprintf(`new Promise((resolve) => {
	const el = document.querySelector('.ol-map, #map');
	const map = el && (el._map || window.map);
	if (!map) return resolve(true);
	if (!map.getView().getAnimating()) return resolve(true);
	map.on('moveend', () => resolve(true));
	setTimeout(() => resolve(true), %d);
})`, timeoutMs)
	case "leaflet":
		return fmt.Sprintf(`new Promise((resolve) => {
	const el = document.querySelector('.leaflet-container, #map');
	const map = el && (el._leaflet_map || window.map);
	if (!map) return resolve(true);
	map.on('moveend', () => resolve(true));
	map.on('zoomend', () => resolve(true));
	setTimeout(() => resolve(true), %d);
})`, timeoutMs)
	case "mapbox":
		return fmt.Sprintf(`new Promise((resolve) => {
	const map = window.map;
	if (!map) return resolve(true);
	map.once('idle', () => resolve(true));
	setTimeout(() => resolve(true), %d);
})`, timeoutMs)
	default:
		return ""
	}
}

// routeResultPresentJS reports whether a distance readout appeared.
const routeResultPresentJS = `(function() {
	const selectors = [
		'.distance', '[class*="distance"]', '[id*="distance"]',
		'[class*="مسافت"]', '[id*="مسافت"]',
		'[jsan*="directions"] [jstcache*="distance"]'
	];
	return selectors.some(s => document.querySelector(s));
})()`

const extractRouteGoogleJS = `(function() {
	const directions = document.querySelector('[jsan*="directions"]');
	if (directions) {
		const distanceEl = directions.querySelector('[jstcache*="distance"]');
		const durationEl = directions.querySelector('[jstcache*="duration"]');
		return {
			distance: distanceEl ? distanceEl.textContent.trim() : null,
			duration: durationEl ? durationEl.textContent.trim() : null
		};
	}
	const mapData = document.querySelector('[data-route]');
	if (mapData && mapData.dataset.route) {
		try { return JSON.parse(mapData.dataset.route); } catch (e) {}
	}
	return {};
})()`

const extractRouteGenericJS = `(function() {
	const distanceEl = document.querySelector(
		'.distance, [class*="distance"], [id*="distance"], [class*="مسافت"], [id*="مسافت"]');
	const durationEl = document.querySelector(
		'.duration, [class*="duration"], [id*="duration"], [class*="زمان"], [id*="زمان"]');
	return {
		distance: distanceEl ? distanceEl.textContent.trim() : null,
		duration: durationEl ? durationEl.textContent.trim() : null
	};
})()`

const mapCenterJS = `(function() {
	if (typeof google !== 'undefined' && google.maps) {
		const el = document.querySelector('#map');
		const map = el && (el.__gm || el._map);
		if (map && map.getCenter) {
			const c = map.getCenter();
			return {lat: c.lat(), lng: c.lng()};
		}
	}
	const match = window.location.href.match(/@(-?\d+\.\d+),(-?\d+\.\d+)/);
	if (match) return {lat: parseFloat(match[1]), lng: parseFloat(match[2])};
	return null;
})()`

func distanceMatrixJS(originLat, originLng, destLat, destLng float64) string {
	return fmt.Sprintf(`new Promise((resolve) => {
	if (typeof google === 'undefined' || !google.maps || !google.maps.DistanceMatrixService) {
		return resolve(null);
	}
	const service = new google.maps.DistanceMatrixService();
	service.getDistanceMatrix({
		origins: [{lat: %s, lng: %s}],
		destinations: [{lat: %s, lng: %s}],
		travelMode: google.maps.TravelMode.DRIVING,
		unitSystem: google.maps.UnitSystem.METRIC
	}, (response, status) => {
		if (status === 'OK' && response.rows[0].elements[0].status === 'OK') {
			const el = response.rows[0].elements[0];
			resolve({
				distance: el.distance.text,
				distance_value: el.distance.value,
				duration: el.duration.text,
				duration_value: el.duration.value
			});
		} else {
			resolve(null);
		}
	});
})`, jsFloat(originLat), jsFloat(originLng), jsFloat(destLat), jsFloat(destLng))
}

func jsFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
