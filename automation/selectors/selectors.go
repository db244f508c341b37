// Package selectors holds the portal selector catalog. The portal markup
// mixes English and Persian attribute names, so every field carries an
// ordered list of candidates probed until one matches.
package selectors

import "strings"

// Expand substitutes {prefix} and {prefix_lower} in each template.
// Prefix is the form field group, e.g. "Origin" or "Destination".
func Expand(templates []string, prefix string) []string {
	lower := strings.ToLower(prefix)
	out := make([]string, 0, len(templates))
	for _, tpl := range templates {
		s := strings.ReplaceAll(tpl, "{prefix}", prefix)
		s = strings.ReplaceAll(s, "{prefix_lower}", lower)
		out = append(out, s)
	}
	return out
}

// Location selector templates, expanded with the field group prefix.
var (
	ProvinceTemplates = []string{
		`select[name="{prefix}Province"]`,
		`select[name="{prefix}State"]`,
		`select[id="{prefix}Province"]`,
		`#{prefix_lower}_province`,
		`[name*="province" i][name*="{prefix_lower}" i]`,
		`select[name*="Ostan"]`,
		`select[name*="استان"]`,
	}

	CityTemplates = []string{
		`select[name="{prefix}City"]`,
		`select[id="{prefix}City"]`,
		`#{prefix_lower}_city`,
		`[name*="city" i][name*="{prefix_lower}" i]`,
		`select[name*="Shahr"]`,
		`select[name*="شهر"]`,
	}

	DistrictTemplates = []string{
		`select[name="{prefix}District"]`,
		`select[id="{prefix}District"]`,
		`#{prefix_lower}_district`,
		`select[name*="Mantaghe"]`,
		`select[name*="منطقه"]`,
	}

	AddressTemplates = []string{
		`textarea[name="{prefix}Address"]`,
		`input[name="{prefix}Address"]`,
		`[name*="address" i][name*="{prefix_lower}" i]`,
		`[name*="آدرس"]`,
	}

	AutocompleteInputTemplates = []string{
		`input[name="{prefix}Location"]`,
		`input[name="{prefix}Address"]`,
		`input[placeholder*="{prefix}" i]`,
		`[name*="location" i][name*="{prefix_lower}" i]`,
		`.location-search`,
		`[class*="location-search"]`,
		`input[placeholder*="جستجو"]`,
		`input[placeholder*="search"]`,
	}

	SuggestionSelectors = []string{
		`.autocomplete-suggestion:first-child`,
		`.pac-item:first-child`,
		`[class*="suggestion"]:first-child`,
		`li:first-child`,
	}

	MapSearchTemplates = []string{
		`input[name="{prefix}Search"]`,
		`input[placeholder*="{prefix}" i]`,
		`.map-search input`,
		`[class*="map-search"] input`,
		`#map-search`,
		`input[placeholder*="جستجو در نقشه"]`,
		`input[placeholder*="Search map"]`,
	}
)

// Map container candidates, checked when no known map library is found on
// the page but a map-like element might still exist.
var MapContainerSelectors = []string{
	`#map`,
	`.map`,
	`#map-container`,
	`.map-container`,
	`[id*='map']`,
	`[class*='map']`,
	`.ol-map`,
	`.leaflet-container`,
	`.gm-style`,
}

// Authentication selectors.
var (
	LoginPathCandidates = []string{
		"/Barname/Account/Login",
		"/Account/Login",
		"/Barname/Login",
		"/Login",
	}

	UsernameSelectors = []string{
		`input[name='NationalCode']`,
		`input[id='NationalCode']`,
		`input[name*='national' i][type='text']`,
		`input[name='Username']`,
		`input[name='username']`,
		`input[name='UserName']`,
		`input[id='Username']`,
		`input[id='username']`,
		`input[type='text'][name*='user' i]`,
		`input[autocomplete='username']`,
	}

	PasswordSelectors = []string{
		`input[name='Password']`,
		`input[name='password']`,
		`input[id='Password']`,
		`input[id='password']`,
		`input[type='password']`,
	}

	CaptchaInputSelectors = []string{
		`input[name='CapToken']`,
		`input[id='CapToken']`,
		`input[name='DNTCaptchaInputText']`,
		`input[id='DNTCaptchaInputText']`,
		`input[name*='captcha' i][type='text']`,
		`input[id*='captcha' i][type='text']`,
	}

	CaptchaImageSelectors = []string{
		`img[id*='captcha' i]`,
		`img[src*='captcha' i]`,
		`.captcha img`,
		`img.captcha`,
	}

	LoginSubmitSelectors = []string{
		`button[type='submit']`,
		`input[type='submit']`,
		`button:has-text('ورود')`,
		`button:has-text('Login')`,
		`button:has-text('Sign in')`,
	}

	LogoutSelectors = []string{
		`text=خروج`,
		`a[href*='logout' i]`,
		`button:has-text('خروج')`,
	}

	// WaybillFormMarkers identify the waybill entry form itself. Seeing
	// one of these means the session is authenticated and on the right
	// module.
	WaybillFormMarkers = []string{
		`input[name='SenderName']`,
		`input[name='ReceiverName']`,
		`textarea[name='SenderAddress']`,
		`textarea[name='ReceiverAddress']`,
		`input[name='SenderPhone']`,
		`input[name='ReceiverPhone']`,
	}

	LoginErrorSelectors = []string{
		`.validation-summary-errors li`,
		`.validation-summary-errors`,
		`.field-validation-error`,
		`.alert-danger`,
		`.text-danger`,
		`.toast-message`,
		`.toast-body`,
		`.swal2-html-container`,
	}
)
