// Package waybill drives the portal's multi-step waybill entry form:
// party details, location resolution for both endpoints, cargo/fleet/
// financial sections, and the final validate-or-submit step.
package waybill

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/waybillflow/automation/location"
	"github.com/BaSui01/waybillflow/automation/selectors"
	"github.com/BaSui01/waybillflow/browser"
	"github.com/BaSui01/waybillflow/config"
	"github.com/BaSui01/waybillflow/types"
)

var (
	trackingDigitsRe = regexp.MustCompile(`\d{6,}`)
	trackingURLRe    = regexp.MustCompile(`[A-Z0-9]{8,}`)
)

// menuLinksJS lists every anchor's text and href so recovery can find the
// waybill module entry in the side menu.
const menuLinksJS = `(function() {
	return Array.from(document.querySelectorAll('a')).map(e => ({
		text: (e.innerText || '').trim(),
		href: (e.getAttribute('href') || '').trim()
	}));
})()`

// Manager fills and submits one waybill per call. It owns no session
// lifecycle; the caller hands it an authenticated page.
type Manager struct {
	page     browser.Page
	it       *browser.Interactor
	resolver *location.Resolver
	routes   *location.RouteCalculator
	portal   config.PortalConfig
	retry    config.RetryConfig
	logger   *zap.Logger
}

func NewManager(page browser.Page, geocoder location.Geocoder, portal config.PortalConfig, retryCfg config.RetryConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		page:     page,
		it:       browser.NewInteractor(page, portal.ActionTimeout, logger),
		resolver: location.NewResolver(page, geocoder, portal, logger),
		routes:   location.NewRouteCalculator(page, logger),
		portal:   portal,
		retry:    retryCfg,
		logger:   logger,
	}
}

// Resolver exposes the location resolver, mainly so tests and the workflow
// layer can reuse its map adapter.
func (m *Manager) Resolver() *location.Resolver { return m.resolver }

// Create runs the whole form flow. In safe mode it stops short of the final
// submit and reports readiness; in full mode it submits and must recover a
// tracking code. The returned result carries per-endpoint resolution
// methods for reporting.
func (m *Manager) Create(ctx context.Context, req *types.WaybillRequest) (*types.WorkflowResult, error) {
	mode := req.OperationMode.Normalized()

	if err := m.openFormPage(ctx); err != nil {
		return nil, err
	}

	if err := m.fillSender(ctx, req.Sender); err != nil {
		return nil, err
	}
	if err := m.fillReceiver(ctx, req.Receiver); err != nil {
		return nil, err
	}

	originOut, err := m.resolver.Resolve(ctx, req.Origin, "Origin")
	if err != nil {
		return nil, err
	}
	destOut, err := m.resolver.Resolve(ctx, req.Destination, "Destination")
	if err != nil {
		return nil, err
	}

	var route *types.RouteInfo
	if originOut.Coordinates != nil && destOut.Coordinates != nil {
		r := m.routes.Calculate(ctx, *originOut.Coordinates, *destOut.Coordinates)
		route = &r
	}

	if err := m.fillCargo(ctx, req.Cargo); err != nil {
		return nil, err
	}
	if err := m.fillVehicle(ctx, req.Vehicle); err != nil {
		return nil, err
	}
	if err := m.fillFinancial(ctx, req.Financial); err != nil {
		return nil, err
	}

	var result *types.WorkflowResult
	if mode == types.ModeSafe {
		currentURL, _ := m.page.URL(ctx)
		result = &types.WorkflowResult{
			Success: true,
			Mode:    mode,
			Status:  "validated",
			ValidationSummary: &types.ValidationSummary{
				ReadyForSubmit:  true,
				RouteCalculated: route != nil,
			},
			URL: currentURL,
		}
	} else {
		result, err = m.submit(ctx)
		if err != nil {
			return nil, err
		}
		result.Mode = mode
	}

	result.Route = route
	result.OriginMethod = originOut.Method
	result.DestinationMethod = destOut.Method
	result.OriginMapEngine = originOut.MapEngine
	result.DestMapEngine = destOut.MapEngine
	return result, nil
}

// openFormPage navigates to the configured create URL and, when that lands
// on an error shell, works back to the real form through recovery links,
// the side menu, and alternate URLs.
func (m *Manager) openFormPage(ctx context.Context) error {
	err := browser.NavigateWithRetry(ctx, m.page, m.portal.WaybillURL,
		m.retry.NavigationMaxRetries, m.retry.NavigationBase, m.retry.NavigationJitter, m.logger)
	if err != nil {
		return types.NewError(types.ErrNetworkTransient, "waybill page navigation failed").WithCause(err).WithRetryable(true)
	}
	sleepCtx(ctx, m.portal.SettleDelay)
	return m.ensureFormPage(ctx)
}

func (m *Manager) ensureFormPage(ctx context.Context) error {
	if m.formReady(ctx) {
		return nil
	}

	if m.looksLikeNotFoundPage(ctx) {
		m.logger.Warn("waybill create url landed on an error page, attempting recovery")
		for _, sel := range selectors.RecoverySelectors {
			ok, err := m.page.Exists(ctx, sel)
			if err != nil || !ok {
				continue
			}
			if err := m.page.ClickAndNavigate(ctx, sel); err != nil {
				continue
			}
			sleepCtx(ctx, m.portal.SettleDelay)
			if m.formReady(ctx) {
				return nil
			}
		}
	}

	if err := m.checkMenuForAccessDenial(ctx); err != nil {
		return err
	}

	for _, sel := range selectors.WaybillMenuSelectors {
		ok, err := m.page.Exists(ctx, sel)
		if err != nil || !ok {
			continue
		}
		if err := m.page.ClickAndNavigate(ctx, sel); err != nil {
			continue
		}
		sleepCtx(ctx, m.portal.SettleDelay)
		if m.formReady(ctx) {
			return nil
		}
	}

	for _, candidate := range m.formURLCandidates() {
		if err := m.page.Navigate(ctx, candidate); err != nil {
			continue
		}
		sleepCtx(ctx, m.portal.SettleDelay)
		if m.formReady(ctx) {
			return nil
		}
	}

	currentURL, _ := m.page.URL(ctx)
	if banner, _ := m.page.Exists(ctx, selectors.ModuleAccessBanner); banner ||
		strings.Contains(strings.ToLower(currentURL), "/home/infoindex") {
		return types.NewError(types.ErrModuleAccess, "account has no access to the waybill issuing module")
	}
	return types.NewError(types.ErrFormFailure, "waybill form not reachable after recovery")
}

func (m *Manager) checkMenuForAccessDenial(ctx context.Context) error {
	var links []struct {
		Text string `json:"text"`
		Href string `json:"href"`
	}
	if err := m.page.Eval(ctx, menuLinksJS, &links); err != nil {
		return nil
	}
	interesting := 0
	for _, l := range links {
		if !strings.Contains(l.Text, "بارنامه") && !strings.Contains(l.Href, "Waybill") {
			continue
		}
		interesting++
		if strings.Contains(l.Text, "درخواست دسترسی") {
			return types.NewError(types.ErrModuleAccess, "account has no access to the waybill issuing module")
		}
	}
	m.logger.Debug("waybill menu links discovered", zap.Int("count", interesting))
	return nil
}

func (m *Manager) formURLCandidates() []string {
	base := strings.TrimRight(m.portal.BaseURL, "/")
	candidates := []string{
		m.portal.WaybillURL,
		base + "/Barname/Waybill/Create",
		base + "/barname/Document/HagigiHogugi",
		base + "/Barname/Document/HagigiHogugi",
	}
	seen := make(map[string]struct{}, len(candidates))
	unique := candidates[:0]
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		unique = append(unique, c)
	}
	return unique
}

func (m *Manager) formReady(ctx context.Context) bool {
	for _, sel := range selectors.FormReadyMarkers {
		if ok, err := m.page.Exists(ctx, sel); err == nil && ok {
			return true
		}
	}
	return false
}

func (m *Manager) looksLikeNotFoundPage(ctx context.Context) bool {
	title, _ := m.page.Title(ctx)
	if strings.Contains(title, "یافت نشد") || strings.Contains(title, "خطا در سامانه") {
		return true
	}

	currentURL, _ := m.page.URL(ctx)
	currentURL = strings.ToLower(strings.TrimSpace(currentURL))
	if currentURL != "" {
		if u, err := url.Parse(currentURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return false
		}
		for _, fragment := range []string{"/error", "/exception", "/fault"} {
			if strings.Contains(currentURL, fragment) {
				return true
			}
		}
	}

	for _, sel := range selectors.NotFoundMarkers {
		if ok, err := m.page.Exists(ctx, sel); err == nil && ok {
			return true
		}
	}
	return false
}

// splitName breaks a full name into first/last; a single token serves as
// both, matching how the portal validates the two-field variant.
func splitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	parts := strings.SplitN(full, " ", 2)
	if len(parts) == 1 {
		return parts[0], parts[0]
	}
	return parts[0], strings.TrimSpace(parts[1])
}

func (m *Manager) fillSender(ctx context.Context, s types.Sender) error {
	m.selectDropdownFirst(ctx, selectors.SenderTypeSelectors, "حقیقی")

	first, last := splitName(s.Name)
	if s.Name != "" {
		m.it.SafeFill(ctx, `input[name="SenderName"]`, s.Name)
	}
	if err := m.fillRequired(ctx, selectors.SenderNameSelectors, first, "sender first name"); err != nil {
		return err
	}
	if err := m.fillRequired(ctx, selectors.SenderLastNameSelectors, last, "sender last name"); err != nil {
		return err
	}
	if err := m.fillRequired(ctx, selectors.SenderPhoneSelectors, s.Phone, "sender phone"); err != nil {
		return err
	}
	if err := m.fillRequired(ctx, selectors.SenderAddressSelectors, s.Address, "sender address"); err != nil {
		return err
	}
	if err := m.fillRequired(ctx, selectors.SenderNationalCodeSelectors, s.NationalCode, "sender national code"); err != nil {
		return err
	}

	m.it.ClickFirst(ctx, selectors.StepTwoButtons, false)
	sleepCtx(ctx, m.portal.FieldDelay)
	return nil
}

func (m *Manager) fillReceiver(ctx context.Context, r types.Receiver) error {
	m.selectDropdownFirst(ctx, selectors.ReceiverTypeSelectors, "حقیقی")

	first, last := splitName(r.Name)
	if r.Name != "" {
		m.it.SafeFill(ctx, `input[name="ReceiverName"]`, r.Name)
	}
	if err := m.fillRequired(ctx, selectors.ReceiverNameSelectors, first, "receiver first name"); err != nil {
		return err
	}
	if err := m.fillRequired(ctx, selectors.ReceiverLastNameSelectors, last, "receiver last name"); err != nil {
		return err
	}
	if err := m.fillRequired(ctx, selectors.ReceiverPhoneSelectors, r.Phone, "receiver phone"); err != nil {
		return err
	}
	if err := m.fillRequired(ctx, selectors.ReceiverAddressSelectors, r.Address, "receiver address"); err != nil {
		return err
	}

	m.it.ClickFirst(ctx, selectors.StepThreeButtons, false)
	sleepCtx(ctx, m.portal.FieldDelay)
	return nil
}

func (m *Manager) fillCargo(ctx context.Context, c types.Cargo) error {
	if c.Type != "" {
		m.selectDropdownFirst(ctx, selectors.CargoTypeSelectors, c.Type)
	}
	if err := m.fillRequired(ctx, selectors.CargoWeightSelectors, c.Weight, "cargo weight"); err != nil {
		return err
	}
	count := c.Count
	if count == "" {
		count = "1"
	}
	if err := m.fillRequired(ctx, selectors.CargoCountSelectors, count, "cargo count"); err != nil {
		return err
	}
	return m.fillRequired(ctx, selectors.CargoDescriptionSelectors, c.Description, "cargo description")
}

func (m *Manager) fillVehicle(ctx context.Context, v types.Vehicle) error {
	if err := m.fillRequired(ctx, selectors.DriverNationalCodeSelectors, v.DriverNationalCode, "driver national code"); err != nil {
		return err
	}
	if err := m.fillRequired(ctx, selectors.DriverPhoneSelectors, v.DriverPhone, "driver phone"); err != nil {
		return err
	}
	if err := m.fillRequired(ctx, selectors.PlateSelectors, v.Plate, "vehicle plate"); err != nil {
		return err
	}
	if v.Type != "" {
		m.selectDropdownFirst(ctx, selectors.VehicleTypeSelectors, v.Type)
	}
	return nil
}

func (m *Manager) fillFinancial(ctx context.Context, f types.Financial) error {
	if err := m.fillRequired(ctx, selectors.TransportCostSelectors, f.Cost, "transport cost"); err != nil {
		return err
	}
	if f.PaymentMethod != "" {
		m.selectDropdownFirst(ctx, selectors.PaymentMethodSelectors, f.PaymentMethod)
	}
	return nil
}

// fillRequired probes candidate selectors in order. An empty value skips
// the field entirely; a non-empty value that lands nowhere is a form
// failure.
func (m *Manager) fillRequired(ctx context.Context, cands []string, value, label string) error {
	if value == "" {
		return nil
	}
	if filled := m.it.FillFirst(ctx, cands, value); filled == "" {
		return types.NewError(types.ErrFormFailure, fmt.Sprintf("could not fill %s field", label))
	}
	sleepCtx(ctx, m.portal.FieldDelay)
	return nil
}

// selectDropdownFirst tries each candidate <select>, matching by option
// label first and raw value second. Missing optional dropdowns only log.
func (m *Manager) selectDropdownFirst(ctx context.Context, cands []string, value string) bool {
	if value == "" {
		return false
	}
	for _, sel := range cands {
		ok, err := m.page.Exists(ctx, sel)
		if err != nil || !ok {
			continue
		}
		opts, err := m.page.Options(ctx, sel)
		if err != nil {
			continue
		}
		target := ""
		for _, o := range opts {
			if o.Label == value || strings.Contains(o.Label, value) {
				target = o.Value
				break
			}
		}
		if target == "" {
			target = value
		}
		if err := m.page.SelectByValue(ctx, sel, target); err == nil {
			return true
		}
	}
	m.logger.Warn("optional dropdown not found", zap.String("value", value))
	return false
}

// submit clicks the final submit button, preferring the navigating variant,
// then confirms via tracking code or success markers.
func (m *Manager) submit(ctx context.Context) (*types.WorkflowResult, error) {
	clicked := m.it.ClickFirst(ctx, selectors.SubmitSelectors, true) != ""
	if !clicked {
		clicked = m.it.ClickFirst(ctx, selectors.SubmitSelectors, false) != ""
	}
	if !clicked {
		return nil, types.NewError(types.ErrFormFailure, "waybill submit button click failed")
	}
	sleepCtx(ctx, m.portal.SubmitSettleDelay)

	trackingCode := m.extractTrackingCode(ctx)
	confirmed := m.submissionConfirmed(ctx)

	if trackingCode == "" && !confirmed {
		if errText := m.extractFormErrors(ctx); errText != "" {
			return nil, types.NewError(types.ErrFormFailure, "waybill submission rejected: "+errText)
		}
		return nil, types.NewError(types.ErrSubmitUnconfirm,
			"waybill submission unconfirmed: no tracking code and no success marker on page")
	}

	currentURL, _ := m.page.URL(ctx)
	return &types.WorkflowResult{
		Success:      true,
		Status:       "submitted",
		TrackingCode: trackingCode,
		URL:          currentURL,
	}, nil
}

func (m *Manager) submissionConfirmed(ctx context.Context) bool {
	for _, sel := range selectors.SubmitSuccessMarkers {
		if ok, err := m.page.Exists(ctx, sel); err == nil && ok {
			return true
		}
	}

	currentURL, _ := m.page.URL(ctx)
	currentURL = strings.ToLower(currentURL)
	for _, fragment := range []string{"/print", "/details", "/success", "/notification", "/receipt", "/result"} {
		if strings.Contains(currentURL, fragment) {
			return true
		}
	}
	// Most portal versions navigate away from the create path on success.
	if currentURL != "" && !strings.Contains(currentURL, "/create") && !strings.Contains(currentURL, "/login") {
		return true
	}
	return false
}

func (m *Manager) extractFormErrors(ctx context.Context) string {
	for _, sel := range selectors.FormErrorSelectors {
		texts, err := m.page.TextAll(ctx, sel)
		if err != nil {
			continue
		}
		for _, t := range texts {
			if t = strings.TrimSpace(t); t != "" {
				return t
			}
		}
	}
	return ""
}

func (m *Manager) extractTrackingCode(ctx context.Context) string {
	for _, sel := range selectors.TrackingCodeSelectors {
		ok, err := m.page.Exists(ctx, sel)
		if err != nil || !ok {
			continue
		}
		text, err := m.page.Text(ctx, sel)
		if err != nil {
			continue
		}
		if code := trackingDigitsRe.FindString(text); code != "" {
			return code
		}
	}
	currentURL, _ := m.page.URL(ctx)
	return trackingURLRe.FindString(currentURL)
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
