package waybill_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/waybillflow/automation/waybill"
	"github.com/BaSui01/waybillflow/browser"
	"github.com/BaSui01/waybillflow/config"
	"github.com/BaSui01/waybillflow/testutil"
	"github.com/BaSui01/waybillflow/types"
)

const createURL = "https://portal.example.ir/Barname/Waybill/Create"

func portalTestConfig() config.PortalConfig {
	return config.PortalConfig{
		BaseURL:           "https://portal.example.ir",
		WaybillURL:        createURL,
		ActionTimeout:     200 * time.Millisecond,
		SettleDelay:       0,
		CascadeDelay:      0,
		SuggestionDelay:   0,
		SubmitSettleDelay: 0,
	}
}

// addFormElements stocks page with every input the fill flow touches, the
// txt*-generation markup plus origin/destination dropdown cascades.
func addFormElements(page *testutil.FakePage) {
	for _, sel := range []string{
		`input[name="SenderName"]`,
		`input[name="txtSenderFirstName"]`,
		`input[name="txtSenderLastName"]`,
		`input[name="txtSenderMobile"]`,
		`input[name="txtSenderTell"]`,
		`input[name="txtSenderNationalCode"]`,
		`input[name="ReceiverName"]`,
		`input[name="txtReceiverFirstName"]`,
		`input[name="txtReceiverLastName"]`,
		`input[name="txtReceiverMobile"]`,
		`input[name="txtReceiverTell"]`,
		`input[name="CargoWeight"]`,
		`input[name="CargoCount"]`,
		`textarea[name="CargoDescription"]`,
	} {
		page.AddVisible(sel)
	}

	provinces := []browser.SelectOption{
		{Value: "", Label: "انتخاب استان"},
		{Value: "8", Label: "تهران"},
		{Value: "9", Label: "خراسان رضوی"},
	}
	cities := []browser.SelectOption{
		{Value: "", Label: "انتخاب شهر"},
		{Value: "101", Label: "تهران"},
		{Value: "205", Label: "مشهد"},
	}
	for _, prefix := range []string{"Origin", "Destination"} {
		page.AddElement(`select[name="`+prefix+`Province"]`, &testutil.FakeElement{Options: provinces})
		page.AddElement(`select[name="`+prefix+`City"]`, &testutil.FakeElement{Options: cities})
		page.AddElement(`textarea[name="`+prefix+`Address"]`, &testutil.FakeElement{Visible: true})
	}
}

func formPage() *testutil.FakePage {
	page := testutil.NewFakePage()
	addFormElements(page)
	return page
}

func testRequest(mode types.OperationMode) *types.WaybillRequest {
	return &types.WaybillRequest{
		OperationMode: mode,
		Sender: types.Sender{
			Name:         "علی رضایی",
			Phone:        "09120000001",
			Address:      "تهران، خیابان آزادی",
			NationalCode: "0012345678",
		},
		Receiver: types.Receiver{
			Name:    "حسین موسوی",
			Phone:   "09150000002",
			Address: "مشهد، خیابان امام رضا",
		},
		Origin: types.LocationSpec{
			Province: "تهران",
			City:     "تهران",
			Address:  "خیابان آزادی",
		},
		Destination: types.LocationSpec{
			Province: "خراسان رضوی",
			City:     "مشهد",
			Address:  "خیابان امام رضا",
		},
		Cargo: types.Cargo{Weight: "1200", Description: "مصالح ساختمانی"},
	}
}

func errorCode(t *testing.T, err error) types.ErrorCode {
	t.Helper()
	var terr *types.Error
	require.True(t, errors.As(err, &terr), "expected a typed error, got %v", err)
	return terr.Code
}

func TestCreateSafeModeValidates(t *testing.T) {
	page := formPage()
	m := waybill.NewManager(page, nil, portalTestConfig(), config.RetryConfig{}, nil)

	result, err := m.Create(testutil.TestContext(t), testRequest(types.ModeSafe))

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "validated", result.Status)
	assert.Equal(t, types.ModeSafe, result.Mode)
	require.NotNil(t, result.ValidationSummary)
	assert.True(t, result.ValidationSummary.ReadyForSubmit)
	assert.False(t, result.ValidationSummary.RouteCalculated)
	assert.Empty(t, result.TrackingCode)

	assert.Equal(t, types.MethodDropdown, result.OriginMethod)
	assert.Equal(t, types.MethodDropdown, result.DestinationMethod)
	assert.Equal(t, "8", page.Selections[`select[name="OriginProvince"]`])
	assert.Equal(t, "205", page.Selections[`select[name="DestinationCity"]`])
	assert.Equal(t, "علی", page.Fills[`input[name="txtSenderFirstName"]`])
	assert.Equal(t, "رضایی", page.Fills[`input[name="txtSenderLastName"]`])
	assert.Equal(t, "1200", page.Fills[`input[name="CargoWeight"]`])
	// Count defaults to 1 when the request leaves it empty.
	assert.Equal(t, "1", page.Fills[`input[name="CargoCount"]`])
}

func TestCreateFullModeSubmitsAndExtractsTrackingCode(t *testing.T) {
	page := formPage()
	page.AddVisible(`button[type="submit"]`)
	page.AddElement(`.tracking-code`, &testutil.FakeElement{
		Visible: true,
		Text:    "کد رهگیری: 87654321",
	})
	m := waybill.NewManager(page, nil, portalTestConfig(), config.RetryConfig{}, nil)

	result, err := m.Create(testutil.TestContext(t), testRequest(types.ModeFull))

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "submitted", result.Status)
	assert.Equal(t, types.ModeFull, result.Mode)
	assert.Equal(t, "87654321", result.TrackingCode)
	assert.Contains(t, page.Clicks, `button[type="submit"]`)
}

func TestCreateFullModeUnconfirmedSubmission(t *testing.T) {
	// Submit clicks but the page still shows the create URL with no
	// tracking code or success marker.
	page := formPage()
	page.AddVisible(`button[type="submit"]`)
	m := waybill.NewManager(page, nil, portalTestConfig(), config.RetryConfig{}, nil)

	_, err := m.Create(testutil.TestContext(t), testRequest(types.ModeFull))

	require.Error(t, err)
	assert.Equal(t, types.ErrSubmitUnconfirm, errorCode(t, err))
}

func TestCreateFullModeSurfacesFormErrors(t *testing.T) {
	page := formPage()
	page.AddVisible(`button[type="submit"]`)
	page.SetTextAll(`.validation-summary-errors li`, []string{"وزن کالا الزامی است"})
	m := waybill.NewManager(page, nil, portalTestConfig(), config.RetryConfig{}, nil)

	_, err := m.Create(testutil.TestContext(t), testRequest(types.ModeFull))

	require.Error(t, err)
	assert.Equal(t, types.ErrFormFailure, errorCode(t, err))
	assert.Contains(t, err.Error(), "وزن کالا الزامی است")
}

func TestCreateRecoversFormThroughSideMenu(t *testing.T) {
	// The create URL lands on a shell without the form; the side menu
	// link leads to the real page.
	page := testutil.NewFakePage()
	page.AddVisible(`a:has-text('حمل بارنامه')`)
	page.ClickNavHook = func(selector string) {
		if selector == `a:has-text('حمل بارنامه')` {
			addFormElements(page)
		}
	}
	m := waybill.NewManager(page, nil, portalTestConfig(), config.RetryConfig{}, nil)

	result, err := m.Create(testutil.TestContext(t), testRequest(types.ModeSafe))

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, page.Clicks, `a:has-text('حمل بارنامه')`)
}

func TestCreateDetectsModuleAccessDenial(t *testing.T) {
	page := testutil.NewFakePage()
	page.EvalHook = func(expr string) (any, bool) {
		if strings.Contains(expr, "querySelectorAll('a')") {
			return []map[string]string{
				{"text": "نامه درخواست دسترسی به سامانه صدور بارنامه شهری", "href": "/Barname/Waybill/Request"},
			}, true
		}
		return nil, false
	}
	m := waybill.NewManager(page, nil, portalTestConfig(), config.RetryConfig{}, nil)

	_, err := m.Create(testutil.TestContext(t), testRequest(types.ModeSafe))

	require.Error(t, err)
	assert.Equal(t, types.ErrModuleAccess, errorCode(t, err))
}

func TestCreateFailsWhenFormUnreachable(t *testing.T) {
	page := testutil.NewFakePage()
	m := waybill.NewManager(page, nil, portalTestConfig(), config.RetryConfig{}, nil)

	_, err := m.Create(testutil.TestContext(t), testRequest(types.ModeSafe))

	require.Error(t, err)
	assert.Equal(t, types.ErrFormFailure, errorCode(t, err))
	// Recovery tried the alternate create URLs before giving up.
	assert.Contains(t, page.Navigations, "https://portal.example.ir/Barname/Document/HagigiHogugi")
}

func TestCreateMissingRequiredFieldFails(t *testing.T) {
	page := formPage()
	page.RemoveElement(`input[name="CargoWeight"]`)
	m := waybill.NewManager(page, nil, portalTestConfig(), config.RetryConfig{}, nil)

	_, err := m.Create(testutil.TestContext(t), testRequest(types.ModeSafe))

	require.Error(t, err)
	assert.Equal(t, types.ErrFormFailure, errorCode(t, err))
	assert.Contains(t, err.Error(), "cargo weight")
}
