package selectors

// Waybill form field selectors. The portal ships at least two markup
// generations (txt*-prefixed inputs and bare names), so each field lists
// both plus attribute-substring fallbacks.
var (
	SenderTypeSelectors = []string{
		`select[name="senderSelectType"]`,
		`select[id="senderSelectType"]`,
	}

	SenderNameSelectors = []string{
		`input[name="txtSenderFirstName"]`,
		`input[id="txtSenderFirstName"]`,
		`input[name="SenderName"]`,
		`input[id="SenderName"]`,
		`input[name*="sender" i][name*="name" i]`,
		`input[id*="sender" i][id*="name" i]`,
		`input[name*="consignor" i]`,
	}

	SenderLastNameSelectors = []string{
		`input[name="txtSenderLastName"]`,
		`input[id="txtSenderLastName"]`,
	}

	SenderPhoneSelectors = []string{
		`input[name="txtSenderMobile"]`,
		`input[id="txtSenderMobile"]`,
		`input[name="SenderPhone"]`,
		`input[id="SenderPhone"]`,
		`input[name*="sender" i][name*="phone" i]`,
		`input[id*="sender" i][id*="phone" i]`,
	}

	SenderAddressSelectors = []string{
		`input[name="txtSenderTell"]`,
		`input[id="txtSenderTell"]`,
		`textarea[name="SenderAddress"]`,
		`input[name="SenderAddress"]`,
		`textarea[id="SenderAddress"]`,
		`textarea[name*="sender" i][name*="address" i]`,
	}

	SenderNationalCodeSelectors = []string{
		`input[name="txtSenderNationalCode"]`,
		`input[id="txtSenderNationalCode"]`,
		`input[name="SenderNationalCode"]`,
		`input[name="NationalCode"]`,
		`input[id="SenderNationalCode"]`,
		`input[id="NationalCode"]`,
		`input[name*="sender" i][name*="national" i]`,
	}

	ReceiverTypeSelectors = []string{
		`select[name="receiverSelectType"]`,
		`select[id="receiverSelectType"]`,
	}

	ReceiverNameSelectors = []string{
		`input[name="txtReceiverFirstName"]`,
		`input[id="txtReceiverFirstName"]`,
		`input[name="ReceiverName"]`,
		`input[id="ReceiverName"]`,
		`input[name*="receiver" i][name*="name" i]`,
		`input[id*="receiver" i][id*="name" i]`,
		`input[name*="consignee" i]`,
	}

	ReceiverLastNameSelectors = []string{
		`input[name="txtReceiverLastName"]`,
		`input[id="txtReceiverLastName"]`,
	}

	ReceiverPhoneSelectors = []string{
		`input[name="txtReceiverMobile"]`,
		`input[id="txtReceiverMobile"]`,
		`input[name="ReceiverPhone"]`,
		`input[id="ReceiverPhone"]`,
		`input[name*="receiver" i][name*="phone" i]`,
		`input[id*="receiver" i][id*="phone" i]`,
	}

	ReceiverAddressSelectors = []string{
		`input[name="txtReceiverTell"]`,
		`input[id="txtReceiverTell"]`,
		`textarea[name="ReceiverAddress"]`,
		`input[name="ReceiverAddress"]`,
		`textarea[id="ReceiverAddress"]`,
		`textarea[name*="receiver" i][name*="address" i]`,
	}

	CargoTypeSelectors = []string{
		`select[name="CargoType"]`,
		`select[id="CargoType"]`,
		`select[name*="cargo" i][name*="type" i]`,
	}

	CargoWeightSelectors = []string{
		`input[name="CargoWeight"]`,
		`input[id="CargoWeight"]`,
		`input[name*="cargo" i][name*="weight" i]`,
	}

	CargoCountSelectors = []string{
		`input[name="CargoCount"]`,
		`input[id="CargoCount"]`,
		`input[name*="cargo" i][name*="count" i]`,
	}

	CargoDescriptionSelectors = []string{
		`textarea[name="CargoDescription"]`,
		`input[name="CargoDescription"]`,
		`textarea[id="CargoDescription"]`,
		`textarea[name*="cargo" i][name*="description" i]`,
	}

	DriverNationalCodeSelectors = []string{
		`input[name="DriverNationalCode"]`,
		`input[id="DriverNationalCode"]`,
		`input[name*="driver" i][name*="national" i]`,
	}

	DriverPhoneSelectors = []string{
		`input[name="DriverPhone"]`,
		`input[id="DriverPhone"]`,
		`input[name*="driver" i][name*="phone" i]`,
	}

	PlateSelectors = []string{
		`input[name="PlateNumber"]`,
		`input[id="PlateNumber"]`,
		`input[name*="plate" i]`,
	}

	VehicleTypeSelectors = []string{
		`select[name="VehicleType"]`,
		`select[id="VehicleType"]`,
		`select[name*="vehicle" i][name*="type" i]`,
	}

	TransportCostSelectors = []string{
		`input[name="TransportCost"]`,
		`input[id="TransportCost"]`,
		`input[name*="transport" i][name*="cost" i]`,
		`input[name*="price" i]`,
	}

	PaymentMethodSelectors = []string{
		`select[name="PaymentMethod"]`,
		`select[id="PaymentMethod"]`,
		`select[name*="payment" i][name*="method" i]`,
	}
)

// Multi-step form navigation and submission.
var (
	StepTwoButtons = []string{
		`#btnGoLVL2`,
		`#GoLVL2`,
		`button:has-text('مرحله بعد')`,
	}

	StepThreeButtons = []string{
		`#btnGoLVL3`,
		`#GoLVL3`,
		`button:has-text('مرحله بعد')`,
	}

	SubmitSelectors = []string{
		`button[type="submit"]`,
		`button:has-text('ثبت')`,
		`input[type="submit"]`,
	}

	// FormReadyMarkers cover both markup generations plus the step buttons.
	FormReadyMarkers = []string{
		`input[name="txtSenderFirstName"]`,
		`input[name="SenderName"]`,
		`input[name="txtReceiverFirstName"]`,
		`input[name="ReceiverName"]`,
		`#btnGoLVL2`,
		`#GoLVL2`,
	}

	NotFoundMarkers = []string{
		`text=یافت نشد`,
		`text=صفحه مورد نظر شما یافت نشد`,
		`text=درخواست مجاز نمی باشد`,
		`text=خطا در سامانه`,
		`text=متاسفانه در هنگام پردازش درخواست شما خطایی رخ داده است`,
		`text=ورود مجدد به سامانه`,
	}

	RecoverySelectors = []string{
		`a:has-text('ورود مجدد به سامانه')`,
		`button:has-text('ورود مجدد به سامانه')`,
		`a:has-text('بازگشت به خانه')`,
		`button:has-text('بازگشت به خانه')`,
		`a:has-text('بازگشت به صفحه اصلی')`,
		`button:has-text('بازگشت به صفحه اصلی')`,
	}

	WaybillMenuSelectors = []string{
		`a:has-text('حمل بارنامه')`,
		`a:has-text('صدور بارنامه')`,
		`a[href*='Waybill' i]`,
	}

	// ModuleAccessBanner appears when the account lacks the waybill
	// issuing module.
	ModuleAccessBanner = `text=نامه درخواست دسترسی به سامانه صدور بارنامه شهری`

	SubmitSuccessMarkers = []string{
		`.alert-success`,
		`.toast-success`,
		`.success-message`,
		`text=با موفقیت ثبت شد`,
		`text=بارنامه ثبت شد`,
		`text=شماره بارنامه`,
		`text=کد رهگیری`,
	}

	TrackingCodeSelectors = []string{
		`.tracking-code`,
		`#TrackingCode`,
		`[data-tracking]`,
		`.waybill-number`,
	}

	FormErrorSelectors = []string{
		`.validation-summary-errors li`,
		`.validation-summary-errors`,
		`.field-validation-error`,
		`.alert-danger`,
		`.text-danger`,
	}
)
