package types

// OperationMode selects how far a workflow goes: "safe" stops before the
// final submit and reports readiness, "full" submits and must recover a
// tracking code.
type OperationMode string

const (
	ModeSafe OperationMode = "safe"
	ModeFull OperationMode = "full"
)

// Normalized maps any unrecognized mode to ModeSafe.
func (m OperationMode) Normalized() OperationMode {
	if m == ModeFull {
		return ModeFull
	}
	return ModeSafe
}

// Coordinate is an immutable geographic point with an optional free-text
// address.
type Coordinate struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// LocationSpec is the input to location resolution. It is never mutated after
// creation.
type LocationSpec struct {
	Province    string      `json:"province"`
	City        string      `json:"city"`
	District    string      `json:"district,omitempty"`
	Address     string      `json:"address"`
	Coordinates *Coordinate `json:"coordinates,omitempty"`
}

// Sender identifies the consignor on the waybill form.
type Sender struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	NationalCode string `json:"national_code"`
}

// Receiver identifies the consignee on the waybill form.
type Receiver struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Cargo describes the goods being shipped. Weight and Count are kept as
// strings because the portal form accepts free text and callers send mixed
// numeric formats.
type Cargo struct {
	Type        string `json:"type,omitempty"`
	Weight      string `json:"weight"`
	Count       string `json:"count,omitempty"`
	Description string `json:"description,omitempty"`
}

// Vehicle describes the fleet assignment section of the form.
type Vehicle struct {
	DriverNationalCode string `json:"driver_national_code,omitempty"`
	DriverPhone        string `json:"driver_phone,omitempty"`
	Plate              string `json:"plate,omitempty"`
	Type               string `json:"type,omitempty"`
}

// Financial describes the payment section of the form.
type Financial struct {
	Cost          string `json:"cost,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

// WaybillRequest is the workflow input: one end-to-end attempt to
// authenticate, resolve locations, and fill/submit (or validate) the waybill
// form.
type WaybillRequest struct {
	SessionID     string        `json:"session_id,omitempty"`
	OperationMode OperationMode `json:"operation_mode,omitempty"`

	Sender      Sender       `json:"sender"`
	Receiver    Receiver     `json:"receiver"`
	Origin      LocationSpec `json:"origin"`
	Destination LocationSpec `json:"destination"`
	Cargo       Cargo        `json:"cargo"`
	Vehicle     Vehicle      `json:"vehicle"`
	Financial   Financial    `json:"financial"`
}
