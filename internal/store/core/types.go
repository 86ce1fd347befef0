package core

import "time"

// Customer is the loyalty record backing a pass. The serial number doubles as
// the pass serial and the device-registry join key; it never changes.
type Customer struct {
	SerialNumber    string    `json:"serial_number"`
	DisplayName     string    `json:"display_name"`
	PointsBalance   int       `json:"points_balance"`
	RedeemedCoffees []int     `json:"redeemed_coffees"`
	RedeemedMeals   []int     `json:"redeemed_meals"`
	CreatedAt       time.Time `json:"created_at"`
	// UpdatedAt is bumped on every mutation and doubles as the cache
	// validation token for conditional pass fetches.
	UpdatedAt time.Time `json:"updated_at"`
}

// GiftCard is the stored-value record backing the second pass kind.
type GiftCard struct {
	SerialNumber string    `json:"serial_number"`
	DisplayName  string    `json:"display_name"`
	BalanceCents int       `json:"balance_cents"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DeviceRegistration records that a device holds a copy of a pass.
// (DeviceID, PassTypeID, SerialNumber) is the unique composite key.
type DeviceRegistration struct {
	DeviceID     string    `json:"device_id"`
	PassTypeID   string    `json:"pass_type_id"`
	SerialNumber string    `json:"serial_number"`
	// PushToken is empty when the device cannot receive pushes; such devices
	// still converge on the next manual open of the wallet app.
	PushToken string    `json:"push_token"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Device is the projection returned by DevicesForSerial.
type Device struct {
	DeviceID  string `json:"device_id"`
	PushToken string `json:"push_token"`
}

// WalletLogEntry is a diagnostic line reported by the wallet provider.
type WalletLogEntry struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
