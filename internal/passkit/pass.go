// Package passkit builds signed .pkpass artifacts from pass state snapshots.
//
// An artifact is never persisted or cached: it is rebuilt from the current
// record on every fetch, which is what keeps installed copies convergent
// without version counters.
package passkit

import "time"

// Pass kinds. They select the serial-number domain, the pass type identifier
// and the field layout.
const (
	KindLoyalty  = "loyalty"
	KindGiftCard = "giftcard"
)

// Snapshot is the state a pass is rendered from, captured at build time.
type Snapshot struct {
	Kind         string
	PassTypeID   string
	SerialNumber string
	DisplayName  string
	// Balance is points for loyalty passes and cents for gift cards.
	Balance int
	// Message is the just-earned reward text; empty means the default
	// encouragement line is used.
	Message string
	// Progress in [0,100], drives the background rendering.
	Progress  int
	UpdatedAt time.Time
}

// passDocument is the pass.json wire shape.
type passDocument struct {
	FormatVersion      int     `json:"formatVersion"`
	PassTypeIdentifier string  `json:"passTypeIdentifier"`
	SerialNumber       string  `json:"serialNumber"`
	TeamIdentifier     string  `json:"teamIdentifier"`
	OrganizationName   string  `json:"organizationName"`
	Description        string  `json:"description"`
	LogoText           string  `json:"logoText,omitempty"`
	ForegroundColor    string  `json:"foregroundColor,omitempty"`
	BackgroundColor    string  `json:"backgroundColor,omitempty"`
	LabelColor         string  `json:"labelColor,omitempty"`
	WebServiceURL      string  `json:"webServiceURL,omitempty"`
	AuthToken          string  `json:"authenticationToken,omitempty"`
	Barcode            barcode `json:"barcode"`

	StoreCard *fieldSet `json:"storeCard,omitempty"`
}

type barcode struct {
	Format          string `json:"format"`
	Message         string `json:"message"`
	MessageEncoding string `json:"messageEncoding"`
}

type fieldSet struct {
	HeaderFields    []field `json:"headerFields"`
	PrimaryFields   []field `json:"primaryFields,omitempty"`
	SecondaryFields []field `json:"secondaryFields"`
	AuxiliaryFields []field `json:"auxiliaryFields,omitempty"`
	BackFields      []field `json:"backFields,omitempty"`
}

type field struct {
	Key   string `json:"key"`
	Label string `json:"label,omitempty"`
	Value string `json:"value"`
}
