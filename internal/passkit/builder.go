package passkit

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/brewpass/brewpass/internal/metrics"
	"github.com/brewpass/brewpass/internal/observability/logger"
)

// placeholderName replaces blank display names: the wallet provider rejects
// passes whose required string fields are empty.
const placeholderName = "Coffee Lover"

// defaultMessage fills the auxiliary field when nothing was just earned.
const defaultMessage = "Your next reward is brewing"

// staticImages are included when present in the asset library; their absence
// degrades the pass visually but never fails the build.
var staticImages = []string{"icon.png", "icon@2x.png", "logo.png", "logo@2x.png"}

// Issuer is the pass-issuing identity from configuration.
type Issuer struct {
	TeamID           string
	OrganizationName string
	Description      string
	// BaseURL is the externally advertised address; the callback block is
	// omitted entirely when it is not publicly resolvable.
	BaseURL    string
	AuthSecret string
}

// Builder assembles signed .pkpass artifacts.
type Builder struct {
	issuer Issuer
	signer Signer
	assets *Library
}

func NewBuilder(issuer Issuer, signer Signer, assets *Library) *Builder {
	return &Builder{issuer: issuer, signer: signer, assets: assets}
}

// Build renders, manifests, signs and zips a pass from the snapshot.
// The only fatal precondition is missing signing material.
func (b *Builder) Build(ctx context.Context, snap Snapshot) ([]byte, error) {
	artifact, err := b.build(ctx, snap)
	if err != nil {
		metrics.RecordPassBuild(snap.Kind, "error")
		return nil, err
	}
	metrics.RecordPassBuild(snap.Kind, "ok")
	return artifact, nil
}

func (b *Builder) build(ctx context.Context, snap Snapshot) ([]byte, error) {
	if b.signer == nil {
		return nil, ErrSigningNotConfigured
	}

	doc := b.document(snap)
	passJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("passkit: marshal pass.json: %w", err)
	}

	files := map[string][]byte{"pass.json": passJSON}
	for _, name := range staticImages {
		if img, ok := b.assets.Image(name); ok {
			files[name] = img
		}
	}
	if bg, ok := b.assets.Background(ctx, snap.Progress); ok {
		files["strip.png"] = bg
	} else {
		logger.From(ctx).Debug("pass background unavailable, omitting",
			logger.Serial(snap.SerialNumber), logger.Layer("builder"))
	}

	manifest, err := manifestFor(files)
	if err != nil {
		return nil, err
	}
	signature, err := b.signer.Sign(manifest)
	if err != nil {
		return nil, err
	}

	files["manifest.json"] = manifest
	files["signature"] = signature
	return zipFiles(files)
}

func (b *Builder) document(snap Snapshot) passDocument {
	doc := passDocument{
		FormatVersion:      1,
		PassTypeIdentifier: snap.PassTypeID,
		SerialNumber:       snap.SerialNumber,
		TeamIdentifier:     b.issuer.TeamID,
		OrganizationName:   b.issuer.OrganizationName,
		Description:        b.issuer.Description,
		ForegroundColor:    "rgb(255,255,255)",
		BackgroundColor:    "rgb(74,44,23)",
		LabelColor:         "rgb(222,184,135)",
		Barcode: barcode{
			Format:          "PKBarcodeFormatQR",
			Message:         snap.SerialNumber,
			MessageEncoding: "iso-8859-1",
		},
	}

	// The callback block only goes out when the provider can actually reach
	// us; an unreachable webServiceURL gets the whole pass rejected.
	if PubliclyResolvable(b.issuer.BaseURL) {
		doc.WebServiceURL = webServiceURL(b.issuer.BaseURL, snap.Kind)
		doc.AuthToken = AuthToken(b.issuer.AuthSecret, snap.SerialNumber)
	}

	name := strings.TrimSpace(snap.DisplayName)
	if name == "" {
		name = placeholderName
	}
	message := snap.Message
	if message == "" {
		message = defaultMessage
	}

	switch snap.Kind {
	case KindGiftCard:
		doc.StoreCard = &fieldSet{
			HeaderFields: []field{
				{Key: "balance", Label: "BALANCE", Value: fmt.Sprintf("$%d.%02d", snap.Balance/100, snap.Balance%100)},
			},
			SecondaryFields: []field{
				{Key: "holder", Label: "CARD HOLDER", Value: name},
			},
		}
	default:
		doc.StoreCard = &fieldSet{
			HeaderFields: []field{
				{Key: "points", Label: "POINTS", Value: fmt.Sprintf("%d", snap.Balance)},
			},
			SecondaryFields: []field{
				{Key: "member", Label: "MEMBER", Value: name},
			},
			AuxiliaryFields: []field{
				{Key: "reward", Label: "REWARDS", Value: message},
			},
		}
	}
	return doc
}

func webServiceURL(baseURL, kind string) string {
	base := strings.TrimRight(baseURL, "/")
	if kind == KindGiftCard {
		return base + "/pass/giftcard"
	}
	return base + "/pass"
}

// manifestFor hashes every file with SHA-1 as the pass format requires.
func manifestFor(files map[string][]byte) ([]byte, error) {
	entries := make(map[string]string, len(files))
	for name, data := range files {
		sum := sha1.Sum(data)
		entries[name] = hex.EncodeToString(sum[:])
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("passkit: marshal manifest: %w", err)
	}
	return b, nil
}

func zipFiles(files map[string][]byte) ([]byte, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("passkit: zip entry %s: %w", name, err)
		}
		if _, err := w.Write(files[name]); err != nil {
			return nil, fmt.Errorf("passkit: zip write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("passkit: zip close: %w", err)
	}
	return buf.Bytes(), nil
}
