package passkit

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brewpass/brewpass/internal/cache/memory"
)

type fakeSigner struct{ calls int }

func (f *fakeSigner) Sign(manifest []byte) ([]byte, error) {
	f.calls++
	return []byte("signed:" + hex.EncodeToString(manifest[:4])), nil
}

type fakeRenderer struct{ calls int }

func (f *fakeRenderer) Render(ctx context.Context, progress int) ([]byte, error) {
	f.calls++
	return []byte{0x89, 'P', 'N', 'G', byte(progress)}, nil
}

func testIssuer() Issuer {
	return Issuer{
		TeamID:           "TEAM123456",
		OrganizationName: "Brewpass Coffee",
		Description:      "Coffee loyalty card",
		BaseURL:          "https://passes.example.com",
		AuthSecret:       "test-secret",
	}
}

func testSnapshot() Snapshot {
	return Snapshot{
		Kind:         KindLoyalty,
		PassTypeID:   "pass.com.example.loyalty",
		SerialNumber: "serial-1",
		DisplayName:  "Ada",
		Balance:      12,
		Progress:     20,
		UpdatedAt:    time.Now(),
	}
}

func unpack(t *testing.T, artifact []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(artifact), int64(len(artifact)))
	require.NoError(t, err)
	out := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out[f.Name] = b
	}
	return out
}

func TestBuild_NoSignerIsConfigurationError(t *testing.T) {
	b := NewBuilder(testIssuer(), nil, NewLibrary("", nil, nil, 0))
	_, err := b.Build(context.Background(), testSnapshot())
	assert.ErrorIs(t, err, ErrSigningNotConfigured)
}

func TestBuild_ArtifactContents(t *testing.T) {
	b := NewBuilder(testIssuer(), &fakeSigner{}, NewLibrary("", nil, nil, 0))
	artifact, err := b.Build(context.Background(), testSnapshot())
	require.NoError(t, err)

	files := unpack(t, artifact)
	require.Contains(t, files, "pass.json")
	require.Contains(t, files, "manifest.json")
	require.Contains(t, files, "signature")

	// manifest hashes match the zipped contents
	var manifest map[string]string
	require.NoError(t, json.Unmarshal(files["manifest.json"], &manifest))
	sum := sha1.Sum(files["pass.json"])
	assert.Equal(t, hex.EncodeToString(sum[:]), manifest["pass.json"])
	// manifest never lists itself or the signature
	assert.NotContains(t, manifest, "manifest.json")
	assert.NotContains(t, manifest, "signature")

	var doc map[string]any
	require.NoError(t, json.Unmarshal(files["pass.json"], &doc))
	assert.EqualValues(t, 1, doc["formatVersion"])
	assert.Equal(t, "serial-1", doc["serialNumber"])
	assert.Equal(t, "TEAM123456", doc["teamIdentifier"])
	assert.Equal(t, "https://passes.example.com/pass", doc["webServiceURL"])
	assert.Equal(t, AuthToken("test-secret", "serial-1"), doc["authenticationToken"])

	bc := doc["barcode"].(map[string]any)
	assert.Equal(t, "PKBarcodeFormatQR", bc["format"])
	assert.Equal(t, "serial-1", bc["message"])
}

func TestBuild_PrivateBaseURLOmitsCallback(t *testing.T) {
	issuer := testIssuer()
	issuer.BaseURL = "http://192.168.1.20:8080"
	b := NewBuilder(issuer, &fakeSigner{}, NewLibrary("", nil, nil, 0))

	artifact, err := b.Build(context.Background(), testSnapshot())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(unpack(t, artifact)["pass.json"], &doc))
	assert.NotContains(t, doc, "webServiceURL")
	assert.NotContains(t, doc, "authenticationToken")
}

func TestBuild_BlankNameGetsPlaceholder(t *testing.T) {
	snap := testSnapshot()
	snap.DisplayName = "   "
	b := NewBuilder(testIssuer(), &fakeSigner{}, NewLibrary("", nil, nil, 0))

	artifact, err := b.Build(context.Background(), snap)
	require.NoError(t, err)

	var doc passDocument
	require.NoError(t, json.Unmarshal(unpack(t, artifact)["pass.json"], &doc))
	require.NotNil(t, doc.StoreCard)
	assert.Equal(t, placeholderName, doc.StoreCard.SecondaryFields[0].Value)
}

func TestBuild_MessageDefaultsToEncouragement(t *testing.T) {
	snap := testSnapshot()
	snap.Message = ""
	b := NewBuilder(testIssuer(), &fakeSigner{}, NewLibrary("", nil, nil, 0))

	artifact, err := b.Build(context.Background(), snap)
	require.NoError(t, err)

	var doc passDocument
	require.NoError(t, json.Unmarshal(unpack(t, artifact)["pass.json"], &doc))
	assert.Equal(t, defaultMessage, doc.StoreCard.AuxiliaryFields[0].Value)
}

func TestBuild_GiftCardLayout(t *testing.T) {
	snap := Snapshot{
		Kind:         KindGiftCard,
		PassTypeID:   "pass.com.example.giftcard",
		SerialNumber: "gc-1",
		DisplayName:  "Ada",
		Balance:      2550,
	}
	b := NewBuilder(testIssuer(), &fakeSigner{}, NewLibrary("", nil, nil, 0))

	artifact, err := b.Build(context.Background(), snap)
	require.NoError(t, err)

	var doc passDocument
	require.NoError(t, json.Unmarshal(unpack(t, artifact)["pass.json"], &doc))
	assert.Equal(t, "$25.50", doc.StoreCard.HeaderFields[0].Value)
	assert.Empty(t, doc.StoreCard.AuxiliaryFields)
	assert.Equal(t, "https://passes.example.com/pass/giftcard", doc.WebServiceURL)
}

func TestBuild_BackgroundCachedPerBand(t *testing.T) {
	renderer := &fakeRenderer{}
	lib := NewLibrary("", renderer, memory.New(time.Minute), time.Minute)
	b := NewBuilder(testIssuer(), &fakeSigner{}, lib)

	snap := testSnapshot()
	snap.Progress = 42
	_, err := b.Build(context.Background(), snap)
	require.NoError(t, err)

	snap.Progress = 44 // same band
	_, err = b.Build(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, 1, renderer.calls)

	snap.Progress = 90 // new band
	_, err = b.Build(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, 2, renderer.calls)
}

func TestBuild_MissingImagesStillValid(t *testing.T) {
	b := NewBuilder(testIssuer(), &fakeSigner{}, NewLibrary("/nonexistent", nil, nil, 0))
	artifact, err := b.Build(context.Background(), testSnapshot())
	require.NoError(t, err)

	files := unpack(t, artifact)
	assert.NotContains(t, files, "icon.png")
	assert.NotContains(t, files, "strip.png")
	assert.Contains(t, files, "pass.json")
}

func TestAuthToken_DeterministicPerSerial(t *testing.T) {
	a := AuthToken("secret", "serial-1")
	b := AuthToken("secret", "serial-1")
	c := AuthToken("secret", "serial-2")
	d := AuthToken("other", "serial-1")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Len(t, a, 64)

	assert.True(t, VerifyAuthToken("secret", "serial-1", a))
	assert.False(t, VerifyAuthToken("secret", "serial-2", a))
	assert.False(t, VerifyAuthToken("secret", "serial-1", ""))
}

func TestPubliclyResolvable(t *testing.T) {
	public := []string{
		"https://passes.example.com",
		"https://api.brewpass.io:8443",
		"http://203.0.113.9",
	}
	private := []string{
		"",
		"http://localhost:8080",
		"http://app.localhost",
		"http://brewpass.local",
		"http://127.0.0.1",
		"http://[::1]:8080",
		"http://10.0.0.5",
		"http://172.16.4.1",
		"http://192.168.0.10:3000",
		"http://169.254.1.1",
		"http://0.0.0.0",
	}
	for _, u := range public {
		assert.True(t, PubliclyResolvable(u), "expected public: %q", u)
	}
	for _, u := range private {
		assert.False(t, PubliclyResolvable(u), "expected private: %q", u)
	}
}
