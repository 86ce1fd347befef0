package passkit

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/smallstep/pkcs7"
)

// ErrSigningNotConfigured marks the absence of signing material. Fatal for
// the build that hit it; never retried automatically.
var ErrSigningNotConfigured = errors.New("passkit: signing credentials not configured")

// Signer produces the detached signature over the manifest.
type Signer interface {
	Sign(manifest []byte) ([]byte, error)
}

// SigningConfig carries the base64-encoded PEM material from configuration.
type SigningConfig struct {
	CertBase64     string
	KeyBase64      string
	KeyPassphrase  string
	WWDRCertBase64 string
}

// CMSSigner signs pass manifests with the issuer certificate, attaching the
// intermediate CA so wallets can build the chain.
type CMSSigner struct {
	cert  *x509.Certificate
	key   crypto.PrivateKey
	chain *x509.Certificate
}

// NewCMSSigner parses the configured credentials. Missing cert or key is
// ErrSigningNotConfigured; malformed material is reported as such.
func NewCMSSigner(cfg SigningConfig) (*CMSSigner, error) {
	if cfg.CertBase64 == "" || cfg.KeyBase64 == "" {
		return nil, ErrSigningNotConfigured
	}

	cert, err := parseCertBase64(cfg.CertBase64)
	if err != nil {
		return nil, fmt.Errorf("passkit: signing cert: %w", err)
	}
	key, err := parseKeyBase64(cfg.KeyBase64, cfg.KeyPassphrase)
	if err != nil {
		return nil, fmt.Errorf("passkit: signing key: %w", err)
	}

	s := &CMSSigner{cert: cert, key: key}
	if cfg.WWDRCertBase64 != "" {
		chain, err := parseCertBase64(cfg.WWDRCertBase64)
		if err != nil {
			return nil, fmt.Errorf("passkit: ca cert: %w", err)
		}
		s.chain = chain
	}
	return s, nil
}

func (s *CMSSigner) Sign(manifest []byte) ([]byte, error) {
	sd, err := pkcs7.NewSignedData(manifest)
	if err != nil {
		return nil, fmt.Errorf("passkit: signed data: %w", err)
	}
	sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)
	if err := sd.AddSigner(s.cert, s.key, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, fmt.Errorf("passkit: add signer: %w", err)
	}
	if s.chain != nil {
		sd.AddCertificate(s.chain)
	}
	sd.Detach()
	sig, err := sd.Finish()
	if err != nil {
		return nil, fmt.Errorf("passkit: finish signature: %w", err)
	}
	return sig, nil
}

func parseCertBase64(b64 string) (*x509.Certificate, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	if block, _ := pem.Decode(raw); block != nil {
		raw = block.Bytes
	}
	return x509.ParseCertificate(raw)
}

func parseKeyBase64(b64, passphrase string) (crypto.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	der := raw
	if block != nil {
		der = block.Bytes
		if x509.IsEncryptedPEMBlock(block) {
			der, err = x509.DecryptPEMBlock(block, []byte(passphrase))
			if err != nil {
				return nil, err
			}
		}
	}

	if k, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		return asSigner(k)
	}
	if k, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return k, nil
	}
	if k, err := x509.ParseECPrivateKey(der); err == nil {
		return k, nil
	}
	return nil, errors.New("unsupported private key format")
}

func asSigner(k any) (crypto.PrivateKey, error) {
	switch key := k.(type) {
	case *rsa.PrivateKey:
		return key, nil
	case *ecdsa.PrivateKey:
		return key, nil
	}
	return nil, errors.New("unsupported private key type")
}
