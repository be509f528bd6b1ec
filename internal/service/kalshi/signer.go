package kalshi

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"KalshiFlow/internal/domain/models"
)

var (
	// ErrNoCredentials means the key id or the private key is not configured.
	ErrNoCredentials = errors.New("kalshi: api credentials not configured")
	// ErrInvalidKey means the configured private key could not be parsed as RSA.
	ErrInvalidKey = errors.New("kalshi: invalid private key")
	// ErrSigning means the RSA-PSS operation itself failed.
	ErrSigning = errors.New("kalshi: signing failed")
)

// Signer signs Kalshi API requests with RSA-PSS over timestamp+method+path.
type Signer struct {
	keyID  string
	key    *rsa.PrivateKey
	keyErr error
	now    func() time.Time
	rand   io.Reader
}

// SignerOption configures Signer.
type SignerOption func(*Signer)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) {
		s.now = now
	}
}

// NewSigner parses the PEM key once. A missing or malformed key does not fail
// construction; every Sign call reports it instead, so the service can start
// without credentials.
func NewSigner(keyID, privateKeyPEM string, opts ...SignerOption) *Signer {
	s := &Signer{
		keyID: keyID,
		now:   time.Now,
		rand:  rand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}

	pemText := strings.TrimSpace(strings.ReplaceAll(privateKeyPEM, `\n`, "\n"))
	switch {
	case keyID == "" || pemText == "":
		s.keyErr = ErrNoCredentials
	default:
		s.key, s.keyErr = parsePrivateKey([]byte(pemText))
	}
	return s
}

func parsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrInvalidKey)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: key is %T, want RSA", ErrInvalidKey, parsed)
	}
	return key, nil
}

// HasCredentials reports whether a key id and a private key were supplied.
// It says nothing about whether the key parsed.
func (s *Signer) HasCredentials() bool {
	return !errors.Is(s.keyErr, ErrNoCredentials)
}

// KeyError returns the construction-time key problem, if any.
func (s *Signer) KeyError() error {
	return s.keyErr
}

// Sign returns fresh authentication headers for method and path. The query
// string is not part of the signed message.
func (s *Signer) Sign(method, path string) (models.SignedHeaders, error) {
	if s.keyErr != nil {
		return nil, s.keyErr
	}

	ts := strconv.FormatInt(s.now().UnixMilli(), 10)
	msg := ts + method + stripQuery(path)

	digest := sha256.Sum256([]byte(msg))
	sig, err := rsa.SignPSS(s.rand, s.key, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}

	return models.SignedHeaders{
		models.HeaderAccessKey:       s.keyID,
		models.HeaderAccessSignature: base64.StdEncoding.EncodeToString(sig),
		models.HeaderAccessTimestamp: ts,
	}, nil
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
