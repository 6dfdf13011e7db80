package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidSignature is returned when a token's signature does not verify, or the token
	// was not issued for this verifier (algorithm, issuer, audience or not-before mismatch).
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrExpired is returned when the current time is past the token's expiry.
	// Verify still returns the signature-checked claims alongside it.
	ErrExpired = errors.New("token expired")
	// ErrMalformedToken is returned when a token cannot be parsed or its claims are incomplete.
	ErrMalformedToken = errors.New("malformed token")
	// ErrInvalidClaims is returned by Mint when asked to sign an unusable claim set.
	ErrInvalidClaims = errors.New("invalid claims")
)

// Kind distinguishes access credentials from refresh (renewal) credentials.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Valid reports whether k is one of the known credential kinds.
func (k Kind) Valid() bool {
	return k == KindAccess || k == KindRefresh
}

// Claims is the decoded content of a credential token.
type Claims struct {
	ID        string
	Subject   string
	Email     string
	Kind      Kind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec mints and verifies self-contained credential tokens. It is stateless and knows
// nothing about sessions; callers must check Claims.Kind themselves.
type Codec interface {
	Mint(subject, email string, kind Kind, ttl time.Duration) (string, error)
	Verify(token string) (*Claims, error)
}

// credentialClaims is the JWT payload for both credential kinds.
type credentialClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Kind  Kind   `json:"type"`
}

// TokenProvider issues and validates JWT credentials. Asymmetric providers sign with
// RS256, ES256 or EdDSA depending on the key; NewHMACTokenProvider signs with HS256.
type TokenProvider struct {
	signKey   interface{}
	verifyKey interface{}
	method    jwt.SigningMethod
	issuer    string
	audience  string
	now       func() time.Time
}

var _ Codec = (*TokenProvider)(nil)

// NewTokenProvider returns a TokenProvider that signs with privateKey and verifies with publicKey.
// issuer and audience are set on every token and required on verify.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string) *TokenProvider {
	var method jwt.SigningMethod
	if privateKey != nil {
		switch privateKey.Public().(type) {
		case *rsa.PublicKey:
			method = jwt.SigningMethodRS256
		case *ecdsa.PublicKey:
			method = jwt.SigningMethodES256
		case ed25519.PublicKey:
			method = jwt.SigningMethodEdDSA
		}
	}
	return &TokenProvider{
		signKey:   privateKey,
		verifyKey: publicKey,
		method:    method,
		issuer:    issuer,
		audience:  audience,
		now:       time.Now,
	}
}

// NewHMACTokenProvider returns a TokenProvider that signs and verifies with a shared secret (HS256).
func NewHMACTokenProvider(secret []byte, issuer, audience string) *TokenProvider {
	var method jwt.SigningMethod
	if len(secret) > 0 {
		method = jwt.SigningMethodHS256
	}
	return &TokenProvider{
		signKey:   secret,
		verifyKey: secret,
		method:    method,
		issuer:    issuer,
		audience:  audience,
		now:       time.Now,
	}
}

// WithClock replaces the provider's time source. Used by tests to mint or verify at a fixed instant.
func (p *TokenProvider) WithClock(now func() time.Time) *TokenProvider {
	if now != nil {
		p.now = now
	}
	return p
}

// Alg returns the JWT algorithm name, or "" when the key type is unsupported.
func (p *TokenProvider) Alg() string {
	if p.method == nil {
		return ""
	}
	return p.method.Alg()
}

// Mint signs a token for subject carrying email and kind, valid for ttl from now.
func (p *TokenProvider) Mint(subject, email string, kind Kind, ttl time.Duration) (string, error) {
	if p.method == nil {
		return "", ErrInvalidKey
	}
	if subject == "" || !kind.Valid() || ttl <= 0 {
		return "", ErrInvalidClaims
	}
	jti, err := generateJTI()
	if err != nil {
		return "", err
	}
	now := p.now().UTC()
	claims := credentialClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subject,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
		Kind:  kind,
	}
	return jwt.NewWithClaims(p.method, claims).SignedString(p.signKey)
}

// Verify parses tokenString and checks signature, issuer, audience and expiry.
// On ErrExpired the returned claims are non-nil: the signature was verified before the
// expiry check, so the subject can be trusted for cleanup purposes.
func (p *TokenProvider) Verify(tokenString string) (*Claims, error) {
	if p.method == nil {
		return nil, ErrInvalidKey
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{p.method.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	cc := &credentialClaims{}
	_, err := parser.ParseWithClaims(tokenString, cc, func(*jwt.Token) (interface{}, error) {
		return p.verifyKey, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return nil, ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		claims, convErr := cc.toClaims()
		if convErr != nil {
			return nil, convErr
		}
		return claims, ErrExpired
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return nil, ErrMalformedToken
	default:
		return nil, ErrMalformedToken
	}
	return cc.toClaims()
}

func (c *credentialClaims) toClaims() (*Claims, error) {
	if c.Subject == "" || !c.Kind.Valid() || c.ExpiresAt == nil {
		return nil, ErrMalformedToken
	}
	out := &Claims{
		ID:        c.ID,
		Subject:   c.Subject,
		Email:     c.Email,
		Kind:      c.Kind,
		ExpiresAt: c.ExpiresAt.Time.UTC(),
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time.UTC()
	}
	return out, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
