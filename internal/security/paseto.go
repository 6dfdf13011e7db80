package security

import (
	"encoding/base64"
	"strings"
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

const (
	pasetoV4PublicHeader = "v4.public."
	pasetoV4SigSize      = 64
)

// PasetoCodec mints and verifies PASETO v4.public credentials signed with Ed25519.
type PasetoCodec struct {
	issuer string
	secret paseto.V4AsymmetricSecretKey
	public paseto.V4AsymmetricPublicKey
	now    func() time.Time
}

var _ Codec = (*PasetoCodec)(nil)

// NewPasetoCodec builds a codec from a hex-encoded Ed25519 secret key.
func NewPasetoCodec(secretKeyHex, issuer string) (*PasetoCodec, error) {
	secret, err := paseto.NewV4AsymmetricSecretKeyFromHex(strings.TrimSpace(secretKeyHex))
	if err != nil {
		return nil, ErrInvalidKey
	}
	return &PasetoCodec{
		issuer: issuer,
		secret: secret,
		public: secret.Public(),
		now:    time.Now,
	}, nil
}

// WithClock replaces the codec's time source.
func (c *PasetoCodec) WithClock(now func() time.Time) *PasetoCodec {
	if now != nil {
		c.now = now
	}
	return c
}

// PublicKeyHex returns the verification key, for distribution to other verifiers.
func (c *PasetoCodec) PublicKeyHex() string {
	return c.public.ExportHex()
}

// Mint signs a v4.public token for subject.
func (c *PasetoCodec) Mint(subject, email string, kind Kind, ttl time.Duration) (string, error) {
	if subject == "" || !kind.Valid() || ttl <= 0 {
		return "", ErrInvalidClaims
	}
	jti, err := generateJTI()
	if err != nil {
		return "", err
	}
	now := c.now().UTC()
	tok := paseto.NewToken()
	tok.SetJti(jti)
	tok.SetIssuer(c.issuer)
	tok.SetSubject(subject)
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(now.Add(ttl))
	tok.SetString("email", email)
	tok.SetString("type", string(kind))
	return tok.V4Sign(c.secret, nil), nil
}

// Verify checks structure, signature, issuer and expiry, in that order.
// As with TokenProvider, ErrExpired comes with the verified claims.
func (c *PasetoCodec) Verify(token string) (*Claims, error) {
	if !wellFormedV4Public(token) {
		return nil, ErrMalformedToken
	}
	p := paseto.NewParserWithoutExpiryCheck()
	p.AddRule(paseto.IssuedBy(c.issuer))
	parsed, err := p.ParseV4Public(c.public, token, nil)
	if err != nil {
		return nil, ErrInvalidSignature
	}

	sub, err := parsed.GetSubject()
	if err != nil || sub == "" {
		return nil, ErrMalformedToken
	}
	kind, err := parsed.GetString("type")
	if err != nil || !Kind(kind).Valid() {
		return nil, ErrMalformedToken
	}
	exp, err := parsed.GetExpiration()
	if err != nil {
		return nil, ErrMalformedToken
	}
	email, _ := parsed.GetString("email")
	jti, _ := parsed.GetJti()
	iat, _ := parsed.GetIssuedAt()

	claims := &Claims{
		ID:        jti,
		Subject:   sub,
		Email:     email,
		Kind:      Kind(kind),
		IssuedAt:  iat.UTC(),
		ExpiresAt: exp.UTC(),
	}
	if c.now().After(exp) {
		return claims, ErrExpired
	}
	return claims, nil
}

// wellFormedV4Public reports whether token has the v4.public shape with a decodable body
// large enough to hold a signature. Anything else is malformed rather than forged.
func wellFormedV4Public(token string) bool {
	if !strings.HasPrefix(token, pasetoV4PublicHeader) {
		return false
	}
	rest := strings.TrimPrefix(token, pasetoV4PublicHeader)
	body, _, _ := strings.Cut(rest, ".")
	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return false
	}
	return len(raw) > pasetoV4SigSize
}
