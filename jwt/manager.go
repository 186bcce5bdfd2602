package jwt

import (
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with a shared symmetric secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodRS256 signs with an RSA private key and verifies with the
	// corresponding public key.
	MethodRS256 SigningMethod = "rs256"
)

// Token type claims. A refresh token must never be accepted where an access
// token is expected, and vice versa.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Config holds the immutable manager configuration.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod
	// PrivateKey is the HS256 secret, or a PEM-encoded RSA private key.
	PrivateKey []byte
	// PublicKey is a PEM-encoded RSA public key. Optional for rs256 when
	// PrivateKey is set; required for verify-only deployments.
	PublicKey []byte
	Issuer    string
	Leeway    time.Duration
}

// Manager signs, verifies, and inspects session tokens.
type Manager struct {
	config       Config
	rsaPrivate   *rsa.PrivateKey
	rsaPublic    *rsa.PublicKey
	signingAlg   jwt.SigningMethod
	unsafeParser *jwt.Parser
}

// Claims is the token payload. Subject carries the user id, ID the jti.
type Claims struct {
	Email     string `json:"email,omitempty"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	m := &Manager{
		config:       cfg,
		unsafeParser: jwt.NewParser(),
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
		m.signingAlg = jwt.SigningMethodHS256
	case MethodRS256:
		m.signingAlg = jwt.SigningMethodRS256
		if len(cfg.PrivateKey) > 0 {
			key, err := jwt.ParseRSAPrivateKeyFromPEM(cfg.PrivateKey)
			if err != nil {
				return nil, errors.New("invalid rsa private key")
			}
			m.rsaPrivate = key
			m.rsaPublic = &key.PublicKey
		}
		if len(cfg.PublicKey) > 0 {
			key, err := jwt.ParseRSAPublicKeyFromPEM(cfg.PublicKey)
			if err != nil {
				return nil, errors.New("invalid rsa public key")
			}
			m.rsaPublic = key
		}
		if m.rsaPublic == nil {
			return nil, errors.New("rs256 requires a private or public key")
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return m, nil
}

// AccessTTL reports the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration {
	return m.config.AccessTTL
}

// CreateAccess signs an access token for the user. Returns the compact
// token and its jti.
func (m *Manager) CreateAccess(userID, email string) (string, string, error) {
	return m.create(userID, email, TypeAccess, m.config.AccessTTL)
}

// CreateRefresh signs a refresh token for the user. Returns the compact
// token and its jti.
func (m *Manager) CreateRefresh(userID, email string) (string, string, error) {
	return m.create(userID, email, TypeRefresh, m.config.RefreshTTL)
}

func (m *Manager) create(userID, email, tokenType string, ttl time.Duration) (string, string, error) {
	if m == nil {
		return "", "", errors.New("nil manager")
	}

	now := time.Now()
	jti := uuid.NewString()
	claims := Claims{
		Email:     email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(m.signingAlg, claims)
	signKey, err := m.signKey()
	if err != nil {
		return "", "", err
	}
	signed, err := token.SignedString(signKey)
	if err != nil {
		return "", "", err
	}
	return signed, jti, nil
}

// Parse verifies signature, expiry, and issuer, returning the claims.
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.signingAlg.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.verifyKey()
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// DecodeUnverified extracts the claims without checking the signature.
// The result must only be used for bookkeeping (jti, remaining lifetime),
// never for authorization decisions.
func (m *Manager) DecodeUnverified(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := m.unsafeParser.ParseUnverified(tokenStr, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *Manager) signKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		if m.rsaPrivate == nil {
			return nil, errors.New("manager is verify-only")
		}
		return m.rsaPrivate, nil
	}
}

func (m *Manager) verifyKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		return m.rsaPublic, nil
	}
}
