package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrInvalidToken is the only error callers ever see from token verification,
// so an expired token is indistinguishable from a forged one.
var ErrInvalidToken = errors.New("invalid or expired token")

const (
	tokenUseAccess  = "access"
	tokenUseRefresh = "refresh"
)

var signingMethod = jwt.SigningMethodHS256

type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
}

type AccessClaims struct {
	UserID   string `json:"userId"`
	Role     string `json:"role"`
	TokenUse string `json:"tokenUse"`
	jwt.RegisteredClaims
}

// Refresh tokens carry a family id shared by every token of one rotation chain
type RefreshClaims struct {
	UserID   string `json:"userId"`
	TokenID  string `json:"tokenId"`
	FamilyID string `json:"familyId"`
	TokenUse string `json:"tokenUse"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"` // seconds until the access token expires
	FamilyID     string `json:"-"`
}

type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	audience      string
	log           logrus.FieldLogger
	now           func() time.Time
}

func NewTokenManager(cfg TokenConfig, log logrus.FieldLogger) (*TokenManager, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("access and refresh token secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh token secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &TokenManager{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
		log:           log.WithField("component", "tokens"),
		now:           time.Now,
	}, nil
}

func (m *TokenManager) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := m.now()
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Issuer:    m.issuer,
		Audience:  jwt.ClaimStrings{m.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (m *TokenManager) GenerateAccessToken(userID, role string) (string, error) {
	claims := AccessClaims{
		UserID:           userID,
		Role:             role,
		TokenUse:         tokenUseAccess,
		RegisteredClaims: m.registered(userID, m.accessTTL),
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(m.accessSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return signed, nil
}

// An empty familyID starts a new rotation chain
func (m *TokenManager) GenerateRefreshToken(userID, familyID string) (string, error) {
	if familyID == "" {
		familyID = uuid.NewString()
	}

	registered := m.registered(userID, m.refreshTTL)
	claims := RefreshClaims{
		UserID:           userID,
		TokenID:          registered.ID,
		FamilyID:         familyID,
		TokenUse:         tokenUseRefresh,
		RegisteredClaims: registered,
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(m.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return signed, nil
}

func (m *TokenManager) GenerateTokenPair(userID, role, familyID string) (*TokenPair, error) {
	if familyID == "" {
		familyID = uuid.NewString()
	}

	access, err := m.GenerateAccessToken(userID, role)
	if err != nil {
		return nil, err
	}

	refresh, err := m.GenerateRefreshToken(userID, familyID)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(m.accessTTL.Seconds()),
		FamilyID:     familyID,
	}, nil
}

func (m *TokenManager) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
	return err
}

func (m *TokenManager) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(tokenString, claims, m.accessSecret); err != nil {
		m.log.WithError(err).Debug("Access token rejected")
		return nil, ErrInvalidToken
	}

	if claims.TokenUse != tokenUseAccess || claims.UserID == "" {
		m.log.Debug("Access token rejected: wrong token use or missing user")
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (m *TokenManager) VerifyRefreshToken(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(tokenString, claims, m.refreshSecret); err != nil {
		m.log.WithError(err).Debug("Refresh token rejected")
		return nil, ErrInvalidToken
	}

	if claims.TokenUse != tokenUseRefresh || claims.UserID == "" || claims.FamilyID == "" {
		m.log.Debug("Refresh token rejected: wrong token use or missing claims")
		return nil, ErrInvalidToken
	}

	return claims, nil
}
