package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeScan  = "scan"
	TokenTypeApp   = "app"
	TokenTypeReset = "reset"

	PurposePINReset = "pin_reset"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrWrongTokenType = errors.New("wrong token type")
)

type Claims struct {
	TokenType  string `json:"typ"`
	IsVerified bool   `json:"isVerified"`
	IsAdmin    bool   `json:"isAdmin"`
	CardNumber string `json:"cardNumber,omitempty"`
	Purpose    string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// TokenSubject carries the card attributes embedded into signed tokens.
type TokenSubject struct {
	CardID     string
	CardNumber string
	IsVerified bool
	IsAdmin    bool
}

// JWTManager signs and parses the three token families. Each family has its
// own HMAC secret so a token from one family never validates as another.
type JWTManager struct {
	issuer      string
	scanSecret  []byte
	appSecret   []byte
	resetSecret []byte
	appTTL      time.Duration
	resetTTL    time.Duration
	now         func() time.Time
}

func NewJWTManager(issuer, scanSecret, appSecret, resetSecret string, appTTL, resetTTL time.Duration) *JWTManager {
	return &JWTManager{
		issuer:      issuer,
		scanSecret:  []byte(scanSecret),
		appSecret:   []byte(appSecret),
		resetSecret: []byte(resetSecret),
		appTTL:      appTTL,
		resetTTL:    resetTTL,
		now:         time.Now,
	}
}

func (m *JWTManager) AppTokenTTL() time.Duration { return m.appTTL }

func (m *JWTManager) ResetTokenTTL() time.Duration { return m.resetTTL }

// SignScanToken issues the long-lived token stored with a card's QR record.
// Scan tokens carry no expiry; they are replaced whenever the card is
// activated or deactivated.
func (m *JWTManager) SignScanToken(sub TokenSubject) (string, error) {
	claims := m.baseClaims(TokenTypeScan, sub, 0)
	return m.sign(claims, m.scanSecret)
}

func (m *JWTManager) SignAppToken(sub TokenSubject) (string, error) {
	claims := m.baseClaims(TokenTypeApp, sub, m.appTTL)
	claims.CardNumber = sub.CardNumber
	return m.sign(claims, m.appSecret)
}

func (m *JWTManager) SignResetToken(cardID string) (string, error) {
	claims := m.baseClaims(TokenTypeReset, TokenSubject{CardID: cardID}, m.resetTTL)
	claims.Purpose = PurposePINReset
	return m.sign(claims, m.resetSecret)
}

func (m *JWTManager) ParseScanToken(raw string) (*Claims, error) {
	return m.parse(raw, m.scanSecret, TokenTypeScan, false)
}

func (m *JWTManager) ParseAppToken(raw string) (*Claims, error) {
	return m.parse(raw, m.appSecret, TokenTypeApp, true)
}

// ParseResetToken validates a reset-authorization token and checks that it
// was issued for cardID.
func (m *JWTManager) ParseResetToken(raw, cardID string) (*Claims, error) {
	claims, err := m.parse(raw, m.resetSecret, TokenTypeReset, true)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != PurposePINReset || claims.Subject != cardID {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (m *JWTManager) baseClaims(tokenType string, sub TokenSubject, ttl time.Duration) Claims {
	now := m.now()
	claims := Claims{
		TokenType:  tokenType,
		IsVerified: sub.IsVerified,
		IsAdmin:    sub.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   m.issuer,
			Subject:  sub.CardID,
			IssuedAt: jwt.NewNumericDate(now),
			ID:       uuid.NewString(),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return claims
}

func (m *JWTManager) sign(claims Claims, secret []byte) (string, error) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", claims.TokenType, err)
	}
	return token, nil
}

func (m *JWTManager) parse(raw string, secret []byte, tokenType string, requireExp bool) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
	}
	if requireExp {
		opts = append(opts, jwt.WithExpirationRequired())
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != tokenType {
		return nil, ErrWrongTokenType
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
