package auth

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

type Claims struct {
	UserID    uuid.UUID `json:"userId"`
	Email     string    `json:"email,omitempty"`
	Username  string    `json:"username,omitempty"`
	TokenType string    `json:"tokenType"`

	jwtlib.RegisteredClaims
}

// Identity is what a token says about its bearer.
type Identity struct {
	UserID   uuid.UUID
	Email    string
	Username string
}

type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// TokenService signs access and refresh tokens with separate HMAC secrets.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string

	now func() time.Time
}

func NewTokenService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		issuer:        "vibelink",
		now:           time.Now,
	}
}

// WithClock replaces the time source. Tests use it to expire tokens.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

func (s *TokenService) IssuePair(id Identity) (TokenPair, error) {
	access, err := s.generate(TokenTypeAccess, id)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.generate(TokenTypeRefresh, Identity{UserID: id.UserID})
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *TokenService) GenerateAccessToken(id Identity) (string, error) {
	return s.generate(TokenTypeAccess, id)
}

// ValidateAccess accepts only access tokens.
func (s *TokenService) ValidateAccess(token string) (Claims, error) {
	return s.validate(token, s.accessSecret, TokenTypeAccess)
}

// ValidateRefresh accepts only refresh tokens.
func (s *TokenService) ValidateRefresh(token string) (Claims, error) {
	return s.validate(token, s.refreshSecret, TokenTypeRefresh)
}

// ValidateAny accepts either kind of token.
func (s *TokenService) ValidateAny(token string) (Claims, error) {
	claims, err := s.ValidateAccess(token)
	if err == nil {
		return claims, nil
	}
	claims, rerr := s.ValidateRefresh(token)
	if rerr == nil {
		return claims, nil
	}
	if errors.Is(err, ErrTokenExpired) || errors.Is(rerr, ErrTokenExpired) {
		return Claims{}, ErrTokenExpired
	}
	return Claims{}, ErrTokenInvalid
}

func (s *TokenService) generate(tokenType string, id Identity) (string, error) {
	secret, ttl := s.accessSecret, s.accessTTL
	if tokenType == TokenTypeRefresh {
		secret, ttl = s.refreshSecret, s.refreshTTL
	}
	if len(secret) == 0 || ttl <= 0 {
		return "", ErrTokenInvalid
	}

	now := s.now().UTC()
	claims := Claims{
		UserID:    id.UserID,
		Email:     id.Email,
		Username:  id.Username,
		TokenType: tokenType,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   id.UserID.String(),
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	t := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

func (s *TokenService) validate(token string, secret []byte, tokenType string) (Claims, error) {
	p := jwtlib.NewParser(
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(s.issuer),
		jwtlib.WithTimeFunc(s.now),
	)

	var c Claims
	tok, err := p.ParseWithClaims(token, &c, func(*jwtlib.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	if tok == nil || !tok.Valid || c.TokenType != tokenType || c.UserID == uuid.Nil {
		return Claims{}, ErrTokenInvalid
	}
	return c, nil
}

func (c Claims) Identity() Identity {
	return Identity{UserID: c.UserID, Email: c.Email, Username: c.Username}
}
