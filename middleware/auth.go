package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vibelink/auth"
)

const (
	CtxUserIDKey   = "user_id"
	CtxEmailKey    = "email"
	CtxUsernameKey = "username"
)

const (
	msgMissingToken = "Missing authorization token"
	msgInvalidToken = "Invalid or expired token"
)

// AccessValidator is the part of auth.TokenService the middleware needs.
type AccessValidator interface {
	ValidateAccess(token string) (auth.Claims, error)
}

// Auth rejects requests without a valid access token.
func Auth(tokens AccessValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			Abort(c, Unauthorized(msgMissingToken))
			return
		}

		claims, err := tokens.ValidateAccess(token)
		if err != nil {
			Abort(c, NewAppError(http.StatusUnauthorized, msgInvalidToken, err))
			return
		}

		setIdentity(c, claims.Identity())
		c.Next()
	}
}

// OptionalAuth attaches the identity when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalAuth(tokens AccessValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := BearerToken(c.GetHeader("Authorization")); ok {
			if claims, err := tokens.ValidateAccess(token); err == nil {
				setIdentity(c, claims.Identity())
			}
		}
		c.Next()
	}
}

// BearerToken extracts the token from "Bearer <token>". Anything other than
// exactly two space separated parts is rejected.
func BearerToken(header string) (string, bool) {
	parts := strings.Split(strings.TrimSpace(header), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func setIdentity(c *gin.Context, id auth.Identity) {
	c.Set(CtxUserIDKey, id.UserID)
	c.Set(CtxEmailKey, id.Email)
	c.Set(CtxUsernameKey, id.Username)
}

// CurrentUserID returns the authenticated user, if any.
func CurrentUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(CtxUserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func CurrentIdentity(c *gin.Context) (auth.Identity, bool) {
	id, ok := CurrentUserID(c)
	if !ok {
		return auth.Identity{}, false
	}
	return auth.Identity{
		UserID:   id,
		Email:    c.GetString(CtxEmailKey),
		Username: c.GetString(CtxUsernameKey),
	}, true
}
