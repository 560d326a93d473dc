package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"github.com/mesh-intelligence/crudkit/pkg/handler"
)

// credentialsKey is the gin context key holding verified token claims.
const credentialsKey = "crudkit.credentials"

// ErrNoSecret is returned when tokens are required but no secret is set.
var ErrNoSecret = errors.New("jwt secret is not configured")

var signingMethods = []string{
	jwt.SigningMethodHS256.Alg(),
	jwt.SigningMethodHS384.Alg(),
	jwt.SigningMethodHS512.Alg(),
}

// Authenticator verifies HMAC signed bearer tokens and turns their claims
// into request credentials.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator returns an Authenticator for secret.
func NewAuthenticator(secret []byte) *Authenticator {
	return &Authenticator{secret: secret}
}

// Verify parses tokenString and returns its claims.
func (a *Authenticator) Verify(tokenString string) (map[string]any, error) {
	if len(a.secret) == 0 {
		return nil, ErrNoSecret
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods(signingMethods))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return claims, nil
}

// Issue signs claims with HS256. A positive ttl sets exp and iat.
func (a *Authenticator) Issue(claims map[string]any, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", ErrNoSecret
	}
	mc := jwt.MapClaims{}
	for k, v := range claims {
		mc[k] = v
	}
	if ttl > 0 {
		now := time.Now()
		mc["iat"] = jwt.NewNumericDate(now)
		mc["exp"] = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(a.secret)
}

// middleware stores the claims of a valid bearer token on the context. A
// missing token is rejected only when required; an invalid one always is.
func (a *Authenticator) middleware(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			if required {
				abort(c, handler.Unauthorized("missing bearer token"))
			}
			return
		}

		scheme, tokenString, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			abort(c, handler.Unauthorized("authorization header must be a bearer token"))
			return
		}

		claims, err := a.Verify(strings.TrimSpace(tokenString))
		if err != nil {
			abort(c, handler.Unauthorized(fmt.Sprintf("invalid token: %s", err)))
			return
		}
		c.Set(credentialsKey, claims)
	}
}

func abort(c *gin.Context, err *handler.Error) {
	c.AbortWithStatusJSON(err.StatusCode, err)
}
