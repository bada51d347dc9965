package serverutils

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Principal is the authenticated caller extracted from a bearer token.
type Principal struct {
	UserID  string
	Groups  []string
	IsAdmin bool
}

type Authorizer struct {
	secret     []byte
	adminGroup string
}

func NewAuthorizer(secret, adminGroup string) *Authorizer {
	return &Authorizer{secret: []byte(secret), adminGroup: adminGroup}
}

// Authorize validates an HMAC-signed token and resolves its user and group claims.
func (a *Authorizer) Authorize(tokenStr string) (*Principal, error) {
	if tokenStr == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type", ErrInvalidToken)
	}

	userID, _ := claims["user_id"].(string)
	if userID == "" {
		userID, _ = claims["sub"].(string)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: token missing user_id", ErrInvalidToken)
	}

	groups := parseGroups(claims["groups"])
	p := &Principal{UserID: userID, Groups: groups}
	for _, g := range groups {
		if g == a.adminGroup {
			p.IsAdmin = true
			break
		}
	}
	return p, nil
}

// parseGroups accepts a JSON array claim, a JSON-encoded array string, or a comma separated string.
func parseGroups(raw interface{}) []string {
	switch v := raw.(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil
		}
		var arr []string
		if err := json.Unmarshal([]byte(trimmed), &arr); err == nil {
			return arr
		}
		var out []string
		for _, part := range strings.Split(strings.Trim(trimmed, "[]"), ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// TokenFromRequest prefers the "token" query param (browsers cannot set headers
// on a websocket handshake) and falls back to the Authorization header.
func TokenFromRequest(ctx *fiber.Ctx) string {
	if t := ctx.Query("token"); t != "" {
		return t
	}
	authHeader := ctx.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}
	return ""
}
