// Package claims decodes bearer tokens issued by the file manager backend
// into the identity facts the client needs. Decoding is structural only:
// signatures are trusted to the backend and never checked here.
package claims

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultRole is assigned when a token carries neither scopes nor scope.
const DefaultRole = "ROLE_USER"

var (
	// ErrMalformedToken is returned when a token is not a parseable compact JWS
	ErrMalformedToken = errors.New("malformed token")
)

// Claims holds the identity facts carried by a token
type Claims struct {
	Subject string   `json:"sub"`
	Roles   []string `json:"roles"`
	// ExpiresAt is seconds since the epoch, zero when the token has no exp
	ExpiresAt int64 `json:"exp"`
}

// HasExpiry reports whether the token declared an expiry
func (c *Claims) HasExpiry() bool {
	return c.ExpiresAt != 0
}

// ExpiredAt reports whether the claims are expired at nowMillis,
// compared in milliseconds since the epoch.
func (c *Claims) ExpiredAt(nowMillis int64) bool {
	if !c.HasExpiry() {
		return false
	}
	return nowMillis > c.ExpiresAt*1000
}

var parser = jwt.NewParser()

// Decode parses token without verifying its signature and extracts the
// subject, roles and expiry.
func Decode(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformedToken)
	}

	raw := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	c := &Claims{
		Subject: stringClaim(raw, "sub"),
		Roles:   rolesFrom(raw),
	}

	exp, err := raw.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if exp != nil {
		c.ExpiresAt = exp.Unix()
	}

	return c, nil
}

// rolesFrom applies the role precedence: scopes, then scope, then the default role
func rolesFrom(raw jwt.MapClaims) []string {
	if v, ok := raw["scopes"]; ok && v != nil {
		switch scopes := v.(type) {
		case []any:
			roles := make([]string, 0, len(scopes))
			for _, s := range scopes {
				if str, ok := s.(string); ok {
					roles = append(roles, str)
				}
			}
			return orderedSet(roles)
		case string:
			return orderedSet(strings.Fields(scopes))
		}
	}

	if scope := stringClaim(raw, "scope"); scope != "" {
		return []string{scope}
	}

	return []string{DefaultRole}
}

func stringClaim(raw jwt.MapClaims, key string) string {
	if s, ok := raw[key].(string); ok {
		return s
	}
	return ""
}

// orderedSet drops duplicates and empty entries, keeping first occurrence order
func orderedSet(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
