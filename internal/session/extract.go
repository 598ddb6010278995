package session

import (
	"fmt"
	"strings"

	"filemanager/internal/api"
)

// TokenExtractor pulls a token out of one location of an exchange result.
// It returns "" when that location is empty.
type TokenExtractor struct {
	Name    string
	Extract func(*api.ExchangeResult) string
}

var (
	// FromBody reads the "token" field of the response body
	FromBody = TokenExtractor{
		Name:    "body",
		Extract: func(r *api.ExchangeResult) string { return strings.TrimSpace(r.BodyToken) },
	}

	// FromHeader reads the Authorization response header, without a Bearer prefix
	FromHeader = TokenExtractor{
		Name:    "header",
		Extract: func(r *api.ExchangeResult) string { return stripBearer(r.HeaderToken) },
	}
)

var (
	// ExchangeOrder is used by Login: body first, then header
	ExchangeOrder = []TokenExtractor{FromBody, FromHeader}
	// ConfirmOrder checks the header first, then the body
	ConfirmOrder = []TokenExtractor{FromHeader, FromBody}
)

// ParseOrder turns a list such as "header,body" into extractors
func ParseOrder(spec string) ([]TokenExtractor, error) {
	var order []TokenExtractor
	for _, name := range strings.Split(spec, ",") {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "body":
			order = append(order, FromBody)
		case "header":
			order = append(order, FromHeader)
		case "":
			continue
		default:
			return nil, fmt.Errorf("unknown token source %q", name)
		}
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("token source order %q is empty", spec)
	}
	return order, nil
}

// firstToken returns the first non-empty token in extractor order
func firstToken(r *api.ExchangeResult, order []TokenExtractor) (token, source string) {
	if r == nil {
		return "", ""
	}
	for _, ex := range order {
		if t := ex.Extract(r); t != "" {
			return t, ex.Name
		}
	}
	return "", ""
}

func stripBearer(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, "bearer") {
		return ""
	}
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return v
}
