package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenSource supplies the bearer token for proxied calls
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// FileProxy forwards dashboard file calls to the backend's file API with the
// session's bearer token attached.
type FileProxy struct {
	target *url.URL
	tokens TokenSource
	logger *slog.Logger
	proxy  *httputil.ReverseProxy
}

// NewFileProxy creates a proxy to the backend at baseURL
func NewFileProxy(baseURL string, tokens TokenSource, logger *slog.Logger) (*FileProxy, error) {
	target, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend URL %q: %w", baseURL, err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &FileProxy{target: target, tokens: tokens, logger: logger}
	p.proxy = &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = target.Scheme
			req.URL.Host = target.Host
			req.Host = target.Host
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("Proxy error", "path", r.URL.Path, "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"error":"bad gateway"}`))
		},
		// CORS is answered by this client's own middleware
		ModifyResponse: func(resp *http.Response) error {
			for key := range resp.Header {
				if strings.HasPrefix(key, "Access-Control-") {
					resp.Header.Del(key)
				}
			}
			return nil
		},
		// stream downloads as they arrive
		FlushInterval: -1,
	}
	return p, nil
}

// Rewrite returns a handler that replaces stripPrefix with targetPrefix in
// the request path, e.g. /dashboard/files/7 -> /api/v1/files/7.
func (p *FileProxy) Rewrite(stripPrefix, targetPrefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := p.tokens.Token(c.Request.Context())
		if err != nil {
			p.logger.Error("Failed to load session token", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
			return
		}

		req := c.Request.Clone(c.Request.Context())
		rest := strings.TrimPrefix(req.URL.Path, stripPrefix)
		// keep any path the backend URL is mounted under
		req.URL.Path = strings.TrimRight(p.target.Path, "/") + strings.TrimRight(targetPrefix+rest, "/")
		req.URL.RawPath = ""
		if req.URL.Path == "" {
			req.URL.Path = "/"
		}

		// The browser's cookies and credentials belong to this client, not the backend
		req.Header.Del("Cookie")
		req.Header.Set("Authorization", "Bearer "+token)
		if id := c.GetString("request_id"); id != "" {
			req.Header.Set("X-Request-ID", id)
		}

		c.Set("upstream", p.target.Host+req.URL.Path)
		p.logger.Debug("Proxying file request",
			"method", req.Method,
			"from", c.Request.URL.Path,
			"to", p.target.Host+req.URL.Path,
		)

		p.proxy.ServeHTTP(c.Writer, req)
	}
}
