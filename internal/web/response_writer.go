package web

import (
	"github.com/gin-gonic/gin"
)

// responseWriter counts the bytes written through it and notes whether the
// body was flushed in pieces, as proxied downloads are.
type responseWriter struct {
	gin.ResponseWriter
	size     int
	streamed bool
}

func newResponseWriter(w gin.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

func (rw *responseWriter) WriteString(s string) (int, error) {
	n, err := rw.ResponseWriter.WriteString(s)
	rw.size += n
	return n, err
}

func (rw *responseWriter) Flush() {
	rw.streamed = true
	rw.ResponseWriter.Flush()
}

// Size returns the response body size in bytes
func (rw *responseWriter) Size() int {
	return rw.size
}

// Streamed reports whether the body was flushed before the handler returned
func (rw *responseWriter) Streamed() bool {
	return rw.streamed
}
