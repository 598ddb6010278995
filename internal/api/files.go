package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const filesPath = "/api/v1/files"

// File is a stored file as listed by the backend
type File struct {
	ID               int64  `json:"id"`
	FileName         string `json:"fileName"`
	OriginalFileName string `json:"originalFileName"`
	FileSize         int64  `json:"fileSize"`
	ContentType      string `json:"contentType"`
	DownloadURL      string `json:"downloadUrl"`
	CreatedAt        string `json:"createdAt"`
	OwnerID          int64  `json:"ownerId"`
}

// FilePage is one page of a sorted file listing
type FilePage struct {
	Content       []File `json:"content"`
	TotalElements int64  `json:"totalElements"`
	TotalPages    int    `json:"totalPages"`
	Number        int    `json:"number"`
	Size          int    `json:"size"`
}

// ListOptions controls paging and sorting of ListFiles
type ListOptions struct {
	Page    int
	Size    int
	SortBy  string
	SortDir string
}

// DefaultListOptions mirrors the backend defaults
func DefaultListOptions() ListOptions {
	return ListOptions{Page: 0, Size: 20, SortBy: "createdAt", SortDir: "DESC"}
}

// UploadResult is returned after a successful upload
type UploadResult struct {
	FileID           int64  `json:"fileId"`
	FileName         string `json:"fileName"`
	OriginalFileName string `json:"originalFileName"`
	FileSize         int64  `json:"fileSize"`
	ContentType      string `json:"contentType"`
	Message          string `json:"message"`
}

// FileStats summarises a user's storage
type FileStats struct {
	FileCount   int64  `json:"fileCount"`
	TotalSize   int64  `json:"totalSize"`
	TotalSizeMB string `json:"totalSizeMB"`
}

// Download is a fetched file body
type Download struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ListFiles returns one page of the user's files
func (c *Client) ListFiles(ctx context.Context, opts ListOptions) (*FilePage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(opts.Page))
	q.Set("size", strconv.Itoa(opts.Size))
	q.Set("sortBy", opts.SortBy)
	q.Set("sortDir", opts.SortDir)

	resp, err := c.do(ctx, request{method: http.MethodGet, path: filesPath, query: q, auth: true})
	if err != nil {
		return nil, err
	}

	var page FilePage
	if err := decode(resp, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListAllFiles returns every file of the user without paging
func (c *Client) ListAllFiles(ctx context.Context) ([]File, error) {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: filesPath + "/all", auth: true})
	if err != nil {
		return nil, err
	}

	var files []File
	if err := decode(resp, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// GetFile returns one file's metadata
func (c *Client) GetFile(ctx context.Context, id int64) (*File, error) {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: fmt.Sprintf("%s/%d", filesPath, id), auth: true})
	if err != nil {
		return nil, err
	}

	var f File
	if err := decode(resp, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// DownloadFile fetches a file's contents
func (c *Client) DownloadFile(ctx context.Context, id int64) (*Download, error) {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: fmt.Sprintf("%s/%d/download", filesPath, id), auth: true})
	if err != nil {
		return nil, err
	}

	d := &Download{
		ContentType: resp.header.Get("Content-Type"),
		Data:        resp.body,
	}
	if _, params, err := mime.ParseMediaType(resp.header.Get("Content-Disposition")); err == nil {
		d.FileName = params["filename"]
	}
	if d.FileName == "" {
		d.FileName = fmt.Sprintf("file-%d", id)
	}
	return d, nil
}

// UploadFile sends r as a multipart "file" field named fileName
func (c *Client) UploadFile(ctx context.Context, fileName string, r io.Reader) (*UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("copy file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	resp, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        filesPath,
		raw:         &buf,
		contentType: mw.FormDataContentType(),
		auth:        true,
	})
	if err != nil {
		return nil, err
	}

	var result UploadResult
	if err := decode(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteFile removes a file
func (c *Client) DeleteFile(ctx context.Context, id int64) (*MessageResponse, error) {
	resp, err := c.do(ctx, request{method: http.MethodDelete, path: fmt.Sprintf("%s/%d", filesPath, id), auth: true})
	if err != nil {
		return nil, err
	}

	var msg MessageResponse
	if err := decode(resp, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// FileStats returns the user's file count and total size
func (c *Client) FileStats(ctx context.Context) (*FileStats, error) {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: filesPath + "/stats", auth: true})
	if err != nil {
		return nil, err
	}

	var stats FileStats
	if err := decode(resp, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// FormatSize renders a byte count the way the dashboard shows it
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FormatCreatedAt renders the backend's ISO timestamp, falling back to the raw value
func FormatCreatedAt(raw string) string {
	t, err := time.Parse("2006-01-02T15:04:05.999999999", raw)
	if err != nil {
		return raw
	}
	return t.Format("2006-01-02 15:04")
}
