package files

// Package files manages the single attached document that can ground chat
// requests: validate-then-upload, best-effort detach, and listing of a
// user's previously uploaded files.

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/forptiter/chatcore/pkg/chat"
)

const (
	// MaxUploadSize is the upload cap, checked before any network call.
	MaxUploadSize = 10 * 1024 * 1024
	pdfMIMEType   = "application/pdf"
)

var (
	ErrUnsupportedType = errors.New("only PDF files are supported")
	ErrFileTooLarge    = errors.New("file exceeds the 10 MiB upload limit")
	ErrEmptyFilename   = errors.New("filename is empty")
)

// Upload describes a document to attach.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// FileInfo describes one previously uploaded file.
type FileInfo struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
}

// Service is the file-context surface the session manager depends on.
type Service interface {
	Attach(ctx context.Context, userID string, upload Upload) (*chat.FileContext, error)
	Detach(ctx context.Context, fileID string, userID string) error
}

// Client is the HTTP implementation of Service.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

var _ Service = (*Client)(nil)

type ClientOption func(*Client)

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

func NewClient(baseURL string, options ...ClientOption) *Client {
	ret := &Client{
		httpClient: &http.Client{},
		baseURL:    baseURL,
	}

	for _, option := range options {
		option(ret)
	}

	return ret
}

// Validate rejects uploads that are not PDFs or exceed the size cap. It runs
// before any network call.
func (u Upload) Validate() error {
	if u.Name == "" {
		return ErrEmptyFilename
	}
	if u.ContentType != pdfMIMEType {
		return errors.Wrapf(ErrUnsupportedType, "got %q", u.ContentType)
	}
	if u.Size > MaxUploadSize {
		return errors.Wrapf(ErrFileTooLarge, "got %d bytes", u.Size)
	}
	return nil
}

type uploadResponse struct {
	Success  bool   `json:"success"`
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
}

// Attach validates and uploads the document, returning the opaque file id
// the gateway will use to resolve its content. No retry is attempted.
func (c *Client) Attach(ctx context.Context, userID string, upload Upload) (*chat.FileContext, error) {
	if err := upload.Validate(); err != nil {
		return nil, err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("user_id", userID); err != nil {
		return nil, errors.Wrap(err, "failed to write user_id field")
	}
	part, err := writer.CreateFormFile("file", upload.Name)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file part")
	}
	if _, err := io.Copy(part, upload.Reader); err != nil {
		return nil, errors.Wrap(err, "failed to read upload content")
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to finalize multipart body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/file/upload", &body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create upload request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "upload request failed")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("file service returned status %d", resp.StatusCode)
	}

	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, "failed to decode upload response")
	}
	if parsed.FileID == "" {
		return nil, errors.New("file service did not return a file id")
	}

	log.Debug().Str("file_id", parsed.FileID).Str("filename", upload.Name).Msg("file uploaded")

	return &chat.FileContext{ID: parsed.FileID, Name: upload.Name}, nil
}

// Detach deletes the remote file. Callers treat this as best effort.
func (c *Client) Detach(ctx context.Context, fileID string, userID string) error {
	u := c.baseURL + "/file/" + url.PathEscape(fileID) + "?user_id=" + url.QueryEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create delete request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "delete request failed")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("file service returned status %d", resp.StatusCode)
	}
	return nil
}

type listFilesResponse struct {
	Files []FileInfo `json:"files"`
}

// List returns the user's uploaded files, most recent first.
func (c *Client) List(ctx context.Context, userID string) ([]FileInfo, error) {
	u := c.baseURL + "/file/list?user_id=" + url.QueryEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create list request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "list request failed")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("file service returned status %d", resp.StatusCode)
	}

	var parsed listFilesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, "failed to decode list response")
	}
	return parsed.Files, nil
}
