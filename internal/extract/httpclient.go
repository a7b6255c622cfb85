package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ClientConfig configures the HTTP recognition client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the recognition service over HTTP: document bytes out,
// validated field payload back.
type Client struct {
	cfg  ClientConfig
	http *http.Client
	log  *slog.Logger
}

func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  logger,
	}
}

var _ FieldExtractor = (*Client)(nil)

// ExtractFields uploads the document and decodes the structured response.
// The payload is schema-validated before anything downstream sees it.
func (c *Client) ExtractFields(ctx context.Context, doc Document) (Result, error) {
	rid := uuid.New().String()
	start := time.Now()
	c.log.Info("extract.start", "req_id", rid, "payload", doc.PayloadRef, "year", doc.Year)

	body, contentType, err := c.buildRequestBody(doc)
	if err != nil {
		return Result{}, err
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/extract"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("extract.http_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return Result{}, fmt.Errorf("recognition request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Error("extract.bad_status", "req_id", rid, "status", resp.StatusCode)
		return Result{}, fmt.Errorf("recognition service returned %d", resp.StatusCode)
	}

	if err := ValidatePayload(raw); err != nil {
		c.log.Error("extract.schema_validation_failed", "req_id", rid, "error", err)
		return Result{}, err
	}

	var decoded struct {
		Fields
		Confidence float32 `json:"confidence"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Result{}, fmt.Errorf("decode payload: %w", err)
	}

	c.log.Info("extract.ok", "req_id", rid,
		"confidence", decoded.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds())
	return Result{Fields: decoded.Fields, Confidence: decoded.Confidence, Raw: raw}, nil
}

func (c *Client) buildRequestBody(doc Document) (io.Reader, string, error) {
	f, err := os.Open(doc.PayloadRef)
	if err != nil {
		return nil, "", fmt.Errorf("open payload: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("document", filepath.Base(doc.PayloadRef))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy payload: %w", err)
	}
	if err := mw.WriteField("year", strconv.Itoa(doc.Year)); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
