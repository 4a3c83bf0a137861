package ocrspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"ai-notetaking-pipeline/pkg/ocr"
	"ai-notetaking-pipeline/pkg/providererr"

	"github.com/goccy/go-json"
)

const DefaultBaseURL = "https://api.ocr.space/parse/image"

// Provider talks to an OCR.space-compatible parse endpoint. It handles both
// PDFs and images.
type Provider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

var _ ocr.Provider = (*Provider)(nil)

func NewProvider(apiKey, baseURL string) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Provider{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 180 * time.Second},
	}
}

type parseResponse struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"`
}

func (p *Provider) Name() string {
	return "ocrspace"
}

func (p *Provider) Extract(ctx context.Context, doc ocr.Document) (string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	filename := doc.Filename
	if filename == "" {
		filename = "document"
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(doc.Bytes); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	_ = w.WriteField("scale", "true")
	_ = w.WriteField("OCREngine", "2")
	if doc.IsPDF() {
		_ = w.WriteField("filetype", "PDF")
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("apikey", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", providererr.FromTransport(p.Name(), err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", providererr.FromHTTP(p.Name(), resp.StatusCode, string(raw))
	}

	var parsed parseResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", providererr.Transient(p.Name(), fmt.Errorf("decode response: %w", err))
	}
	if parsed.IsErroredOnProcessing {
		msg := errorText(parsed.ErrorMessage)
		if providererr.MatchesQuota(msg) {
			return "", providererr.Quota(p.Name(), errors.New(msg))
		}
		return "", providererr.Transient(p.Name(), fmt.Errorf("processing failed: %s", msg))
	}

	pages := make([]string, 0, len(parsed.ParsedResults))
	for _, r := range parsed.ParsedResults {
		if t := strings.TrimSpace(r.ParsedText); t != "" {
			pages = append(pages, t)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

// errorText accepts the string or string-array forms of ErrorMessage.
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "unknown error"
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	return string(raw)
}
