package collab

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
)

// Extraction — результат распознавания.
type Extraction struct {
	// Text — распознанный текст.
	Text string

	// Model — имя движка распознавания.
	Model string

	// Confidence — уверенность, если сервис её сообщил (0 — не сообщил).
	Confidence float64
}

// TextExtractor распознаёт текст на изображении.
type TextExtractor interface {
	Extract(ctx context.Context, imageB64 string) (Extraction, error)
}

// OCRClient — HTTP-клиент сервиса распознавания.
//
// Протокол: POST {URL} {"image_b64": "..."} → {"text": "...", "confidence": 0.9, "model": "..."}.
type OCRClient struct {
	url        string
	model      string
	httpClient *http.Client
}

// OCRConfig — конфигурация OCRClient.
type OCRConfig struct {
	URL        string
	Model      string       // имя по умолчанию, если сервис его не вернул
	HTTPClient *http.Client // опционально
}

// NewOCRClient создаёт клиент сервиса распознавания.
func NewOCRClient(cfg OCRConfig) *OCRClient {
	model := cfg.Model
	if model == "" {
		model = "Tesseract (pytesseract)"
	}
	return &OCRClient{
		url:        cfg.URL,
		model:      model,
		httpClient: newHTTPClient(cfg.HTTPClient),
	}
}

type ocrRequest struct {
	ImageB64 string `json:"image_b64"`
}

type ocrResponse struct {
	Text       *string `json:"text"`
	Confidence float64 `json:"confidence"`
	Model      string  `json:"model"`
}

// Extract отправляет изображение на распознавание.
// Некорректный base64 отклоняется до сетевого вызова.
func (c *OCRClient) Extract(ctx context.Context, imageB64 string) (Extraction, error) {
	if c.url == "" {
		return Extraction{}, fmt.Errorf("%w: OCR_URL is empty", ErrNotConfigured)
	}

	if _, err := base64.StdEncoding.DecodeString(imageB64); err != nil {
		return Extraction{}, fmt.Errorf("%w: decode image: %v", ErrCollaborator, err)
	}

	var resp ocrResponse
	if err := postJSON(ctx, c.httpClient, c.url, nil, ocrRequest{ImageB64: imageB64}, &resp); err != nil {
		return Extraction{}, err
	}
	if resp.Text == nil {
		return Extraction{}, fmt.Errorf("%w: missing text", ErrMalformedResponse)
	}

	model := resp.Model
	if model == "" {
		model = c.model
	}

	return Extraction{
		Text:       *resp.Text,
		Model:      model,
		Confidence: resp.Confidence,
	}, nil
}
