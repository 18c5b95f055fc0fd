package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

var (
	// ErrDiseaseUnavailable means the detection feature is not configured.
	ErrDiseaseUnavailable = errors.New("disease detection service unavailable")
	// ErrBadImage is the upstream's rejection of the submitted image.
	ErrBadImage = errors.New("could not read the image, try a clearer photo")
	// ErrBadAPIKey is an upstream credential rejection.
	ErrBadAPIKey = errors.New("disease detection service is misconfigured")
	// ErrQuotaExceeded means the upstream plan ran out of credits.
	ErrQuotaExceeded = errors.New("disease detection quota exceeded, try again later")
	// ErrUpstreamTimeout is the upstream's processing timeout.
	ErrUpstreamTimeout = errors.New("disease detection timed out, try again")
)

// DiseaseAssessment is the reshaped detection result.
type DiseaseAssessment struct {
	IsHealthy bool            `json:"is_healthy"`
	Result    json.RawMessage `json:"result"`
}

// DiseaseService proxies the plant health-assessment API. Unlike the market
// and weather proxies it never degrades to canned data; a fabricated
// diagnosis would be worse than an error.
type DiseaseService struct {
	apiKey string
	apiURL string
	client *http.Client
}

func NewDiseaseService(apiKey, apiURL string) *DiseaseService {
	return &DiseaseService{
		apiKey: apiKey,
		apiURL: apiURL,
		client: &http.Client{Timeout: 45 * time.Second},
	}
}

// Enabled reports whether a detection key is configured.
func (s *DiseaseService) Enabled() bool {
	return s.apiKey != ""
}

type healthAssessmentResponse struct {
	HealthAssessment struct {
		IsHealthy struct {
			Binary      bool    `json:"binary"`
			Probability float64 `json:"probability"`
		} `json:"is_healthy"`
	} `json:"health_assessment"`
	Result struct {
		IsHealthy struct {
			Binary bool `json:"binary"`
		} `json:"is_healthy"`
	} `json:"result"`
}

// DetectFromFile reads an uploaded image, submits it upstream, and removes
// the file before returning. The image never outlives the call, success or
// failure.
func (s *DiseaseService) DetectFromFile(ctx context.Context, path string) (*DiseaseAssessment, error) {
	defer func() {
		if err := os.Remove(path); err != nil {
			log.Printf("[Disease] failed to remove uploaded image %s: %v", path, err)
		}
	}()

	if !s.Enabled() {
		return nil, ErrDiseaseUnavailable
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded image: %w", err)
	}
	return s.detect(ctx, data)
}

func (s *DiseaseService) detect(ctx context.Context, image []byte) (*DiseaseAssessment, error) {
	payload := map[string]interface{}{
		"images":         []string{base64.StdEncoding.EncodeToString(image)},
		"similar_images": true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("disease API request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read disease API response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		log.Printf("[Disease] API returned status %d: %s", resp.StatusCode, string(respBody))
		switch resp.StatusCode {
		case http.StatusBadRequest:
			return nil, ErrBadImage
		case http.StatusUnauthorized:
			return nil, ErrBadAPIKey
		case http.StatusPaymentRequired:
			return nil, ErrQuotaExceeded
		case http.StatusRequestTimeout:
			return nil, ErrUpstreamTimeout
		default:
			return nil, fmt.Errorf("disease API returned status %d", resp.StatusCode)
		}
	}

	var parsed healthAssessmentResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode disease API response: %w", err)
	}

	// v2 nests under health_assessment, v3 under result.
	healthy := parsed.HealthAssessment.IsHealthy.Binary || parsed.Result.IsHealthy.Binary

	return &DiseaseAssessment{
		IsHealthy: healthy,
		Result:    respBody,
	}, nil
}
