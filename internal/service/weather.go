package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// WeatherResult carries either the raw upstream payload (passed through
// unchanged, with its status code) or the canned demo payload.
type WeatherResult struct {
	Status int
	Body   json.RawMessage
	Demo   bool
}

// WeatherService proxies the OpenWeather API. Successful and upstream-error
// responses pass through as-is; a missing key or network failure degrades to
// a canned payload so the UI always has something to render.
type WeatherService struct {
	apiKey string
	apiURL string
	client *http.Client
}

func NewWeatherService(apiKey, apiURL string) *WeatherService {
	return &WeatherService{
		apiKey: apiKey,
		apiURL: apiURL,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Current fetches current conditions for a coordinate pair.
func (s *WeatherService) Current(ctx context.Context, lat, lon string) *WeatherResult {
	return s.proxy(ctx, "weather", lat, lon)
}

// Forecast fetches the five-day forecast for a coordinate pair.
func (s *WeatherService) Forecast(ctx context.Context, lat, lon string) *WeatherResult {
	return s.proxy(ctx, "forecast", lat, lon)
}

func (s *WeatherService) proxy(ctx context.Context, endpoint, lat, lon string) *WeatherResult {
	if s.apiKey == "" {
		log.Printf("[Weather] API key not configured, serving demo data")
		return demoWeatherResult(endpoint)
	}

	params := url.Values{}
	params.Set("lat", lat)
	params.Set("lon", lon)
	params.Set("appid", s.apiKey)
	params.Set("units", "metric")

	reqURL := fmt.Sprintf("%s/%s?%s", s.apiURL, endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		log.Printf("[Weather] failed to create request: %v", err)
		return demoWeatherResult(endpoint)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("[Weather] upstream request failed, serving demo data: %v", err)
		return demoWeatherResult(endpoint)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("[Weather] failed to read upstream response, serving demo data: %v", err)
		return demoWeatherResult(endpoint)
	}

	return &WeatherResult{Status: resp.StatusCode, Body: body}
}

// demoWeatherResult mimics the upstream response shape closely enough for
// the SPA's widgets: a warm, humid day in central Kerala.
func demoWeatherResult(endpoint string) *WeatherResult {
	current := map[string]interface{}{
		"name": "Kochi",
		"main": map[string]interface{}{
			"temp":       29.4,
			"feels_like": 33.1,
			"humidity":   78,
			"pressure":   1008,
		},
		"weather": []map[string]interface{}{
			{"main": "Clouds", "description": "scattered clouds", "icon": "03d"},
		},
		"wind": map[string]interface{}{"speed": 3.6},
	}

	var payload interface{} = current
	if endpoint == "forecast" {
		entries := make([]interface{}, 0, 5)
		for i := 1; i <= 5; i++ {
			entries = append(entries, map[string]interface{}{
				"dt_txt": time.Now().AddDate(0, 0, i).Format("2006-01-02 12:00:00"),
				"main":   map[string]interface{}{"temp": 28.0 + float64(i)},
				"weather": []map[string]interface{}{
					{"main": "Rain", "description": "light rain", "icon": "10d"},
				},
			})
		}
		payload = map[string]interface{}{"city": map[string]interface{}{"name": "Kochi"}, "list": entries}
	}

	body, _ := json.Marshal(payload)
	return &WeatherResult{Status: http.StatusOK, Body: body, Demo: true}
}
