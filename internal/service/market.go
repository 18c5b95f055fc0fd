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

// MarketPrice is one commodity price record in the response envelope.
type MarketPrice struct {
	State       string `json:"state"`
	District    string `json:"district"`
	Market      string `json:"market"`
	Commodity   string `json:"commodity"`
	Variety     string `json:"variety"`
	ArrivalDate string `json:"arrival_date"`
	MinPrice    string `json:"min_price"`
	MaxPrice    string `json:"max_price"`
	ModalPrice  string `json:"modal_price"`
}

// MarketResult is the reshaped response; Demo marks the static dataset.
type MarketResult struct {
	Count int           `json:"count"`
	Data  []MarketPrice `json:"data"`
	Demo  bool          `json:"demo,omitempty"`
}

// MarketService proxies the government open-data commodity price API. It
// never fails hard: a missing key, upstream error, or empty result set all
// degrade to the static demo dataset.
type MarketService struct {
	apiKey string
	apiURL string
	client *http.Client
}

func NewMarketService(apiKey, apiURL string) *MarketService {
	return &MarketService{
		apiKey: apiKey,
		apiURL: apiURL,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type dataGovResponse struct {
	Records []struct {
		State       string `json:"state"`
		District    string `json:"district"`
		Market      string `json:"market"`
		Commodity   string `json:"commodity"`
		Variety     string `json:"variety"`
		ArrivalDate string `json:"arrival_date"`
		MinPrice    string `json:"min_price"`
		MaxPrice    string `json:"max_price"`
		ModalPrice  string `json:"modal_price"`
	} `json:"records"`
}

// Prices fetches live prices filtered by state, market, and commodity.
func (s *MarketService) Prices(ctx context.Context, state, market, commodity string) *MarketResult {
	if s.apiKey == "" {
		log.Printf("[Market] API key not configured, serving demo data")
		return demoMarketResult(state, market, commodity)
	}

	records, err := s.fetch(ctx, state, market, commodity)
	if err != nil {
		log.Printf("[Market] upstream fetch failed, serving demo data: %v", err)
		return demoMarketResult(state, market, commodity)
	}
	if len(records) == 0 {
		log.Printf("[Market] upstream returned no records for %s/%s/%s, serving demo data", state, market, commodity)
		return demoMarketResult(state, market, commodity)
	}

	return &MarketResult{Count: len(records), Data: records}
}

func (s *MarketService) fetch(ctx context.Context, state, market, commodity string) ([]MarketPrice, error) {
	params := url.Values{}
	params.Set("api-key", s.apiKey)
	params.Set("format", "json")
	params.Set("limit", "50")
	if state != "" {
		params.Set("filters[state]", state)
	}
	if market != "" {
		params.Set("filters[market]", market)
	}
	if commodity != "" {
		params.Set("filters[commodity]", commodity)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", s.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("market API request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("market API returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed dataGovResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode market API response: %w", err)
	}

	prices := make([]MarketPrice, 0, len(parsed.Records))
	for _, rec := range parsed.Records {
		prices = append(prices, MarketPrice(rec))
	}
	return prices, nil
}

// Commodities returns the static commodity list the SPA uses for dropdowns.
func (s *MarketService) Commodities() []string {
	return []string{
		"Rice", "Paddy(Dhan)(Common)", "Coconut", "Banana", "Tapioca",
		"Black Pepper", "Rubber", "Ginger(Green)", "Turmeric", "Arecanut",
		"Cardamoms", "Tomato", "Onion", "Brinjal", "Cabbage",
	}
}

// Markets returns the static Kerala market list for dropdowns.
func (s *MarketService) Markets() []string {
	return []string{
		"Ernakulam", "Aluva", "Thrissur", "Palakkad", "Kozhikode",
		"Kannur", "Kollam", "Kottayam", "Alappuzha", "Thiruvananthapuram",
	}
}

// demoMarketResult builds the seven-day static dataset. Dates are rendered
// relative to today so the chart always shows a current week.
func demoMarketResult(state, market, commodity string) *MarketResult {
	if state == "" {
		state = "Kerala"
	}
	if market == "" {
		market = "Ernakulam"
	}
	if commodity == "" {
		commodity = "Rice"
	}

	modal := []string{"2850", "2870", "2840", "2900", "2920", "2880", "2910"}
	min := []string{"2700", "2720", "2690", "2750", "2770", "2730", "2760"}
	max := []string{"3000", "3020", "2990", "3050", "3070", "3030", "3060"}

	data := make([]MarketPrice, 0, 7)
	for i := 0; i < 7; i++ {
		day := time.Now().AddDate(0, 0, i-6)
		data = append(data, MarketPrice{
			State:       state,
			District:    market,
			Market:      market,
			Commodity:   commodity,
			Variety:     "Common",
			ArrivalDate: day.Format("02/01/2006"),
			MinPrice:    min[i],
			MaxPrice:    max[i],
			ModalPrice:  modal[i],
		})
	}
	return &MarketResult{Count: len(data), Data: data, Demo: true}
}
