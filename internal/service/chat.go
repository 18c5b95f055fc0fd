package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	chatHistoryLimit = 10
	chatHistoryTTL   = time.Hour

	systemPrompt = "You are Ammachi, a warm and practical farming assistant for smallholder " +
		"farmers in Kerala, India. Answer briefly and concretely about crops, pests, soil, " +
		"weather, and market practices. If asked in Malayalam, answer in Malayalam."
)

// ChatReply is the assistant's answer with its provenance.
type ChatReply struct {
	Reply    string `json:"reply"`
	Source   string `json:"source"`
	Language string `json:"language"`
}

// ChatService answers farmer questions through a generative-AI API, keeping
// short per-session history in redis. When the API is unconfigured or fails,
// it falls back to the keyword responder instead of erroring.
type ChatService struct {
	apiKey string
	apiURL string
	redis  *redis.Client
	client *http.Client
}

// NewChatService creates the chat service. redisClient may be nil; history
// is then kept only within a single request.
func NewChatService(apiKey, apiURL string, redisClient *redis.Client) *ChatService {
	return &ChatService{
		apiKey: apiKey,
		apiURL: apiURL,
		redis:  redisClient,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type geminiContent struct {
	Role  string `json:"role,omitempty"`
	Parts []struct {
		Text string `json:"text"`
	} `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Chat answers one message. language selects the fallback dictionary and is
// echoed back so the SPA renders the right script.
func (s *ChatService) Chat(ctx context.Context, message, sessionID, language string) *ChatReply {
	if language == "" {
		language = "en"
	}

	if s.apiKey == "" {
		return &ChatReply{Reply: FallbackReply(message, language), Source: "fallback", Language: language}
	}

	reply, err := s.generate(ctx, message, sessionID)
	if err != nil {
		log.Printf("[Chat] generation failed, using keyword fallback: %v", err)
		return &ChatReply{Reply: FallbackReply(message, language), Source: "fallback", Language: language}
	}

	s.appendHistory(ctx, sessionID, "user", message)
	s.appendHistory(ctx, sessionID, "model", reply)
	return &ChatReply{Reply: reply, Source: "ai", Language: language}
}

func (s *ChatService) generate(ctx context.Context, message, sessionID string) (string, error) {
	contents := s.loadHistory(ctx, sessionID)
	contents = append(contents, textContent("user", message))

	reqBody := geminiRequest{
		SystemInstruction: sysContent(),
		Contents:          contents,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/gemini-1.5-flash:generateContent?key=%s", s.apiURL, s.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("AI API request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read AI API response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("AI API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode AI API response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("AI API returned no candidates")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

// loadHistory returns the recent turns for a session, oldest first.
func (s *ChatService) loadHistory(ctx context.Context, sessionID string) []geminiContent {
	if s.redis == nil || sessionID == "" {
		return nil
	}
	raw, err := s.redis.LRange(ctx, historyKey(sessionID), 0, chatHistoryLimit-1).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[Chat] failed to load session history: %v", err)
		}
		return nil
	}

	contents := make([]geminiContent, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var c geminiContent
		if err := json.Unmarshal([]byte(raw[i]), &c); err == nil {
			contents = append(contents, c)
		}
	}
	return contents
}

// appendHistory pushes one turn onto the session list, trims to the window,
// and refreshes the TTL. Best-effort.
func (s *ChatService) appendHistory(ctx context.Context, sessionID, role, text string) {
	if s.redis == nil || sessionID == "" {
		return
	}
	entry, err := json.Marshal(textContent(role, text))
	if err != nil {
		return
	}
	key := historyKey(sessionID)
	pipe := s.redis.Pipeline()
	pipe.LPush(ctx, key, entry)
	pipe.LTrim(ctx, key, 0, chatHistoryLimit-1)
	pipe.Expire(ctx, key, chatHistoryTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[Chat] failed to store session history: %v", err)
	}
}

func historyKey(sessionID string) string {
	return "chat:session:" + sessionID
}

func textContent(role, text string) geminiContent {
	c := geminiContent{Role: role}
	c.Parts = []struct {
		Text string `json:"text"`
	}{{Text: text}}
	return c
}

func sysContent() *geminiContent {
	c := textContent("", systemPrompt)
	return &c
}
