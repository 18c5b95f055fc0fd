package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackMatchesKeywords(t *testing.T) {
	reply := FallbackReply("What pest control should I use?", "en")
	assert.Contains(t, reply, "neem")

	reply = FallbackReply("today's market PRICE for rubber", "en")
	assert.Contains(t, reply, "Market Prices")
}

func TestFallbackLongestMatchWins(t *testing.T) {
	// "leaf spot" and "banana" both match; the longer keyword decides.
	reply := FallbackReply("my banana has leaf spot", "en")
	assert.Contains(t, reply, "fungal")
}

func TestFallbackMalayalam(t *testing.T) {
	reply := FallbackReply("fertilizer for coconut?", "ml")
	assert.True(t, strings.Contains(reply, "ജൈവവളം"), "reply should be in Malayalam")
}

func TestFallbackUnknownLanguageUsesEnglish(t *testing.T) {
	assert.Equal(t, FallbackReply("pest", "en"), FallbackReply("pest", "hi"))
}

func TestFallbackDefaultReply(t *testing.T) {
	reply := FallbackReply("zzzz nothing matches", "en")
	assert.Contains(t, reply, "crop care")
}

func TestFallbackIsPure(t *testing.T) {
	a := FallbackReply("rice blast", "en")
	b := FallbackReply("rice blast", "en")
	assert.Equal(t, a, b)
}
