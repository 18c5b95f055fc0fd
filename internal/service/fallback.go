package service

import (
	"sort"
	"strings"
)

// fallbackEntry pairs a trigger keyword with canned replies per language.
type fallbackEntry struct {
	keyword string
	replies map[string]string
}

// fallbackTable is scanned longest-keyword-first so "banana leaf spot"
// outranks "banana". Replies exist for English and Malayalam; other
// languages fall back to English.
var fallbackTable = []fallbackEntry{
	{
		keyword: "leaf spot",
		replies: map[string]string{
			"en": "Leaf spots are usually fungal. Remove affected leaves, avoid overhead watering, and spray a copper-based fungicide like Bordeaux mixture (1%).",
			"ml": "ഇലപ്പുള്ളി സാധാരണയായി കുമിൾ രോഗമാണ്. ബാധിച്ച ഇലകൾ നീക്കം ചെയ്യുക, ബോർഡോ മിശ്രിതം (1%) തളിക്കുക.",
		},
	},
	{
		keyword: "fertilizer",
		replies: map[string]string{
			"en": "Apply organic manure or compost as a base. For most Kerala crops, a balanced NPK dose after soil testing works best. Your local Krishi Bhavan can test soil free of cost.",
			"ml": "അടിവളമായി ജൈവവളം ഉപയോഗിക്കുക. മണ്ണ് പരിശോധനയ്ക്ക് ശേഷം NPK വളം നൽകുക. അടുത്തുള്ള കൃഷിഭവനിൽ സൗജന്യ മണ്ണ് പരിശോധന ലഭ്യമാണ്.",
		},
	},
	{
		keyword: "pest",
		replies: map[string]string{
			"en": "Start with neem oil spray (5ml per litre) in the evening. If the infestation persists, take a photo of the pest to your Krishi Bhavan for targeted advice.",
			"ml": "വൈകുന്നേരം വേപ്പെണ്ണ (ലിറ്ററിന് 5 മില്ലി) തളിക്കുക. കീടബാധ തുടർന്നാൽ കൃഷിഭവനിൽ ബന്ധപ്പെടുക.",
		},
	},
	{
		keyword: "price",
		replies: map[string]string{
			"en": "Check the Market Prices section of the app for today's mandi rates in your district.",
			"ml": "ഇന്നത്തെ വിപണി വില അറിയാൻ ആപ്പിലെ മാർക്കറ്റ് വില വിഭാഗം നോക്കുക.",
		},
	},
	{
		keyword: "rain",
		replies: map[string]string{
			"en": "Check the Weather section for your local forecast. During heavy rain, ensure field drainage and delay fertilizer application.",
			"ml": "പ്രാദേശിക കാലാവസ്ഥ അറിയാൻ ആപ്പിലെ കാലാവസ്ഥ വിഭാഗം നോക്കുക. കനത്ത മഴയിൽ വയലിലെ നീർവാർച്ച ഉറപ്പാക്കുക.",
		},
	},
	{
		keyword: "rice",
		replies: map[string]string{
			"en": "For paddy in Kerala, transplant 20-25 day old seedlings, keep 2-5cm standing water, and watch for blast and brown plant hopper after tillering.",
			"ml": "നെൽകൃഷിയിൽ 20-25 ദിവസം പ്രായമുള്ള ഞാറ് നടുക, 2-5 സെ.മീ വെള്ളം നിലനിർത്തുക.",
		},
	},
	{
		keyword: "coconut",
		replies: map[string]string{
			"en": "Coconut palms need 25kg organic manure per palm yearly. For rhinoceros beetle, fill leaf axils with sand mixed with neem cake.",
			"ml": "തെങ്ങിന് വർഷം 25 കിലോ ജൈവവളം നൽകുക. കൊമ്പൻ ചെല്ലിക്കെതിരെ മണലും വേപ്പിൻ പിണ്ണാക്കും ഇലക്കവിളുകളിൽ നിറയ്ക്കുക.",
		},
	},
	{
		keyword: "banana",
		replies: map[string]string{
			"en": "Bananas need regular watering and heavy feeding. Support bunches with props and remove dried leaves to prevent leaf spot diseases.",
			"ml": "വാഴയ്ക്ക് സ്ഥിരമായ നന ആവശ്യമാണ്. കുല താങ്ങ് നൽകി ഉറപ്പിക്കുക, ഉണങ്ങിയ ഇലകൾ നീക്കം ചെയ്യുക.",
		},
	},
	{
		keyword: "disease",
		replies: map[string]string{
			"en": "Use the Crop Scan feature, take a clear photo of the affected leaf and I can help identify the disease.",
			"ml": "ക്രോപ്പ് സ്കാൻ ഉപയോഗിക്കുക, ബാധിച്ച ഇലയുടെ വ്യക്തമായ ഫോട്ടോ എടുത്താൽ രോഗം തിരിച്ചറിയാൻ സഹായിക്കാം.",
		},
	},
}

var fallbackDefaults = map[string]string{
	"en": "I can help with crop care, pests, fertilizers, weather, and market prices. Could you tell me a little more about your farm or crop?",
	"ml": "വിള പരിചരണം, കീടങ്ങൾ, വളം, കാലാവസ്ഥ, വിപണി വില എന്നിവയിൽ എനിക്ക് സഹായിക്കാനാകും. നിങ്ങളുടെ വിളയെക്കുറിച്ച് കുറച്ചുകൂടി പറയാമോ?",
}

func init() {
	// Longest keyword wins when several match.
	sort.SliceStable(fallbackTable, func(i, j int) bool {
		return len(fallbackTable[i].keyword) > len(fallbackTable[j].keyword)
	})
}

// FallbackReply is the keyword-matching responder used when the AI API is
// unavailable. Pure function of its inputs.
func FallbackReply(message, language string) string {
	text := strings.ToLower(message)
	for _, entry := range fallbackTable {
		if strings.Contains(text, entry.keyword) {
			if reply, ok := entry.replies[language]; ok {
				return reply
			}
			return entry.replies["en"]
		}
	}
	if reply, ok := fallbackDefaults[language]; ok {
		return reply
	}
	return fallbackDefaults["en"]
}
