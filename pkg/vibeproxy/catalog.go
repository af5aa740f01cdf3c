package vibeproxy

import "strings"

const (
	ProviderAnthropic = "Anthropic"
	ProviderOpenAI    = "OpenAI"
	ProviderGoogle    = "Google"
	ProviderXAI       = "xAI"
	ProviderRaptor    = "Raptor"
	ProviderOther     = "Other"
)

// ProviderOrder is the order providers are listed in.
var ProviderOrder = []string{
	ProviderAnthropic,
	ProviderOpenAI,
	ProviderGoogle,
	ProviderXAI,
	ProviderRaptor,
	ProviderOther,
}

var providerMarkers = []struct {
	marker   string
	provider string
}{
	{"claude", ProviderAnthropic},
	{"gpt", ProviderOpenAI},
	{"gemini", ProviderGoogle},
	{"grok", ProviderXAI},
	{"raptor", ProviderRaptor},
}

var displayNames = map[string]string{
	// Anthropic direct
	"claude-opus-4-5-20251101":   "Claude Opus 4.5 (Latest)",
	"claude-sonnet-4-5-20250929": "Claude Sonnet 4.5",
	"claude-haiku-4-5-20251001":  "Claude Haiku 4.5",
	"claude-opus-4-1-20250805":   "Claude Opus 4.1",
	"claude-sonnet-4-20250514":   "Claude Sonnet 4",
	"claude-3-7-sonnet-20250219": "Claude 3.7 Sonnet",
	"claude-3-5-haiku-20241022":  "Claude 3.5 Haiku",

	// Anthropic through Copilot
	"claude-opus-4.5":   "Claude Opus 4.5 (Copilot)",
	"claude-sonnet-4.5": "Claude Sonnet 4.5 (Copilot)",
	"claude-haiku-4.5":  "Claude Haiku 4.5 (Copilot)",

	"gpt-5.2-codex":      "GPT-5.2 Codex",
	"gpt-5.2":            "GPT-5.2",
	"gpt-5.1-codex-max":  "GPT-5.1 Codex Max (Best)",
	"gpt-5.1-codex":      "GPT-5.1 Codex",
	"gpt-5.1-codex-mini": "GPT-5.1 Codex Mini",
	"gpt-5.1":            "GPT-5.1",
	"gpt-5-codex":        "GPT-5 Codex",
	"gpt-5-codex-mini":   "GPT-5 Codex Mini",
	"gpt-5":              "GPT-5",
	"gpt-5-mini":         "GPT-5 Mini",
	"gpt-4.1":            "GPT-4.1",

	"gemini-3-pro-preview":   "Gemini 3 Pro Preview",
	"gemini-3-flash-preview": "Gemini 3 Flash Preview",
	"gemini-3-pro":           "Gemini 3 Pro",
	"gemini-2.5-pro":         "Gemini 2.5 Pro (1M ctx)",
	"gemini-2.5-flash":       "Gemini 2.5 Flash",
	"gemini-2.5-flash-lite":  "Gemini 2.5 Flash Lite",

	"grok-code-fast-1": "Grok Code Fast",
	"raptor-mini":      "Raptor Mini",
}

// ProviderOf guesses the upstream provider from a model id.
func ProviderOf(id string) string {
	lower := strings.ToLower(id)
	for _, pm := range providerMarkers {
		if strings.Contains(lower, pm.marker) {
			return pm.provider
		}
	}
	return ProviderOther
}

// DisplayName returns a friendly name for known models and the id otherwise.
func DisplayName(id string) string {
	if name, ok := displayNames[id]; ok {
		return name
	}
	return id
}

// ProviderGroup is the models of one provider.
type ProviderGroup struct {
	Provider string  `json:"provider"`
	Models   []Model `json:"models"`
}

// GroupByProvider buckets models by provider in ProviderOrder, keeping the
// input order inside each bucket. Empty providers are omitted.
func GroupByProvider(models []Model) []ProviderGroup {
	buckets := make(map[string][]Model, len(ProviderOrder))
	for _, m := range models {
		p := m.Provider()
		buckets[p] = append(buckets[p], m)
	}

	groups := make([]ProviderGroup, 0, len(buckets))
	for _, p := range ProviderOrder {
		if ms := buckets[p]; len(ms) > 0 {
			groups = append(groups, ProviderGroup{Provider: p, Models: ms})
		}
	}
	return groups
}
