package vibeproxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderOf(t *testing.T) {
	cases := map[string]string{
		"claude-opus-4-5-20251101": ProviderAnthropic,
		"Claude-Haiku-4.5":         ProviderAnthropic,
		"gpt-5.1-codex":            ProviderOpenAI,
		"gemini-2.5-flash":         ProviderGoogle,
		"grok-code-fast-1":         ProviderXAI,
		"raptor-mini":              ProviderRaptor,
		"llama-3-70b":              ProviderOther,
	}
	for id, want := range cases {
		assert.Equal(t, want, ProviderOf(id), id)
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Claude Opus 4.5 (Latest)", DisplayName("claude-opus-4-5-20251101"))
	assert.Equal(t, "GPT-5.1 Codex Max (Best)", DisplayName("gpt-5.1-codex-max"))
	assert.Equal(t, "mystery-model", DisplayName("mystery-model"))
}

func TestGroupByProvider(t *testing.T) {
	groups := GroupByProvider([]Model{
		{ID: "llama-3"},
		{ID: "gpt-5"},
		{ID: "claude-sonnet-4.5"},
		{ID: "gpt-4.1"},
	})
	require.Len(t, groups, 3)
	assert.Equal(t, ProviderAnthropic, groups[0].Provider)
	assert.Equal(t, ProviderOpenAI, groups[1].Provider)
	assert.Equal(t, []Model{{ID: "gpt-5"}, {ID: "gpt-4.1"}}, groups[1].Models)
	assert.Equal(t, ProviderOther, groups[2].Provider)

	assert.Empty(t, GroupByProvider(nil))
}
