package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVisualCues(t *testing.T) {
	raw := "The courtyard feels abandoned.\n" +
		"More prose here.\n" +
		"- a shattered lantern\n" +
		"* ivy over the doorway\n" +
		"3. a bell with no rope\n"

	cues, err := parseVisualCues(raw)
	require.NoError(t, err)
	assert.Equal(t, "The courtyard feels abandoned. More prose here.", cues.Atmosphere)
	assert.Equal(t, []string{"a shattered lantern", "ivy over the doorway", "a bell with no rope"}, cues.Details)
}

func TestParseVisualCuesProseOnly(t *testing.T) {
	cues, err := parseVisualCues("just atmosphere, no list")
	require.NoError(t, err)
	assert.Empty(t, cues.Details)
	assert.Equal(t, "just atmosphere, no list", cues.Atmosphere)
}

func TestParseVisualCuesEmpty(t *testing.T) {
	_, err := parseVisualCues("  \n ")
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

func TestParseFactsPairsSourcesInOrder(t *testing.T) {
	raw := "# Findings\n" +
		"- The keep burned in 1643.\n" +
		"A watchman died in the fire.\n" +
		"\n" +
		"1. Sightings reported in 1781.\n"

	facts, err := parseFacts(raw, []string{"https://a", "https://b"})
	require.NoError(t, err)
	require.Len(t, facts.Facts, 3)
	assert.Equal(t, Fact{Claim: "The keep burned in 1643.", Source: "https://a"}, facts.Facts[0])
	assert.Equal(t, Fact{Claim: "A watchman died in the fire.", Source: "https://b"}, facts.Facts[1])
	assert.Equal(t, Fact{Claim: "Sightings reported in 1781."}, facts.Facts[2])
	assert.NotEmpty(t, facts.Raw)
}

func TestParseFactsEmpty(t *testing.T) {
	_, err := parseFacts("", nil)
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

func TestParseDraftStripsFences(t *testing.T) {
	text, err := parseDraft("```\nI keep the gate.\n```")
	require.NoError(t, err)
	assert.Equal(t, "I keep the gate.", text)

	_, err = parseDraft("  ")
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

func TestParseCritique(t *testing.T) {
	c, err := parseCritique(`{"score": 7, "feedback": "needs a date"}`, 1)
	require.NoError(t, err)
	assert.Equal(t, 7, c.Score)
	assert.Equal(t, 1, c.Iteration)
	assert.Equal(t, []string{"needs a date"}, c.Feedback)
}

func TestParseCritiqueFencedWithProse(t *testing.T) {
	raw := "Here is my verdict:\n```json\n{\"score\": 9, \"feedback\": [\"tighter opening\", \"keep the bell\"]}\n```\nThanks."
	c, err := parseCritique(raw, 0)
	require.NoError(t, err)
	assert.Equal(t, 9, c.Score)
	assert.Equal(t, []string{"tighter opening", "keep the bell"}, c.Feedback)
}

func TestParseCritiqueMalformed(t *testing.T) {
	cases := map[string]string{
		"no json":           "a fine myth indeed",
		"missing score":     `{"feedback": "x"}`,
		"string score":      `{"score": "8"}`,
		"fractional score":  `{"score": 7.5}`,
		"score above range": `{"score": 11}`,
		"score below range": `{"score": 0}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseCritique(raw, 0)
			assert.ErrorIs(t, err, ErrMalformedOutput)
		})
	}
}
