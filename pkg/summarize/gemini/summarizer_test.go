package gemini_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhuss/tradelens/pkg/api"
	"github.com/rhuss/tradelens/pkg/summarize"
	"github.com/rhuss/tradelens/pkg/summarize/gemini"
)

func TestSummarizer_NoHitsSkipsCall(t *testing.T) {
	t.Parallel()

	s := gemini.New(nil, "", nil) // nil client ok: no call is made

	out, err := s.Summarize(context.Background(), summarize.Input{Query: "q"})

	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSummarizer_ErrorWithoutClient(t *testing.T) {
	t.Parallel()

	s := gemini.New(nil, "", nil)

	_, err := s.Summarize(context.Background(), summarize.Input{
		Query: "q",
		Hits:  []api.Hit{{ID: "a"}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestSummarizer_Provider(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "gemini", gemini.New(nil, "", nil).Provider())
}

func TestBuildConfig_SetsSystemInstruction(t *testing.T) {
	t.Parallel()

	config := gemini.BuildConfig(api.RecordTypeNews, 0.3)

	require.NotNil(t, config.SystemInstruction)
	require.Len(t, config.SystemInstruction.Parts, 1)
	assert.Contains(t, config.SystemInstruction.Parts[0].Text, "trade risk analyst")
	assert.Contains(t, config.SystemInstruction.Parts[0].Text, "Never invent")
}

func TestBuildConfig_SetsTemperature(t *testing.T) {
	t.Parallel()

	config := gemini.BuildConfig(api.RecordTypeExporter, 0.7)

	require.NotNil(t, config.Temperature)
	assert.InDelta(t, 0.7, *config.Temperature, 0.0001)
}

func TestNewClient_RequiresKey(t *testing.T) {
	t.Parallel()

	_, err := gemini.NewClient(context.Background(), "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key required")
}
