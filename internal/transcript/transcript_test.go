package transcript

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  "metadata": {"request_id": "abc"},
  "results": {
    "channels": [
      {"alternatives": [{"transcript": "Hi, I have a question about my bill.", "confidence": 0.98}]}
    ],
    "summary": {"result": "success", "short": "Customer asked about billing."},
    "topics": {
      "segments": [
        {"text": "bill", "topics": [{"topic": "billing", "confidence_score": 0.9}, {"topic": "billing", "confidence_score": 0.7}]},
        {"text": "abroad", "topics": [{"topic": "roaming", "confidence_score": 0.8}]}
      ]
    },
    "intents": {
      "segments": [
        {"intents": [{"intent": "Ask about bill"}]}
      ]
    },
    "sentiments": {
      "average": {"sentiment": "neutral", "sentiment_score": 0.02}
    }
  }
}`

func mustParse(t *testing.T, raw string) Transcript {
	t.Helper()
	tr, err := Parse([]byte(raw))
	require.NoError(t, err)
	return tr
}

func TestExtractTopics(t *testing.T) {
	tr := mustParse(t, sampleJSON)

	topics, err := ExtractTopics(tr)
	require.NoError(t, err)
	assert.Equal(t, 2, topics.Len())
	assert.True(t, topics.Has("billing"))
	assert.True(t, topics.Has("roaming"))
	assert.Equal(t, []string{"billing", "roaming"}, topics.Sorted())
	assert.Equal(t, "billing, roaming", topics.String())
}

func TestExtractTopics_EmptySegments(t *testing.T) {
	tr := mustParse(t, `{"results":{"topics":{"segments":[]}}}`)

	topics, err := ExtractTopics(tr)
	require.NoError(t, err)
	assert.Equal(t, 0, topics.Len())
	assert.Empty(t, topics.Sorted())
}

func TestExtractTopics_MissingKeys(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		key  string
	}{
		{"缺少 results", `{}`, "results"},
		{"缺少 topics", `{"results":{}}`, "topics"},
		{"缺少 segments", `{"results":{"topics":{}}}`, "segments"},
		{"segment 缺少 topics", `{"results":{"topics":{"segments":[{"text":"x"}]}}}`, "topics"},
		{"topic 条目缺少 topic", `{"results":{"topics":{"segments":[{"topics":[{"confidence_score":1}]}]}}}`, "topic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractTopics(mustParse(t, tt.raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMissingKey))

			var lookupErr *LookupError
			require.True(t, errors.As(err, &lookupErr))
			assert.Equal(t, tt.key, lookupErr.Key)
		})
	}
}

func TestExtractTopics_UnexpectedType(t *testing.T) {
	tr := mustParse(t, `{"results":{"topics":{"segments":{"not":"a list"}}}}`)

	_, err := ExtractTopics(tr)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedType))
	assert.False(t, errors.Is(err, ErrMissingKey))
	assert.Contains(t, err.Error(), "results.topics")
}

func TestExtractSummary(t *testing.T) {
	summary, err := ExtractSummary(mustParse(t, sampleJSON))
	require.NoError(t, err)
	assert.Equal(t, "Customer asked about billing.", summary)
}

func TestExtractSummary_MissingResults(t *testing.T) {
	tr := mustParse(t, `{"metadata":{}}`)

	_, err := ExtractSummary(tr)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingKey))

	_, err = ExtractTopics(tr)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingKey))
}

func TestExtractSummary_NotString(t *testing.T) {
	_, err := ExtractSummary(mustParse(t, `{"results":{"summary":{"short":42}}}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedType))
	assert.Contains(t, err.Error(), "short")
}

func TestExtract_Idempotent(t *testing.T) {
	tr := mustParse(t, sampleJSON)

	first, err := ExtractTopics(tr)
	require.NoError(t, err)
	second, err := ExtractTopics(tr)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	s1, err := ExtractSummary(tr)
	require.NoError(t, err)
	s2, err := ExtractSummary(tr)
	require.NoError(t, err)
	assert.Equal(t, s1, s2)

	// 输入不应被修改
	assert.Equal(t, mustParse(t, sampleJSON), tr)
}

func TestExtract_FromLiteral(t *testing.T) {
	tr := Transcript{
		"results": map[string]any{
			"topics": map[string]any{
				"segments": []any{
					map[string]any{"topics": []any{
						map[string]any{"topic": "billing"},
						map[string]any{"topic": "billing"},
					}},
					map[string]any{"topics": []any{
						map[string]any{"topic": "roaming"},
					}},
				},
			},
			"summary": map[string]any{"short": "Customer asked about billing."},
		},
	}

	topics, err := ExtractTopics(tr)
	require.NoError(t, err)
	assert.Equal(t, TopicSet{"billing": {}, "roaming": {}}, topics)

	summary, err := ExtractSummary(tr)
	require.NoError(t, err)
	assert.Equal(t, "Customer asked about billing.", summary)
}

func TestExtractIntents(t *testing.T) {
	intents, err := ExtractIntents(mustParse(t, sampleJSON))
	require.NoError(t, err)
	assert.Equal(t, []string{"Ask about bill"}, intents.Sorted())
}

func TestExtractSentiment(t *testing.T) {
	sentiment, err := ExtractSentiment(mustParse(t, sampleJSON))
	require.NoError(t, err)
	assert.Equal(t, "neutral", sentiment)

	_, err = ExtractSentiment(mustParse(t, `{"results":{}}`))
	assert.True(t, errors.Is(err, ErrMissingKey))
}

func TestExtractText(t *testing.T) {
	text, err := ExtractText(mustParse(t, sampleJSON))
	require.NoError(t, err)
	assert.Equal(t, "Hi, I have a question about my bill.", text)

	_, err = ExtractText(mustParse(t, `{"results":{"channels":[]}}`))
	assert.True(t, errors.Is(err, ErrMissingKey))

	_, err = ExtractText(mustParse(t, `{"results":{"channels":[{"alternatives":[]}]}}`))
	assert.True(t, errors.Is(err, ErrMissingKey))
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("not json"))
	assert.Error(t, err)

	_, err = Parse([]byte("null"))
	assert.True(t, errors.Is(err, ErrMissingKey))
}

func TestLookupError_Message(t *testing.T) {
	err := &LookupError{Path: "results.topics", Key: "segments", Err: ErrMissingKey}
	assert.Equal(t, "transcript: missing key: segments (at results.topics)", err.Error())

	err = &LookupError{Key: "results", Err: ErrMissingKey}
	assert.Equal(t, "transcript: missing key: results", err.Error())
}
