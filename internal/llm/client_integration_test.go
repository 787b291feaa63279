package llm

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fachebot/talk-digest/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// integrationTestConfig 从环境变量构建测试配置，若 OPENAI_API_KEY 未设置则跳过
func integrationTestConfig(t *testing.T) *config.LLM {
	apiKey := os.Getenv(config.EnvOpenAIKey)
	if apiKey == "" || apiKey == "your-api-key-here" || os.Getenv("LLM_INTEGRATION") == "" {
		t.Skip("跳过集成测试：请设置 OPENAI_API_KEY 和 LLM_INTEGRATION 环境变量")
	}
	cfg := config.Default().LLM
	cfg.APIKey = apiKey
	if baseURL := os.Getenv("LLM_BASE_URL"); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model := os.Getenv("LLM_MODEL"); model != "" {
		cfg.Model = model
	}
	return &cfg
}

func TestAsk_Integration(t *testing.T) {
	cfg := integrationTestConfig(t)
	client := NewClient(cfg, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	reply, err := client.Complete(ctx, ReplyPrompt(
		[]string{"billing", "roaming"},
		"The customer was charged for roaming while at home and wants a refund.",
	))
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(reply))
	t.Logf("回复: %s", reply)
}
