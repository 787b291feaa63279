package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fachebot/talk-digest/internal/config"
	"github.com/fachebot/talk-digest/internal/logger"
	"github.com/sashabaranov/go-openai"
)

// openAIClientInterface 定义 OpenAI 客户端接口，便于测试
type openAIClientInterface interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Client struct {
	config       *config.LLM
	openaiClient openAIClientInterface
}

// NewClient 创建 LLM 客户端，transport 为 nil 时使用默认 Transport
func NewClient(cfg *config.LLM, transport *http.Transport) *Client {
	openaiConfig := openai.DefaultConfig(cfg.APIKey)
	openaiConfig.BaseURL = cfg.BaseURL
	if transport != nil {
		openaiConfig.HTTPClient = &http.Client{Transport: transport}
	}

	return &Client{
		config:       cfg,
		openaiClient: openai.NewClientWithConfig(openaiConfig),
	}
}

// Ask 以客服助手身份回答 prompt
// 调用失败时不返回 error，而是把错误描述作为回复文本返回
func (c *Client) Ask(ctx context.Context, prompt string) string {
	reply, err := c.Complete(ctx, prompt)
	if err != nil {
		logger.Warnf("[LLM] 请求失败: %v", err)
		return fmt.Sprintf("An error occurred: %v", err)
	}
	return reply
}

// Complete 执行一次对话请求，返回模型的回复文本
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	systemPrompt := c.config.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = config.DefaultSystemPrompt
	}

	req := openai.ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	}

	resp, err := c.openaiClient.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("调用 LLM API 失败: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM API 返回空结果")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ReplyPrompt 根据通话的话题和摘要构造客服回复的 prompt
func ReplyPrompt(topics []string, summary string) string {
	var sb strings.Builder
	sb.WriteString("A customer just finished a call with us.\n")
	if len(topics) > 0 {
		sb.WriteString("Topics discussed: ")
		sb.WriteString(strings.Join(topics, ", "))
		sb.WriteString("\n")
	}
	sb.WriteString("Call summary: ")
	sb.WriteString(summary)
	sb.WriteString("\n\nWrite a short follow-up message to the customer that addresses their concerns.")
	return sb.String()
}
