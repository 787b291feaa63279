package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// EnvDeepgramKey 语音服务 API Key 的环境变量名
	EnvDeepgramKey = "DG_API_KEY"
	// EnvOpenAIKey 语言模型 API Key 的环境变量名
	EnvOpenAIKey = "OPENAI_API_KEY"
)

const DefaultSystemPrompt = `You are a helpful and friendly customer service assistant for a cell phone provider.
Your goal is to help customers with issues like:
- Billing questions
- Troubleshooting their mobile devices
- Explaining data plans and features
- Activating or deactivating services
- Transferring them to appropriate departments for further assistance

Maintain a polite and professional tone in your responses. Always make the customer feel valued and heard.`

type Sock5Proxy struct {
	Host   string `yaml:"Host"`
	Port   int32  `yaml:"Port"`
	Enable bool   `yaml:"Enable"`
}

type Deepgram struct {
	APIKey         string `yaml:"-"`
	BaseURL        string `yaml:"BaseURL"`
	Model          string `yaml:"Model"`     // 转写模型，如 nova-2
	Language       string `yaml:"Language"`  // 如 en
	Summarize      string `yaml:"Summarize"` // 摘要版本，如 v2，留空关闭
	Topics         bool   `yaml:"Topics"`
	Intents        bool   `yaml:"Intents"`
	SmartFormat    bool   `yaml:"SmartFormat"`
	Sentiment      bool   `yaml:"Sentiment"`
	SpeakModel     string `yaml:"SpeakModel"` // 语音合成模型，如 aura-asteria-en
	Encoding       string `yaml:"Encoding"`   // 如 linear16
	Container      string `yaml:"Container"`  // 如 wav
	OutputFile     string `yaml:"OutputFile"` // 合成音频的输出文件
	TimeoutSeconds int    `yaml:"TimeoutSeconds"`
}

type LLM struct {
	APIKey       string  `yaml:"-"`
	BaseURL      string  `yaml:"BaseURL"` // 兼容 OpenAI API 的端点
	Model        string  `yaml:"Model"`
	Temperature  float32 `yaml:"Temperature"`
	MaxTokens    int     `yaml:"MaxTokens"` // 回复的最大 token 数，0 表示不限制
	SystemPrompt string  `yaml:"SystemPrompt"`
}

type Watch struct {
	Cron     string `yaml:"Cron"`     // cron 表达式，如 "*/5 * * * *"
	InboxDir string `yaml:"InboxDir"` // 待分析音频所在目录
	Reply    bool   `yaml:"Reply"`    // 是否为每条录音生成客服回复
	Speak    bool   `yaml:"Speak"`    // 是否为每条录音合成语音摘要
}

type Database struct {
	Path string `yaml:"Path"`
}

type Log struct {
	Dir   string `yaml:"Dir"`
	Level string `yaml:"Level"` // debug / info / warn / error
}

type Config struct {
	Sock5Proxy Sock5Proxy `yaml:"Sock5Proxy"`
	Deepgram   Deepgram   `yaml:"Deepgram"`
	LLM        LLM        `yaml:"LLM"`
	Watch      Watch      `yaml:"Watch"`
	Database   Database   `yaml:"Database"`
	Log        Log        `yaml:"Log"`
}

// Default 返回带默认值的配置，与 Deepgram 官方示例的参数一致
func Default() *Config {
	return &Config{
		Deepgram: Deepgram{
			BaseURL:        "https://api.deepgram.com",
			Model:          "nova-2",
			Language:       "en",
			Summarize:      "v2",
			Topics:         true,
			Intents:        true,
			SmartFormat:    true,
			Sentiment:      true,
			SpeakModel:     "aura-asteria-en",
			Encoding:       "linear16",
			Container:      "wav",
			OutputFile:     "output.wav",
			TimeoutSeconds: 120,
		},
		LLM: LLM{
			BaseURL:      "https://api.openai.com/v1",
			Model:        "gpt-3.5-turbo",
			Temperature:  0.7,
			SystemPrompt: DefaultSystemPrompt,
		},
		Watch: Watch{
			Cron:     "*/5 * * * *",
			InboxDir: "inbox",
		},
		Database: Database{
			Path: "data/sqlite.db",
		},
		Log: Log{
			Dir:   "logs",
			Level: "info",
		},
	}
}

// LoadFromFile 读取配置文件并从环境变量加载 API Key
// 配置文件不存在时使用默认配置
func LoadFromFile(filename string) (*Config, error) {
	c := Default()

	data, err := os.ReadFile(filename)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, err
		}
	}

	if err := LoadEnv(); err != nil {
		return nil, err
	}
	c.Deepgram.APIKey = strings.TrimSpace(os.Getenv(EnvDeepgramKey))
	c.LLM.APIKey = strings.TrimSpace(os.Getenv(EnvOpenAIKey))

	// 验证配置
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// LoadEnv 加载当前目录下的 .env 文件，已存在的环境变量不会被覆盖
func LoadEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("加载 .env 文件失败: %w", err)
	}
	return nil
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	// 验证 API Key
	if c.Deepgram.APIKey == "" {
		return fmt.Errorf("环境变量 %s 不能为空", EnvDeepgramKey)
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("环境变量 %s 不能为空", EnvOpenAIKey)
	}

	// 验证 Deepgram
	if c.Deepgram.BaseURL == "" {
		return fmt.Errorf("Deepgram.BaseURL 不能为空")
	}
	if c.Deepgram.Model == "" {
		return fmt.Errorf("Deepgram.Model 不能为空")
	}
	if c.Deepgram.SpeakModel == "" {
		return fmt.Errorf("Deepgram.SpeakModel 不能为空")
	}
	if c.Deepgram.OutputFile == "" {
		return fmt.Errorf("Deepgram.OutputFile 不能为空")
	}
	if c.Deepgram.TimeoutSeconds < 0 {
		return fmt.Errorf("Deepgram.TimeoutSeconds 必须 >= 0")
	}

	// 验证 LLM
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("LLM.BaseURL 不能为空")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("LLM.Model 不能为空")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("LLM.Temperature 必须在 0 到 2 之间")
	}
	if c.LLM.MaxTokens < 0 {
		return fmt.Errorf("LLM.MaxTokens 必须 >= 0")
	}

	// 验证 Watch
	if c.Watch.Cron == "" {
		return fmt.Errorf("Watch.Cron 不能为空")
	}
	if c.Watch.InboxDir == "" {
		return fmt.Errorf("Watch.InboxDir 不能为空")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("Database.Path 不能为空")
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("Log.Level 必须是 'debug', 'info', 'warn' 或 'error'")
	}

	if c.Sock5Proxy.Enable && (c.Sock5Proxy.Host == "" || c.Sock5Proxy.Port == 0) {
		return fmt.Errorf("启用 Sock5Proxy 时 Host 和 Port 不能为空")
	}

	return nil
}
