package deepgram

import (
	"net/url"
	"strconv"

	"github.com/fachebot/talk-digest/internal/config"
)

// ListenOptions 预录音频转写参数
type ListenOptions struct {
	Model       string
	Language    string
	Summarize   string // 空字符串表示不生成摘要
	Topics      bool
	Intents     bool
	SmartFormat bool
	Sentiment   bool
}

// SpeakOptions 语音合成参数
type SpeakOptions struct {
	Model     string
	Encoding  string
	Container string
}

func ListenOptionsFromConfig(c *config.Deepgram) ListenOptions {
	return ListenOptions{
		Model:       c.Model,
		Language:    c.Language,
		Summarize:   c.Summarize,
		Topics:      c.Topics,
		Intents:     c.Intents,
		SmartFormat: c.SmartFormat,
		Sentiment:   c.Sentiment,
	}
}

func SpeakOptionsFromConfig(c *config.Deepgram) SpeakOptions {
	return SpeakOptions{
		Model:     c.SpeakModel,
		Encoding:  c.Encoding,
		Container: c.Container,
	}
}

func (o ListenOptions) query() url.Values {
	q := url.Values{}
	if o.Model != "" {
		q.Set("model", o.Model)
	}
	if o.Language != "" {
		q.Set("language", o.Language)
	}
	if o.Summarize != "" {
		q.Set("summarize", o.Summarize)
	}
	setBool(q, "topics", o.Topics)
	setBool(q, "intents", o.Intents)
	setBool(q, "smart_format", o.SmartFormat)
	setBool(q, "sentiment", o.Sentiment)
	return q
}

func (o SpeakOptions) query() url.Values {
	q := url.Values{}
	if o.Model != "" {
		q.Set("model", o.Model)
	}
	if o.Encoding != "" {
		q.Set("encoding", o.Encoding)
	}
	if o.Container != "" {
		q.Set("container", o.Container)
	}
	return q
}

func setBool(q url.Values, key string, v bool) {
	if v {
		q.Set(key, strconv.FormatBool(v))
	}
}
