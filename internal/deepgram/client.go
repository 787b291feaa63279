package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fachebot/talk-digest/internal/config"
	"github.com/fachebot/talk-digest/internal/logger"
	"github.com/fachebot/talk-digest/internal/transcript"
)

var (
	// ErrEmptyAudio 音频内容为空
	ErrEmptyAudio = errors.New("deepgram: empty audio")
	// ErrEmptyText 待合成文本为空
	ErrEmptyText = errors.New("deepgram: empty text")
)

// APIError Deepgram 返回的非 2xx 响应
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("deepgram error: status %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建 Deepgram 客户端，transport 为 nil 时使用默认 Transport
func NewClient(cfg *config.Deepgram, transport *http.Transport) *Client {
	httpClient := &http.Client{
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
	if transport != nil {
		httpClient.Transport = transport
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
	}
}

// Transcribe 提交预录音频并返回原始转写结果
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string, opts ListenOptions) (transcript.Transcript, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	endpoint := c.baseURL + "/v1/listen?" + opts.query().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(audio))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", mimeType)

	logger.Debugf("[Deepgram] 提交转写请求, bytes=%d, model=%s", len(audio), opts.Model)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取 deepgram 响应失败: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return transcript.Parse(body)
}

// TranscribeFile 读取音频文件并转写，Content-Type 按扩展名推断
func (c *Client) TranscribeFile(ctx context.Context, path string, opts ListenOptions) (transcript.Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}
	return c.Transcribe(ctx, data, MimeTypeForPath(path), opts)
}

// Speak 将文本合成为语音并写入 outPath
func (c *Client) Speak(ctx context.Context, text string, opts SpeakOptions, outPath string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}

	endpoint := c.baseURL + "/v1/speak?" + opts.query().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deepgram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	n, err := writeFileAtomic(outPath, resp.Body)
	if err != nil {
		return fmt.Errorf("写入音频文件失败: %w", err)
	}
	logger.Debugf("[Deepgram] 语音已写入 %s, bytes=%d", outPath, n)
	return nil
}

// writeFileAtomic 先写入同目录下的临时文件，完整写完后再替换 path
// 写入中途出错时 path 保持原样
func writeFileAtomic(path string, r io.Reader) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return n, err
	}
	if err := tmp.Close(); err != nil {
		return n, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return n, err
	}
	return n, nil
}

// MimeTypeForPath 根据扩展名返回音频的 Content-Type
func MimeTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	case ".webm":
		return "audio/webm"
	default:
		return "application/octet-stream"
	}
}

// IsAudioFile 判断文件扩展名是否为支持的音频格式
func IsAudioFile(path string) bool {
	return MimeTypeForPath(path) != "application/octet-stream"
}
