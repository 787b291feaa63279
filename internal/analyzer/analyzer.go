package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/fachebot/talk-digest/internal/deepgram"
	"github.com/fachebot/talk-digest/internal/llm"
	"github.com/fachebot/talk-digest/internal/logger"
	"github.com/fachebot/talk-digest/internal/model"
	"github.com/fachebot/talk-digest/internal/transcript"
)

// speechClient 语音转写与合成（便于测试注入 mock）
type speechClient interface {
	TranscribeFile(ctx context.Context, path string, opts deepgram.ListenOptions) (transcript.Transcript, error)
	Speak(ctx context.Context, text string, opts deepgram.SpeakOptions, outPath string) error
}

// assistant 生成客服回复（便于测试注入 mock）
type assistant interface {
	Ask(ctx context.Context, prompt string) string
}

// recordStore 持久化分析记录（便于测试注入 mock）
type recordStore interface {
	Create(ctx context.Context, audioPath, audioHash string) (*model.Analysis, error)
	MarkCompleted(ctx context.Context, id string, result *model.AnalysisResult) error
	MarkFailed(ctx context.Context, id string, errorMsg string) error
}

// Options 单次分析的可选步骤
type Options struct {
	Reply      bool   // 生成客服回复
	Speak      bool   // 合成语音摘要
	SpeechPath string // 语音摘要输出文件
	AudioHash  string // 已计算好的文件 sha256，为空时由 AnalyzeFile 计算
}

// Report 分析结果
type Report struct {
	ID         string
	AudioPath  string
	AudioHash  string
	Topics     transcript.TopicSet
	Intents    transcript.TopicSet
	Sentiment  string
	Summary    string
	Reply      string
	SpeechPath string
}

type Analyzer struct {
	speech        speechClient
	assistant     assistant
	store         recordStore
	listenOptions deepgram.ListenOptions
	speakOptions  deepgram.SpeakOptions
}

func NewAnalyzer(
	speech *deepgram.Client,
	assistant *llm.Client,
	store *model.AnalysisModel,
	listenOptions deepgram.ListenOptions,
	speakOptions deepgram.SpeakOptions,
) *Analyzer {
	return &Analyzer{
		speech:        speech,
		assistant:     assistant,
		store:         store,
		listenOptions: listenOptions,
		speakOptions:  speakOptions,
	}
}

// AnalyzeFile 转写音频文件，提取话题和摘要，按需生成回复和语音摘要，并保存记录
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string, opts Options) (*Report, error) {
	hash := opts.AudioHash
	if hash == "" {
		var err error
		if hash, err = HashFile(path); err != nil {
			return nil, err
		}
	}

	record, err := a.store.Create(ctx, path, hash)
	if err != nil {
		return nil, err
	}
	logger.Infof("[Analyzer] 开始分析 %s (id=%s)", path, record.ID)

	report, err := a.analyze(ctx, path, opts)
	if err != nil {
		if markErr := a.store.MarkFailed(ctx, record.ID, err.Error()); markErr != nil {
			logger.Errorf("[Analyzer] 标记失败状态出错 (id=%s): %v", record.ID, markErr)
		}
		return nil, fmt.Errorf("分析 %s 失败: %w", path, err)
	}
	report.ID = record.ID
	report.AudioPath = path
	report.AudioHash = hash

	err = a.store.MarkCompleted(ctx, record.ID, &model.AnalysisResult{
		Topics:     report.Topics.Sorted(),
		Summary:    report.Summary,
		Reply:      report.Reply,
		SpeechPath: report.SpeechPath,
	})
	if err != nil {
		return nil, fmt.Errorf("保存分析结果失败: %w", err)
	}

	logger.Infof("[Analyzer] 完成分析 %s，共 %d 个话题", path, report.Topics.Len())
	return report, nil
}

func (a *Analyzer) analyze(ctx context.Context, path string, opts Options) (*Report, error) {
	t, err := a.speech.TranscribeFile(ctx, path, a.listenOptions)
	if err != nil {
		return nil, fmt.Errorf("转写失败: %w", err)
	}

	report, err := Summarize(t)
	if err != nil {
		return nil, err
	}

	if opts.Reply {
		report.Reply = a.assistant.Ask(ctx, llm.ReplyPrompt(report.Topics.Sorted(), report.Summary))
	}

	if opts.Speak {
		out := opts.SpeechPath
		if out == "" {
			out = "output.wav"
		}
		if err := a.speech.Speak(ctx, report.Summary, a.speakOptions, out); err != nil {
			return nil, fmt.Errorf("合成语音摘要失败: %w", err)
		}
		report.SpeechPath = out
	}

	return report, nil
}

// Summarize 从转写结果中提取话题和摘要
// 意图和情感是可选字段，缺失时留空
func Summarize(t transcript.Transcript) (*Report, error) {
	topics, err := transcript.ExtractTopics(t)
	if err != nil {
		return nil, fmt.Errorf("提取话题失败: %w", err)
	}
	summary, err := transcript.ExtractSummary(t)
	if err != nil {
		return nil, fmt.Errorf("提取摘要失败: %w", err)
	}

	report := &Report{
		Topics:  topics,
		Summary: summary,
	}

	if intents, err := transcript.ExtractIntents(t); err == nil {
		report.Intents = intents
	} else {
		logger.Debugf("[Analyzer] 转写结果不含意图: %v", err)
	}
	if sentiment, err := transcript.ExtractSentiment(t); err == nil {
		report.Sentiment = sentiment
	}
	return report, nil
}

// HashFile 计算文件内容的 sha256
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("read audio file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read audio file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
