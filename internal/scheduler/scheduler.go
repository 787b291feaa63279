package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fachebot/talk-digest/internal/analyzer"
	"github.com/fachebot/talk-digest/internal/config"
	"github.com/fachebot/talk-digest/internal/deepgram"
	"github.com/fachebot/talk-digest/internal/logger"
	"github.com/fachebot/talk-digest/internal/model"
	"github.com/robfig/cron/v3"
	"github.com/samber/lo"
)

// fileAnalyzer 分析单个音频文件（便于测试注入 mock）
type fileAnalyzer interface {
	AnalyzeFile(ctx context.Context, path string, opts analyzer.Options) (*analyzer.Report, error)
}

// analysisLookup 查询已结束的分析记录（便于测试注入 mock）
type analysisLookup interface {
	GetFinishedByHash(ctx context.Context, audioHash string) (*model.Analysis, error)
	MarkStaleFailed(ctx context.Context) (int64, error)
}

// locUTC cron 表达式按 UTC 解释
var locUTC = time.UTC

// summarySuffix 语音摘要文件的后缀，扫描时忽略这类文件
const summarySuffix = ".summary.wav"

type Scheduler struct {
	cron      *cron.Cron
	analyzer  fileAnalyzer
	records   analysisLookup
	config    *config.Watch
	options   analyzer.Options
	speechDir string
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	scanMu    sync.Mutex
}

func NewScheduler(
	a *analyzer.Analyzer,
	records *model.AnalysisModel,
	cfg *config.Watch,
	speechDir string,
) *Scheduler {
	return newScheduler(a, records, cfg, speechDir)
}

// newScheduler 每个录音的语音摘要写入 speechDir 下的 <文件名>.summary.wav
func newScheduler(a fileAnalyzer, records analysisLookup, cfg *config.Watch, speechDir string) *Scheduler {
	if speechDir == "" {
		speechDir = "."
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(locUTC)),
		analyzer: a,
		records:  records,
		config:   cfg,
		options: analyzer.Options{
			Reply: cfg.Reply,
			Speak: cfg.Speak,
		},
		speechDir: speechDir,
	}
}

// Start 启动调度器
func (s *Scheduler) Start() error {
	if err := os.MkdirAll(s.config.InboxDir, 0755); err != nil {
		return fmt.Errorf("创建收件目录失败: %w", err)
	}

	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	ctx := s.ctx
	s.mu.Unlock()

	// 注册收件目录扫描任务
	_, err := s.cron.AddFunc(s.config.Cron, func() {
		if _, err := s.ScanInbox(ctx); err != nil {
			logger.Errorf("[Scheduler] 扫描收件目录失败: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("注册扫描任务失败: %w", err)
	}

	// 上次退出时未完成的分析标记为 interrupted，下次扫描会重新分析
	if n, err := s.records.MarkStaleFailed(ctx); err != nil {
		logger.Errorf("[Scheduler] 恢复未完成的分析失败: %v", err)
	} else if n > 0 {
		logger.Warnf("[Scheduler] %d 条未完成的分析已标记为失败", n)
	}

	s.cron.Start()
	logger.Infof("[Scheduler] 调度器已启动，扫描任务: %s, 目录: %s", s.config.Cron, s.config.InboxDir)

	// 启动时立即扫描一次
	go func() {
		if _, err := s.ScanInbox(ctx); err != nil {
			logger.Errorf("[Scheduler] 扫描收件目录失败: %v", err)
		}
	}()

	return nil
}

// Stop 停止调度器
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()

	// 等待进行中的扫描结束
	s.scanMu.Lock()
	s.scanMu.Unlock()
	logger.Infof("[Scheduler] 调度器已停止")
}

// ScanInbox 分析收件目录中尚未分析过的音频文件，返回本次分析成功的文件数
// 已成功或已失败的文件不再重试，中途退出的除外
// 同一时间只有一次扫描在运行，文件按名称顺序逐个处理
func (s *Scheduler) ScanInbox(ctx context.Context) (int, error) {
	if !s.scanMu.TryLock() {
		logger.Debugf("[Scheduler] 上一次扫描尚未结束，跳过")
		return 0, nil
	}
	defer s.scanMu.Unlock()

	files, err := listAudioFiles(s.config.InboxDir)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, path := range files {
		select {
		case <-ctx.Done():
			logger.Infof("[Scheduler] 扫描已取消")
			return processed, ctx.Err()
		default:
		}

		hash, err := analyzer.HashFile(path)
		if err != nil {
			logger.Errorf("[Scheduler] 读取文件失败 (%s): %v", path, err)
			continue
		}
		prev, err := s.records.GetFinishedByHash(ctx, hash)
		if err == nil {
			logger.Debugf("[Scheduler] 跳过已分析的文件 %s (status=%s)", path, prev.Status)
			continue
		}
		if !errors.Is(err, model.ErrNotFound) {
			logger.Errorf("[Scheduler] 查询分析记录失败 (%s): %v", path, err)
			continue
		}

		opts := s.options
		opts.AudioHash = hash
		opts.SpeechPath = s.speechPathFor(path)
		report, err := s.analyzer.AnalyzeFile(ctx, path, opts)
		if err != nil {
			logger.Errorf("[Scheduler] %v", err)
			continue
		}
		processed++
		logger.Infof("[Scheduler] %s 话题: %s", filepath.Base(path), report.Topics)
		logger.Infof("[Scheduler] %s 摘要: %s", filepath.Base(path), report.Summary)
	}

	if processed > 0 {
		logger.Infof("[Scheduler] 本次扫描完成 %d 个文件", processed)
	}
	return processed, nil
}

func (s *Scheduler) speechPathFor(audioPath string) string {
	base := filepath.Base(audioPath)
	return filepath.Join(s.speechDir, strings.TrimSuffix(base, filepath.Ext(base))+summarySuffix)
}

// listAudioFiles 按名称顺序列出目录下的音频文件（不递归），跳过语音摘要文件
func listAudioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("读取收件目录失败: %w", err)
	}

	audio := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		if e.IsDir() || !deepgram.IsAudioFile(e.Name()) || strings.HasSuffix(e.Name(), summarySuffix) {
			return "", false
		}
		return filepath.Join(dir, e.Name()), true
	})
	sort.Strings(audio)
	return audio, nil
}
