package model

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("model: record not found")

// InterruptedMessage 进程中途退出的分析记录的错误信息，这类记录允许重新分析
const InterruptedMessage = "interrupted"

// Status 分析任务状态
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

const createAnalysisTable = `
CREATE TABLE IF NOT EXISTS analyses (
	id           TEXT PRIMARY KEY,
	audio_path   TEXT NOT NULL,
	audio_hash   TEXT NOT NULL,
	status       TEXT NOT NULL,
	topics       TEXT NOT NULL DEFAULT '[]',
	summary      TEXT NOT NULL DEFAULT '',
	reply        TEXT NOT NULL DEFAULT '',
	speech_path  TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analyses_hash ON analyses(audio_hash);
CREATE INDEX IF NOT EXISTS idx_analyses_status ON analyses(status);
`

const analysisColumns = `id, audio_path, audio_hash, status, topics, summary, reply, speech_path, error_message, created_at, updated_at`

// Analysis 一条录音的分析记录
type Analysis struct {
	ID           string
	AudioPath    string
	AudioHash    string
	Status       Status
	Topics       []string
	Summary      string
	Reply        string
	SpeechPath   string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AnalysisResult 分析完成后需要写入的字段
type AnalysisResult struct {
	Topics     []string
	Summary    string
	Reply      string
	SpeechPath string
}

type AnalysisModel struct {
	db  *sql.DB
	now func() time.Time
}

func NewAnalysisModel(db *sql.DB) *AnalysisModel {
	return &AnalysisModel{db: db, now: time.Now}
}

// Migrate 创建表和索引
func (m *AnalysisModel) Migrate(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, createAnalysisTable); err != nil {
		return fmt.Errorf("创建 analyses 表失败: %w", err)
	}
	return nil
}

// Create 创建一条处理中的分析记录
func (m *AnalysisModel) Create(ctx context.Context, audioPath, audioHash string) (*Analysis, error) {
	now := m.now().UTC()
	a := &Analysis{
		ID:        uuid.NewString(),
		AudioPath: audioPath,
		AudioHash: audioHash,
		Status:    StatusProcessing,
		Topics:    []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := m.db.ExecContext(ctx,
		`INSERT INTO analyses (id, audio_path, audio_hash, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.AudioPath, a.AudioHash, string(a.Status), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("创建分析记录失败: %w", err)
	}
	return a, nil
}

// MarkCompleted 写入分析结果并标记完成
func (m *AnalysisModel) MarkCompleted(ctx context.Context, id string, result *AnalysisResult) error {
	topics := result.Topics
	if topics == nil {
		topics = []string{}
	}
	topicsJSON, err := json.Marshal(topics)
	if err != nil {
		return err
	}

	res, err := m.db.ExecContext(ctx,
		`UPDATE analyses SET status = ?, topics = ?, summary = ?, reply = ?, speech_path = ?, error_message = '', updated_at = ? WHERE id = ?`,
		string(StatusCompleted), string(topicsJSON), result.Summary, result.Reply, result.SpeechPath, m.now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("更新分析记录失败: %w", err)
	}
	return checkAffected(res)
}

// MarkFailed 标记失败并记录错误信息
func (m *AnalysisModel) MarkFailed(ctx context.Context, id string, errorMsg string) error {
	res, err := m.db.ExecContext(ctx,
		`UPDATE analyses SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		string(StatusFailed), errorMsg, m.now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("更新分析记录失败: %w", err)
	}
	return checkAffected(res)
}

// Get 按 ID 查询
func (m *AnalysisModel) Get(ctx context.Context, id string) (*Analysis, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE id = ?`, id)
	return scanAnalysis(row)
}

// GetCompletedByHash 查询指定音频内容最近一次成功的分析
func (m *AnalysisModel) GetCompletedByHash(ctx context.Context, audioHash string) (*Analysis, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT `+analysisColumns+` FROM analyses WHERE audio_hash = ? AND status = ? ORDER BY created_at DESC LIMIT 1`,
		audioHash, string(StatusCompleted),
	)
	return scanAnalysis(row)
}

// GetFinishedByHash 查询指定音频内容最近一次已结束的分析（成功或失败）
// 因进程中途退出而标记为失败的记录不计入
func (m *AnalysisModel) GetFinishedByHash(ctx context.Context, audioHash string) (*Analysis, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT `+analysisColumns+` FROM analyses
		WHERE audio_hash = ? AND (status = ? OR (status = ? AND error_message != ?))
		ORDER BY created_at DESC LIMIT 1`,
		audioHash, string(StatusCompleted), string(StatusFailed), InterruptedMessage,
	)
	return scanAnalysis(row)
}

// ListRecent 按创建时间倒序返回最近的记录
func (m *AnalysisModel) ListRecent(ctx context.Context, limit int) ([]*Analysis, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := m.db.QueryContext(ctx,
		`SELECT `+analysisColumns+` FROM analyses ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询分析记录失败: %w", err)
	}
	defer rows.Close()

	var list []*Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// MarkStaleFailed 将残留的 processing 记录标记为失败（进程曾在分析中途退出）
func (m *AnalysisModel) MarkStaleFailed(ctx context.Context) (int64, error) {
	res, err := m.db.ExecContext(ctx,
		`UPDATE analyses SET status = ?, error_message = ?, updated_at = ? WHERE status = ?`,
		string(StatusFailed), InterruptedMessage, m.now().UTC(), string(StatusProcessing),
	)
	if err != nil {
		return 0, fmt.Errorf("更新残留记录失败: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*Analysis, error) {
	var (
		a          Analysis
		status     string
		topicsJSON string
	)
	err := row.Scan(&a.ID, &a.AudioPath, &a.AudioHash, &status, &topicsJSON, &a.Summary,
		&a.Reply, &a.SpeechPath, &a.ErrorMessage, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("读取分析记录失败: %w", err)
	}
	a.Status = Status(status)
	if err := json.Unmarshal([]byte(topicsJSON), &a.Topics); err != nil {
		return nil, fmt.Errorf("解析 topics 失败: %w", err)
	}
	return &a, nil
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
