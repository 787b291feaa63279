package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
)

var (
	// ErrMissingKey 转写结果中缺少必需的键
	ErrMissingKey = errors.New("transcript: missing key")
	// ErrUnexpectedType 转写结果中某个路径的值类型不符合预期
	ErrUnexpectedType = errors.New("transcript: unexpected type")
)

// LookupError 描述一次失败的路径查找
type LookupError struct {
	Path string // 已经走过的路径，如 results.topics.segments[0]
	Key  string // 失败的键
	Err  error  // ErrMissingKey 或 ErrUnexpectedType
}

func (e *LookupError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Key)
	}
	return fmt.Sprintf("%v: %s (at %s)", e.Err, e.Key, e.Path)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// Transcript 语音服务返回的原始转写结果（解码后的 JSON 对象）
type Transcript map[string]any

// Parse 解析语音服务返回的 JSON
func Parse(data []byte) (Transcript, error) {
	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("解析转写结果失败: %w", err)
	}
	if t == nil {
		return nil, fmt.Errorf("解析转写结果失败: %w", &LookupError{Key: "results", Err: ErrMissingKey})
	}
	return t, nil
}

// TopicSet 去重后的字符串集合
type TopicSet map[string]struct{}

func (s TopicSet) Add(v string) {
	s[v] = struct{}{}
}

func (s TopicSet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

func (s TopicSet) Len() int {
	return len(s)
}

// Sorted 返回按字典序排列的元素
func (s TopicSet) Sorted() []string {
	keys := lo.Keys(s)
	sort.Strings(keys)
	return keys
}

func (s TopicSet) String() string {
	return strings.Join(s.Sorted(), ", ")
}

// ExtractTopics 收集 results.topics.segments[].topics[].topic 中出现过的所有话题
func ExtractTopics(t Transcript) (TopicSet, error) {
	return collectLabels(t, "topics", "topic")
}

// ExtractIntents 收集 results.intents.segments[].intents[].intent 中出现过的所有意图
func ExtractIntents(t Transcript) (TopicSet, error) {
	return collectLabels(t, "intents", "intent")
}

// ExtractSummary 返回 results.summary.short
func ExtractSummary(t Transcript) (string, error) {
	return lookupString(map[string]any(t), "", "results", "summary", "short")
}

// ExtractSentiment 返回 results.sentiments.average.sentiment
func ExtractSentiment(t Transcript) (string, error) {
	return lookupString(map[string]any(t), "", "results", "sentiments", "average", "sentiment")
}

// ExtractText 返回第一个声道第一个候选的完整转写文本
func ExtractText(t Transcript) (string, error) {
	channels, err := lookupSlice(map[string]any(t), "", "results", "channels")
	if err != nil {
		return "", err
	}
	if len(channels) == 0 {
		return "", &LookupError{Path: "results.channels", Key: "[0]", Err: ErrMissingKey}
	}
	channel, err := asObject(channels[0], "results.channels", "[0]")
	if err != nil {
		return "", err
	}
	alternatives, err := lookupSlice(channel, "results.channels[0]", "alternatives")
	if err != nil {
		return "", err
	}
	if len(alternatives) == 0 {
		return "", &LookupError{Path: "results.channels[0].alternatives", Key: "[0]", Err: ErrMissingKey}
	}
	alt, err := asObject(alternatives[0], "results.channels[0].alternatives", "[0]")
	if err != nil {
		return "", err
	}
	return lookupString(alt, "results.channels[0].alternatives[0]", "transcript")
}

// collectLabels 遍历 results.<section>.segments[].<section>[].<field>
func collectLabels(t Transcript, section, field string) (TopicSet, error) {
	segments, err := lookupSlice(map[string]any(t), "", "results", section, "segments")
	if err != nil {
		return nil, err
	}

	labels := make(TopicSet)
	for i, raw := range segments {
		segPath := fmt.Sprintf("results.%s.segments[%d]", section, i)
		segment, err := asObject(raw, fmt.Sprintf("results.%s.segments", section), fmt.Sprintf("[%d]", i))
		if err != nil {
			return nil, err
		}
		entries, err := lookupSlice(segment, segPath, section)
		if err != nil {
			return nil, err
		}
		for j, rawEntry := range entries {
			entryPath := fmt.Sprintf("%s.%s", segPath, section)
			entry, err := asObject(rawEntry, entryPath, fmt.Sprintf("[%d]", j))
			if err != nil {
				return nil, err
			}
			label, err := lookupString(entry, fmt.Sprintf("%s[%d]", entryPath, j), field)
			if err != nil {
				return nil, err
			}
			labels.Add(label)
		}
	}
	return labels, nil
}

func lookup(obj map[string]any, base string, keys ...string) (any, error) {
	path := base
	var cur any = obj
	for _, key := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, &LookupError{Path: path, Key: key, Err: ErrUnexpectedType}
		}
		next, exists := m[key]
		if !exists {
			return nil, &LookupError{Path: path, Key: key, Err: ErrMissingKey}
		}
		cur = next
		if path == "" {
			path = key
		} else {
			path = path + "." + key
		}
	}
	return cur, nil
}

func lookupSlice(obj map[string]any, base string, keys ...string) ([]any, error) {
	v, err := lookup(obj, base, keys...)
	if err != nil {
		return nil, err
	}
	s, ok := v.([]any)
	if !ok {
		return nil, &LookupError{Path: joinPath(base, keys[:len(keys)-1]), Key: keys[len(keys)-1], Err: ErrUnexpectedType}
	}
	return s, nil
}

func lookupString(obj map[string]any, base string, keys ...string) (string, error) {
	v, err := lookup(obj, base, keys...)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", &LookupError{Path: joinPath(base, keys[:len(keys)-1]), Key: keys[len(keys)-1], Err: ErrUnexpectedType}
	}
	return s, nil
}

func asObject(v any, path, key string) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &LookupError{Path: path, Key: key, Err: ErrUnexpectedType}
	}
	return m, nil
}

func joinPath(base string, keys []string) string {
	parts := make([]string, 0, len(keys)+1)
	if base != "" {
		parts = append(parts, base)
	}
	parts = append(parts, keys...)
	return strings.Join(parts, ".")
}
