package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/fachebot/talk-digest/internal/config"
	"github.com/fachebot/talk-digest/internal/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listenResponse = `{"results":{"topics":{"segments":[{"topics":[{"topic":"billing"}]}]},"summary":{"short":"Customer asked about billing."}}}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default().Deepgram
	cfg.APIKey = "dg-key"
	cfg.BaseURL = srv.URL
	return NewClient(&cfg, nil)
}

func TestTranscribe(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/listen", r.URL.Path)
		assert.Equal(t, "Token dg-key", r.Header.Get("Authorization"))
		assert.Equal(t, "audio/mp4", r.Header.Get("Content-Type"))

		q := r.URL.Query()
		assert.Equal(t, "nova-2", q.Get("model"))
		assert.Equal(t, "en", q.Get("language"))
		assert.Equal(t, "v2", q.Get("summarize"))
		assert.Equal(t, "true", q.Get("topics"))
		assert.Equal(t, "true", q.Get("intents"))
		assert.Equal(t, "true", q.Get("smart_format"))
		assert.Equal(t, "true", q.Get("sentiment"))

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "audio-bytes", string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(listenResponse))
	})

	opts := ListenOptionsFromConfig(&config.Default().Deepgram)
	tr, err := client.Transcribe(context.Background(), []byte("audio-bytes"), "audio/mp4", opts)
	require.NoError(t, err)

	summary, err := transcript.ExtractSummary(tr)
	require.NoError(t, err)
	assert.Equal(t, "Customer asked about billing.", summary)
}

func TestTranscribe_DisabledFlagsOmitted(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.False(t, q.Has("topics"))
		assert.False(t, q.Has("summarize"))
		assert.Equal(t, "nova-2", q.Get("model"))
		_, _ = w.Write([]byte(`{"results":{}}`))
	})

	_, err := client.Transcribe(context.Background(), []byte("x"), "", ListenOptions{Model: "nova-2"})
	require.NoError(t, err)
}

func TestTranscribe_EmptyAudio(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("不应发出请求")
	})

	_, err := client.Transcribe(context.Background(), nil, "audio/wav", ListenOptions{})
	assert.ErrorIs(t, err, ErrEmptyAudio)
}

func TestTranscribe_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"err_msg":"Invalid credentials."}`))
	})

	_, err := client.Transcribe(context.Background(), []byte("x"), "audio/wav", ListenOptions{})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "Invalid credentials")
}

func TestTranscribe_InvalidJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	})

	_, err := client.Transcribe(context.Background(), []byte("x"), "audio/wav", ListenOptions{})
	assert.Error(t, err)
}

func TestTranscribeFile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "audio/wav", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(listenResponse))
	})

	path := filepath.Join(t.TempDir(), "call.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0644))

	tr, err := client.TranscribeFile(context.Background(), path, ListenOptions{})
	require.NoError(t, err)
	topics, err := transcript.ExtractTopics(tr)
	require.NoError(t, err)
	assert.True(t, topics.Has("billing"))

	_, err = client.TranscribeFile(context.Background(), filepath.Join(t.TempDir(), "missing.wav"), ListenOptions{})
	assert.Error(t, err)
}

func TestSpeak(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/speak", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "aura-asteria-en", q.Get("model"))
		assert.Equal(t, "linear16", q.Get("encoding"))
		assert.Equal(t, "wav", q.Get("container"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Customer asked about billing.", payload["text"])

		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFF....WAVE"))
	})

	out := filepath.Join(t.TempDir(), "nested", "output.wav")
	opts := SpeakOptionsFromConfig(&config.Default().Deepgram)
	err := client.Speak(context.Background(), "Customer asked about billing.", opts, out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "RIFF....WAVE", string(data))
}

func TestSpeak_EmptyText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("不应发出请求")
	})

	err := client.Speak(context.Background(), "  ", SpeakOptions{}, filepath.Join(t.TempDir(), "out.wav"))
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestSpeak_APIErrorDoesNotCreateFile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad model"))
	})

	out := filepath.Join(t.TempDir(), "out.wav")
	err := client.Speak(context.Background(), "hello", SpeakOptions{Model: "nope"}, out)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSpeak_TruncatedBodyKeepsExistingFile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		_, _ = w.Write([]byte("RIFF....WAVE"))
	})

	dir := t.TempDir()
	out := filepath.Join(dir, "output.wav")
	require.NoError(t, os.WriteFile(out, []byte("previous summary"), 0644))

	err := client.Speak(context.Background(), "hello", SpeakOptions{Model: "aura-asteria-en"}, out)
	require.Error(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "previous summary", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "临时文件应已清理")
}

func TestMimeTypeForPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"a.wav", "audio/wav"},
		{"a.MP3", "audio/mpeg"},
		{"dir/a.m4a", "audio/mp4"},
		{"a.ogg", "audio/ogg"},
		{"a.flac", "audio/flac"},
		{"a.webm", "audio/webm"},
		{"a.txt", "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, MimeTypeForPath(tt.path))
		})
	}
	assert.True(t, IsAudioFile("x.wav"))
	assert.False(t, IsAudioFile("notes.md"))
}
