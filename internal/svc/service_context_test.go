package svc

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fachebot/talk-digest/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProxyTransport_Disabled(t *testing.T) {
	transport, err := NewProxyTransport(&config.Sock5Proxy{})
	require.NoError(t, err)
	assert.Nil(t, transport)
}

func TestNewProxyTransport_Enabled(t *testing.T) {
	transport, err := NewProxyTransport(&config.Sock5Proxy{Host: "127.0.0.1", Port: 1080, Enable: true})
	require.NoError(t, err)
	require.NotNil(t, transport)
	assert.NotNil(t, transport.DialContext)
	assert.Nil(t, transport.Proxy)
}

func TestNewServiceContext(t *testing.T) {
	c := config.Default()
	c.Deepgram.APIKey = "dg-key"
	c.LLM.APIKey = "sk-key"
	c.Database.Path = filepath.Join(t.TempDir(), "data", "sqlite.db")

	svcCtx, err := NewServiceContext(context.Background(), c)
	require.NoError(t, err)
	defer svcCtx.Close()

	assert.NotNil(t, svcCtx.DB)
	assert.NotNil(t, svcCtx.AnalysisModel)
	assert.NotNil(t, svcCtx.SpeechClient)
	assert.NotNil(t, svcCtx.LLMClient)
	assert.NotNil(t, svcCtx.Analyzer)
	assert.Nil(t, svcCtx.TransportProxy)

	list, err := svcCtx.AnalysisModel.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}
