package svc

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"

	"github.com/fachebot/talk-digest/internal/analyzer"
	"github.com/fachebot/talk-digest/internal/config"
	"github.com/fachebot/talk-digest/internal/deepgram"
	"github.com/fachebot/talk-digest/internal/llm"
	"github.com/fachebot/talk-digest/internal/logger"
	"github.com/fachebot/talk-digest/internal/model"

	"golang.org/x/net/proxy"
)

type ServiceContext struct {
	Config         *config.Config
	DB             *sql.DB
	TransportProxy *http.Transport
	AnalysisModel  *model.AnalysisModel
	SpeechClient   *deepgram.Client
	LLMClient      *llm.Client
	Analyzer       *analyzer.Analyzer
}

func NewServiceContext(ctx context.Context, c *config.Config) (*ServiceContext, error) {
	// 创建SOCKS5代理
	transportProxy, err := NewProxyTransport(&c.Sock5Proxy)
	if err != nil {
		return nil, err
	}

	// 创建数据库连接
	db, err := model.OpenSQLite(ctx, c.Database.Path)
	if err != nil {
		return nil, err
	}

	analysisModel := model.NewAnalysisModel(db)
	speechClient := deepgram.NewClient(&c.Deepgram, transportProxy)
	llmClient := llm.NewClient(&c.LLM, transportProxy)

	svcCtx := &ServiceContext{
		Config:         c,
		DB:             db,
		TransportProxy: transportProxy,
		AnalysisModel:  analysisModel,
		SpeechClient:   speechClient,
		LLMClient:      llmClient,
		Analyzer: analyzer.NewAnalyzer(
			speechClient,
			llmClient,
			analysisModel,
			deepgram.ListenOptionsFromConfig(&c.Deepgram),
			deepgram.SpeakOptionsFromConfig(&c.Deepgram),
		),
	}
	return svcCtx, nil
}

// NewProxyTransport 根据配置创建走 SOCKS5 代理的 Transport，未启用时返回 nil
func NewProxyTransport(c *config.Sock5Proxy) (*http.Transport, error) {
	if !c.Enable {
		return nil, nil
	}

	socks5Proxy := fmt.Sprintf("%s:%d", c.Host, c.Port)
	dialer, err := proxy.SOCKS5("tcp", socks5Proxy, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("创建SOCKS5代理失败: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		transport.DialContext = cd.DialContext
	} else {
		transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	}
	return transport, nil
}

func (svcCtx *ServiceContext) Close() {
	if err := svcCtx.DB.Close(); err != nil {
		logger.Errorf("关闭数据库失败, %v", err)
	}
}
