package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fachebot/talk-digest/internal/config"
	"github.com/fachebot/talk-digest/internal/logger"
	"github.com/fachebot/talk-digest/internal/svc"
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "talk-digest",
	Short: "Summarize recorded customer calls with Deepgram and an OpenAI-compatible LLM",
	Long: `talk-digest transcribes call recordings, extracts the topics and a short summary,
optionally drafts a follow-up reply and speaks the summary back to a WAV file.
Requires DG_API_KEY and OPENAI_API_KEY in the environment or a .env file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute 运行根命令，失败时以非零状态退出
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Errorf("Exception: %v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "f", "etc/config.yaml", "the config file")

	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newSpeakCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newHistoryCmd())
}

// loadServiceContext 读取配置、初始化日志并创建服务上下文
// 缺少 API Key 时在此处失败，不做任何后续工作
func loadServiceContext(ctx context.Context) (*svc.ServiceContext, error) {
	c, err := config.LoadFromFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}
	if err := logger.Setup(c.Log.Dir, c.Log.Level); err != nil {
		return nil, err
	}
	return svc.NewServiceContext(ctx, c)
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
