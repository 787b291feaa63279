package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fachebot/talk-digest/internal/analyzer"
	"github.com/fachebot/talk-digest/internal/deepgram"
	"github.com/fachebot/talk-digest/internal/logger"
	"github.com/fachebot/talk-digest/internal/model"
	"github.com/fachebot/talk-digest/internal/scheduler"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		speak bool
		reply bool
		out   string
	)
	cmd := &cobra.Command{
		Use:   "analyze <audio-file>",
		Short: "Transcribe a recording and print its topics and summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svcCtx, err := loadServiceContext(cmd.Context())
			if err != nil {
				return err
			}
			defer svcCtx.Close()
			defer logger.Close()

			if out == "" {
				out = svcCtx.Config.Deepgram.OutputFile
			}
			report, err := svcCtx.Analyzer.AnalyzeFile(cmd.Context(), args[0], analyzer.Options{
				Reply:      reply,
				Speak:      speak,
				SpeechPath: out,
			})
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&speak, "speak", false, "write the spoken summary to the output file")
	cmd.Flags().BoolVar(&reply, "reply", false, "draft a follow-up reply with the LLM")
	cmd.Flags().StringVarP(&out, "output", "o", "", "spoken summary file (defaults to Deepgram.OutputFile)")
	return cmd
}

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Ask the customer service assistant a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svcCtx, err := loadServiceContext(cmd.Context())
			if err != nil {
				return err
			}
			defer svcCtx.Close()
			defer logger.Close()

			printf(cmd.OutOrStdout(), "%s\n", svcCtx.LLMClient.Ask(cmd.Context(), strings.Join(args, " ")))
			return nil
		},
	}
}

func newSpeakCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "speak <text>",
		Short: "Synthesize text to the output file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svcCtx, err := loadServiceContext(cmd.Context())
			if err != nil {
				return err
			}
			defer svcCtx.Close()
			defer logger.Close()

			if out == "" {
				out = svcCtx.Config.Deepgram.OutputFile
			}
			opts := deepgram.SpeakOptionsFromConfig(&svcCtx.Config.Deepgram)
			if err := svcCtx.SpeechClient.Speak(cmd.Context(), strings.Join(args, " "), opts, out); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Saved: %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "audio file (defaults to Deepgram.OutputFile)")
	return cmd
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Analyze new recordings in the inbox directory on a cron schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svcCtx, err := loadServiceContext(cmd.Context())
			if err != nil {
				return err
			}
			defer svcCtx.Close()
			defer logger.Close()

			c := svcCtx.Config
			// 语音摘要按录音分别写入 OutputFile 所在目录
			speechDir := filepath.Dir(c.Deepgram.OutputFile)
			schedulerInstance := scheduler.NewScheduler(svcCtx.Analyzer, svcCtx.AnalysisModel, &c.Watch, speechDir)
			if err := schedulerInstance.Start(); err != nil {
				return fmt.Errorf("[Scheduler] 启动调度器失败: %w", err)
			}

			// 等待程序退出
			ch := make(chan os.Signal, 2)
			signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
			<-ch

			// 优雅关闭
			logger.Infof("正在关闭服务...")
			schedulerInstance.Stop()
			logger.Infof("服务已停止")
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent analyses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svcCtx, err := loadServiceContext(cmd.Context())
			if err != nil {
				return err
			}
			defer svcCtx.Close()
			defer logger.Close()

			list, err := svcCtx.AnalysisModel.ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), list)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records")
	return cmd
}

func printReport(w io.Writer, r *analyzer.Report) {
	printf(w, "Topics: %s\n", r.Topics)
	printf(w, "Summary: %s\n", r.Summary)
	if r.Intents.Len() > 0 {
		printf(w, "Intents: %s\n", r.Intents)
	}
	if r.Sentiment != "" {
		printf(w, "Sentiment: %s\n", r.Sentiment)
	}
	if r.Reply != "" {
		printf(w, "Reply: %s\n", r.Reply)
	}
	if r.SpeechPath != "" {
		printf(w, "Speech: %s\n", r.SpeechPath)
	}
}

func printHistory(w io.Writer, list []*model.Analysis) {
	if len(list) == 0 {
		printf(w, "No analyses yet.\n")
		return
	}
	for _, a := range list {
		printf(w, "%s  %-10s  %s\n", a.CreatedAt.Local().Format("2006-01-02 15:04:05"), a.Status, a.AudioPath)
		switch a.Status {
		case model.StatusCompleted:
			printf(w, "    Topics: %s\n", strings.Join(a.Topics, ", "))
			printf(w, "    Summary: %s\n", a.Summary)
		case model.StatusFailed:
			printf(w, "    Error: %s\n", a.ErrorMessage)
		}
	}
}
