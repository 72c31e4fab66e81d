package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/John-Robertt/koyeb-alive/internal/account"
	"github.com/John-Robertt/koyeb-alive/internal/app/run"
	"github.com/John-Robertt/koyeb-alive/internal/config"
	"github.com/John-Robertt/koyeb-alive/internal/domain"
	"github.com/John-Robertt/koyeb-alive/internal/infra/fsx"
	"github.com/John-Robertt/koyeb-alive/internal/infra/httpx"
	"github.com/John-Robertt/koyeb-alive/internal/koyeb"
	"github.com/John-Robertt/koyeb-alive/internal/logx"
	"github.com/John-Robertt/koyeb-alive/internal/notify/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute 运行 CLI 并返回进程退出码：0 成功，1 全部失败/致命配置错误，2 参数错误。
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	code := 0
	root := newRootCmd(stdout, stderr, &code)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "参数错误：%v\n\n", err)
		_ = root.Usage()
		return 2
	}
	return code
}

func newRootCmd(stdout, stderr io.Writer, code *int) *cobra.Command {
	root := &cobra.Command{
		Use:           "koyeb-alive",
		Short:         "Koyeb 账户保活：用 PAT 检查账户状态并推送 Telegram 报告",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.AddCommand(newRunCmd(stdout, stderr, code))
	return root
}

func newRunCmd(stdout, stderr io.Writer, code *int) *cobra.Command {
	var cli config.CLIArgs

	cmd := &cobra.Command{
		Use:   "run",
		Short: "逐个验证 KOYEB_LOGIN 中的账户并推送报告",
		Long: `逐个验证 KOYEB_LOGIN 中的账户并推送报告。

环境变量：
  KOYEB_LOGIN   必填，每行一个 email:PAT
  TG_BOT_TOKEN  可选，Telegram bot token
  TG_CHAT_ID    可选，Telegram chat id

stdout 非终端时只输出一个 BatchReport JSON；日志走 stderr。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli.PaceSet = cmd.Flags().Changed("pace")
			cli.TimeoutSet = cmd.Flags().Changed("timeout")
			*code = runVerify(cmd.Context(), cli, stdout, stderr)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cli.ConfigFile, "config", "", "配置文件（json/yaml/toml，可选）")
	f.DurationVar(&cli.Pace, "pace", config.DefaultPace, "每次验证前的等待时间")
	f.DurationVar(&cli.Timeout, "timeout", config.DefaultTimeout, "单个 HTTP 请求的超时")
	f.StringSliceVar(&cli.Only, "only", nil, "只验证 email 匹配这些 glob 的账户（可重复）")
	f.StringVar(&cli.ReportPath, "report", "", "把 BatchReport JSON 写入该文件")
	f.BoolVarP(&cli.Verbose, "verbose", "v", false, "输出 debug 日志")
	return cmd
}

func runVerify(ctx context.Context, cli config.CLIArgs, stdout, stderr io.Writer) int {
	eff, cfgErr := config.LoadEffective(cli)

	interactive := isTTY(stderr)
	level := zapcore.InfoLevel
	switch {
	case eff.Verbose:
		level = zapcore.DebugLevel
	case interactive:
		// 交互终端下过程由进度条展示，日志只保留 warning 以上。
		level = zapcore.WarnLevel
	}
	lg := logx.New(stderr, logx.Options{Location: eff.Location, Level: level})
	defer func() { _ = lg.Sync() }()

	hc, err := httpx.NewClient(httpx.Options{Timeout: eff.Timeout, ProxyURL: eff.ProxyURL})
	if err != nil {
		// 只会在配置已出错时发生（proxy_url 校验在 LoadEffective 内）；退回直连以便推送失败消息。
		hc, _ = httpx.NewClient(httpx.Options{Timeout: eff.Timeout})
	}

	runner := &run.Runner{
		Verifier: &koyeb.Client{BaseURL: eff.KoyebBaseURL, HTTP: hc},
		Notifier: &telegram.Sender{
			Token:   eff.TGBotToken,
			ChatID:  eff.TGChatID,
			BaseURL: eff.TelegramBaseURL,
			HTTP:    hc,
			Logger:  lg,
		},
		Pace:     eff.Pace,
		Location: eff.Location,
		Logger:   lg,
	}

	accounts, err := loadAccounts(eff, cfgErr, lg)
	if err != nil {
		out := runner.Abort(ctx, err)
		return out.ExitCode
	}

	if interactive {
		runner.Observer = newProgressUI(stderr)
	}
	out := runner.Execute(ctx, accounts)

	if eff.ReportPath != "" {
		if err := fsx.WriteJSON(eff.ReportPath, out.Report); err != nil {
			lg.Error("❌ 写入 report 失败", zap.String("path", eff.ReportPath), zap.Error(err))
		}
	}
	emitReport(stdout, stderr, out.Report)
	return out.ExitCode
}

func loadAccounts(eff config.EffectiveConfig, cfgErr error, lg *zap.Logger) ([]domain.Account, error) {
	if cfgErr != nil {
		return nil, cfgErr
	}
	accounts, err := account.Parse(eff.KoyebLogin, lg)
	if err != nil {
		return nil, err
	}
	return account.Filter(accounts, eff.Only)
}

// emitReport：stdout 是终端时打印一行摘要；否则 stdout 只输出一个 BatchReport JSON，摘要走 stderr。
func emitReport(stdout, stderr io.Writer, rep domain.BatchReport) {
	line := fmt.Sprintf("完成：total=%d success=%d failed=%d (%s)\n",
		rep.Summary.Total, rep.Summary.Success, rep.Summary.Failed,
		rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond),
	)
	if isTTY(stdout) {
		fmt.Fprint(stdout, line)
		return
	}
	enc := json.NewEncoder(stdout)
	_ = enc.Encode(rep)
	fmt.Fprint(stderr, line)
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
