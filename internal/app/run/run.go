package run

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/John-Robertt/koyeb-alive/internal/domain"
	"github.com/John-Robertt/koyeb-alive/internal/report"
)

// State 是一次运行的状态：Pending -> Processing -> Done | FatalAbort。
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateDone       State = "done"
	StateFatalAbort State = "fatal_abort"
)

// Verifier 验证单个账户；实现必须把所有错误转换为失败结果。
type Verifier interface {
	Verify(ctx context.Context, acc domain.Account) domain.VerificationResult
}

// Notifier 是推送 sink；返回值只用于日志，不影响退出码。
type Notifier interface {
	Send(ctx context.Context, text string) bool
}

// Runner 顺序执行一次批量验证。零值不可用：Verifier 必填。
type Runner struct {
	Verifier Verifier
	Notifier Notifier // nil 表示不推送

	// Pace 是每次验证前的礼貌性等待（对远端限速，不是重试）。
	Pace time.Duration
	// Location 决定推送消息里的时间展示。
	Location *time.Location

	Logger   *zap.Logger
	Observer Observer

	// 以下用于测试替换；nil 时使用真实实现。
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error

	state State
}

// Outcome 是一次运行的最终结果。
type Outcome struct {
	State    State
	Report   domain.BatchReport
	ExitCode int
	Notified bool
}

// State 返回当前状态；未运行时为 StatePending。
func (r *Runner) State() State {
	if r.state == "" {
		return StatePending
	}
	return r.state
}

// Execute 按顺序验证 accounts，汇总并推送一次报告。
// 单个账户的任何失败都只体现在 report 里，不会中断批次。
func (r *Runner) Execute(ctx context.Context, accounts []domain.Account) Outcome {
	runID := uuid.NewString()
	lg := r.logger().With(zap.String("run_id", runID))
	r.transition(lg, StateProcessing)

	total := len(accounts)
	rep := domain.BatchReport{
		RunID:     runID,
		StartedAt: r.now(),
		Results:   make([]domain.VerificationResult, 0, total),
	}
	if r.Observer != nil {
		r.Observer.OnStart(total)
	}

	for i, acc := range accounts {
		idx := i + 1
		progress := fmt.Sprintf("%d/%d", idx, total)

		var res domain.VerificationResult
		if acc.Email == "" || acc.Token == "" {
			// 不发请求，也就不需要礼貌性等待。
			lg.Warn("⚠️ 账户信息不完整，已跳过", zap.String("progress", progress))
			res = r.verify(ctx, acc)
		} else {
			lg.Info("🚀 正在处理账户", zap.String("progress", progress), zap.String("email", acc.Email))
			if err := r.sleep(ctx, r.Pace); err != nil {
				lg.Warn("⚠️ 等待被中断", zap.Error(err))
			}
			res = r.verify(ctx, acc)
		}

		if res.OK() {
			lg.Info("✅ 验证成功", zap.String("email", acc.Email), zap.String("detail", res.Detail), zap.Duration("took", res.Duration))
		} else {
			lg.Warn("❌ 验证失败", zap.String("email", acc.Email), zap.String("error_code", res.ErrorCode), zap.String("detail", res.Detail))
		}

		rep.Results = append(rep.Results, res)
		if r.Observer != nil {
			r.Observer.OnItemDone(idx, total, res)
		}
	}

	rep.FinishedAt = r.now()
	rep.Finalize()
	if r.Observer != nil {
		r.Observer.OnFinish(rep)
	}

	msg := report.Render(rep, r.Location)
	lg.Info("📊 --- 报告预览 ---\n" + msg)
	notified := r.notify(ctx, lg, msg)

	code := rep.ExitCode()
	if code != 0 {
		lg.Error("❌ 所有账户验证失败，将以非零状态码退出")
	}
	lg.Info("🎉 执行完毕", zap.Int("total", rep.Summary.Total), zap.Int("success", rep.Summary.Success), zap.Int("failed", rep.Summary.Failed))

	r.transition(lg, StateDone)
	return Outcome{State: StateDone, Report: rep, ExitCode: code, Notified: notified}
}

// Abort 处理运行前的致命错误（配置错误等）：记录、best-effort 推送、退出码 1。
func (r *Runner) Abort(ctx context.Context, err error) Outcome {
	runID := uuid.NewString()
	lg := r.logger().With(zap.String("run_id", runID))
	lg.Error("❌ 程序初始化失败", zap.Error(err))
	r.transition(lg, StateFatalAbort)

	now := r.now()
	rep := domain.BatchReport{RunID: runID, StartedAt: now, FinishedAt: now}
	rep.Finalize()

	notified := r.notify(ctx, lg, report.RenderFatal(err))
	return Outcome{State: StateFatalAbort, Report: rep, ExitCode: 1, Notified: notified}
}

// verify 再兜一层 panic：Verifier 的契约是不 panic，但一条坏账户不能拖垮整批。
func (r *Runner) verify(ctx context.Context, acc domain.Account) (res domain.VerificationResult) {
	defer func() {
		if p := recover(); p != nil {
			res = domain.Failure(acc, domain.ErrCodeUnexpected, fmt.Sprintf("unexpected error: %v", p))
		}
	}()
	return r.Verifier.Verify(ctx, acc)
}

func (r *Runner) notify(ctx context.Context, lg *zap.Logger, msg string) bool {
	if r.Notifier == nil {
		lg.Warn("⚠️ 未配置推送，跳过发送报告")
		return false
	}
	// 即使 ctx 已取消（例如收到 SIGINT），也尽量把已有结果推送出去；超时由 HTTP client 兜底。
	return r.Notifier.Send(context.WithoutCancel(ctx), msg)
}

func (r *Runner) transition(lg *zap.Logger, to State) {
	lg.Debug("state", zap.String("from", string(r.State())), zap.String("to", string(to)))
	r.state = to
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
