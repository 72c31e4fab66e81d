package main

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/John-Robertt/koyeb-alive/internal/app/run"
	"github.com/John-Robertt/koyeb-alive/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 在交互终端上用进度条展示验证过程，只写 stderr。
type progressUI struct {
	w   io.Writer
	bar *progressbar.ProgressBar

	ok   int
	fail int
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

func (p *progressUI) OnStart(total int) {
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("验证中..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionShowElapsedTimeOnFinish(),
	)
}

func (p *progressUI) OnItemDone(idx, total int, res domain.VerificationResult) {
	if res.OK() {
		p.ok++
	} else {
		p.fail++
	}
	if p.bar == nil {
		return
	}
	p.bar.Describe(formatItem(res))
	_ = p.bar.Add(1)
}

func (p *progressUI) OnFinish(rep domain.BatchReport) {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
	fmt.Fprintf(p.w, "\n✅ %d | ❌ %d\n", p.ok, p.fail)
}

func formatItem(res domain.VerificationResult) string {
	email := res.Account.Email
	if email == "" {
		email = "<未提供邮箱>"
	}
	if res.OK() {
		return "✅ " + email
	}
	return fmt.Sprintf("❌ %s %s", email, res.ErrorCode)
}
