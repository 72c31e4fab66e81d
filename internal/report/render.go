package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/John-Robertt/koyeb-alive/internal/domain"
	"github.com/John-Robertt/koyeb-alive/internal/logx"
)

// Render 把 BatchReport 渲染为 Telegram Markdown 消息。
// 时间按 loc 展示；loc 为 nil 时用 UTC。
func Render(r domain.BatchReport, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}

	var b strings.Builder
	b.WriteString("🤖 *Koyeb 账户状态报告* 🤖\n")
	b.WriteString("=====================\n")
	fmt.Fprintf(&b, "⏰ 日期: %s\n", r.StartedAt.In(loc).Format(logx.TimeLayout))
	fmt.Fprintf(&b, "📊 总计: %d 个账户\n", r.Summary.Total)
	fmt.Fprintf(&b, "✅ 成功: %d 个 | ❌ 失败: %d 个\n", r.Summary.Success, r.Summary.Failed)
	b.WriteString("---------------------------\n")

	for _, res := range r.Results {
		email := strings.ReplaceAll(strings.TrimSpace(res.Account.Email), "`", "")
		if email == "" {
			b.WriteString("账户: 未提供邮箱\n")
		} else {
			fmt.Fprintf(&b, "账户: `%s`\n", email)
		}

		switch {
		case res.OK():
			fmt.Fprintf(&b, "状态: ✅ %s\n", EscapeMarkdown(res.Detail))
		case res.ErrorCode == domain.ErrCodeCredentialIncomplete:
			b.WriteString("状态: ❌ 信息不完整\n")
		default:
			fmt.Fprintf(&b, "状态: ❌ 验证失败\n  %s\n", EscapeMarkdown(res.Detail))
		}
	}
	return b.String()
}

// RenderFatal 渲染“运行前即失败”的消息（配置错误等）。
func RenderFatal(err error) string {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return "❌ 程序初始化失败: " + EscapeMarkdown(msg)
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`,
	"_", `\_`,
	"*", `\*`,
	"`", "\\`",
	"[", `\[`,
)

// EscapeMarkdown 转义 Telegram（legacy Markdown）实体外的特殊字符，
// 避免 API 返回的错误文本让整条消息解析失败。
func EscapeMarkdown(s string) string {
	return mdEscaper.Replace(s)
}
