package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

const DefaultBaseURL = "https://api.telegram.org"

// Sender 通过 Bot API 的 sendMessage 推送一条消息。
//
// 约束：Send 永远不返回 error、不 panic、不重试；失败只记日志。
// 调用方只把它当作 sink，推送结果不影响退出码。
type Sender struct {
	Token   string
	ChatID  string
	BaseURL string
	HTTP    *http.Client
	Logger  *zap.Logger
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send 推送 text（Markdown），成功返回 true。
func (s *Sender) Send(ctx context.Context, text string) (sent bool) {
	lg := s.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	defer func() {
		if p := recover(); p != nil {
			lg.Error("❌ 发送 Telegram 消息失败", zap.String("error", s.redact(fmt.Sprint(p))))
			sent = false
		}
	}()

	token := strings.TrimSpace(s.Token)
	chatID := strings.TrimSpace(s.ChatID)
	if token == "" || chatID == "" {
		lg.Warn("⚠️ TG_BOT_TOKEN 或 TG_CHAT_ID 未设置，跳过发送 Telegram 消息")
		return false
	}

	hc := s.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	base := strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}

	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("text", text)
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/bot"+token+"/sendMessage", strings.NewReader(form.Encode()))
	if err != nil {
		lg.Error("❌ 发送 Telegram 消息失败", zap.String("error", s.redact(err.Error())))
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := hc.Do(req)
	if err != nil {
		// *url.Error 的文本包含完整 URL（含 bot token），必须脱敏。
		lg.Error("❌ 发送 Telegram 消息失败", zap.String("error", s.redact(err.Error())))
		return false
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var ar apiResponse
	_ = json.Unmarshal(b, &ar)

	if resp.StatusCode < 200 || resp.StatusCode > 299 || !ar.OK {
		desc := strings.TrimSpace(ar.Description)
		if desc == "" {
			desc = strings.TrimSpace(string(b))
		}
		lg.Error("❌ 发送 Telegram 消息时发生 HTTP 错误",
			zap.Int("status", resp.StatusCode),
			zap.String("response", s.redact(desc)),
		)
		return false
	}

	lg.Info("✅ Telegram 消息已发送")
	return true
}

func (s *Sender) redact(msg string) string {
	token := strings.TrimSpace(s.Token)
	if token == "" {
		return msg
	}
	return strings.ReplaceAll(msg, token, "<redacted>")
}
