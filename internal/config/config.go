package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/John-Robertt/koyeb-alive/internal/logx"
)

const (
	// ErrCodeMissingCredentials 表示 KOYEB_LOGIN 未配置或为空。
	ErrCodeMissingCredentials = "config_missing_credentials"
	// ErrCodeNoAccounts 表示 KOYEB_LOGIN 中没有任何可用的 email:PAT 行。
	ErrCodeNoAccounts = "config_no_accounts"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	DefaultKoyebBaseURL    = "https://app.koyeb.com"
	DefaultTelegramBaseURL = "https://api.telegram.org"
	DefaultPace            = 10 * time.Second
	DefaultTimeout         = 30 * time.Second
	DefaultTZOffsetHours   = 8
)

// 配置键与环境变量的对应关系（环境变量名沿用旧脚本，方便直接迁移 CI secrets）。
var envKeys = map[string]string{
	"koyeb_login":       "KOYEB_LOGIN",
	"tg_bot_token":      "TG_BOT_TOKEN",
	"tg_chat_id":        "TG_CHAT_ID",
	"koyeb_base_url":    "KOYEB_BASE_URL",
	"telegram_base_url": "TELEGRAM_BASE_URL",
	"pace":              "KOYEB_PACE",
	"timeout":           "KOYEB_TIMEOUT",
	"tz_offset_hours":   "KOYEB_TZ_OFFSET",
	"proxy_url":         "KOYEB_PROXY",
	"report_path":       "KOYEB_REPORT",
}

// CLIArgs 是 CLI 暴露的覆盖项，保留“是否显式指定”的信息，
// 这样 --pace=0 才能覆盖配置文件里的 pace。
type CLIArgs struct {
	ConfigFile string

	Pace    time.Duration
	PaceSet bool

	Timeout    time.Duration
	TimeoutSet bool

	Only       []string
	ReportPath string
	Verbose    bool
}

// EffectiveConfig 是合并并规范化后的最终配置，实现层直接消费。
type EffectiveConfig struct {
	// KoyebLogin 是原始的多行 email:PAT 文本，由 account.Parse 解析。
	KoyebLogin string

	TGBotToken string
	TGChatID   string

	KoyebBaseURL    string
	TelegramBaseURL string

	Pace    time.Duration
	Timeout time.Duration

	TZOffsetHours int
	Location      *time.Location

	ProxyURL   string
	ReportPath string
	Only       []string
	Verbose    bool
}

// NotifyEnabled 报告 Telegram 推送是否配置完整。
func (c EffectiveConfig) NotifyEnabled() bool {
	return c.TGBotToken != "" && c.TGChatID != ""
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Key  string // 出错的配置键，可为空
	Path string // 配置文件路径，可为空
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeMissingCredentials:
		return fmt.Sprintf("%s：KOYEB_LOGIN 未配置，无法继续执行", e.Code)
	case ErrCodeNoAccounts:
		return fmt.Sprintf("%s：KOYEB_LOGIN 未包含任何有效账户信息（格式 email:PAT，每行一个）", e.Code)
	case ErrCodeInvalid:
		where := e.Key
		if e.Path != "" {
			if where != "" {
				where = e.Path + ":" + where
			} else {
				where = e.Path
			}
		}
		if e.Err != nil {
			return fmt.Sprintf("%s：%q 无效：%v", e.Code, where, e.Err)
		}
		return fmt.Sprintf("%s：%q 无效", e.Code, where)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 读取配置并与 CLI 参数合并。
//
// 优先级（固定）：CLI > 环境变量 > 配置文件（--config，可选）> 默认值。
//
// 出错时返回的 EffectiveConfig 仍带有已读到的 Telegram 配置与时区，
// 上层据此 best-effort 推送“初始化失败”消息。
func LoadEffective(cli CLIArgs) (EffectiveConfig, error) {
	v := viper.New()
	v.SetDefault("koyeb_base_url", DefaultKoyebBaseURL)
	v.SetDefault("telegram_base_url", DefaultTelegramBaseURL)
	v.SetDefault("pace", DefaultPace.String())
	v.SetDefault("timeout", DefaultTimeout.String())
	v.SetDefault("tz_offset_hours", DefaultTZOffsetHours)
	for key, env := range envKeys {
		_ = v.BindEnv(key, env)
	}

	var fileErr error
	cfgPath := strings.TrimSpace(cli.ConfigFile)
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			fileErr = &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
	}

	eff := EffectiveConfig{
		KoyebLogin:      v.GetString("koyeb_login"),
		TGBotToken:      strings.TrimSpace(v.GetString("tg_bot_token")),
		TGChatID:        strings.TrimSpace(v.GetString("tg_chat_id")),
		KoyebBaseURL:    strings.TrimRight(strings.TrimSpace(v.GetString("koyeb_base_url")), "/"),
		TelegramBaseURL: strings.TrimRight(strings.TrimSpace(v.GetString("telegram_base_url")), "/"),
		ProxyURL:        strings.TrimSpace(v.GetString("proxy_url")),
		ReportPath:      strings.TrimSpace(v.GetString("report_path")),
		Only:            normPatterns(v.GetStringSlice("only")),
		Verbose:         cli.Verbose,
		TZOffsetHours:   DefaultTZOffsetHours,
		Location:        logx.FixedZone(DefaultTZOffsetHours),
	}

	// 时区最先确定：即使后续字段出错，失败消息/日志也按配置的时区输出。
	off, err := parseOffset(v.GetString("tz_offset_hours"))
	if err != nil {
		return eff, &Error{Code: ErrCodeInvalid, Key: "tz_offset_hours", Path: cfgPath, Err: err}
	}
	eff.TZOffsetHours = off
	eff.Location = logx.FixedZone(off)

	if fileErr != nil {
		return eff, fileErr
	}

	if eff.Pace, err = parseDuration(v.GetString("pace")); err != nil {
		return eff, &Error{Code: ErrCodeInvalid, Key: "pace", Path: cfgPath, Err: err}
	}
	if eff.Timeout, err = parseDuration(v.GetString("timeout")); err != nil {
		return eff, &Error{Code: ErrCodeInvalid, Key: "timeout", Path: cfgPath, Err: err}
	}

	// CLI 覆盖
	if cli.PaceSet {
		eff.Pace = cli.Pace
	}
	if cli.TimeoutSet {
		eff.Timeout = cli.Timeout
	}
	if len(cli.Only) > 0 {
		eff.Only = normPatterns(cli.Only)
	}
	if strings.TrimSpace(cli.ReportPath) != "" {
		eff.ReportPath = strings.TrimSpace(cli.ReportPath)
	}

	if eff.Pace < 0 {
		return eff, &Error{Code: ErrCodeInvalid, Key: "pace", Err: fmt.Errorf("不能为负数：%s", eff.Pace)}
	}
	if eff.Timeout <= 0 {
		return eff, &Error{Code: ErrCodeInvalid, Key: "timeout", Err: fmt.Errorf("必须大于 0：%s", eff.Timeout)}
	}

	for _, k := range []struct{ key, val string }{
		{"koyeb_base_url", eff.KoyebBaseURL},
		{"telegram_base_url", eff.TelegramBaseURL},
	} {
		if err := validateHTTPURL(k.val); err != nil {
			return eff, &Error{Code: ErrCodeInvalid, Key: k.key, Path: cfgPath, Err: err}
		}
	}
	if eff.ProxyURL != "" {
		if err := validateHTTPURL(eff.ProxyURL); err != nil {
			return eff, &Error{Code: ErrCodeInvalid, Key: "proxy_url", Path: cfgPath, Err: err}
		}
	}

	return eff, nil
}

// parseDuration 接受 Go duration（"10s"、"1m"）或纯数字（按秒计）。
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("不能为空")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

func parseOffset(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultTZOffsetHours, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("必须是整数小时：%q", s)
	}
	if n < -12 || n > 14 {
		return 0, fmt.Errorf("超出范围 [-12, 14]：%d", n)
	}
	return n, nil
}

func validateHTTPURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("必须是 http/https：%q", s)
	}
	if u.Host == "" {
		return fmt.Errorf("缺少 host：%q", s)
	}
	return nil
}

func normPatterns(in []string) []string {
	var out []string
	for _, p := range in {
		// viper 从环境变量/纯字符串读 slice 时按空白切分；这里再兼容逗号分隔。
		for _, part := range strings.Split(p, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
