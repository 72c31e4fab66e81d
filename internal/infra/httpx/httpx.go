package httpx

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "KoyebAccountStatusChecker/1.0"
)

// Transport 把“默认 UA + 代理下的连接策略”固化为统一策略。
// 不做重试：每个请求只发一次，失败直接交给调用方分类。
type Transport struct {
	Base *http.Transport

	// UserAgent 仅在请求未自带 User-Agent 时设置。
	UserAgent string

	// DisableKeepAlives 决定是否对 Request 设置 Close=true（额外保险）。
	// 真正禁用 keep-alive 依赖 Base.DisableKeepAlives。
	DisableKeepAlives bool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	// Clone：RoundTripper 不能修改调用方的 request。
	r := req.Clone(req.Context())
	if r.Header.Get("User-Agent") == "" && t.UserAgent != "" {
		r.Header.Set("User-Agent", t.UserAgent)
	}
	if t.DisableKeepAlives {
		r.Close = true
	}
	return t.Base.RoundTrip(r)
}

// Options 描述一个 client 的网络策略。零值可用。
type Options struct {
	Timeout   time.Duration
	UserAgent string
	ProxyURL  string
}

// NewClient 构造带总超时的 HTTP client。
//
// 规则：
// - Timeout<=0 使用 DefaultTimeout；超时覆盖连接、TLS、读 body 全过程
// - ProxyURL 非空：必须走代理，且禁用 keep-alive（每请求新连接）
// - ProxyURL 为空：不读取 HTTP(S)_PROXY 环境变量，行为只由配置决定
func NewClient(opt Options) (*http.Client, error) {
	timeout := opt.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ua := strings.TrimSpace(opt.UserAgent)
	if ua == "" {
		ua = DefaultUserAgent
	}

	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	disableKeepAlives := false
	if proxyURL := strings.TrimSpace(opt.ProxyURL); proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		base.Proxy = http.ProxyURL(u)
		base.DisableKeepAlives = true
		disableKeepAlives = true
	}

	return &http.Client{
		Transport: &Transport{
			Base:              base,
			UserAgent:         ua,
			DisableKeepAlives: disableKeepAlives,
		},
		Timeout: timeout,
	}, nil
}
