package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClient_ProxyDisablesKeepAlive(t *testing.T) {
	c, err := NewClient(Options{ProxyURL: "http://127.0.0.1:8080"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr, ok := c.Transport.(*Transport)
	if !ok {
		t.Fatalf("期望 *Transport，实际 %T", c.Transport)
	}
	if tr.Base.Proxy == nil {
		t.Fatalf("期望启用代理，但 Proxy=nil")
	}
	if !tr.Base.DisableKeepAlives || !tr.DisableKeepAlives {
		t.Fatalf("代理模式应禁用 keep-alive：base=%v tr=%v", tr.Base.DisableKeepAlives, tr.DisableKeepAlives)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if c.Timeout != DefaultTimeout {
		t.Fatalf("默认超时应为 %s，实际 %s", DefaultTimeout, c.Timeout)
	}
	tr := c.Transport.(*Transport)
	if tr.Base.Proxy != nil {
		t.Fatalf("不期望启用代理，但 Proxy!=nil")
	}
	if tr.UserAgent != DefaultUserAgent {
		t.Fatalf("默认 UA 不正确：%q", tr.UserAgent)
	}
}

func TestNewClient_InvalidProxyURL(t *testing.T) {
	if _, err := NewClient(Options{ProxyURL: "http://[::1"}); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}

func TestTransport_SetsUserAgentOnlyWhenMissing(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.UserAgent())
	}))
	defer srv.Close()

	c, err := NewClient(Options{Timeout: 5 * time.Second, UserAgent: "ua-test/1"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	req1, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req2, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req2.Header.Set("User-Agent", "custom/2")

	for _, req := range []*http.Request{req1, req2} {
		resp, err := c.Do(req)
		if err != nil {
			t.Fatalf("请求失败：%v", err)
		}
		resp.Body.Close()
	}

	if len(got) != 2 || got[0] != "ua-test/1" || got[1] != "custom/2" {
		t.Fatalf("UA 不符合预期：%v", got)
	}
	if req1.Header.Get("User-Agent") != "" {
		t.Fatalf("RoundTrip 不应修改调用方的 request")
	}
}
