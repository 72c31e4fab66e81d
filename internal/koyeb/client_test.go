package koyeb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/John-Robertt/koyeb-alive/internal/domain"
	"github.com/John-Robertt/koyeb-alive/internal/infra/httpx"
)

// profileServer 按 Bearer token 返回不同的响应。
func profileServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		if r.URL.Path != ProfilePath || r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		switch tok {
		case "ok":
			writeJSON(w, 200, `{"user":{"email":"A@X.com","flags":["ACTIVE","VERIFIED"],"email_validated":true}}`)
		case "unauth":
			w.WriteHeader(http.StatusUnauthorized)
		case "forbidden":
			writeJSON(w, 403, `{"error":"forbidden"}`)
		case "boom-json":
			writeJSON(w, 500, `{"error":"internal boom"}`)
		case "boom-nested":
			writeJSON(w, 400, `{"error":{"message":"bad token shape"}}`)
		case "boom-html":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(502)
			_, _ = w.Write([]byte("<html><head><title> 502 Bad\n Gateway </title></head><body><h1>oops</h1></body></html>"))
		case "boom-text":
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(429)
			_, _ = w.Write([]byte("slow down"))
		case "mismatch":
			writeJSON(w, 200, `{"user":{"email":"other@x.com","flags":["ACTIVE"],"email_validated":true}}`)
		case "inactive":
			writeJSON(w, 200, `{"user":{"email":"a@x.com","flags":["PENDING_VERIFICATION","LOCKED"],"email_validated":true}}`)
		case "unvalidated":
			writeJSON(w, 200, `{"user":{"email":"a@x.com","flags":["ACTIVE"],"email_validated":false}}`)
		case "neither":
			writeJSON(w, 200, `{"user":{"email":"a@x.com","flags":[],"email_validated":false}}`)
		case "malformed":
			writeJSON(w, 200, `{"user":`)
		case "wrong-shape":
			writeJSON(w, 200, `{"user":"a@x.com"}`)
		case "slow":
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func newTestClient(t *testing.T, baseURL string, timeout time.Duration) *Client {
	t.Helper()
	hc, err := httpx.NewClient(httpx.Options{Timeout: timeout})
	if err != nil {
		t.Fatalf("创建 http client 失败：%v", err)
	}
	return &Client{BaseURL: baseURL, HTTP: hc}
}

func TestVerify_Classification(t *testing.T) {
	srv := profileServer(t, nil)
	c := newTestClient(t, srv.URL, 5*time.Second)

	tests := []struct {
		token   string
		ok      bool
		code    string
		detail  string
		partial bool // detail 只做前缀匹配
	}{
		{"ok", true, "", "active and validated", false},
		{"unauth", false, domain.ErrCodeAuthFailed, "invalid or expired token", false},
		{"forbidden", false, domain.ErrCodeAuthFailed, "invalid or expired token", false},
		{"boom-json", false, domain.ErrCodeAPIError, "API error: 500, internal boom", false},
		{"boom-nested", false, domain.ErrCodeAPIError, "API error: 400, bad token shape", false},
		{"boom-html", false, domain.ErrCodeAPIError, "API error: 502, 502 Bad Gateway", false},
		{"boom-text", false, domain.ErrCodeAPIError, "API error: 429, slow down", false},
		{"mismatch", false, domain.ErrCodeEmailMismatch, "email mismatch", true},
		{"inactive", false, domain.ErrCodeInactive, "inactive: flags=PENDING_VERIFICATION, LOCKED", false},
		{"unvalidated", false, domain.ErrCodeEmailNotValidated, "email not validated", false},
		// 既非 ACTIVE 也未验证：归入 inactive，不产生第三种结果。
		{"neither", false, domain.ErrCodeInactive, "inactive: flags=", false},
		{"malformed", false, domain.ErrCodeUnexpected, "unexpected error: ", true},
		{"wrong-shape", false, domain.ErrCodeUnexpected, "unexpected error: ", true},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			acc := domain.Account{Email: "a@x.com", Token: tt.token}
			res := c.Verify(context.Background(), acc)

			if res.OK() != tt.ok || res.ErrorCode != tt.code {
				t.Fatalf("结果不符合预期：ok=%v code=%q detail=%q", res.OK(), res.ErrorCode, res.Detail)
			}
			if tt.partial && !strings.HasPrefix(res.Detail, tt.detail) || !tt.partial && res.Detail != tt.detail {
				t.Fatalf("detail 不符合预期：got=%q want=%q", res.Detail, tt.detail)
			}
			if res.Account != acc {
				t.Fatalf("结果应携带原账户：%+v", res.Account)
			}
		})
	}
}

func TestVerify_MissingCredentialSkipsNetwork(t *testing.T) {
	var hits int32
	srv := profileServer(t, &hits)
	c := newTestClient(t, srv.URL, 5*time.Second)

	for _, acc := range []domain.Account{{Email: "a@x.com"}, {Token: "ok"}, {Email: "  ", Token: "ok"}} {
		res := c.Verify(context.Background(), acc)
		if res.OK() || res.ErrorCode != domain.ErrCodeCredentialIncomplete || res.Detail != "missing credential" {
			t.Fatalf("缺少凭据应直接失败：%+v", res)
		}
	}
	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Fatalf("缺少凭据时不应发请求，实际请求 %d 次", n)
	}
}

func TestVerify_SendsExpectedHeaders(t *testing.T) {
	var auth, ctype, ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth, ctype, ua = r.Header.Get("Authorization"), r.Header.Get("Content-Type"), r.UserAgent()
		writeJSON(w, 200, `{"user":{"email":"a@x.com","flags":["ACTIVE"],"email_validated":true}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/", 5*time.Second)
	if res := c.Verify(context.Background(), domain.Account{Email: "a@x.com", Token: "p:a:t"}); !res.OK() {
		t.Fatalf("期望成功：%+v", res)
	}
	if auth != "Bearer p:a:t" || ctype != "application/json" || ua != httpx.DefaultUserAgent {
		t.Fatalf("请求头不符合预期：auth=%q content-type=%q ua=%q", auth, ctype, ua)
	}
}

func TestVerify_Timeout(t *testing.T) {
	srv := profileServer(t, nil)
	c := newTestClient(t, srv.URL, 50*time.Millisecond)

	res := c.Verify(context.Background(), domain.Account{Email: "a@x.com", Token: "slow"})
	if res.ErrorCode != domain.ErrCodeTimeout || res.Detail != "request timed out" {
		t.Fatalf("期望超时：%+v", res)
	}
}

func TestVerify_NetworkException(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close() // 端口已关闭：连接被拒绝

	c := newTestClient(t, url, time.Second)
	res := c.Verify(context.Background(), domain.Account{Email: "a@x.com", Token: "ok"})
	if res.ErrorCode != domain.ErrCodeNetworkError || !strings.HasPrefix(res.Detail, "network exception: ") {
		t.Fatalf("期望网络异常：%+v", res)
	}
}

func TestVerify_PanicBecomesUnexpected(t *testing.T) {
	c := &Client{BaseURL: "http://example.test", HTTP: &http.Client{Transport: panicTransport{}}}
	res := c.Verify(context.Background(), domain.Account{Email: "a@x.com", Token: "ok"})
	if res.ErrorCode != domain.ErrCodeUnexpected || !strings.Contains(res.Detail, "kaboom") {
		t.Fatalf("panic 应被转换为 unexpected error：%+v", res)
	}
}

type panicTransport struct{}

func (panicTransport) RoundTrip(*http.Request) (*http.Response, error) { panic("kaboom") }
