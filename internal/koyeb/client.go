package koyeb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/John-Robertt/koyeb-alive/internal/domain"
)

const (
	DefaultBaseURL = "https://app.koyeb.com"
	ProfilePath    = "/v1/account/profile"

	// 2xx 响应体上限；profile 很小，超过即视为异常响应。
	maxBodyBytes = 1 << 20
)

// Client 通过 PAT 调用 Koyeb profile 端点判断账户状态。
// HTTP 的超时/代理/UA 由 httpx.NewClient 统一决定。
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

type profileResponse struct {
	User profileUser `json:"user"`
}

type profileUser struct {
	Email          string   `json:"email"`
	Flags          []string `json:"flags"`
	EmailValidated bool     `json:"email_validated"`
}

// errDecode 标记“响应处理阶段”的异常（2xx 但 body 不可解析等）。
var errDecode = errors.New("decode profile")

// Verify 验证单个账户，任何情况下都返回一个 VerificationResult，不 panic、不重试。
func (c *Client) Verify(ctx context.Context, acc domain.Account) (res domain.VerificationResult) {
	started := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = domain.Failure(acc, domain.ErrCodeUnexpected, fmt.Sprintf("unexpected error: %v", p))
		}
		res.Duration = time.Since(started)
	}()

	if strings.TrimSpace(acc.Email) == "" || strings.TrimSpace(acc.Token) == "" {
		return domain.Failure(acc, domain.ErrCodeCredentialIncomplete, "missing credential")
	}

	u, err := c.fetchProfile(ctx, acc.Token)
	if err != nil {
		return classifyError(acc, err)
	}
	return classifyProfile(acc, u)
}

func (c *Client) fetchProfile(ctx context.Context, token string) (profileUser, error) {
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+ProfilePath, nil)
	if err != nil {
		return profileUser{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return profileUser{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// 错误响应体只用于生成消息；读失败也不影响按状态码分类。
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		return profileUser{}, &HTTPStatusError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, resp.Header.Get("Content-Type"), b),
		}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return profileUser{}, err
	}
	if len(b) > maxBodyBytes {
		return profileUser{}, fmt.Errorf("%w: body 超过 %d 字节", errDecode, maxBodyBytes)
	}

	var pr profileResponse
	if err := json.Unmarshal(b, &pr); err != nil {
		return profileUser{}, fmt.Errorf("%w: %v", errDecode, err)
	}
	return pr.User, nil
}

// classifyError 把请求阶段的错误映射为失败结果（顺序即优先级）。
func classifyError(acc domain.Account, err error) domain.VerificationResult {
	var se *HTTPStatusError
	if errors.As(err, &se) {
		if se.Auth() {
			return domain.Failure(acc, domain.ErrCodeAuthFailed, "invalid or expired token")
		}
		return domain.Failure(acc, domain.ErrCodeAPIError, fmt.Sprintf("API error: %d, %s", se.StatusCode, se.Message))
	}

	switch {
	case errors.Is(err, errDecode):
		return domain.Failure(acc, domain.ErrCodeUnexpected, "unexpected error: "+err.Error())
	case isTimeout(err):
		return domain.Failure(acc, domain.ErrCodeTimeout, "request timed out")
	default:
		return domain.Failure(acc, domain.ErrCodeNetworkError, "network exception: "+err.Error())
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// classifyProfile 对 2xx 的 profile 做严格判定：
// email 一致（大小写不敏感）且 flags 含 ACTIVE 且 email_validated 才算成功。
func classifyProfile(acc domain.Account, u profileUser) domain.VerificationResult {
	if !strings.EqualFold(strings.TrimSpace(u.Email), strings.TrimSpace(acc.Email)) {
		return domain.Failure(acc, domain.ErrCodeEmailMismatch, fmt.Sprintf("email mismatch (got %q)", u.Email))
	}
	if !hasFlag(u.Flags, "ACTIVE") {
		return domain.Failure(acc, domain.ErrCodeInactive, "inactive: flags="+strings.Join(u.Flags, ", "))
	}
	if !u.EmailValidated {
		return domain.Failure(acc, domain.ErrCodeEmailNotValidated, "email not validated")
	}
	return domain.Success(acc, "active and validated")
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}
