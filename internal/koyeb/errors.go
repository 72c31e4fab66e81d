package koyeb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// maxMessageRunes 限制错误消息长度，避免把整页 HTML 塞进推送。
const maxMessageRunes = 200

// HTTPStatusError 表示 profile 端点返回了非 2xx。
// Message 是从响应体里尽力提取的可读信息。
type HTTPStatusError struct {
	StatusCode int
	Message    string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, msg)
}

// Auth 报告是否为 401/403（PAT 无效或过期）。
func (e *HTTPStatusError) Auth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// errorMessage 从错误响应体提取消息，顺序：
// 1) JSON 的 error / message 字段
// 2) HTML（网关错误页等）的 <title>，没有 title 时取正文文本
// 3) 原始文本
// 都为空时回退到状态码的标准描述。
func errorMessage(status int, contentType string, body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return http.StatusText(status)
	}

	var m map[string]any
	if json.Unmarshal(body, &m) == nil {
		for _, k := range []string{"error", "message"} {
			if s := stringField(m[k]); s != "" {
				return truncate(s)
			}
		}
		return truncate(string(body))
	}

	if isHTML(contentType, body) {
		if s := htmlText(body); s != "" {
			return truncate(s)
		}
	}
	return truncate(string(body))
}

func stringField(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case map[string]any:
		// {"error":{"message":"..."}} 这类嵌套结构
		return stringField(x["message"])
	default:
		return ""
	}
}

func isHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}
	return len(body) > 0 && body[0] == '<'
}

func htmlText(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	if t := normSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	doc.Find("script, style").Remove()
	return normSpace(doc.Find("body").Text())
}

func normSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= maxMessageRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxMessageRunes]) + "…"
}
