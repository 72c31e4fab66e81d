package account

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"go.uber.org/zap"

	"github.com/John-Robertt/koyeb-alive/internal/config"
	"github.com/John-Robertt/koyeb-alive/internal/domain"
)

// Parse 把 KOYEB_LOGIN 的多行文本解析为有序的账户列表。
//
// 规则：
// - 每行 `email:PAT`，只按第一个 ':' 切分（PAT 本身可以含 ':'）
// - 两侧 TrimSpace；中间的空行、无 ':' 的行跳过并记 warning
// - `email:` 这类半截行保留，由验证阶段记为 credential_incomplete
// - 结果为空 => *config.Error（致命，运行前终止）
func Parse(raw string, lg *zap.Logger) ([]domain.Account, error) {
	if lg == nil {
		lg = zap.NewNop()
	}
	if strings.TrimSpace(raw) == "" {
		return nil, &config.Error{Code: config.ErrCodeMissingCredentials, Key: "koyeb_login"}
	}

	var out []domain.Account
	for i, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			lg.Warn("⚠️ 跳过空行", zap.Int("line", i+1))
			continue
		}
		email, token, ok := strings.Cut(line, ":")
		if !ok {
			lg.Warn("⚠️ 跳过无效行（缺少 ':'）", zap.Int("line", i+1))
			continue
		}
		email = strings.TrimSpace(email)
		token = strings.TrimSpace(token)
		if email == "" && token == "" {
			lg.Warn("⚠️ 跳过无效行（email 与 PAT 都为空）", zap.Int("line", i+1))
			continue
		}
		out = append(out, domain.Account{Email: email, Token: token})
	}

	if len(out) == 0 {
		return nil, &config.Error{Code: config.ErrCodeNoAccounts, Key: "koyeb_login"}
	}
	return out, nil
}

// Filter 只保留 email 命中任一 glob 模式的账户（大小写不敏感），保持原有顺序。
// patterns 为空时原样返回。
func Filter(accounts []domain.Account, patterns []string) ([]domain.Account, error) {
	if len(patterns) == 0 {
		return accounts, nil
	}

	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(strings.ToLower(p))
		if err != nil {
			return nil, &config.Error{Code: config.ErrCodeInvalid, Key: "only", Err: fmt.Errorf("glob %q：%w", p, err)}
		}
		globs = append(globs, g)
	}

	var out []domain.Account
	for _, a := range accounts {
		email := strings.ToLower(a.Email)
		for _, g := range globs {
			if g.Match(email) {
				out = append(out, a)
				break
			}
		}
	}
	if len(out) == 0 {
		return nil, &config.Error{Code: config.ErrCodeNoAccounts, Key: "only", Err: fmt.Errorf("没有账户匹配 %v", patterns)}
	}
	return out, nil
}
