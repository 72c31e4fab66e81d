package domain

// Account 是一条 `email:PAT` 凭据。
// Token 不参与 JSON 输出，避免 report.json 泄露 PAT。
type Account struct {
	Email string `json:"email"`
	Token string `json:"-"`
}
