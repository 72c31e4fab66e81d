package domain

import "time"

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

const (
	ErrCodeCredentialIncomplete = "credential_incomplete"
	ErrCodeAuthFailed           = "auth_failed"
	ErrCodeAPIError             = "api_error"
	ErrCodeTimeout              = "timeout"
	ErrCodeNetworkError         = "network_error"
	ErrCodeUnexpected           = "unexpected_error"
	ErrCodeEmailMismatch        = "email_mismatch"
	ErrCodeInactive             = "inactive"
	ErrCodeEmailNotValidated    = "email_not_validated"
)

// VerificationResult 是单个账户一次验证的结果；创建后不再修改。
type VerificationResult struct {
	Account   Account       `json:"account"`
	Outcome   string        `json:"outcome"`
	Detail    string        `json:"detail"`
	ErrorCode string        `json:"error_code,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

func (r VerificationResult) OK() bool { return r.Outcome == OutcomeSuccess }

// Success 构造成功结果。
func Success(acc Account, detail string) VerificationResult {
	return VerificationResult{Account: acc, Outcome: OutcomeSuccess, Detail: detail}
}

// Failure 构造失败结果；code 取自 ErrCode* 常量。
func Failure(acc Account, code, detail string) VerificationResult {
	return VerificationResult{Account: acc, Outcome: OutcomeFailure, Detail: detail, ErrorCode: code}
}
