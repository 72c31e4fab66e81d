package domain

import (
	"encoding/json"
	"time"
)

// BatchReport 是一次运行的汇总（--report 输出 / 推送消息的数据源）。
type BatchReport struct {
	RunID string `json:"run_id"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary        `json:"summary"`
	Results []VerificationResult `json:"results"`
}

type ReportSummary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// Finalize 做两件事：
// 1) 时间统一为 UTC（JSON 输出后缀 Z；展示时区由渲染层决定）
// 2) summary 由 results 计算得出
//
// results 保持输入顺序，不排序：推送消息要与 KOYEB_LOGIN 的行序一致。
func (r *BatchReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	s := ReportSummary{Total: len(r.Results)}
	for _, res := range r.Results {
		if res.OK() {
			s.Success++
		}
	}
	s.Failed = s.Total - s.Success
	r.Summary = s
}

// ExitCode 是给调度器的唯一聚合信号：有账户但全部失败时为 1，否则为 0。
func (r BatchReport) ExitCode() int {
	if r.Summary.Total > 0 && r.Summary.Success == 0 {
		return 1
	}
	return 0
}

// MarshalJSON 保证 results 为空时输出 [] 而不是 null。
func (r BatchReport) MarshalJSON() ([]byte, error) {
	type Alias BatchReport
	a := Alias(r)
	if a.Results == nil {
		a.Results = []VerificationResult{}
	}
	return json.Marshal(a)
}
