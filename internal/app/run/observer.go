package run

import "github.com/John-Robertt/koyeb-alive/internal/domain"

// Observer 把运行进度从核心流程中解耦出来。
//
// 约束：run 包只发事件，不做任何终端输出；事件按账户顺序同步发出。
type Observer interface {
	// OnStart 在开始逐个验证前调用。
	OnStart(total int)
	// OnItemDone 在某个账户验证完成时调用（idx 从 1 开始）。
	OnItemDone(idx, total int, res domain.VerificationResult)
	// OnFinish 在汇总完成、推送之前调用。
	OnFinish(rep domain.BatchReport)
}
