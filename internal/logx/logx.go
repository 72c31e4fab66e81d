package logx

import (
	"io"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TimeLayout 是日志与推送消息共用的时间格式。
const TimeLayout = "2006-01-02 15:04:05"

// Options 控制 logger 的构造。
// Location 显式传入，不依赖进程的 TZ / time.Local。
type Options struct {
	Location *time.Location
	Level    zapcore.Level
}

// FixedZone 返回 UTC+hours 的固定时区（不含夏令时）。
func FixedZone(hours int) *time.Location {
	if hours == 0 {
		return time.UTC
	}
	name := "UTC+"
	if hours < 0 {
		name = "UTC-"
	}
	abs := hours
	if abs < 0 {
		abs = -abs
	}
	return time.FixedZone(name+strconv.Itoa(abs), hours*3600)
}

// New 构造输出到 w 的 console logger：`<time> <LEVEL> <msg> <fields>`。
// w 为 nil 时写 stderr（stdout 留给最终摘要 / JSON report）。
func New(w io.Writer, opt Options) *zap.Logger {
	if w == nil {
		w = os.Stderr
	}
	loc := opt.Location
	if loc == nil {
		loc = FixedZone(8)
	}

	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		MessageKey:       "msg",
		StacktraceKey:    "",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeTime:       timeEncoder(loc),
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " - ",
	})
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), zap.NewAtomicLevelAt(opt.Level))
	return zap.New(core)
}

func timeEncoder(loc *time.Location) zapcore.TimeEncoder {
	return func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(t.In(loc).Format(TimeLayout))
	}
}
