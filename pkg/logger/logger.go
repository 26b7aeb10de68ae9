// Package logger 提供统一的日志框架
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger = zerolog.Nop()
)

// Level 日志级别
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
)

// Config 日志配置
type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // json/console
	Output     string `yaml:"output" json:"output"` // stdout/stderr/file
	FilePath   string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
	TimeFormat string `yaml:"time_format,omitempty" json:"time_format,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init 初始化日志器，只生效一次；未初始化时日志器为空操作
func Init(cfg Config) {
	once.Do(func() {
		zerolog.SetGlobalLevel(parseLevel(cfg.Level))

		var output io.Writer
		switch cfg.Output {
		case "stderr":
			output = os.Stderr
		case "file":
			output = os.Stdout
			if cfg.FilePath != "" {
				if f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
					output = f
				}
			}
		default:
			output = os.Stdout
		}

		if cfg.Format == "console" {
			timeFormat := cfg.TimeFormat
			if timeFormat == "" {
				timeFormat = time.RFC3339
			}
			output = zerolog.ConsoleWriter{Out: output, TimeFormat: timeFormat}
		}

		logger = zerolog.New(output).With().Timestamp().Logger()
	})
}

// parseLevel 解析日志级别
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get 获取日志器
func Get() *zerolog.Logger {
	return &logger
}

type ctxKey struct{}

// NewContext 将请求ID写入上下文
func NewContext(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}

// RequestID 返回上下文中的请求ID
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// WithContext 从上下文创建带 request_id 字段的日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()
	if id := RequestID(ctx); id != "" {
		l = l.With().Str("request_id", id).Logger()
	}
	return &l
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// WithError 添加错误信息
func WithError(err error) *zerolog.Event {
	return Get().Error().Err(err)
}

// SolverLogger 求解引擎专用日志器
type SolverLogger struct {
	base *zerolog.Logger
}

// NewSolverLogger 创建求解引擎日志器
func NewSolverLogger(component string) *SolverLogger {
	l := Get().With().Str("component", component).Logger()
	return &SolverLogger{base: &l}
}

// WithRun 返回绑定运行ID的日志器
func (l *SolverLogger) WithRun(runID string) *SolverLogger {
	nl := l.base.With().Str("run_id", runID).Logger()
	return &SolverLogger{base: &nl}
}

// StartSolve 记录求解开始
func (l *SolverLogger) StartSolve(tasks, slots int) {
	l.base.Info().
		Int("tasks", tasks).
		Int("slots", slots).
		Msg("开始求解")
}

// PhaseComplete 记录阶段完成
func (l *SolverLogger) PhaseComplete(phase string, steps int, hard, soft int64, duration time.Duration) {
	l.base.Info().
		Str("phase", phase).
		Int("steps", steps).
		Int64("hard", hard).
		Int64("soft", soft).
		Dur("duration", duration).
		Msg("阶段完成")
}

// NewBest 记录发现更优解
func (l *SolverLogger) NewBest(step int, hard, soft int64) {
	l.base.Debug().
		Int("step", step).
		Int64("hard", hard).
		Int64("soft", soft).
		Msg("发现更优解")
}

// Warning 记录非致命问题
func (l *SolverLogger) Warning(msg string) {
	l.base.Warn().Str("details", msg).Msg("求解警告")
}

// ConstraintViolation 记录约束违反
func (l *SolverLogger) ConstraintViolation(constraintName, details string) {
	l.base.Debug().
		Str("constraint", constraintName).
		Str("details", details).
		Msg("约束违反")
}

// ScoreMismatch 记录增量得分与全量得分不一致
func (l *SolverLogger) ScoreMismatch(step int, incremental, full string) {
	l.base.Error().
		Int("step", step).
		Str("incremental", incremental).
		Str("full", full).
		Msg("增量得分与全量得分不一致")
}

// SolveComplete 记录求解完成
func (l *SolverLogger) SolveComplete(reason string, hard, soft int64, duration time.Duration) {
	l.base.Info().
		Str("termination", reason).
		Int64("hard", hard).
		Int64("soft", soft).
		Dur("duration", duration).
		Msg("求解完成")
}
