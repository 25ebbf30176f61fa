// Package log 提供 btpeer 统一日志接口
//
// 基于 Go 标准库 log/slog 封装，每个组件通过 Logger("discovery/registry")
// 获取一个 LazyLogger。支持通过环境变量按组件配置日志级别：
//
//   - BTPEER_LOG_LEVEL: 格式 组件=级别,组件=级别,默认级别
//     示例: discovery/dht=debug,core/mse=warn,info
//   - BTPEER_LOG_FORMAT: text 或 json
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// 日志级别常量（从 slog 导出，方便使用）
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// 环境变量名
const (
	EnvLogLevel  = "BTPEER_LOG_LEVEL"
	EnvLogFormat = "BTPEER_LOG_FORMAT"
)

// ============================================================================
//                              全局状态
// ============================================================================

var (
	stateMu sync.RWMutex

	// output 日志输出目标
	output io.Writer = os.Stderr

	// defaultLevel 默认日志级别
	defaultLevel = slog.LevelInfo

	// componentLevels 各组件的日志级别
	componentLevels = map[string]slog.Level{}

	// jsonFormat 是否输出 JSON
	jsonFormat bool

	// base 当前基础 logger，配置变化时重建
	base *slog.Logger
)

func init() {
	if s := os.Getenv(EnvLogLevel); s != "" {
		parseLevelConfig(s)
	}
	if strings.EqualFold(os.Getenv(EnvLogFormat), "json") {
		jsonFormat = true
	}
	rebuild()
}

// rebuild 根据当前配置重建基础 logger（调用方持有写锁或处于 init）
func rebuild() {
	opts := &slog.HandlerOptions{
		// 由 LazyLogger 自行做组件级过滤，底层 handler 放行所有级别
		Level: slog.LevelDebug,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			return a
		},
	}
	var h slog.Handler
	if jsonFormat {
		h = slog.NewJSONHandler(output, opts)
	} else {
		h = slog.NewTextHandler(output, opts)
	}
	base = slog.New(h)
}

// parseLevelConfig 解析日志级别配置字符串
func parseLevelConfig(s string) {
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if k, v, ok := strings.Cut(part, "="); ok {
			if level, ok := ParseLevel(v); ok {
				componentLevels[strings.TrimSpace(k)] = level
			}
			continue
		}
		if level, ok := ParseLevel(part); ok {
			defaultLevel = level
		}
	}
}

// ParseLevel 解析日志级别名称
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// levelFor 返回组件的生效级别
//
// 支持前缀匹配：配置 "discovery" 时对 "discovery/dht" 同样生效。
func levelFor(component string) slog.Level {
	if level, ok := componentLevels[component]; ok {
		return level
	}
	for c := component; ; {
		i := strings.LastIndex(c, "/")
		if i < 0 {
			break
		}
		c = c[:i]
		if level, ok := componentLevels[c]; ok {
			return level
		}
	}
	return defaultLevel
}

// ============================================================================
//                              配置修改
// ============================================================================

// SetOutput 设置日志输出目标
//
// 已创建的 LazyLogger 会立即使用新的输出目标。
//
// 示例：
//
//	file, _ := os.OpenFile("btpeer.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
//	log.SetOutput(file)
func SetOutput(w io.Writer) {
	stateMu.Lock()
	defer stateMu.Unlock()
	output = w
	rebuild()
}

// SetLevel 设置默认日志级别
func SetLevel(level slog.Level) {
	stateMu.Lock()
	defer stateMu.Unlock()
	defaultLevel = level
}

// SetComponentLevel 设置单个组件的日志级别
func SetComponentLevel(component string, level slog.Level) {
	stateMu.Lock()
	defer stateMu.Unlock()
	componentLevels[component] = level
}

// SetJSON 切换 JSON 输出格式
func SetJSON(enabled bool) {
	stateMu.Lock()
	defer stateMu.Unlock()
	jsonFormat = enabled
	rebuild()
}

// ============================================================================
//                              LazyLogger
// ============================================================================

// LazyLogger 懒加载 logger
//
// 每次日志调用时都读取当前的输出目标和级别，
// 支持在运行时动态切换日志输出。
//
// 使用方式：
//
//	var logger = log.Logger("discovery/dht")
//	logger.Info("DHT 查询完成", "peers", n)
type LazyLogger struct {
	component string
}

// Logger 返回带组件名的 LazyLogger
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}

func (l *LazyLogger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	stateMu.RLock()
	enabled := level >= levelFor(l.component)
	b := base
	stateMu.RUnlock()
	if !enabled {
		return
	}
	b.Log(ctx, level, msg, append([]any{"component", l.component}, args...)...)
}

// Enabled 判断给定级别是否输出
func (l *LazyLogger) Enabled(level slog.Level) bool {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return level >= levelFor(l.component)
}

// Debug 输出 Debug 级别日志
func (l *LazyLogger) Debug(msg string, args ...any) {
	l.log(context.Background(), slog.LevelDebug, msg, args...)
}

// Info 输出 Info 级别日志
func (l *LazyLogger) Info(msg string, args ...any) {
	l.log(context.Background(), slog.LevelInfo, msg, args...)
}

// Warn 输出 Warn 级别日志
func (l *LazyLogger) Warn(msg string, args ...any) {
	l.log(context.Background(), slog.LevelWarn, msg, args...)
}

// Error 输出 Error 级别日志
func (l *LazyLogger) Error(msg string, args ...any) {
	l.log(context.Background(), slog.LevelError, msg, args...)
}

// DebugContext 带 context 的 Debug 日志
func (l *LazyLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, args...)
}

// InfoContext 带 context 的 Info 日志
func (l *LazyLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, msg, args...)
}

// WarnContext 带 context 的 Warn 日志
func (l *LazyLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args...)
}

// ErrorContext 带 context 的 Error 日志
func (l *LazyLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelError, msg, args...)
}

// ============================================================================
//                              工具函数
// ============================================================================

// TruncateID 安全截取 ID 用于日志显示
//
// 避免在日志中直接使用 id[:8] 导致 slice bounds out of range。
func TruncateID(id string, maxLen int) string {
	if len(id) <= maxLen {
		return id
	}
	return id[:maxLen]
}
