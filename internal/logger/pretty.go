// internal/logger/pretty.go
package logger

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// Colors for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorPurple = "\033[35m"
	ColorCyan   = "\033[36m"
	ColorBold   = "\033[1m"
)

// PrettyEncoder creates a user-friendly console encoder
func PrettyEncoder() zapcore.Encoder {
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    customLevelEncoder,
		EncodeTime:     customTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	})
}

func customLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch level {
	case zapcore.DebugLevel:
		enc.AppendString(ColorCyan + "[DEBUG]" + ColorReset)
	case zapcore.InfoLevel:
		enc.AppendString(ColorGreen + "[INFO]" + ColorReset)
	case zapcore.WarnLevel:
		enc.AppendString(ColorYellow + "[WARN]" + ColorReset)
	case zapcore.ErrorLevel:
		enc.AppendString(ColorRed + "[ERROR]" + ColorReset)
	case zapcore.FatalLevel:
		enc.AppendString(ColorRed + ColorBold + "[FATAL]" + ColorReset)
	default:
		enc.AppendString(fmt.Sprintf("[%s]", level.CapitalString()))
	}
}

func customTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("15:04:05"))
}

// FormatMessage decorates the engine's lifecycle messages for the console.
func FormatMessage(msg string) string {
	switch {
	case strings.HasPrefix(msg, "Listing created"):
		return ColorBlue + "📋 " + msg + ColorReset
	case strings.HasPrefix(msg, "Purchase accepted"):
		return ColorCyan + "⚡ " + msg + ColorReset
	case strings.HasPrefix(msg, "Listing graduated"):
		return ColorGreen + ColorBold + "🎉 " + msg + ColorReset
	case strings.HasPrefix(msg, "Swap executed"):
		return ColorPurple + "🔁 " + msg + ColorReset
	case strings.HasPrefix(msg, "Liquidity"):
		return ColorBlue + "💧 " + msg + ColorReset
	case strings.HasPrefix(msg, "Reward claimed"), strings.HasPrefix(msg, "Fees withdrawn"):
		return ColorGreen + "💰 " + msg + ColorReset
	case strings.HasPrefix(msg, "Operation rejected"):
		return ColorYellow + "✗ " + msg + ColorReset
	default:
		return msg
	}
}

// prettyCore rewrites messages through FormatMessage before encoding.
type prettyCore struct {
	zapcore.Core
}

func (c *prettyCore) With(fields []zapcore.Field) zapcore.Core {
	return &prettyCore{Core: c.Core.With(fields)}
}

func (c *prettyCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *prettyCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	entry.Message = FormatMessage(entry.Message)
	return c.Core.Write(entry, fields)
}
