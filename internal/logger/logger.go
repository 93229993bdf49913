package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log 是全局共享的 logrus 实例，未调用 Init 时使用 logrus 默认设置。
var Log = logrus.New()

// Init 按日志级别与运行环境配置全局 logger。
// production/staging 输出 JSON，其它环境输出带时间戳的文本。
func Init(level, environment string) {
	Log.SetOutput(os.Stdout)

	parsed, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		Log.Warnf("invalid log level %q, defaulting to info", level)
		parsed = logrus.InfoLevel
	}
	Log.SetLevel(parsed)

	switch strings.ToLower(environment) {
	case "production", "staging":
		Log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	default:
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	Log.Debugf("logger initialized (level=%s, environment=%s)", Log.GetLevel(), environment)
}

// Discard 关闭日志输出，供测试使用。
func Discard() {
	Log.SetOutput(io.Discard)
}

// WithComponent 返回带 component 字段的日志条目。
func WithComponent(name string) *logrus.Entry {
	return Log.WithField("component", name)
}
