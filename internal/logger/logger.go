package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 统一的键值日志接口
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
	Err(err error, msg string, kv ...any)
	With(kv ...any) Logger
}

type zeroLogger struct {
	l zerolog.Logger
}

// Options 日志输出配置
type Options struct {
	Level   string
	Writers []string
	File    string
}

// New 根据配置创建 zerolog 实现
func New(opts Options) Logger {
	var outs []io.Writer
	for _, w := range opts.Writers {
		switch w {
		case "console":
			outs = append(outs, zerolog.ConsoleWriter{Out: os.Stderr})
		case "file":
			file := opts.File
			if file == "" {
				file = "netstub.log"
			}
			outs = append(outs, &lumberjack.Logger{
				Filename:   file,
				MaxSize:    50,
				MaxBackups: 3,
				MaxAge:     7,
			})
		}
	}
	if len(outs) == 0 {
		outs = append(outs, zerolog.ConsoleWriter{Out: os.Stderr})
	}
	l := zerolog.New(zerolog.MultiLevelWriter(outs...)).
		Level(parseLevel(opts.Level)).
		With().Timestamp().Logger()
	return &zeroLogger{l: l}
}

// NewNop 创建丢弃所有输出的空实现
func NewNop() Logger {
	return &zeroLogger{l: zerolog.Nop()}
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (z *zeroLogger) Debug(msg string, kv ...any) { z.l.Debug().Fields(kv).Msg(msg) }
func (z *zeroLogger) Info(msg string, kv ...any)  { z.l.Info().Fields(kv).Msg(msg) }
func (z *zeroLogger) Warn(msg string, kv ...any)  { z.l.Warn().Fields(kv).Msg(msg) }
func (z *zeroLogger) Error(msg string, kv ...any) { z.l.Error().Fields(kv).Msg(msg) }

func (z *zeroLogger) Err(err error, msg string, kv ...any) {
	z.l.Error().Err(err).Fields(kv).Msg(msg)
}

func (z *zeroLogger) With(kv ...any) Logger {
	return &zeroLogger{l: z.l.With().Fields(kv).Logger()}
}
