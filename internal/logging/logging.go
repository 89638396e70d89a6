package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logLevelMap = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
}

// Logger is the structured log surface used across the pipeline.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type logger struct {
	sugar *zap.SugaredLogger
}

// NewLogger writes JSON log lines to stderr and a rotating daily file
// under logsDir.
func NewLogger(logsDir, level string) Logger {
	currentDate := time.Now().Format("20060102")
	logFileName := filepath.Join(logsDir, fmt.Sprintf("rulegen-%s.log", currentDate))

	fileWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:  logFileName,
		MaxSize:   50, // megabytes
		MaxAge:    7,  // days
		Compress:  true,
		LocalTime: true,
	})

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000"),
		EncodeDuration: zapcore.SecondsDurationEncoder,
	}

	logLevel, exists := logLevelMap[strings.ToLower(level)]
	if !exists {
		logLevel = zapcore.InfoLevel
	}

	core := zapcore.NewTee(
		zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(os.Stderr),
			logLevel,
		),
		zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			fileWriter,
			logLevel,
		),
	)

	return &logger{sugar: zap.New(core).Sugar()}
}

func (l *logger) Debug(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *logger) Info(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *logger) Warn(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *logger) Error(format string, args ...any) { l.sugar.Errorf(format, args...) }

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards everything. Used in tests.
func Nop() Logger { return nopLogger{} }
