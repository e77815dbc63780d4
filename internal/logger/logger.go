package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// LogFileName is the name of the rotated log file inside Options.Dir
const LogFileName = "desktop-agent.log"

// Options controls where and how verbosely the process logs
type Options struct {
	Verbose    bool
	Dir        string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var rotator *lumberjack.Logger

// Init installs the global zap logger.
//
// The console core writes warnings and errors to stderr (debug and above when
// verbose). When a directory is configured, a JSON core writes info and above
// to a rotated file in that directory.
func Init(opts Options) {
	consoleLevel := zapcore.WarnLevel
	if opts.Verbose {
		consoleLevel = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), consoleLevel),
	}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err == nil {
			rotator = &lumberjack.Logger{
				Filename:   filepath.Join(opts.Dir, LogFileName),
				MaxSize:    opts.MaxSizeMB,
				MaxBackups: opts.MaxBackups,
				MaxAge:     opts.MaxAgeDays,
				Compress:   true,
			}
			fileLevel := zapcore.InfoLevel
			if opts.Verbose {
				fileLevel = zapcore.DebugLevel
			}
			cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotator), fileLevel))
		}
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	zap.ReplaceGlobals(l)
}

// Close flushes buffered entries and closes the log file
func Close() {
	_ = zap.L().Sync()
	if rotator != nil {
		_ = rotator.Close()
		rotator = nil
	}
}

// Debug logs a debug message
func Debug(msg string, keysAndValues ...any) {
	zap.S().Debugw(msg, keysAndValues...)
}

// Info logs an info message
func Info(msg string, keysAndValues ...any) {
	zap.S().Infow(msg, keysAndValues...)
}

// Warn logs a warning message
func Warn(msg string, keysAndValues ...any) {
	zap.S().Warnw(msg, keysAndValues...)
}

// Error logs an error message
func Error(msg string, keysAndValues ...any) {
	zap.S().Errorw(msg, keysAndValues...)
}
