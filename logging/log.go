// Package logging builds the named zap loggers used across the trainer.
package logging

import (
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	MODULE_TRAINER = "[Trainer]"
	MODULE_DATASET = "[Dataset]"
	MODULE_STORAGE = "[Storage]"
	MODULE_MONITOR = "[Monitor]"
	MODULE_HTTP    = "[HTTP]"
)

// LogConfig controls level, file rotation and console output.
type LogConfig struct {
	Level      string `yaml:"level"`
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
	Console    bool   `yaml:"console"`
	ShowLine   bool   `yaml:"show_line"`
	// ModuleLevel overrides Level for individual modules, keyed by module name.
	ModuleLevel map[string]string `yaml:"module_level"`
}

// DefaultLogConfig logs INFO and above to the console only.
func DefaultLogConfig() *LogConfig {
	return &LogConfig{
		Level:      "INFO",
		MaxSizeMB:  30,
		MaxBackups: 7,
		MaxAgeDays: 7,
		Console:    true,
		ShowLine:   true,
	}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zap.DebugLevel
	case "WARN":
		return zap.WarnLevel
	case "ERROR":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// NewSugaredLogger builds a console-encoded logger named after a module.
// With an empty Path and Console off, output is discarded.
func NewSugaredLogger(name string, lc *LogConfig) *zap.SugaredLogger {
	if lc == nil {
		lc = DefaultLogConfig()
	}
	level := lc.Level
	if override, ok := lc.ModuleLevel[name]; ok {
		level = override
	}
	zapLevel := parseLevel(level)
	priority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapLevel
	})

	var syncers []zapcore.WriteSyncer
	if lc.Console {
		syncers = append(syncers, zapcore.AddSync(os.Stdout))
	}
	if lc.Path != "" {
		syncers = append(syncers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   lc.Path,
			MaxSize:    lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAge:     lc.MaxAgeDays,
			Compress:   lc.Compress,
		}))
	}
	if len(syncers) == 0 {
		return zap.NewNop().Sugar()
	}

	levelEncoder := func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString("[" + level.CapitalString() + "]")
	}
	timeEncoder := func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
	}
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "line",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    levelEncoder,
		EncodeTime:     timeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.NewMultiWriteSyncer(syncers...), priority)

	var opts []zap.Option
	if lc.ShowLine {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(core, opts...).Named(name).Sugar()
}

var (
	loggers     = make(map[string]*Logger)
	loggerMutex sync.Mutex
	logConfig   *LogConfig
)

// Logger is a module logger whose backing zap logger is swapped when the
// configuration changes.
type Logger struct {
	name string
	mu   sync.RWMutex
	zlog *zap.SugaredLogger
	// skip reports the caller of the wrapper methods below.
	skip *zap.SugaredLogger
}

func newLogger(name string, z *zap.SugaredLogger) *Logger {
	l := &Logger{name: name}
	l.set(z)
	return l
}

// Sugar returns the current zap logger.
func (l *Logger) Sugar() *zap.SugaredLogger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.zlog
}

func (l *Logger) set(z *zap.SugaredLogger) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.zlog = z
	l.skip = z.WithOptions(zap.AddCallerSkip(1))
}

func (l *Logger) wrapped() *zap.SugaredLogger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.skip
}

func (l *Logger) Debugw(msg string, kv ...interface{}) { l.wrapped().Debugw(msg, kv...) }
func (l *Logger) Infow(msg string, kv ...interface{})  { l.wrapped().Infow(msg, kv...) }
func (l *Logger) Warnw(msg string, kv ...interface{})  { l.wrapped().Warnw(msg, kv...) }
func (l *Logger) Errorw(msg string, kv ...interface{}) { l.wrapped().Errorw(msg, kv...) }

func (l *Logger) Infof(format string, args ...interface{})  { l.wrapped().Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.wrapped().Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.wrapped().Errorf(format, args...) }

// GetLogger returns the logger of a module, creating it on first use.
func GetLogger(name string) *Logger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	if logger, ok := loggers[name]; ok {
		return logger
	}
	if logConfig == nil {
		logConfig = DefaultLogConfig()
	}
	logger := newLogger(name, NewSugaredLogger(name, logConfig))
	loggers[name] = logger
	return logger
}

// SetLogConfig replaces the configuration and rebuilds existing loggers.
func SetLogConfig(config *LogConfig) {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	logConfig = config
	for _, logger := range loggers {
		logger.set(NewSugaredLogger(logger.name, logConfig))
	}
}

// Sync flushes every module logger.
func Sync() error {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	var err error
	for _, logger := range loggers {
		err = multierr.Append(err, logger.Sugar().Sync())
	}
	return err
}
