package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

const (
	defaultMaxSize    = 10 * 1024 * 1024
	defaultMaxBackups = 3

	logFilePrefix = "gitbuddy_"
)

// Config holds logger configuration
type Config struct {
	Level      LogLevel
	OutputFile string    // empty = console only
	Console    io.Writer // default stderr; stdout carries command output and MCP frames
	Quiet      bool      // file only, ignored without OutputFile
	MaxSize    int64     // bytes before OutputFile is rotated
	MaxBackups int       // rotated copies kept as OutputFile.1 .. OutputFile.N
	JSONFormat bool
	AddSource  bool
}

// Logger owns the slog handler and the open log file
type Logger struct {
	slog   *slog.Logger
	config Config
	mu     sync.Mutex
	file   *os.File
}

var (
	globalLogger *Logger
	once         sync.Once
)

// Initialize creates the process logger and installs it as the slog default,
// so component loggers taken from slog.Default() share its handler.
func Initialize(config Config) error {
	var initErr error
	once.Do(func() {
		logger, err := NewLogger(config)
		if err != nil {
			initErr = fmt.Errorf("failed to initialize logger: %w", err)
			return
		}
		globalLogger = logger
		slog.SetDefault(logger.slog)
	})
	return initErr
}

// NewLogger builds a logger writing to the console, the file, or both
func NewLogger(config Config) (*Logger, error) {
	if config.MaxSize <= 0 {
		config.MaxSize = defaultMaxSize
	}
	if config.MaxBackups <= 0 {
		config.MaxBackups = defaultMaxBackups
	}
	l := &Logger{config: config}

	var writers []io.Writer
	if !config.Quiet || config.OutputFile == "" {
		console := config.Console
		if console == nil {
			console = os.Stderr
		}
		writers = append(writers, console)
	}

	if config.OutputFile != "" {
		file, err := openLogFile(config)
		if err != nil {
			return nil, err
		}
		l.file = file
		writers = append(writers, file)
	}

	opts := &slog.HandlerOptions{Level: config.Level.slogLevel(), AddSource: config.AddSource}
	out := io.MultiWriter(writers...)
	if config.JSONFormat {
		l.slog = slog.New(slog.NewJSONHandler(out, opts))
	} else {
		l.slog = slog.New(slog.NewTextHandler(out, opts))
	}
	return l, nil
}

func openLogFile(config Config) (*os.File, error) {
	dir := filepath.Dir(config.OutputFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	if err := rotate(config.OutputFile, config.MaxSize, config.MaxBackups); err != nil {
		return nil, fmt.Errorf("failed to rotate logs: %w", err)
	}
	file, err := os.OpenFile(config.OutputFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", config.OutputFile, err)
	}
	return file, nil
}

// rotate shifts path to path.1 (path.1 to path.2, ...) once it reaches maxSize
func rotate(path string, maxSize int64, maxBackups int) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() < maxSize {
		return nil
	}

	os.Remove(fmt.Sprintf("%s.%d", path, maxBackups))
	for i := maxBackups - 1; i >= 1; i-- {
		os.Rename(fmt.Sprintf("%s.%d", path, i), fmt.Sprintf("%s.%d", path, i+1))
	}
	return os.Rename(path, path+".1")
}

func (lvl LogLevel) slogLevel() slog.Level {
	switch lvl {
	case DEBUG:
		return slog.LevelDebug
	case WARN:
		return slog.LevelWarn
	case ERROR:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// Slog returns the underlying slog logger
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// With returns a logger carrying extra attributes. It shares the file.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...), config: l.config, file: l.file}
}

// Close closes the log file if one is open
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Close closes the process logger
func Close() error {
	if globalLogger != nil {
		return globalLogger.Close()
	}
	return nil
}

// ParseLevel maps "debug", "info", "warn" and "error" to a LogLevel
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "", "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level %q", s)
	}
}

// DefaultLogFile is a timestamped file under dir
func DefaultLogFile(dir string) string {
	return filepath.Join(dir, logFilePrefix+time.Now().Format("2006-01-02_15-04-05")+".log")
}

// PruneLogFiles deletes all but the newest keep timestamped log files in dir.
// It returns how many were removed.
func PruneLogFiles(dir string, keep int) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, logFilePrefix+"*.log"))
	if err != nil {
		return 0, err
	}
	if len(matches) <= keep {
		return 0, nil
	}

	// Timestamps sort lexically
	sort.Strings(matches)
	removed := 0
	for _, path := range matches[:len(matches)-keep] {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// DefaultConfig logs warnings to the console, or everything in debug mode
func DefaultConfig(debugMode bool) Config {
	level := WARN
	if debugMode {
		level = DEBUG
	}
	return Config{
		Level:      level,
		MaxSize:    defaultMaxSize,
		MaxBackups: defaultMaxBackups,
		AddSource:  debugMode,
	}
}
