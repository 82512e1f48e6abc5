package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Log는 전역 로거 인스턴스
	Log *zap.Logger
	// fileWriter는 현재 파일 writer (파일 출력일 때만)
	fileWriter *dailyWriter
)

// LogConfig는 로거 설정
type LogConfig struct {
	Level      string
	Output     string // console, file, both
	FilePath   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
}

// InitLogger는 전역 zap 로거를 초기화합니다
func InitLogger(cfg LogConfig) error {
	logger, writer, err := build(cfg, os.Stdout, time.Now)
	if err != nil {
		return err
	}

	Close()
	Log = logger
	fileWriter = writer
	return nil
}

// New는 전역 상태를 건드리지 않는 로거를 만듭니다. 반환된 close 함수로 파일을 닫습니다.
func New(cfg LogConfig) (*zap.Logger, func() error, error) {
	logger, writer, err := build(cfg, os.Stdout, time.Now)
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() error {
		_ = logger.Sync()
		if writer != nil {
			return writer.Close()
		}
		return nil
	}
	return logger, closeFn, nil
}

func build(cfg LogConfig, console zapcore.WriteSyncer, now func() time.Time) (*zap.Logger, *dailyWriter, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	consoleConfig := zap.NewProductionEncoderConfig()
	consoleConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	fileConfig := zap.NewProductionEncoderConfig()
	fileConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	fileConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(consoleConfig), console, level)

	var (
		core   zapcore.Core
		writer *dailyWriter
	)

	switch cfg.Output {
	case "file", "both":
		writer, err = newDailyWriter(cfg, now)
		if err != nil {
			return nil, nil, err
		}
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(fileConfig), writer, level)
		if cfg.Output == "both" {
			core = zapcore.NewTee(consoleCore, fileCore)
		} else {
			core = fileCore
		}
	default:
		core = consoleCore
	}

	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), writer, nil
}

// dailyWriter는 날짜가 바뀌면 새 날짜 이름의 lumberjack 파일로 전환합니다.
// 예: logs/trafficcam.log -> logs/trafficcam-2025-11-17.log
type dailyWriter struct {
	cfg  LogConfig
	now  func() time.Time
	day  string
	file *lumberjack.Logger
	mu   sync.Mutex
}

func newDailyWriter(cfg LogConfig, now func() time.Time) (*dailyWriter, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("log file path is required for output %s", cfg.Output)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	w := &dailyWriter{cfg: cfg, now: now}
	w.rotate(now())
	return w, nil
}

// rotate는 mu를 잡은 상태에서 호출됩니다
func (w *dailyWriter) rotate(at time.Time) {
	if w.file != nil {
		_ = w.file.Close()
	}
	w.day = at.Format("2006-01-02")
	w.file = &lumberjack.Logger{
		Filename:   dailyFilePath(w.cfg.FilePath, at),
		MaxSize:    w.cfg.MaxSize,    // MB
		MaxBackups: w.cfg.MaxBackups, // 보관할 최대 파일 개수
		MaxAge:     w.cfg.MaxAge,     // 일 단위
		LocalTime:  true,
		Compress:   true,
	}
}

func (w *dailyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if now := w.now(); now.Format("2006-01-02") != w.day {
		w.rotate(now)
	}
	return w.file.Write(p)
}

func (w *dailyWriter) Sync() error {
	return nil
}

func (w *dailyWriter) Filename() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Filename
}

func (w *dailyWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// dailyFilePath는 날짜를 포함한 로그 파일 경로를 생성합니다
func dailyFilePath(basePath string, at time.Time) string {
	ext := filepath.Ext(basePath)
	nameWithoutExt := strings.TrimSuffix(basePath, ext)
	return fmt.Sprintf("%s-%s%s", nameWithoutExt, at.Format("2006-01-02"), ext)
}

// L은 전역 로거를 반환합니다. 초기화 전이면 Nop 로거입니다.
func L() *zap.Logger {
	if Log == nil {
		return zap.NewNop()
	}
	return Log
}

// Close는 로거를 종료하고 리소스를 정리합니다
func Close() {
	if Log != nil {
		_ = Log.Sync()
	}
	if fileWriter != nil {
		_ = fileWriter.Close()
		fileWriter = nil
	}
}

// Sync는 로거 버퍼를 플러시합니다
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}

// Info는 info 레벨 로그를 출력합니다
func Info(msg string, fields ...zap.Field) {
	L().Info(msg, fields...)
}

// Debug는 debug 레벨 로그를 출력합니다
func Debug(msg string, fields ...zap.Field) {
	L().Debug(msg, fields...)
}

// Warn는 warn 레벨 로그를 출력합니다
func Warn(msg string, fields ...zap.Field) {
	L().Warn(msg, fields...)
}

// Error는 error 레벨 로그를 출력합니다
func Error(msg string, fields ...zap.Field) {
	L().Error(msg, fields...)
}

// Fatal는 fatal 레벨 로그를 출력하고 프로그램을 종료합니다
func Fatal(msg string, fields ...zap.Field) {
	if Log != nil {
		Log.Fatal(msg, fields...)
	}
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
