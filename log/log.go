package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const EnvLogPath = "PROMPTER_LOG_PATH"

// diagnostics_log.txt rolls over at diagMaxMB, keeping diagBackups old files.
const (
	diagMaxMB   = 5
	diagBackups = 3
)

var (
	diagLog   zerolog.Logger
	diagFile  *lumberjack.Logger
	takesFile *os.File
	logMu     sync.Mutex
	logReady  bool
	pid       int
	dir       string
)

type TakeMetrics struct {
	AudioLengthS float64
	SizeKB       float64
	EncodeTimeMs float64
	Format       string
	Device       string
}

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: PROMPTER_LOG_PATH environment variable
	envPath := os.Getenv(EnvLogPath)
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	takesPath := filepath.Join(dir, "takes_log.txt")
	var err error
	takesFile, err = os.OpenFile(takesPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	diagFile = &lumberjack.Logger{
		Filename:   filepath.Join(dir, "diagnostics_log.txt"),
		MaxSize:    diagMaxMB,
		MaxBackups: diagBackups,
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()
	diagLog.Info().Str("dir", dir).Msg("log_open")

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	logReady = false
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if takesFile != nil {
		takesFile.Close()
		takesFile = nil
	}
}

func ready() bool {
	logMu.Lock()
	defer logMu.Unlock()
	return logReady
}

func Info(msg string) {
	if ready() {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if ready() {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if ready() {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if ready() {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if ready() {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if ready() {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(device, format string, countdown int) {
	if !ready() {
		return
	}
	diagLog.Info().
		Str("device", device).
		Str("format", format).
		Int("countdown_s", countdown).
		Msg("session_start")
}

func SessionEnd(takes int) {
	if !ready() {
		return
	}
	diagLog.Info().
		Int("takes", takes).
		Msg("session_end")
}

func TakeStarted(device string) {
	if !ready() {
		return
	}
	diagLog.Info().Str("device", device).Msg("take_start")
}

func TakeFinalized(m TakeMetrics) {
	if !ready() {
		return
	}
	diagLog.Info().
		Str("format", m.Format).
		Str("device", m.Device).
		Float64("audio_s", m.AudioLengthS).
		Float64("size_kb", m.SizeKB).
		Float64("encode_ms", m.EncodeTimeMs).
		Msg("take_finalized")
}

// TakeSaved records the saved take in the diagnostics log and appends a
// line to takes_log.txt.
func TakeSaved(path string, length time.Duration) {
	if !ready() {
		return
	}
	diagLog.Info().Str("path", path).Float64("audio_s", length.Seconds()).Msg("take_saved")

	logMu.Lock()
	defer logMu.Unlock()
	if takesFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%.1fs\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, length.Seconds(), path)
	takesFile.WriteString(line)
}

func TakeDiscarded(id string, length time.Duration) {
	if !ready() {
		return
	}
	diagLog.Info().Str("id", id).Float64("audio_s", length.Seconds()).Msg("take_discarded")
}

func DeviceSwitch(from, to string) {
	if !ready() {
		return
	}
	diagLog.Info().Str("from", from).Str("to", to).Msg("device_switch")
}

func CaptureFailed(op, device string, err error) {
	if !ready() {
		return
	}
	diagLog.Error().Str("op", op).Str("device", device).Err(err).Msg("capture_failed")
}
