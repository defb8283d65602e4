package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcribeFile *os.File
	logMu          sync.Mutex
	logReady       bool
	pid            int
	dir            string
)

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

	// Priority 2: ORION_LOG_PATH environment variable
	envPath := os.Getenv("ORION_LOG_PATH")
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

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	transcribePath := filepath.Join(dir, "transcribe_log.txt")
	transcribeFile, err = os.OpenFile(transcribePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcribeFile != nil {
		transcribeFile.Close()
		transcribeFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// CaptureMetrics describes one finished capture-to-transcription turn.
type CaptureMetrics struct {
	AudioLengthS float64
	RawSizeKB    float64
	UploadKB     float64
	EncodeTimeMs float64
	RequestMs    float64
	TotalMs      float64
}

func Capture(m CaptureMetrics, format string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("format", format).
		Float64("audio_s", m.AudioLengthS).
		Float64("raw_kb", m.RawSizeKB).
		Float64("upload_kb", m.UploadKB).
		Float64("encode_ms", m.EncodeTimeMs).
		Float64("request_ms", m.RequestMs).
		Float64("total_ms", m.TotalMs).
		Msg("capture")
}

// NoteFlush records the outcome of one autosave flush.
func NoteFlush(noteID string, state string, elapsed time.Duration) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("note_id", noteID).
		Str("state", state).
		Int64("ms", elapsed.Milliseconds()).
		Msg("note_flush")
}

func NoteDiscard(noteID string, staleSeq, currentSeq uint64) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("note_id", noteID).
		Uint64("stale_seq", staleSeq).
		Uint64("current_seq", currentSeq).
		Msg("note_stale_discard")
}

func Playback(event string, chars int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("event", event).
		Int("chars", chars).
		Msg("playback")
}

func TranscriptionText(text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	transcribeFile.WriteString(line)
}

func SessionStart(server, format, lang string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("server", server).
		Str("format", format).
		Str("lang", lang).
		Msg("session_start")
}

func SessionEnd(captures, flushes int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("captures", captures).
		Int("flushes", flushes).
		Msg("session_end")
}
