// Package logging configures the process-wide logrus logger for Spider's
// command-line programs.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/SAMI-Medical-Physics/spider/internal/config"
	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Prefix starts every log line.
const Prefix = "[Spider]"

// Formatter renders entries as "[Spider] message key=value ...", with a
// level tag for anything other than info.
type Formatter struct {
	// Color paints the prefix blue.
	Color bool
	// Timestamp starts the line with the entry time in RFC 3339.
	Timestamp bool
}

func (f *Formatter) Format(e *log.Entry) ([]byte, error) {
	var b bytes.Buffer
	if f.Timestamp {
		b.WriteString(e.Time.Format(time.RFC3339))
		b.WriteByte(' ')
	}
	if f.Color {
		b.WriteString("\033[34m" + Prefix + "\033[0m ")
	} else {
		b.WriteString(Prefix + " ")
	}

	switch e.Level {
	case log.WarnLevel:
		b.WriteString("warning: ")
	case log.ErrorLevel, log.FatalLevel, log.PanicLevel:
		b.WriteString("error: ")
	case log.DebugLevel, log.TraceLevel:
		b.WriteString("debug: ")
	}
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// fileHook copies entries to a rotating log file.
type fileHook struct {
	w         io.Writer
	formatter log.Formatter
}

func (h *fileHook) Levels() []log.Level { return log.AllLevels }

func (h *fileHook) Fire(e *log.Entry) error {
	line, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	_, err = h.w.Write(line)
	return err
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup points the standard logger at stderr with the level from cfg and,
// when cfg names a log file, adds a size-rotated copy of every entry. The
// returned Closer releases the file.
func Setup(cfg *config.Config) (io.Closer, error) {
	return setup(cfg, os.Stderr, isatty.IsTerminal(os.Stderr.Fd()))
}

func setup(cfg *config.Config, stderr io.Writer, color bool) (io.Closer, error) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	logger := log.StandardLogger()
	logger.SetOutput(stderr)
	logger.SetLevel(level)
	logger.SetFormatter(&Formatter{Color: color})
	logger.ReplaceHooks(make(log.LevelHooks))

	if cfg.Log.File == "" {
		return nopCloser{}, nil
	}

	lj := &lumberjack.Logger{
		Filename:   cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
	}
	logger.AddHook(&fileHook{w: lj, formatter: &Formatter{Timestamp: true}})
	return lj, nil
}
