// Package logger builds the structured logger used by the bench command and
// handed to caches through cache.Options.Logger.
package logger

import (
	"io"
	"os"
	"strings"

	"code.cloudfoundry.org/bytefmt"
	"github.com/pkg/errors"
	"github.com/ssgreg/logf"
	"github.com/ssgreg/logftext"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logging levels.
const (
	LevelError = "error"
	LevelWarn  = "warn"
	LevelInfo  = "info"
	LevelDebug = "debug"
)

// Logging formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Logging outputs.
const (
	OutputStdout = "stdout"
	OutputStderr = "stderr"
	OutputFile   = "file"
)

// Defaults for file rotation.
const (
	DefaultMaxSize    = "100M"
	DefaultMaxBackups = 5
	minMaxSizeBytes   = 1024 * 1024
)

// Config describes where and how log entries are written.
type Config struct {
	Level   string     `mapstructure:"level" yaml:"level" json:"level"`
	Format  string     `mapstructure:"format" yaml:"format" json:"format"`
	Output  string     `mapstructure:"output" yaml:"output" json:"output"`
	NoColor bool       `mapstructure:"nocolor" yaml:"nocolor" json:"nocolor"`
	File    FileConfig `mapstructure:"file" yaml:"file" json:"file"`
}

// FileConfig is used when Output is "file".
type FileConfig struct {
	Path string `mapstructure:"path" yaml:"path" json:"path"`
	// MaxSize is a human-readable size ("100M", "1G") after which the file
	// is rotated.
	MaxSize    string `mapstructure:"maxSize" yaml:"maxSize" json:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups" yaml:"maxBackups" json:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAgeDays" yaml:"maxAgeDays" json:"maxAgeDays"`
	Compress   bool   `mapstructure:"compress" yaml:"compress" json:"compress"`
}

// DefaultConfig returns JSON logs at info level on stdout.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Format: FormatJSON,
		Output: OutputStdout,
		File: FileConfig{
			MaxSize:    DefaultMaxSize,
			MaxBackups: DefaultMaxBackups,
		},
	}
}

// CloseFunc flushes pending entries and stops the background writer.
type CloseFunc func()

// Validate checks enumerations and the rotation size.
func (c Config) Validate() error {
	if _, err := parseLevel(c.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Format) {
	case FormatJSON, FormatText:
	default:
		return errors.Errorf("log.format: unknown format %q, want %q or %q", c.Format, FormatJSON, FormatText)
	}
	switch strings.ToLower(c.Output) {
	case OutputStdout, OutputStderr:
	case OutputFile:
		if c.File.Path == "" {
			return errors.New("log.file.path: must be set when output is file")
		}
		if _, err := c.File.maxSizeMB(); err != nil {
			return err
		}
		if c.File.MaxBackups < 0 {
			return errors.Errorf("log.file.maxBackups: must be >= 0, got %d", c.File.MaxBackups)
		}
	default:
		return errors.Errorf("log.output: unknown output %q", c.Output)
	}
	return nil
}

func (f FileConfig) maxSizeMB() (int, error) {
	s := f.MaxSize
	if s == "" {
		s = DefaultMaxSize
	}
	n, err := bytefmt.ToBytes(s)
	if err != nil {
		return 0, errors.Wrapf(err, "log.file.maxSize: parse %q", s)
	}
	if n < minMaxSizeBytes {
		return 0, errors.Errorf("log.file.maxSize: should be >= %s", bytefmt.ByteSize(minMaxSizeBytes))
	}
	return int(n / 1024 / 1024), nil
}

// New validates cfg and returns a logger writing through a channel writer.
// The returned CloseFunc must be called before exit to flush entries.
func New(cfg Config) (*logf.Logger, CloseFunc, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	var w io.Writer
	var closer io.Closer
	switch strings.ToLower(cfg.Output) {
	case OutputFile:
		size, _ := cfg.File.maxSizeMB()
		lj := &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    size,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		}
		w, closer = lj, lj
	case OutputStderr:
		w = os.Stderr
	default:
		w = os.Stdout
	}

	l, closeFn := newWithWriter(cfg, w)
	return l, func() {
		closeFn()
		if closer != nil {
			_ = closer.Close()
		}
	}, nil
}

func newWithWriter(cfg Config, w io.Writer) (*logf.Logger, CloseFunc) {
	level, _ := parseLevel(cfg.Level)
	channel, closeFn := logf.NewChannelWriter(logf.ChannelWriterConfig{
		Appender:          newAppender(cfg, w),
		EnableSyncOnError: true,
	})
	l := logf.NewLogger(level, channel).With(logf.Int("pid", os.Getpid()))
	return l, CloseFunc(closeFn)
}

func newAppender(cfg Config, w io.Writer) logf.Appender {
	if strings.ToLower(cfg.Format) == FormatText {
		noColor := cfg.NoColor
		return logftext.NewAppender(w, logftext.EncoderConfig{
			NoColor:    &noColor,
			EncodeTime: logf.RFC3339NanoTimeEncoder,
		})
	}
	return logf.NewWriteAppender(w, logf.NewJSONEncoder(logf.JSONEncoderConfig{
		EncodeTime:   logf.RFC3339NanoTimeEncoder,
		FieldKeyTime: "time",
	}))
}

func parseLevel(s string) (logf.Level, error) {
	switch strings.ToLower(s) {
	case LevelError:
		return logf.LevelError, nil
	case LevelWarn:
		return logf.LevelWarn, nil
	case "", LevelInfo:
		return logf.LevelInfo, nil
	case LevelDebug:
		return logf.LevelDebug, nil
	}
	return logf.LevelInfo, errors.Errorf("log.level: unknown level %q", s)
}
