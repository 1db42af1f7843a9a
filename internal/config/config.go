// Package config loads the settings of an export run. Sources are applied in order, later
// ones winning: defaults, `config.json5` (+ `config.local.json5`), `.env`, environment
// variables and finally command line flags (applied by the caller).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"eduplus-export/internal/components/telemetry"
	"eduplus-export/internal/exporter"
	"eduplus-export/internal/scrapers/eduplus"
	"eduplus-export/pkg/configutil"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
)

const (
	DefaultFile = "config.json5"

	EnvSession  = "EDUPLUS_SESSION"
	EnvTracking = "EDUPLUS_TRACKING"
	EnvCourseId = "EDUPLUS_COURSE_ID"
)

var (
	ErrMissingSession  = errors.New("missing session cookie, set `session` or " + EnvSession)
	ErrMissingCourseId = errors.New("missing course id, set `course_id`, " + EnvCourseId + " or --course")
)

type Config struct {
	BaseUrl  string `json:"base_url"`
	Session  string `json:"session"`
	Tracking string `json:"tracking"`
	CourseId string `json:"course_id"`

	JsonDir    string `json:"json_dir"`
	TextDir    string `json:"text_dir"`
	FilePrefix string `json:"file_prefix"`

	// zero values mean the defaults
	TimeoutSeconds  int `json:"timeout_seconds"`
	DetailPauseMs   int `json:"detail_pause_ms"`
	HomeworkPauseMs int `json:"homework_pause_ms"`

	MaxRequestsPerSecond float64 `json:"max_requests_per_second"`
	CloudflareBypass     bool    `json:"cloudflare_bypass"`

	Otlp telemetry.OtlpConfig `json:"otlp"`
}

// Default returns the configuration used for every field that is not set.
func Default() Config {
	return Config{
		BaseUrl:         eduplus.DefaultBaseUrl,
		JsonDir:         "homework_json",
		TextDir:         "homework_text",
		FilePrefix:      exporter.DefaultPrefix,
		TimeoutSeconds:  int(eduplus.DefaultTimeout / time.Second),
		DetailPauseMs:   int(exporter.DefaultDetailPause / time.Millisecond),
		HomeworkPauseMs: int(exporter.DefaultHomeworkPause / time.Millisecond),
	}
}

// Load reads the configuration file at path, which is allowed to not exist, then applies
// `.env` and the environment on top of it. A bare file name is also looked up in the
// parent directories of the working directory.
func Load(path string) (Config, error) {
	read := configutil.ReadConfig[Config]
	if filepath.Base(path) == path {
		read = configutil.ReadRecursively[Config]
	}

	cfg, err := read(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	err = godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg.ApplyEnv(os.Getenv)

	err = mergo.Merge(&cfg, Default())
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides the credentials and the course with the environment variables
// that are set.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvSession); v != "" {
		c.Session = v
	}
	if v := getenv(EnvTracking); v != "" {
		c.Tracking = v
	}
	if v := getenv(EnvCourseId); v != "" {
		c.CourseId = v
	}
}

// Validate checks the fields that have no sensible default.
func (c Config) Validate() error {
	var errs []error
	if c.Session == "" {
		errs = append(errs, ErrMissingSession)
	}
	if c.CourseId == "" {
		errs = append(errs, ErrMissingCourseId)
	}
	if c.MaxRequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("max_requests_per_second must not be negative, got %v", c.MaxRequestsPerSecond))
	}
	return errors.Join(errs...)
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// ClientOptions returns the options of the eduplus client. `dump` may be nil.
func (c Config) ClientOptions(dump telemetry.MessageOutput) eduplus.ClientOptions {
	return eduplus.ClientOptions{
		BaseUrl:              c.BaseUrl,
		Session:              c.Session,
		Tracking:             c.Tracking,
		Timeout:              time.Duration(c.TimeoutSeconds) * time.Second,
		MaxRequestsPerSecond: c.MaxRequestsPerSecond,
		CloudflareBypass:     c.CloudflareBypass,
		Dump:                 dump,
	}
}

// ExporterOptions returns the options of the export pipeline.
func (c Config) ExporterOptions(filter exporter.Filter) exporter.Options {
	return exporter.Options{
		CourseId:      c.CourseId,
		JsonDir:       c.JsonDir,
		TextDir:       c.TextDir,
		Prefix:        c.FilePrefix,
		DetailPause:   millis(c.DetailPauseMs),
		HomeworkPause: millis(c.HomeworkPauseMs),
		Filter:        filter,
	}
}
