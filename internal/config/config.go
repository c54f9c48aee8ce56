package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/ingest-buddy/internal/core/domain"
)

const (
	EnvPrefix      = "INGEST_BUDDY_"
	DefaultPath    = "config.cfg"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	IngestPath string `koanf:"INGEST_PATH"`
	SourceDir  string `koanf:"SOURCE_DIR"`

	StoreDriver string `koanf:"STORE_DRIVER"`
	StorePath   string `koanf:"STORE_PATH"`
	PostgresDSN string `koanf:"POSTGRES_DSN"`

	TempDir    string `koanf:"TEMP_DIR"`
	FailureLog string `koanf:"FAILURE_LOG"`

	MaxFilenameLength int      `koanf:"MAX_FILENAME_LENGTH"`
	FuzzyThreshold    float64  `koanf:"FUZZY_THRESHOLD"`
	SampleWindow      int      `koanf:"SAMPLE_WINDOW"`
	SampleMarkers     []string `koanf:"SAMPLE_MARKERS"`
	ExcludeFiles      []string `koanf:"EXCLUDE_FILES"`
	ExcludeExts       []string `koanf:"EXCLUDE_EXTS"`

	EbookMetaBin    string        `koanf:"EBOOK_META_BIN"`
	EbookConvertBin string        `koanf:"EBOOK_CONVERT_BIN"`
	ToolTimeout     time.Duration `koanf:"TOOL_TIMEOUT"`

	LogLevel string `koanf:"LOG_LEVEL"`

	NATSURL     string `koanf:"NATS_URL"`
	NATSSubject string `koanf:"NATS_SUBJECT"`

	MetricsTextfile string `koanf:"METRICS_TEXTFILE"`
}

func defaults() map[string]any {
	return map[string]any{
		"SOURCE_DIR":          "./My-Books",
		"STORE_DRIVER":        DriverSQLite,
		"STORE_PATH":          "./log-files/cwa-ingest-buddy.db",
		"TEMP_DIR":            "./temp-books",
		"FAILURE_LOG":         "./log-files/failures.log",
		"MAX_FILENAME_LENGTH": 150,
		"FUZZY_THRESHOLD":     85.0,
		"SAMPLE_WINDOW":       1000,
		"SAMPLE_MARKERS":      "chapter,introduction,prologue",
		"EXCLUDE_FILES":       ".calnotes,.stfolder,metadata.db",
		"EXCLUDE_EXTS":        ".part,.crdownload,.tmp,.txt,.log,.bak,.old",
		"EBOOK_META_BIN":      "ebook-meta",
		"EBOOK_CONVERT_BIN":   "ebook-convert",
		"TOOL_TIMEOUT":        "5m",
		"LOG_LEVEL":           "info",
		"NATS_SUBJECT":        "books.ingested",
	}
}

// Load reads defaults, then the config file at path, then INGEST_BUDDY_*
// environment variables. Later sources win. The file is KEY=value unless its
// extension is .yaml or .yml.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	if _, err := os.Stat(path); err != nil {
		return Config{}, domain.WrapError(domain.ErrConfigMissing, "read config file", err)
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}
	if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
		return Config{}, fmt.Errorf("load config file %s: %w", path, err)
	}
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(s, EnvPrefix)
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("load env vars: %w", err)
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return Config{}, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	c.IngestPath = strings.TrimSpace(c.IngestPath)
	if c.IngestPath == "" {
		return domain.WrapError(domain.ErrConfigMissing, "read config file", errors.New("INGEST_PATH not set"))
	}
	abs, err := filepath.Abs(c.IngestPath)
	if err != nil {
		return fmt.Errorf("resolve INGEST_PATH: %w", err)
	}
	c.IngestPath = abs

	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case DriverSQLite:
	case DriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return domain.WrapError(domain.ErrConfigMissing, "read config file", errors.New("POSTGRES_DSN not set"))
		}
	default:
		return domain.WrapError(domain.ErrInvalidInput, "read config file", fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	c.SampleMarkers = trimList(c.SampleMarkers)
	c.ExcludeFiles = trimList(c.ExcludeFiles)
	c.ExcludeExts = trimList(c.ExcludeExts)
	return nil
}

func trimList(in []string) []string {
	out := in[:0]
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAMLParser()
	default:
		return KeyValueParser()
	}
}

type keyValueParser struct{}

// KeyValueParser parses shell-style KEY=value files. Lines that are not a
// KEY=value pair are ignored, as are '#' comments. An "export " prefix is
// allowed and one pair of surrounding quotes is stripped from values.
func KeyValueParser() koanf.Parser {
	return keyValueParser{}
}

func (keyValueParser) Unmarshal(b []byte) (map[string]any, error) {
	out := make(map[string]any)
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" || strings.ContainsAny(key, " \t") {
			continue
		}
		out[key] = unquote(strings.TrimSpace(value))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (keyValueParser) Marshal(m map[string]any) ([]byte, error) {
	var b bytes.Buffer
	for k, v := range m {
		fmt.Fprintf(&b, "%s=%v\n", k, v)
	}
	return b.Bytes(), nil
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

type yamlParser struct{}

// YAMLParser reads a flat YAML mapping using the same upper-case keys as the
// KEY=value format. List values are accepted for list settings.
func YAMLParser() koanf.Parser {
	return yamlParser{}
}

func (yamlParser) Unmarshal(b []byte) (map[string]any, error) {
	out := make(map[string]any)
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return out, nil
}

func (yamlParser) Marshal(m map[string]any) ([]byte, error) {
	return yaml.Marshal(m)
}
