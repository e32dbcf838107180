// Package config loads run settings from the environment and .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrConfiguration is returned for missing or malformed settings.
var ErrConfiguration = errors.New("configuration error")

// Defaults.
const (
	DefaultNetwork      = "mainnet"
	DefaultTraceTimeout = 60 * time.Second
	DefaultCacheDir     = ".cache/traces"
	DefaultOutputDir    = "reports"
	DefaultKafkaTopic   = "txrecon.reports"
)

// Settings holds every tunable of a run.
type Settings struct {
	TxHash       string // empty: taken from the expectations file
	Network      string
	ForceRefresh bool

	TraceRPCURL    string // may contain {network}; empty: provider default
	TraceAccessKey string
	TraceTimeout   time.Duration

	CacheDir  string
	OutputDir string

	// Reproduction: a fixture file, or a live node.
	ReproFixture   string
	LocalRPCURL    string
	LocalWSURL     string
	LocalTxHash    string
	ReproABI       string
	ReproAddresses []string

	VictimsFile string
	TokensFile  string

	PostgresDSN   string
	ClickHouseDSN string
	KafkaBrokers  string
	KafkaTopic    string
	MetricsFile   string
}

// Load reads .env and .env.local from the working directory, then the
// process environment. Precedence: .env.local over the environment over .env.
func Load() (*Settings, error) {
	return LoadFiles(".env", ".env.local")
}

// LoadFiles is Load with explicit file names. Missing files are ignored.
func LoadFiles(base, local string) (*Settings, error) {
	env := make(map[string]string)

	baseVals, err := readEnvFile(base)
	if err != nil {
		return nil, err
	}
	for k, v := range baseVals {
		env[k] = v
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	localVals, err := readEnvFile(local)
	if err != nil {
		return nil, err
	}
	for k, v := range localVals {
		env[k] = v
	}

	return FromLookup(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
}

func readEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	vals, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfiguration, path, err)
	}
	return vals, nil
}

// FromLookup builds Settings from a key lookup. Keys are accepted in
// UPPER_CASE or lower_case.
func FromLookup(lookup func(string) (string, bool)) (*Settings, error) {
	get := func(key, def string) string {
		for _, k := range []string{key, strings.ToLower(key)} {
			if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		return def
	}

	s := &Settings{
		TxHash:         get("TX_HASH", ""),
		Network:        get("NETWORK", DefaultNetwork),
		TraceRPCURL:    get("TRACE_RPC_URL", ""),
		TraceAccessKey: get("TRACE_ACCESS_KEY", ""),
		CacheDir:       get("CACHE_DIR", DefaultCacheDir),
		OutputDir:      get("OUTPUT_DIR", DefaultOutputDir),
		ReproFixture:   get("REPRO_FIXTURE", ""),
		LocalRPCURL:    get("LOCAL_RPC_URL", ""),
		LocalWSURL:     get("LOCAL_WS_URL", ""),
		LocalTxHash:    get("LOCAL_TX_HASH", ""),
		ReproABI:       get("REPRO_ABI", ""),
		ReproAddresses: SplitList(get("REPRO_EVENT_ADDRESSES", "")),
		VictimsFile:    get("VICTIMS_FILE", ""),
		TokensFile:     get("TOKENS_FILE", ""),
		PostgresDSN:    get("POSTGRES_DSN", ""),
		ClickHouseDSN:  get("CLICKHOUSE_DSN", ""),
		KafkaBrokers:   get("KAFKA_BROKERS", ""),
		KafkaTopic:     get("KAFKA_TOPIC", DefaultKafkaTopic),
		MetricsFile:    get("METRICS_FILE", ""),
	}

	var err error
	if s.ForceRefresh, err = parseBool(get("FORCE_REFRESH", "false")); err != nil {
		return nil, fmt.Errorf("%w: FORCE_REFRESH: %v", ErrConfiguration, err)
	}
	if s.TraceTimeout, err = parseDuration(get("TRACE_TIMEOUT", "")); err != nil {
		return nil, fmt.Errorf("%w: TRACE_TIMEOUT: %v", ErrConfiguration, err)
	}
	return s, nil
}

// Validate checks the settings needed for a reconciliation run.
func (s *Settings) Validate() error {
	var missing []string
	if s.Network == "" {
		missing = append(missing, "NETWORK")
	}
	if s.VictimsFile == "" {
		missing = append(missing, "VICTIMS_FILE")
	}
	if s.ReproFixture == "" {
		if s.LocalRPCURL == "" {
			missing = append(missing, "REPRO_FIXTURE or LOCAL_RPC_URL")
		}
		if s.LocalRPCURL != "" && s.LocalTxHash == "" {
			missing = append(missing, "LOCAL_TX_HASH")
		}
	}
	if s.KafkaBrokers != "" && s.KafkaTopic == "" {
		missing = append(missing, "KAFKA_TOPIC")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrConfiguration, strings.Join(missing, ", "))
	}
	if s.TraceTimeout <= 0 {
		return fmt.Errorf("%w: TRACE_TIMEOUT must be positive", ErrConfiguration)
	}
	return nil
}

// LiveRepro reports whether the reproduction is read from a node.
func (s *Settings) LiveRepro() bool {
	return s.ReproFixture == "" && s.LocalRPCURL != ""
}

// SplitList splits a comma-separated list, dropping empty items.
func SplitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off", "":
		return false, nil
	}
	return strconv.ParseBool(v)
}

// parseDuration accepts Go durations ("90s") or plain seconds ("90").
func parseDuration(v string) (time.Duration, error) {
	if v == "" {
		return DefaultTraceTimeout, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}
