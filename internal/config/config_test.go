package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromLookup_Defaults(t *testing.T) {
	s, err := FromLookup(lookupMap(nil))
	require.NoError(t, err)

	assert.Equal(t, "", s.TxHash)
	assert.Equal(t, DefaultNetwork, s.Network)
	assert.False(t, s.ForceRefresh)
	assert.Equal(t, DefaultTraceTimeout, s.TraceTimeout)
	assert.Equal(t, DefaultCacheDir, s.CacheDir)
	assert.Equal(t, DefaultOutputDir, s.OutputDir)
	assert.Equal(t, DefaultKafkaTopic, s.KafkaTopic)
	assert.Empty(t, s.TraceAccessKey)
}

func TestFromLookup_Values(t *testing.T) {
	s, err := FromLookup(lookupMap(map[string]string{
		"TX_HASH":               "0xabc",
		"network":               "base",
		"FORCE_REFRESH":         "yes",
		"trace_access_key":      " secret ",
		"TRACE_TIMEOUT":         "90",
		"REPRO_EVENT_ADDRESSES": "0x01, ,0x02",
		"KAFKA_BROKERS":         "a:9092",
	}))
	require.NoError(t, err)

	assert.Equal(t, "0xabc", s.TxHash)
	assert.Equal(t, "base", s.Network)
	assert.True(t, s.ForceRefresh)
	assert.Equal(t, "secret", s.TraceAccessKey)
	assert.Equal(t, 90*time.Second, s.TraceTimeout)
	assert.Equal(t, []string{"0x01", "0x02"}, s.ReproAddresses)
	assert.Equal(t, "a:9092", s.KafkaBrokers)
}

func TestFromLookup_UpperCaseWins(t *testing.T) {
	s, err := FromLookup(lookupMap(map[string]string{"NETWORK": "mainnet", "network": "base"}))
	require.NoError(t, err)
	assert.Equal(t, "mainnet", s.Network)
}

func TestFromLookup_Invalid(t *testing.T) {
	_, err := FromLookup(lookupMap(map[string]string{"FORCE_REFRESH": "maybe"}))
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = FromLookup(lookupMap(map[string]string{"TRACE_TIMEOUT": "soon"}))
	assert.ErrorIs(t, err, ErrConfiguration)

	s, err := FromLookup(lookupMap(map[string]string{"TRACE_TIMEOUT": "1m30s"}))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, s.TraceTimeout)
}

func TestLoadFiles_Precedence(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, ".env")
	local := filepath.Join(dir, ".env.local")
	require.NoError(t, os.WriteFile(base, []byte("NETWORK=base\nCACHE_DIR=/from/env\nOUTPUT_DIR=/out/env\n"), 0o644))
	require.NoError(t, os.WriteFile(local, []byte("OUTPUT_DIR=/out/local\n"), 0o644))

	t.Setenv("CACHE_DIR", "/from/process")
	t.Setenv("OUTPUT_DIR", "/out/process")

	s, err := LoadFiles(base, local)
	require.NoError(t, err)
	assert.Equal(t, "base", s.Network, ".env fills unset keys")
	assert.Equal(t, "/from/process", s.CacheDir, "environment beats .env")
	assert.Equal(t, "/out/local", s.OutputDir, ".env.local beats environment")
}

func TestLoadFiles_MissingFiles(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NETWORK", "sepolia")
	s, err := LoadFiles(filepath.Join(dir, "none"), filepath.Join(dir, "none.local"))
	require.NoError(t, err)
	assert.Equal(t, "sepolia", s.Network)
}

func TestValidate(t *testing.T) {
	valid := func() *Settings {
		return &Settings{
			Network:      "mainnet",
			VictimsFile:  "victims.json",
			ReproFixture: "repro.json",
			TraceTimeout: time.Minute,
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"no victims", func(s *Settings) { s.VictimsFile = "" }},
		{"no repro", func(s *Settings) { s.ReproFixture = "" }},
		{"live without tx", func(s *Settings) { s.ReproFixture = ""; s.LocalRPCURL = "http://localhost:8545" }},
		{"kafka without topic", func(s *Settings) { s.KafkaBrokers = "a:9092"; s.KafkaTopic = "" }},
		{"zero timeout", func(s *Settings) { s.TraceTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			assert.ErrorIs(t, s.Validate(), ErrConfiguration)
		})
	}

	live := valid()
	live.ReproFixture = ""
	live.LocalRPCURL = "http://localhost:8545"
	live.LocalTxHash = "0xabc"
	require.NoError(t, live.Validate())
	assert.True(t, live.LiveRepro())
}
