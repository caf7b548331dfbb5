package sso_signal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/trufnetwork/kwil-db/common"
)

const (
	// defaultRefreshSchedule probes the local attester every ten minutes.
	defaultRefreshSchedule = "*/10 * * * *"

	// defaultMaxBlockAge is the sync gate threshold in seconds.
	defaultMaxBlockAge int64 = 3600
)

// Config holds the node-local knobs of the extension. Everything here tunes
// observation on this machine only; admission policy is consensus state in
// main.signal_config and is never read from here.
type Config struct {
	// RefreshEnabled turns the local enclave report refresher on.
	RefreshEnabled bool

	// RefreshSchedule is the refresher cron expression. Five or six field
	// forms are accepted (the sixth is seconds).
	RefreshSchedule string

	// MaxBlockAgeSeconds bounds how stale the node's latest block may be
	// before background work is skipped. Zero uses the default, negative
	// disables the gate entirely.
	MaxBlockAgeSeconds int64
}

func DefaultConfig() Config {
	return Config{
		RefreshEnabled:     false,
		RefreshSchedule:    defaultRefreshSchedule,
		MaxBlockAgeSeconds: defaultMaxBlockAge,
	}
}

// LoadConfig reads the extension block of the node config. Missing keys keep
// their defaults; malformed values fail loudly so a typo does not silently
// leave the refresher off.
func LoadConfig(service *common.Service) (Config, error) {
	cfg := DefaultConfig()

	if service == nil || service.LocalConfig == nil {
		return cfg, nil
	}

	raw, ok := service.LocalConfig.Extensions[ExtensionName]
	if !ok {
		return cfg, nil
	}

	if v, ok := raw["refresh_enabled"]; ok {
		boolVal, err := parseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("parse refresh_enabled: %w", err)
		}
		cfg.RefreshEnabled = boolVal
	}

	if v, ok := raw["refresh_schedule"]; ok && strings.TrimSpace(v) != "" {
		cfg.RefreshSchedule = strings.TrimSpace(v)
	}

	if v, ok := raw["max_block_age"]; ok {
		val, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("parse max_block_age: %w", err)
		}
		cfg.MaxBlockAgeSeconds = val
	}

	return cfg, nil
}

func parseBool(in string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(in)) {
	case "true", "1", "yes", "y", "on":
		return true, nil
	case "false", "0", "no", "n", "off", "":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool %q", in)
	}
}
