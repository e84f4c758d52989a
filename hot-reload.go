// hot-reload.go: dynamic analysis configuration with Argus integration
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"fmt"
	"sync"
	"time"

	"github.com/agilira/argus"
	"github.com/c2h5oh/datasize"
)

// HotConfig watches an analysis configuration file and keeps a normalized
// Config current. Each reload rebuilds the Config from defaults plus the
// recognized keys (precision, sampling rate, sample cap, counter capacity,
// fidelity, bucket width, max cache, fixed block, workers), replaces the
// current one and reports both through the reload callback. Estimators copy
// their Config at construction, so a reload reaches only estimators built
// after it. The block range is not read from the file.
type HotConfig struct {
	watcher *argus.Watcher
	mu      sync.RWMutex
	config  Config

	// OnReload is called after configuration is successfully reloaded.
	// This callback is optional and must be fast and non-blocking.
	OnReload func(oldConfig, newConfig Config)
}

// HotConfigOptions configures hot reload behavior.
type HotConfigOptions struct {
	// ConfigPath is the path to the configuration file to watch.
	// Supports JSON, YAML, TOML, HCL, INI, Properties formats.
	ConfigPath string

	// PollInterval is how often to check for configuration changes.
	// Default: 1 second. Minimum: 100ms.
	PollInterval time.Duration

	// OnReload is called after configuration is successfully reloaded.
	OnReload func(oldConfig, newConfig Config)
}

// NewHotConfig creates a hot-reloadable analysis configuration. It starts
// from defaults and begins watching the file immediately.
//
// Example configuration file (YAML):
//
//	analysis:
//	  precision: 12
//	  sampling_rate: 0.01
//	  sample_cap: 8192
//	  counter_capacity: 64
//	  fidelity: hifi
//	  bucket_width: "32MB"
//	  max_cache: "2TB"
//	  fixed_block: "4KB"
//	  workers: 4
func NewHotConfig(opts HotConfigOptions) (*HotConfig, error) {
	if opts.ConfigPath == "" {
		return nil, fmt.Errorf("config_path is required")
	}

	if opts.PollInterval == 0 {
		opts.PollInterval = 1 * time.Second
	} else if opts.PollInterval < 100*time.Millisecond {
		opts.PollInterval = 100 * time.Millisecond
	}

	hc := &HotConfig{
		OnReload: opts.OnReload,
		config:   DefaultConfig(),
	}

	argusConfig := argus.Config{
		PollInterval: opts.PollInterval,
	}

	watcher, err := argus.UniversalConfigWatcherWithConfig(opts.ConfigPath, hc.handleConfigChange, argusConfig)
	if err != nil {
		return nil, err
	}
	hc.watcher = watcher

	return hc, nil
}

// Start begins watching the configuration file for changes.
func (hc *HotConfig) Start() error {
	if hc.watcher.IsRunning() {
		return nil
	}
	return hc.watcher.Start()
}

// Stop stops watching the configuration file.
func (hc *HotConfig) Stop() error {
	return hc.watcher.Stop()
}

// GetConfig returns the current configuration (thread-safe).
func (hc *HotConfig) GetConfig() Config {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.config
}

// handleConfigChange is called by Argus when configuration changes.
func (hc *HotConfig) handleConfigChange(configData map[string]interface{}) {
	hc.mu.Lock()
	oldConfig := hc.config
	newConfig := hc.parseConfig(configData)
	hc.config = newConfig
	hc.mu.Unlock()

	if hc.OnReload != nil {
		hc.OnReload(oldConfig, newConfig)
	}
}

// parsePositiveInt extracts a positive integer from interface{} value.
// Supports both int and float64 types (YAML/JSON may vary).
func parsePositiveInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		if v > 0 {
			return v, true
		}
	case float64:
		if v > 0 {
			return int(v), true
		}
	}
	return 0, false
}

// parseRate extracts a float64 in (0, 1].
func parseRate(value interface{}) (float64, bool) {
	if v, ok := value.(float64); ok {
		if v > 0 && v <= 1 {
			return v, true
		}
	}
	return 0, false
}

// parseByteSize accepts either a number of bytes or a human-readable
// string such as "32MB".
func parseByteSize(value interface{}) (datasize.ByteSize, bool) {
	switch v := value.(type) {
	case int:
		if v > 0 {
			return datasize.ByteSize(v), true
		}
	case float64:
		if v > 0 {
			return datasize.ByteSize(v), true
		}
	case string:
		var size datasize.ByteSize
		if err := size.UnmarshalText([]byte(v)); err == nil && size > 0 {
			return size, true
		}
	}
	return 0, false
}

// parseFidelity maps "hifi"/"lofi" onto the preset.
func parseFidelity(value interface{}) (Fidelity, bool) {
	if s, ok := value.(string); ok {
		switch s {
		case "hifi", "HiFi", "HIFI":
			return HiFi, true
		case "lofi", "LoFi", "LOFI":
			return LoFi, true
		}
	}
	return HiFi, false
}

// parseConfig extracts analysis configuration from Argus config data.
func (hc *HotConfig) parseConfig(data map[string]interface{}) Config {
	config := DefaultConfig()

	section, ok := data["analysis"].(map[string]interface{})
	if !ok {
		if _, hasPrecision := data["precision"]; hasPrecision {
			section = data
		} else {
			return config
		}
	}

	if precision, ok := parsePositiveInt(section["precision"]); ok && precision >= 4 && precision <= 16 {
		config.Precision = precision
		config.MaxLeadingZeros = 0 // re-derived from the new precision
		_ = config.Validate()
	}
	if rate, ok := parseRate(section["sampling_rate"]); ok {
		config.SamplingRate = rate
	}
	if sampleCap, ok := parsePositiveInt(section["sample_cap"]); ok {
		config.SampleCap = sampleCap
	}
	if capacity, ok := parsePositiveInt(section["counter_capacity"]); ok {
		config.CounterCapacity = capacity
	}
	if fidelity, ok := parseFidelity(section["fidelity"]); ok {
		config.Fidelity = fidelity
	}
	if size, ok := parseByteSize(section["bucket_width"]); ok {
		config.BucketWidthBytes = size
	}
	if size, ok := parseByteSize(section["max_cache"]); ok {
		config.MaxCacheBytes = size
	}
	if size, ok := parseByteSize(section["fixed_block"]); ok {
		config.FixedBlockBytes = size
	}
	if workers, ok := parsePositiveInt(section["workers"]); ok {
		config.Workers = workers
	}

	return config
}
