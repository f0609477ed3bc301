// Package config loads daemon configuration from DNSSYNC_-prefixed
// environment variables, with an optional YAML file overlay applied
// first so environment variables always win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "DNSSYNC_"

// Config is the daemon's fully resolved, validated configuration.
type Config struct {
	HostIP              string        `yaml:"host_ip"`
	Hostname            string        `yaml:"hostname"`
	DockerLabelPrefix   string        `yaml:"docker_label_prefix"`
	AllowedRecordTypes  []string      `yaml:"allowed_record_types"`
	EtcdHost            string        `yaml:"etcd_host"`
	EtcdPort            int           `yaml:"etcd_port"`
	EtcdPathPrefix      string        `yaml:"etcd_path_prefix"`
	EtcdLockTTL         time.Duration `yaml:"etcd_lock_ttl"`
	EtcdLockTimeout     time.Duration `yaml:"etcd_lock_timeout"`
	EtcdLockRetryInterval time.Duration `yaml:"etcd_lock_retry_interval"`
	PollInterval        time.Duration `yaml:"poll_interval"`
	StaleTTL            time.Duration `yaml:"stale_ttl"`
	LogLevel            string        `yaml:"log_level"`
	HealthPort          int           `yaml:"health_port"`
	LabelDefaultsFile   string        `yaml:"label_defaults_file"`
}

// Default returns the spec's documented defaults.
func Default() Config {
	return Config{
		HostIP:                "127.0.0.1",
		Hostname:              "your-hostname",
		DockerLabelPrefix:     "coredns",
		AllowedRecordTypes:    []string{"A", "CNAME"},
		EtcdHost:              "localhost",
		EtcdPort:              2379,
		EtcdPathPrefix:        "/skydns",
		EtcdLockTTL:           5 * time.Second,
		EtcdLockTimeout:       2 * time.Second,
		EtcdLockRetryInterval: 100 * time.Millisecond,
		PollInterval:          5 * time.Second,
		StaleTTL:              60 * time.Second,
		LogLevel:              "INFO",
		HealthPort:            8080,
	}
}

// ValidationError aggregates every configuration problem found so the
// operator can fix them all in one pass instead of one-at-a-time.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Problems, "; "))
}

// Load builds a Config by starting from Default, applying an optional
// YAML overlay file (yamlPath, ignored if empty or absent), then
// applying DNSSYNC_-prefixed environment variables, and finally
// validating the result.
func Load(yamlPath string) (Config, error) {
	cfg := Default()

	if yamlPath != "" {
		if err := applyYAMLFile(yamlPath, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v, ok := getEnv("HOST_IP"); ok {
		cfg.HostIP = v
	}
	if v, ok := getEnv("HOSTNAME"); ok {
		cfg.Hostname = v
	}
	if v, ok := getEnv("DOCKER_LABEL_PREFIX"); ok {
		cfg.DockerLabelPrefix = v
	}
	if v, ok := getEnv("ALLOWED_RECORD_TYPES"); ok {
		cfg.AllowedRecordTypes = splitCSV(v)
	}
	if v, ok := getEnv("ETCD_HOST"); ok {
		cfg.EtcdHost = v
	}
	if v, ok := getEnvInt("ETCD_PORT"); ok {
		cfg.EtcdPort = v
	}
	if v, ok := getEnv("ETCD_PATH_PREFIX"); ok {
		cfg.EtcdPathPrefix = v
	}
	if v, ok := getEnvDuration("ETCD_LOCK_TTL"); ok {
		cfg.EtcdLockTTL = v
	}
	if v, ok := getEnvDuration("ETCD_LOCK_TIMEOUT"); ok {
		cfg.EtcdLockTimeout = v
	}
	if v, ok := getEnvDuration("ETCD_LOCK_RETRY_INTERVAL"); ok {
		cfg.EtcdLockRetryInterval = v
	}
	if v, ok := getEnvDuration("POLL_INTERVAL"); ok {
		cfg.PollInterval = v
	}
	if v, ok := getEnvDuration("STALE_TTL"); ok {
		cfg.StaleTTL = v
	}
	if v, ok := getEnv("LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := getEnvInt("HEALTH_PORT"); ok {
		cfg.HealthPort = v
	}
	if v, ok := getEnv("LABEL_DEFAULTS_FILE"); ok {
		cfg.LabelDefaultsFile = v
	}
}

func validate(cfg *Config) error {
	var problems []string

	if cfg.Hostname == "" || cfg.Hostname == "your-hostname" {
		problems = append(problems, "hostname must be set to this host's identity")
	}
	if cfg.DockerLabelPrefix == "" {
		problems = append(problems, "docker_label_prefix must not be empty")
	}
	if len(cfg.AllowedRecordTypes) == 0 {
		problems = append(problems, "allowed_record_types must not be empty")
	}
	for _, t := range cfg.AllowedRecordTypes {
		if t != "A" && t != "CNAME" {
			problems = append(problems, fmt.Sprintf("unsupported record type in allowed_record_types: %q", t))
		}
	}
	if cfg.EtcdHost == "" {
		problems = append(problems, "etcd_host must not be empty")
	}
	if cfg.EtcdPort <= 0 {
		problems = append(problems, "etcd_port must be positive")
	}
	if cfg.EtcdPathPrefix == "" || !strings.HasPrefix(cfg.EtcdPathPrefix, "/") {
		problems = append(problems, "etcd_path_prefix must be a non-empty absolute path")
	}
	if cfg.EtcdLockTTL <= 0 {
		problems = append(problems, "etcd_lock_ttl must be positive")
	}
	if cfg.EtcdLockTimeout <= 0 {
		problems = append(problems, "etcd_lock_timeout must be positive")
	}
	if cfg.EtcdLockRetryInterval <= 0 {
		problems = append(problems, "etcd_lock_retry_interval must be positive")
	}
	if cfg.PollInterval <= 0 {
		problems = append(problems, "poll_interval must be positive")
	}
	if cfg.StaleTTL <= 0 {
		problems = append(problems, "stale_ttl must be positive")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func getEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func getEnvInt(name string) (int, bool) {
	v, ok := getEnv(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func getEnvDuration(name string) (time.Duration, bool) {
	v, ok := getEnv(name)
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}
