// Package config loads devrecords settings from defaults, an optional
// yaml file and DEVRECORDS_* environment variables, in that order
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kjk/devrecords/store"
)

const (
	DefaultPort    = 8000
	DefaultLogsDir = "logs"
	envPrefix      = "DEVRECORDS_"
)

type Query struct {
	// trim whitespace around device_id filter before matching
	TrimFilter bool `yaml:"trim_filter"`
}

type S3 struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Insecure  bool   `yaml:"insecure"`
}

// HasCredentials returns true if there's enough info to upload
func (s *S3) HasCredentials() bool {
	return s.Endpoint != "" && s.Bucket != "" && s.AccessKey != "" && s.SecretKey != ""
}

type Backup struct {
	// snapshots are written here
	Dir string `yaml:"dir"`
	S3  S3     `yaml:"s3"`
}

type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DataDir  string `yaml:"data_dir"`
	FileName string `yaml:"file_name"`
	LogsDir  string `yaml:"logs_dir"`
	// compress log files from previous days
	CompressLogs bool   `yaml:"compress_logs"`
	Verbose      bool   `yaml:"verbose"`
	Query        Query  `yaml:"query"`
	Backup       Backup `yaml:"backup"`
}

func Default() *Config {
	return &Config{
		Port:         DefaultPort,
		DataDir:      ".",
		FileName:     store.DefaultFileName,
		LogsDir:      DefaultLogsDir,
		CompressLogs: true,
		Backup: Backup{
			Dir: "backups",
		},
	}
}

// Load returns default config, overlaid with yaml file at path (if path
// is not empty) and then with environment variables
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		d, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err = yaml.Unmarshal(d, c); err != nil {
			return nil, fmt.Errorf("config: parsing '%s': %w", path, err)
		}
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() {
	c.Host = envOrDefault("HOST", c.Host)
	c.Port = intEnvOrDefault("PORT", c.Port)
	c.DataDir = envOrDefault("DATA_DIR", c.DataDir)
	c.FileName = envOrDefault("FILE_NAME", c.FileName)
	c.LogsDir = envOrDefault("LOGS_DIR", c.LogsDir)
	c.CompressLogs = boolEnvOrDefault("COMPRESS_LOGS", c.CompressLogs)
	c.Verbose = boolEnvOrDefault("VERBOSE", c.Verbose)
	c.Query.TrimFilter = boolEnvOrDefault("QUERY_TRIM_FILTER", c.Query.TrimFilter)
	c.Backup.Dir = envOrDefault("BACKUP_DIR", c.Backup.Dir)
	s3 := &c.Backup.S3
	s3.Endpoint = envOrDefault("S3_ENDPOINT", s3.Endpoint)
	s3.Bucket = envOrDefault("S3_BUCKET", s3.Bucket)
	s3.Prefix = envOrDefault("S3_PREFIX", s3.Prefix)
	s3.AccessKey = envOrDefault("S3_ACCESS_KEY", s3.AccessKey)
	s3.SecretKey = envOrDefault("S3_SECRET_KEY", s3.SecretKey)
	s3.Insecure = boolEnvOrDefault("S3_INSECURE", s3.Insecure)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is empty"))
	}
	switch strings.ToLower(filepath.Ext(c.FileName)) {
	case ".csv", ".xlsx":
		// ok
	default:
		errs = append(errs, fmt.Errorf("file_name '%s' must end with .csv or .xlsx", c.FileName))
	}
	if c.FileName != filepath.Base(c.FileName) {
		errs = append(errs, fmt.Errorf("file_name '%s' must not contain a directory", c.FileName))
	}
	s3 := c.Backup.S3
	if s3.Endpoint != "" && s3.Bucket == "" {
		errs = append(errs, errors.New("backup.s3.bucket is empty"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Addr is host:port to listen on
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// StorePath is the path of the backing file
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, c.FileName)
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(envPrefix + key)); v != "" {
		return v
	}
	return fallback
}

func intEnvOrDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func boolEnvOrDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(envPrefix + key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
