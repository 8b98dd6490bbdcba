package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeOracle()
	c.normalizeOrchestrator()
	c.normalizeEval()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeOracle() {
	if key, ok := os.LookupEnv("SCENEFORGE_ORACLE_API_KEY"); ok && strings.TrimSpace(key) != "" {
		c.Oracle.APIKey = strings.TrimSpace(key)
	}
	if strings.TrimSpace(c.Oracle.BaseURL) == "" {
		c.Oracle.BaseURL = defaultOracleBaseURL
	}
	if strings.TrimSpace(c.Oracle.Model) == "" {
		c.Oracle.Model = defaultOracleModel
	}
	if c.Oracle.TimeoutSeconds <= 0 {
		c.Oracle.TimeoutSeconds = defaultOracleTimeoutSeconds
	}
}

func (c *Config) normalizeOrchestrator() {
	if c.Orchestrator.MaxRevisionRetries <= 0 {
		c.Orchestrator.MaxRevisionRetries = defaultMaxRevisionRetries
	}
	if c.Orchestrator.PendingLeaseSeconds <= 0 {
		c.Orchestrator.PendingLeaseSeconds = defaultPendingLeaseSeconds
	}
	c.Orchestrator.DefaultCrossProjectPolicy = strings.ToLower(strings.TrimSpace(c.Orchestrator.DefaultCrossProjectPolicy))
	if c.Orchestrator.DefaultCrossProjectPolicy == "" {
		c.Orchestrator.DefaultCrossProjectPolicy = defaultCrossProjectPolicy
	}
}

func (c *Config) normalizeEval() {
	if c.Eval.Workers <= 0 {
		c.Eval.Workers = defaultEvalWorkers
	}
	if c.Eval.CacheSize <= 0 {
		c.Eval.CacheSize = defaultEvalCacheSize
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
