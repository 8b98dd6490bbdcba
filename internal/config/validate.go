package config

import (
	"errors"
	"fmt"
	"net"
)

var validPolicies = map[string]struct{}{
	"fail":   {},
	"warn":   {},
	"ignore": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateOrchestrator(); err != nil {
		return err
	}
	if err := c.validateOracle(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.APIBind != "" {
		if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
			return fmt.Errorf("paths.api_bind must be host:port: %w", err)
		}
	}
	return nil
}

func (c *Config) validateOrchestrator() error {
	if c.Orchestrator.MaxRevisionRetries <= 0 {
		return errors.New("orchestrator.max_revision_retries must be positive")
	}
	if c.Orchestrator.PendingLeaseSeconds <= 0 {
		return errors.New("orchestrator.pending_lease_seconds must be positive (seconds)")
	}
	if _, ok := validPolicies[c.Orchestrator.DefaultCrossProjectPolicy]; !ok {
		return fmt.Errorf("orchestrator.default_cross_project_policy must be fail, warn, or ignore (got %q)", c.Orchestrator.DefaultCrossProjectPolicy)
	}
	return nil
}

func (c *Config) validateOracle() error {
	if c.Oracle.BaseURL == "" {
		return errors.New("oracle.base_url must be set")
	}
	if c.Oracle.Model == "" {
		return errors.New("oracle.model must be set")
	}
	if c.Oracle.TimeoutSeconds <= 0 {
		return errors.New("oracle.timeout_seconds must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}
