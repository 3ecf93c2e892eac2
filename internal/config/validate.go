package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validateTiming(); err != nil {
		return err
	}
	if err := c.validatePreflight(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateOutput() error {
	if c.Output.Width <= 0 || c.Output.Height <= 0 {
		return errors.New("output.width and output.height must be positive")
	}
	if c.Output.FrameRate <= 0 {
		return errors.New("output.frame_rate must be positive")
	}
	if strings.TrimSpace(c.Output.Codec) == "" {
		return errors.New("output.codec must be set")
	}
	return nil
}

func (c *Config) validateTiming() error {
	if c.Timing.TrailingPadMS < 0 {
		return errors.New("timing.trailing_pad_ms must not be negative")
	}
	if c.Timing.MSPerChar <= 0 {
		return errors.New("timing.ms_per_char must be positive")
	}
	if c.Timing.MinEstimateMS <= 0 || c.Timing.DefaultSceneMS <= 0 {
		return errors.New("timing.min_estimate_ms and timing.default_scene_ms must be positive")
	}
	return nil
}

func (c *Config) validatePreflight() error {
	if c.Preflight.ProbeTimeoutSeconds <= 0 {
		return errors.New("preflight.probe_timeout_seconds must be positive")
	}
	if c.Preflight.ProbeFanout <= 0 {
		return errors.New("preflight.probe_fanout must be positive")
	}
	return nil
}

func (c *Config) validateJobs() error {
	if c.Jobs.MaxAttempts <= 0 {
		return errors.New("jobs.max_attempts must be positive")
	}
	if c.Jobs.RetryBackoffSeconds <= 0 {
		return errors.New("jobs.retry_backoff_seconds must be positive")
	}
	if c.Jobs.MaxBackoffSeconds < c.Jobs.RetryBackoffSeconds {
		return errors.New("jobs.max_backoff_seconds must be at least jobs.retry_backoff_seconds")
	}
	if c.Jobs.PollIntervalSeconds <= 0 {
		return errors.New("jobs.poll_interval_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "console", "json", "":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
