package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateMakeMKV(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateWatcher(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validatePaths() error {
	if c.Paths.RipsDir == "" {
		return errors.New("paths.rips_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	if c.Paths.RipsDir == c.Paths.OutputDir {
		return errors.New("paths.rips_dir and paths.output_dir must differ; converted files would be re-detected")
	}
	return nil
}

func (c *Config) validateMakeMKV() error {
	if c.MakeMKV.DriveIndex < 0 {
		return errors.New("makemkv.drive_index must not be negative")
	}
	if c.MakeMKV.RipTimeout < 0 {
		return errors.New("makemkv.rip_timeout must not be negative (seconds)")
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if c.Transcode.Profile < 0 || c.Transcode.Profile > 5 {
		return fmt.Errorf("transcode.profile must be between 0 and 5, got %d", c.Transcode.Profile)
	}
	if c.Transcode.Timeout < 0 {
		return errors.New("transcode.timeout must not be negative (seconds)")
	}
	return nil
}

func (c *Config) validateWatcher() error {
	if c.Watcher.PollInterval <= 0 {
		return errors.New("watcher.poll_interval must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive (seconds)")
	}
	return nil
}
