package config

import (
	"github.com/kbukum/mindboggle123/errors"
	"github.com/kbukum/mindboggle123/logger"
	"github.com/kbukum/mindboggle123/observability"
)

// ServiceConfig contains the settings every command of the module shares.
// Commands extend it by embedding it in their own config structs.
//
// Example:
//
//	type AppConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Pipeline workflow.Options `yaml:",inline" mapstructure:",squash"`
//	}
type ServiceConfig struct {
	Name          string               `yaml:"name" mapstructure:"name"`
	Version       string               `yaml:"version" mapstructure:"version"`
	Logging       logger.Config        `yaml:"logging" mapstructure:"logging"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// GetServiceConfig returns the base ServiceConfig.
// When embedded in a larger config struct, this method is promoted.
func (c *ServiceConfig) GetServiceConfig() *ServiceConfig {
	return c
}

// ApplyDefaults applies default values to the base configuration.
func (c *ServiceConfig) ApplyDefaults() {
	c.Logging.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate validates the base configuration fields.
func (c *ServiceConfig) Validate() error {
	if c.Name == "" {
		return errors.MissingField("name")
	}
	if err := c.Logging.Validate(); err != nil {
		return errors.Configuration("logging", err.Error())
	}
	if err := c.Observability.Validate(); err != nil {
		return errors.Configuration("observability", err.Error())
	}
	return nil
}
