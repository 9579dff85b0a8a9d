// Package config defines the deployments file model and its YAML persistence.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Nikolaikolya/deploy-commander/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the root of a deployments file.
type Config struct {
	// VariablesFile overrides the global variables file from settings.
	VariablesFile string        `yaml:"variables_file,omitempty"`
	Deployments   []*Deployment `yaml:"deployments" validate:"dive,required"`
}

// Deployment is a named group of ordered events.
type Deployment struct {
	Name          string   `yaml:"name" validate:"required"`
	Description   string   `yaml:"description,omitempty"`
	WorkingDir    string   `yaml:"working_dir,omitempty"`
	Environment   []string `yaml:"environment,omitempty"`
	VariablesFile string   `yaml:"variables_file,omitempty"`
	Events        []*Event `yaml:"events" validate:"required,min=1,dive,required"`
}

// Event is an ordered sequence of commands with a failure policy.
type Event struct {
	Name        string     `yaml:"name" validate:"required"`
	Description string     `yaml:"description,omitempty"`
	Commands    []*Command `yaml:"commands" validate:"required,min=1,dive,required"`
	// FailFast defaults to true when unset.
	FailFast *bool `yaml:"fail_fast,omitempty"`
}

// Command is a single shell command of an event.
type Command struct {
	Command         string            `yaml:"command" validate:"required"`
	Description     string            `yaml:"description,omitempty"`
	IgnoreErrors    bool              `yaml:"ignore_errors,omitempty"`
	RollbackCommand string            `yaml:"rollback_command,omitempty"`
	Interactive     bool              `yaml:"interactive,omitempty"`
	Inputs          map[string]string `yaml:"inputs,omitempty"`
	VariablesFile   string            `yaml:"variables_file,omitempty"`
}

// IsFailFast reports the effective fail_fast setting of the event.
func (e *Event) IsFailFast() bool {
	return e.FailFast == nil || *e.FailFast
}

// Load reads the deployments file at path. A missing file is created empty.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := &Config{Deployments: []*Deployment{}}
			if err := cfg.Save(path); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, errors.Wrap(errors.ErrCodeParse, fmt.Sprintf("failed to read %s", path), err)
	}

	return Parse(data, path)
}

// Parse decodes a deployments file from raw bytes.
func Parse(data []byte, sourcePath string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.ParseError(sourcePath, err)
	}
	if cfg.Deployments == nil {
		cfg.Deployments = []*Deployment{}
	}
	if err := cfg.checkEntries(); err != nil {
		return nil, errors.ParseError(sourcePath, err)
	}
	return &cfg, nil
}

// checkEntries rejects null list items, which YAML decodes to nil pointers.
func (c *Config) checkEntries() error {
	for i, d := range c.Deployments {
		if d == nil {
			return fmt.Errorf("deployments[%d] is empty", i)
		}
		for j, e := range d.Events {
			if e == nil {
				return fmt.Errorf("deployment %q: events[%d] is empty", d.Name, j)
			}
			for k, cmd := range e.Commands {
				if cmd == nil {
					return fmt.Errorf("deployment %q, event %q: commands[%d] is empty", d.Name, e.Name, k)
				}
			}
		}
	}
	return nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// FindDeployment returns the deployment with the given name.
func (c *Config) FindDeployment(name string) (*Deployment, error) {
	for _, d := range c.Deployments {
		if d != nil && d.Name == name {
			return d, nil
		}
	}
	return nil, errors.NotFoundError("deployment", name)
}

// FindEvent returns the named event of the named deployment.
func (c *Config) FindEvent(deployment, event string) (*Deployment, *Event, error) {
	d, err := c.FindDeployment(deployment)
	if err != nil {
		return nil, nil, err
	}
	ev, err := d.FindEvent(event)
	if err != nil {
		return nil, nil, err
	}
	return d, ev, nil
}

// FindEvent returns the event with the given name.
func (d *Deployment) FindEvent(name string) (*Event, error) {
	for _, e := range d.Events {
		if e != nil && e.Name == name {
			return e, nil
		}
	}
	return nil, errors.NotFoundError("event", name).WithDetail("deployment", d.Name)
}

// AddDeployment appends a deployment, rejecting duplicate names.
func (c *Config) AddDeployment(d *Deployment) error {
	if _, err := c.FindDeployment(d.Name); err == nil {
		return errors.ConflictError("deployment", d.Name)
	}
	c.Deployments = append(c.Deployments, d)
	return nil
}

// DeploymentNames returns deployment names in declaration order.
func (c *Config) DeploymentNames() []string {
	names := make([]string, 0, len(c.Deployments))
	for _, d := range c.Deployments {
		if d != nil {
			names = append(names, d.Name)
		}
	}
	return names
}
