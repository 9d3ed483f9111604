package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/openmined/sitedeploy/internal/deploy/planner"
	"github.com/openmined/sitedeploy/internal/deploy/rulebook"
	"github.com/openmined/sitedeploy/internal/utils"
)

const DefaultFileName = "sitedeploy.yaml"

var (
	ErrSiteDirRequired = errors.New("site_dir is required")
	ErrBucketRequired  = errors.New("bucket is required")
)

// Invalidation is the yaml shape of the invalidation block.
//
//	invalidation:
//	  enabled: true
//	  wait: false
//	  paths: all        # or a list of CDN path patterns
type Invalidation struct {
	Enabled bool  `yaml:"enabled"`
	Wait    bool  `yaml:"wait"`
	Paths   Paths `yaml:"paths"`
}

// Paths accepts either the scalar "all" or an explicit sequence.
type Paths struct {
	All  bool
	List []string
	set  bool
}

// AllPaths marks the invalidation to cover everything ("/*").
func AllPaths() Paths {
	return Paths{All: true, set: true}
}

// PathList sets explicit CDN path patterns. An empty list means nothing to
// invalidate.
func PathList(items ...string) Paths {
	return Paths{List: items, set: true}
}

func (p *Paths) UnmarshalYAML(value *yaml.Node) error {
	p.set = true
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Value != "all" {
			return fmt.Errorf("invalid paths value %q (want \"all\" or a list)", value.Value)
		}
		p.All = true
		return nil
	case yaml.SequenceNode:
		return value.Decode(&p.List)
	default:
		return fmt.Errorf("invalid paths value (want \"all\" or a list)")
	}
}

// Config is the deployment configuration, normally read from
// sitedeploy.yaml next to the project.
type Config struct {
	SiteDir        string          `yaml:"site_dir"`
	Bucket         string          `yaml:"bucket"`
	Region         string          `yaml:"region"`
	Endpoint       string          `yaml:"endpoint,omitempty"`
	DistributionID string          `yaml:"distribution_id,omitempty"`
	TextEncoding   string          `yaml:"text_encoding,omitempty"`
	Prune          bool            `yaml:"prune"`
	Rules          []rulebook.Rule `yaml:"rules,omitempty"`
	Invalidation   Invalidation    `yaml:"invalidation"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate resolves the site dir and checks the required fields. Rule
// patterns get validated by the planner right before classification.
func (c *Config) Validate() error {
	if c.SiteDir == "" {
		return ErrSiteDirRequired
	}
	resolved, err := utils.ResolvePath(c.SiteDir)
	if err != nil {
		return err
	}
	c.SiteDir = resolved
	if !utils.DirExists(c.SiteDir) {
		return fmt.Errorf("site_dir %s: %w", c.SiteDir, planner.ErrRootNotDir)
	}
	if c.Bucket == "" {
		return ErrBucketRequired
	}
	return nil
}

// Rulebook appends the user rules to the built-ins, preserving declaration
// order.
func (c *Config) Rulebook() rulebook.Rulebook {
	return rulebook.New(c.Rules...)
}

// InvalidationConfig normalizes the yaml block for the planner: enabled with
// no paths key means "all"; an explicitly empty list stays empty.
func (c *Config) InvalidationConfig() planner.InvalidationConfig {
	inv := planner.InvalidationConfig{
		Enabled: c.Invalidation.Enabled,
		Wait:    c.Invalidation.Wait,
		All:     c.Invalidation.Paths.All,
		Paths:   c.Invalidation.Paths.List,
	}
	if inv.Enabled && !c.Invalidation.Paths.set {
		inv.All = true
	}
	return inv
}
