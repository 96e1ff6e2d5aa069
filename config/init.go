package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/kelseyhightower/envconfig"
	yaml "gopkg.in/yaml.v2"
)

const envPrefix = "LZBRIDGE"

// reading config error is fatal, and exists main thread
func processError(err error) {
	fmt.Println(err)
	os.Exit(2)
}

func readFile(path string, cfg *Configuration) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	return decoder.Decode(cfg)
}

func readEnv(cfg *Configuration) error {
	return envconfig.Process(envPrefix, cfg)
}

// Load reads the yaml file at path, overlays the environment and validates
func Load(path string) (*Configuration, error) {
	cfg := &Configuration{}
	if err := readFile(path, cfg); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := readEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Configuration) Validate() error {
	var result *multierror.Error

	if c.Server.Transport != TransportMock && c.Server.Transport != TransportQueued {
		result = multierror.Append(result, fmt.Errorf("unknown transport %q", c.Server.Transport))
	}
	if c.Fees.LzTokenRatio < 0 {
		result = multierror.Append(result, fmt.Errorf("negative lz token ratio %d", c.Fees.LzTokenRatio))
	}
	if err := c.Topology.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

func Init() {
	cfg, err := Load("config.yml")
	if err != nil {
		processError(err)
	}
	Config = *cfg
}
