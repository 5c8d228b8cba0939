package coins

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// networkConfig is one network's overrides in a config file.
type networkConfig struct {
	Family Family `yaml:"family"`
	// Seeds replace the network's seeds if set.
	Seeds []Seed `yaml:"seeds"`
	// Params override individual parameters, the rest are kept.
	Params yaml.Node `yaml:"params"`
}

type configFile struct {
	Networks map[string]networkConfig `yaml:"networks"`
}

// Load applies the YAML overrides from r to networks. Unknown networks are
// added, and must then specify a family and seeds.
//
// Example:
//
//	networks:
//	  eth:
//	    seeds:
//	      - main: https://eth.example.org
//	        alt: http://10.0.0.1:8545
//	    params:
//	      normal_update_interval: 2m
//	      threshold: 3
func Load(r io.Reader, networks map[string]Network) error {
	var cfg configFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return err
	}

	for name, override := range cfg.Networks {
		n, ok := networks[name]
		if !ok {
			n = Network{Name: name}
		}
		if override.Family != "" {
			n.Family = override.Family
		}
		if override.Seeds != nil {
			n.Seeds = override.Seeds
		}
		if !override.Params.IsZero() {
			if err := override.Params.Decode(&n.Params); err != nil {
				return fmt.Errorf("%s: invalid params: %w", name, err)
			}
		}
		if n.Family == "" || len(n.Seeds) == 0 {
			return fmt.Errorf("%s: network needs a family and seeds", name)
		}
		if _, err := n.Nodes(); err != nil {
			return err
		}
		if err := n.Params.WithDefaults().Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		networks[name] = n
	}
	return nil
}

// LoadFile reads overrides from a YAML file on top of the built-in
// networks.
func LoadFile(path string) (map[string]Network, error) {
	networks := Builtin()
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := Load(f, networks); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return networks, nil
}
