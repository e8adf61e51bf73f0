// Copyright (c) 2026 The Hoard Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package selector

import (
	"errors"
	"fmt"
	"time"

	"github.com/uber-go/mapdecode"
	"go.uber.org/multierr"
	yaml "gopkg.in/yaml.v2"
)

// Config carries the selection engine's tunables.
type Config struct {
	// ForwardMaxTries caps the number of destinations produced for one
	// request.
	ForwardMaxTries int

	// PreferDirect puts the origin ahead of parents when both are
	// permitted.
	PreferDirect bool

	// NonhierarchicalDirect sends non-hierarchical requests directly
	// instead of through parents.
	NonhierarchicalDirect bool

	// QueryICMP enables ingesting RTT measurements from neighbor replies
	// into the network database.
	QueryICMP bool

	// MinimumDirectRTT is the origin RTT, in milliseconds, at or below
	// which going direct always wins.
	MinimumDirectRTT int

	// MinimumDirectHops is the origin hop count at or below which going
	// direct always wins.
	MinimumDirectHops int

	// NeighborsDoPrivateKeys permits querying neighbors about
	// privately-keyed entries.
	NeighborsDoPrivateKeys bool

	// DeadPeerTimeout is how long a peer marked down stays out of
	// rotation.
	DeadPeerTimeout time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		ForwardMaxTries:        10,
		NonhierarchicalDirect:  true,
		NeighborsDoPrivateKeys: true,
		DeadPeerTimeout:        10 * time.Minute,
	}
}

func (c Config) validate() error {
	var errs error
	if c.ForwardMaxTries < 1 {
		errs = multierr.Append(errs, errors.New("forward_max_tries must be at least 1"))
	}
	if c.MinimumDirectRTT < 0 {
		errs = multierr.Append(errs, errors.New("minimum_direct_rtt must not be negative"))
	}
	if c.MinimumDirectHops < 0 {
		errs = multierr.Append(errs, errors.New("minimum_direct_hops must not be negative"))
	}
	return errs
}

// configSpec is the wire shape of the configuration. Pointers distinguish an
// absent key from an explicit zero so defaults survive partial configs.
type configSpec struct {
	ForwardMaxTries        *int    `config:"forward_max_tries"`
	PreferDirect           *bool   `config:"prefer_direct"`
	NonhierarchicalDirect  *bool   `config:"nonhierarchical_direct"`
	QueryICMP              *bool   `config:"query_icmp"`
	MinimumDirectRTT       *int    `config:"minimum_direct_rtt"`
	MinimumDirectHops      *int    `config:"minimum_direct_hops"`
	NeighborsDoPrivateKeys *bool   `config:"neighbors_do_private_keys"`
	DeadPeerTimeout        *string `config:"dead_peer_timeout"`
}

// ParseConfig decodes YAML configuration, filling in defaults for absent
// keys.
func ParseConfig(data []byte) (Config, error) {
	var attrs map[string]interface{}
	if err := yaml.Unmarshal(data, &attrs); err != nil {
		return Config{}, fmt.Errorf("failed to parse selector configuration: %v", err)
	}
	return DecodeConfig(attrs)
}

// DecodeConfig decodes an attribute map, filling in defaults for absent
// keys.
func DecodeConfig(attrs map[string]interface{}) (Config, error) {
	var spec configSpec
	if err := mapdecode.Decode(&spec, attrs, mapdecode.TagName("config")); err != nil {
		return Config{}, fmt.Errorf("failed to decode selector configuration: %v", err)
	}

	c := DefaultConfig()
	if spec.ForwardMaxTries != nil {
		c.ForwardMaxTries = *spec.ForwardMaxTries
	}
	if spec.PreferDirect != nil {
		c.PreferDirect = *spec.PreferDirect
	}
	if spec.NonhierarchicalDirect != nil {
		c.NonhierarchicalDirect = *spec.NonhierarchicalDirect
	}
	if spec.QueryICMP != nil {
		c.QueryICMP = *spec.QueryICMP
	}
	if spec.MinimumDirectRTT != nil {
		c.MinimumDirectRTT = *spec.MinimumDirectRTT
	}
	if spec.MinimumDirectHops != nil {
		c.MinimumDirectHops = *spec.MinimumDirectHops
	}
	if spec.NeighborsDoPrivateKeys != nil {
		c.NeighborsDoPrivateKeys = *spec.NeighborsDoPrivateKeys
	}
	if spec.DeadPeerTimeout != nil {
		d, err := time.ParseDuration(*spec.DeadPeerTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("failed to parse dead_peer_timeout: %v", err)
		}
		c.DeadPeerTimeout = d
	}

	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
