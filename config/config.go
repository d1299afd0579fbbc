// Package config loads and validates the option map spec.md §6
// describes ("A string→string option map consumed by hierarchy
// setup"): K, ptsmax, maxlevel, NPQ, ACCU, and the domain center. I/O
// and option parsing are explicitly outside the core per spec.md §7
// ("surfaced to the driver; the core assumes validated inputs"), so
// this is the one package in the module that returns ordinary errors
// instead of aborting. Parsing is a plain gopkg.in/yaml.v3
// Unmarshal/Marshal round trip, the way
// awsqed-config-formatter/formatter/formatter.go reads and writes its
// YAML documents.
package config

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ddfmm-go/ddfmm/geom"
)

// Options is the validated option map the engine driver reads once at
// setup (spec.md §6 "The driver reads these once at setup").
type Options struct {
	K        float64 `yaml:"K"`
	PtsMax   int     `yaml:"ptsmax"`
	MaxLevel int     `yaml:"maxlevel"`
	NPQ      int     `yaml:"NPQ"`
	ACCU     float64 `yaml:"ACCU"`
	Center   [3]float64 `yaml:"center"`
}

// ErrInvalidOptions is wrapped by Validate with the specific field that
// failed a sanity check.
var ErrInvalidOptions = errors.New("config: invalid options")

// Default returns the option set spec.md's scenarios (§8) exercise for
// a small single-box low-frequency problem, useful as a starting point
// for a YAML document or for tests.
func Default() Options {
	return Options{
		K:        1.0,
		PtsMax:   50,
		MaxLevel: 6,
		NPQ:      3,
		ACCU:     1e-3,
		Center:   [3]float64{0, 0, 0},
	}
}

// Parse decodes a YAML option document into Options and validates it.
func Parse(data []byte) (Options, error) {
	opts := Default()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("config: parse: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Marshal encodes opts back to a YAML document, the round-trip
// formatter.Format/Unmarshal pattern awsqed-config-formatter follows.
func (o Options) Marshal() ([]byte, error) {
	return yaml.Marshal(o)
}

// Validate checks the option map is sane enough for the hierarchy
// builder to consume: spec.md §7 places parse/validation errors
// outside the core's fatal-abort policy, so these are ordinary
// returned errors, not panics.
func (o Options) Validate() error {
	switch {
	case o.K <= 0:
		return fmt.Errorf("%w: K must be positive, got %v", ErrInvalidOptions, o.K)
	case o.PtsMax <= 0:
		return fmt.Errorf("%w: ptsmax must be positive, got %d", ErrInvalidOptions, o.PtsMax)
	case o.MaxLevel < geom.UnitLevel(o.K):
		return fmt.Errorf("%w: maxlevel %d is below the unit level %d for K=%v", ErrInvalidOptions, o.MaxLevel, geom.UnitLevel(o.K), o.K)
	case o.NPQ <= 0:
		return fmt.Errorf("%w: NPQ must be positive, got %d", ErrInvalidOptions, o.NPQ)
	case o.ACCU <= 0:
		return fmt.Errorf("%w: ACCU must be positive, got %v", ErrInvalidOptions, o.ACCU)
	}
	return nil
}

// CenterVec returns Center as a geom.Vec.
func (o Options) CenterVec() geom.Vec {
	return geom.Vec{o.Center[0], o.Center[1], o.Center[2]}
}
