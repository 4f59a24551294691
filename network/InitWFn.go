package network

import (
	"fmt"
	"strings"

	G "gorgonia.org/gorgonia"
)

// Available weight initialization types
const (
	GlorotU = "glorotu"
	GlorotN = "glorotn"
	HeU     = "heu"
	HeN     = "hen"
	Zeroes  = "zeroes"
)

// InitWFn names a Gorgonia weight initialization scheme so that it can
// be read from configuration files. Gain scales the initial weights.
type InitWFn struct {
	Type string  `yaml:"type" json:"type" mapstructure:"type"`
	Gain float64 `yaml:"gain" json:"gain" mapstructure:"gain"`
}

// NewGlorotU returns a Glorot uniform initializer with the given gain
func NewGlorotU(gain float64) InitWFn {
	return InitWFn{Type: GlorotU, Gain: gain}
}

// Create returns the Gorgonia InitWFn that i describes
func (i InitWFn) Create() (G.InitWFn, error) {
	gain := i.Gain
	if gain == 0 {
		gain = 1.0
	}

	switch strings.ToLower(i.Type) {
	case GlorotU:
		return G.GlorotU(gain), nil
	case GlorotN:
		return G.GlorotN(gain), nil
	case HeU:
		return G.HeU(gain), nil
	case HeN:
		return G.HeN(gain), nil
	case Zeroes:
		return G.Zeroes(), nil
	default:
		return nil, fmt.Errorf("create: unknown weight initializer %q",
			i.Type)
	}
}

// String implements the fmt.Stringer interface
func (i InitWFn) String() string {
	return fmt.Sprintf("{%v InitWFn: gain %v}", i.Type, i.Gain)
}
