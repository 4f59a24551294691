//go:build gym

package envconfig

import (
	env "github.com/samuelfneumann/onpolicy/environment"
	"github.com/samuelfneumann/onpolicy/environment/gym"
)

func init() {
	gymMaker = func(name string, discount float64, seed uint64) (
		env.Environment, error) {
		g, _, err := gym.New(name, discount, seed)
		return g, err
	}
}
