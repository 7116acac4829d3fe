// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"github.com/z5labs/keel/config/key"

	"github.com/spf13/viper"
)

// Viper adapts a *viper.Viper, with whatever files, environment
// bindings and flags it was configured with, into a Source.
type Viper struct {
	v *viper.Viper
}

// FromViper returns a Source backed by v.
func FromViper(v *viper.Viper) Viper {
	return Viper{v: v}
}

// Apply implements the Source interface.
func (src Viper) Apply(store Store) error {
	for _, k := range src.v.AllKeys() {
		err := store.Set(key.Split(k, "."), src.v.Get(k))
		if err != nil {
			return err
		}
	}
	return nil
}
