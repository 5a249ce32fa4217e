package stepwise

import (
	"errors"
	"sync"

	"github.com/hupe1980/stepwise/adaboost"
	"github.com/hupe1980/stepwise/archive"
	"github.com/hupe1980/stepwise/dtree"
	"github.com/hupe1980/stepwise/kmeansinit"
	"github.com/hupe1980/stepwise/naivebayes"
	"github.com/hupe1980/stepwise/pca"
	"github.com/hupe1980/stepwise/quantiles"
	"github.com/hupe1980/stepwise/ridge"
)

// Register adds the archive types of every algorithm family to reg.
func Register(reg *archive.Registry) error {
	return errors.Join(
		kmeansinit.Register(reg),
		pca.Register(reg),
		naivebayes.Register(reg),
		ridge.Register(reg),
		adaboost.Register(reg),
		dtree.Register(reg),
		quantiles.Register(reg),
	)
}

var (
	defaultRegistry     *archive.Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns a sealed registry holding every archive type.
// It is built on first use.
func DefaultRegistry() *archive.Registry {
	defaultRegistryOnce.Do(func() {
		reg := archive.NewRegistry()
		if err := Register(reg); err != nil {
			panic(err)
		}
		reg.Seal()
		defaultRegistry = reg
	})
	return defaultRegistry
}
