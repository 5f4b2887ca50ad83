package cli

import (
	"time"

	"tshard/internal/config"
)

// Flags holds command-line flags
type Flags struct {
	Shards     int
	Parallel   int
	Strategy   string
	Retries    int
	Index      int
	Auto       bool
	Merge      bool
	Provision  bool
	NoFresh    bool
	CleanFirst bool
	FailFast   bool
	StaleAfter time.Duration
	Filter     string
	TestPath   string
	TestCases  bool
	Plan       bool
	PrepareCmd string
	Watch      bool
}

// ToConfigFlags converts CLI flags to config flags
func (f *Flags) ToConfigFlags() config.Flags {
	return config.Flags{
		Shards:     f.Shards,
		Parallel:   f.Parallel,
		Strategy:   f.Strategy,
		Retries:    f.Retries,
		Index:      f.Index,
		Auto:       f.Auto,
		Merge:      f.Merge,
		Provision:  f.Provision,
		NoFresh:    f.NoFresh,
		CleanFirst: f.CleanFirst,
		FailFast:   f.FailFast,
		StaleAfter: f.StaleAfter,
		Filter:     f.Filter,
		TestPath:   f.TestPath,
		TestCases:  f.TestCases,
		Plan:       f.Plan,
		PrepareCmd: f.PrepareCmd,
		Watch:      f.Watch,
	}
}
