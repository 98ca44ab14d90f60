// Package rtconfig reads the environment-variable surface that tunes
// the collector and parser. Variables are read eagerly once, at
// first use, via sync.Once; Reload lets a host or test simulate a
// changed environment between parses.
package rtconfig

import (
	"os"
	"strconv"
	"sync"
)

// Config holds every tunable read from the environment.
type Config struct {
	// GCMemGrow selects one of four growth-aggressiveness presets
	// (R_GC_MEM_GROW, 0..3); higher values grow the heap more eagerly.
	GCMemGrow int

	// GrowFrac/GrowIncrFrac/NGrowIncrFrac/VGrowIncrFrac override the
	// corresponding heap-size-adjustment knobs (R_GC_GROWFRAC,
	// R_GC_GROWINCRFRAC, R_GC_NGROWINCRFRAC, R_GC_VGROWINCRFRAC) when
	// the environment sets them; zero means "use the preset default".
	GrowFrac      float64
	GrowIncrFrac  float64
	NGrowIncrFrac float64
	VGrowIncrFrac float64

	// GCTorture/GCTortureWait/GCTortureInhibitRelease configure torture
	// mode (R_GCTORTURE, R_GCTORTURE_WAIT, R_GCTORTURE_INHIBIT_RELEASE).
	GCTorture              int
	GCTortureWait          int
	GCTortureInhibitRelease bool

	// FailOnError mirrors _R_GC_FAIL_ON_ERROR_: abort on a GC-internal
	// invariant violation instead of printing a diagnostic and
	// continuing.
	FailOnError bool

	// UsePipeBind mirrors _R_USE_PIPEBIND_: enables the `=>` pipe-bind
	// grammar production.
	UsePipeBind bool

	// HashPrecious mirrors R_HASH_PRECIOUS: use the bucketed preserve
	// list instead of one flat bucket.
	HashPrecious bool

	// Translations mirrors R_TRANSLATIONS, an opaque message-catalog
	// path not otherwise interpreted by this module.
	Translations string

	// NoSegvHandler mirrors R_NO_SEGV_HANDLER: documents that SIGSEGV
	// recovery is not installed (pkg/rtsignal has nothing to disable,
	// since Go already turns faults into panics, but the flag is still
	// read so a host can tell the two "not installed" reasons apart).
	NoSegvHandler bool
}

var (
	once    sync.Once
	current Config
	mu      sync.RWMutex
)

func load() Config {
	return Config{
		GCMemGrow:               envInt("R_GC_MEM_GROW", 0),
		GrowFrac:                envFloat("R_GC_GROWFRAC", 0),
		GrowIncrFrac:            envFloat("R_GC_GROWINCRFRAC", 0),
		NGrowIncrFrac:           envFloat("R_GC_NGROWINCRFRAC", 0),
		VGrowIncrFrac:           envFloat("R_GC_VGROWINCRFRAC", 0),
		GCTorture:               envInt("R_GCTORTURE", 0),
		GCTortureWait:           envInt("R_GCTORTURE_WAIT", 0),
		GCTortureInhibitRelease: envBool("R_GCTORTURE_INHIBIT_RELEASE", false),
		FailOnError:             envBool("_R_GC_FAIL_ON_ERROR_", false),
		UsePipeBind:             envBool("_R_USE_PIPEBIND_", false),
		HashPrecious:            envBool("R_HASH_PRECIOUS", true),
		Translations:            os.Getenv("R_TRANSLATIONS"),
		NoSegvHandler:           envBool("R_NO_SEGV_HANDLER", false),
	}
}

// Get returns the current configuration, reading the environment on
// first call.
func Get() Config {
	once.Do(func() {
		mu.Lock()
		current = load()
		mu.Unlock()
	})
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Reload re-reads every variable immediately, for hosts or tests that
// change the environment between parses and need the new values to
// take effect without restarting the process.
func Reload() Config {
	mu.Lock()
	current = load()
	mu.Unlock()
	return Get()
}

func envInt(name string, def int) int {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(name string, def float64) float64 {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envBool(name string, def bool) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
