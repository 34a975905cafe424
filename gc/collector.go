// Package gc implements the tri-color incremental mark-sweep collector
// of spec §4.4: normal incremental mode, a generational fast path, and
// an emergency variant invoked when an allocation would exceed the
// memory limit. Objects participate generically through the Traceable
// interface (double dispatch), so this package never imports the
// concrete object packages (xtable, frame, code, coroutine, capi) —
// matching spec §9's note that "the dynamic cast to 'is this object a
// table' becomes a match on a variant tag" is instead a Go interface
// dispatch here.
package gc

import (
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/ember-lang/ember/value"
)

// Phase is the collector's state (spec §4.4 "States").
type Phase int

const (
	PhasePause Phase = iota
	PhasePropagate
	PhaseAtomic
	PhaseSweepStrings
	PhaseSweepUserdata
	PhaseSweepAll
)

func (p Phase) String() string {
	switch p {
	case PhasePause:
		return "pause"
	case PhasePropagate:
		return "propagate"
	case PhaseAtomic:
		return "atomic"
	case PhaseSweepStrings:
		return "sweep-strings"
	case PhaseSweepUserdata:
		return "sweep-userdata"
	case PhaseSweepAll:
		return "sweep-all"
	default:
		return "?"
	}
}

// Mode selects between the normal incremental collector and the
// generational fast path (spec §4.4 "Model").
type Mode int

const (
	ModeIncremental Mode = iota
	ModeGenerational
)

// Traceable is implemented by every collectable object so the
// collector can walk its outgoing references without importing the
// concrete type (spec §4.4 "Propagate" traversal rules, per type).
type Traceable interface {
	value.Collectable
	// GCTrace is invoked once per propagation step with the owning
	// Collector, so the object can call Collector.Mark on each value it
	// references (and, for tables, consult weak-mode bookkeeping via the
	// Collector's weak/ephemeron/allweak queues).
	GCTrace(c *Collector)
}

// WeakTable is implemented by xtable.Table; the collector type-asserts
// to it during the weak/ephemeron/allweak sweep steps without importing
// xtable (spec §4.4 "sweep weak-table values ... sweep ephemeron keys,
// all-weak tables").
type WeakTable interface {
	value.Collectable
	ClearWhiteKeys(isWhite func(value.Collectable) bool)
	ClearWhiteValues(isWhite func(value.Collectable) bool)
	ClearWhiteBoth(isWhite func(value.Collectable) bool)
	CleanDeadKeys(isWhite func(value.Collectable) bool)
}

// Finalizable is implemented by objects whose metatable may define
// __gc (typically userdata); the collector invokes Finalize exactly
// once, in a fresh protected context supplied by the host (spec §4.4
// "Finalizers").
type Finalizable interface {
	value.Collectable
	HasFinalizer() bool
	Finalize() error
}

// Config mirrors spec §4.3/§4.4 tuning knobs (SPEC_FULL.md §B
// "Configuration"). Zero-value Config falls back to DefaultConfig.
type Config struct {
	PausePercent    int // percent of live bytes before the next cycle starts
	StepMultiplier  int // work performed per debt unit
	MinorMultiplier int // heap-growth ratio that triggers a minor collection
	MemoryLimit     int64
}

func DefaultConfig() Config {
	return Config{PausePercent: 100, StepMultiplier: 100, MinorMultiplier: 2}
}

// Collector owns the all-objects list and every transient GC list.
type Collector struct {
	cfg  Config
	mode Mode
	log  *slog.Logger

	phase        Phase
	currentWhite value.Color

	allObjects value.Collectable
	sweepCur   value.Collectable
	sweepPrev  value.Collectable

	gray      []Traceable
	grayAgain []Traceable
	weak      []value.Collectable
	ephemeron []value.Collectable
	allWeak   []value.Collectable

	finalizers     []value.Collectable
	toBeFinalized  []value.Collectable

	roots []value.Collectable

	totalBytes int64
	debt       int64

	emergency bool

	// anchors is the embedding API's C-side anchor chain membership set
	// (spec §4.4 "pause": root-marks "every object anchored in the
	// embedding API's C-side anchor chain"; SPEC_FULL.md §C).
	anchors mapset.Set[value.Collectable]

	// visitedEphemeron is allocated by New but not consulted: the
	// ephemeron convergence loop in runAtomic stops when a pass grays
	// nothing new.
	visitedEphemeron mapset.Set[value.Collectable]

	// internRemove, when set, receives Remove calls during sweep-strings
	// (wired to value.Interner by the owning VM at construction).
	internRemove func(*value.Str)
}

func New(cfg Config, mode Mode, log *slog.Logger) *Collector {
	if cfg.PausePercent == 0 {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Collector{
		cfg:              cfg,
		mode:             mode,
		log:              log,
		currentWhite:     value.ColorWhite0,
		anchors:          mapset.NewThreadUnsafeSet[value.Collectable](),
		visitedEphemeron: mapset.NewThreadUnsafeSet[value.Collectable](),
	}
}

func (c *Collector) SetInternRemove(fn func(*value.Str)) { c.internRemove = fn }

func (c *Collector) Phase() Phase   { return c.phase }
func (c *Collector) TotalBytes() int64 { return c.totalBytes }
func (c *Collector) Debt() int64       { return c.debt }

func (c *Collector) liveWhite() value.Color     { return c.currentWhite }
func (c *Collector) deadWhite() value.Color {
	if c.currentWhite == value.ColorWhite0 {
		return value.ColorWhite1
	}
	return value.ColorWhite0
}

func (c *Collector) isWhite(o value.Collectable) bool {
	col := o.Header().Color
	return col == value.ColorWhite0 || col == value.ColorWhite1
}

func (c *Collector) isDeadWhite(o value.Collectable) bool {
	return o.Header().Color == c.deadWhite()
}

// AddRoot registers a permanent GC root (main thread, registry, base
// metatables; spec §4.4 "pause").
func (c *Collector) AddRoot(o value.Collectable) {
	c.roots = append(c.roots, o)
}

// Anchor and Unanchor implement the embedding API's C-side anchor chain
// (capi pins a value on the stack/registry; anything additionally
// anchored here survives regardless of reachability from roots).
func (c *Collector) Anchor(o value.Collectable)   { c.anchors.Add(o) }
func (c *Collector) Unanchor(o value.Collectable) { c.anchors.Remove(o) }
