package gate

import (
	"github.com/rs/zerolog/log"
)

// Decision is the outcome of evaluating one tag reading.
type Decision int

const (
	Allowed  Decision = iota // tag passed the filter (or no filter configured)
	Denied                   // tag did not match the expected tag
	Reported                 // null reading or no config, logged only
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case Denied:
		return "denied"
	case Reported:
		return "reported"
	default:
		return "unknown"
	}
}

// Config holds the filter and action applied to every tag.
type Config struct {
	// ExpectedTag, when non-empty, must match the leading bytes of a scanned tag.
	ExpectedTag string `yaml:"tag"`

	// Command is a shell command line run when a tag is allowed.
	Command string `yaml:"command"`
}

// Dispatcher starts a command without waiting for it.
type Dispatcher interface {
	Dispatch(command string) error
}

// IsAllowed reports whether tag passes the configured filter.
//
// The comparison covers exactly len(cfg.ExpectedTag) bytes. A tag shorter than
// the expected tag is only examined up to its own length and is always denied.
func IsAllowed(tag string, cfg *Config) Decision {
	if cfg == nil || cfg.ExpectedTag == "" {
		return Allowed
	}

	want := cfg.ExpectedTag
	n := min(len(tag), len(want))
	if tag[:n] != want[:n] || n < len(want) {
		return Denied
	}
	return Allowed
}

// Gate evaluates tag readings and dispatches the configured command.
// It is safe to call OnTag from the reader's callback goroutine; the
// config must not be modified after New.
type Gate struct {
	cfg      *Config
	dispatch Dispatcher
}

// New creates a Gate. cfg may be nil, in which case every reading is only reported.
func New(cfg *Config, d Dispatcher) *Gate {
	return &Gate{cfg: cfg, dispatch: d}
}

// OnTag handles a single reading. ok is false for a null reading.
func (g *Gate) OnTag(tag string, ok bool) Decision {
	if !ok || g.cfg == nil {
		if ok {
			log.Info().Str("tag", tag).Msg("Tag read")
		} else {
			log.Info().Msg("Tag read: (null)")
		}
		return Reported
	}

	decision := IsAllowed(tag, g.cfg)
	log.Info().Str("tag", tag).Stringer("decision", decision).Msg("Tag read")

	if decision == Allowed && g.cfg.Command != "" && g.dispatch != nil {
		if err := g.dispatch.Dispatch(g.cfg.Command); err != nil {
			log.Debug().Err(err).Str("command", g.cfg.Command).Msg("Dispatch command")
		}
	}
	return decision
}
