package framer

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Sharing decides whether a strategy hands out the same bytes on every
// acquire or allocates fresh ones.
type Sharing int

const (
	// Shared buffers are allocated once per pool and reused.
	Shared Sharing = iota
	// PerCall buffers are allocated on every acquire.
	PerCall
)

func (s Sharing) String() string {
	switch s {
	case Shared:
		return "shared"
	case PerCall:
		return "per-call"
	default:
		return fmt.Sprintf("Sharing(%d)", int(s))
	}
}

// Nominal buffer capacities.
const (
	SmallCapacity = 8096
	LargeCapacity = 64768
)

// Strategy is a named buffer policy: capacity, memory kind and sharing.
type Strategy struct {
	Name     string
	Capacity int
	Memory   MemoryKind
	Sharing  Sharing
}

func (s Strategy) String() string { return s.Name }

// ErrUnknownStrategy is returned by ParseStrategy for names not in the registry.
var ErrUnknownStrategy = errors.New("unknown buffer strategy")

var strategies = []Strategy{
	{"SHARE_HEAP_8096", SmallCapacity, Heap, Shared},
	{"SHARE_HEAP_64768", LargeCapacity, Heap, Shared},
	{"SHARE_DIRECT_8096", SmallCapacity, Direct, Shared},
	{"SHARE_DIRECT_64768", LargeCapacity, Direct, Shared},
	{"NEW_HEAP_8096", SmallCapacity, Heap, PerCall},
	{"NEW_HEAP_64768", LargeCapacity, Heap, PerCall},
	{"NEW_DIRECT_8096", SmallCapacity, Direct, PerCall},
	{"NEW_DIRECT_64768", LargeCapacity, Direct, PerCall},
	// byte-array names used by the stream variant
	{"SHARE_ARRAY_8096", SmallCapacity, Heap, Shared},
	{"SHARE_ARRAY_64768", LargeCapacity, Heap, Shared},
	{"NEW_ARRAY_8096", SmallCapacity, Heap, PerCall},
	{"NEW_ARRAY_64768", LargeCapacity, Heap, PerCall},
}

// DefaultStrategy is used when no strategy is configured.
var DefaultStrategy = strategies[1]

// Strategies returns every registered strategy in registry order.
func Strategies() []Strategy {
	out := make([]Strategy, len(strategies))
	copy(out, strategies)
	return out
}

// ParseStrategy looks up a strategy by name, case-insensitively.
func ParseStrategy(name string) (Strategy, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultStrategy, nil
	}
	for _, s := range strategies {
		if strings.EqualFold(s.Name, name) {
			return s, nil
		}
	}
	return Strategy{}, errors.Wrapf(ErrUnknownStrategy, "%q", name)
}
