package model

import "fmt"

// Strategy selects the heuristic used to order pieces and free space.
type Strategy string

const (
	StrategyLengthFirst   Strategy = "LENGTH_FIRST"
	StrategyWidthFirst    Strategy = "WIDTH_FIRST"
	StrategyGrainRespect  Strategy = "GRAIN_RESPECT"
	StrategyWasteMinimize Strategy = "WASTE_MINIMIZE"
)

// Strategies lists every supported strategy in a stable order.
var Strategies = []Strategy{
	StrategyLengthFirst,
	StrategyWidthFirst,
	StrategyGrainRespect,
	StrategyWasteMinimize,
}

func (s Strategy) String() string {
	return string(s)
}

// Valid reports whether s is one of the supported strategies.
func (s Strategy) Valid() bool {
	for _, known := range Strategies {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStrategy converts a strategy name into a Strategy. Matching is
// case-insensitive and treats '-' and ' ' like '_'.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(normalizeName(name))
	if !s.Valid() {
		return "", &Error{
			Code:    CodeStrategyNotSupported,
			Field:   "strategy",
			Message: fmt.Sprintf("unsupported strategy %q", name),
		}
	}
	return s, nil
}
