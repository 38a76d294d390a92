package strategy

import (
	"fmt"
	"strings"
)

type Signal string

const (
	Buy  Signal = "BUY"
	Sell Signal = "SELL"
	Hold Signal = "HOLD"
)

func (s Signal) Valid() bool {
	switch s {
	case Buy, Sell, Hold:
		return true
	default:
		return false
	}
}

func (s Signal) String() string { return string(s) }

// ParseSignal accepts any casing and surrounding whitespace.
func ParseSignal(raw string) (Signal, error) {
	s := Signal(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("invalid signal %q", raw)
	}
	return s, nil
}

// Verdict is one strategy's recommendation. The JSON form is what lands in
// the persisted strategy details.
type Verdict struct {
	Strategy string `json:"strategy"`
	Signal   Signal `json:"signal"`
	Reason   string `json:"reason"`
}
