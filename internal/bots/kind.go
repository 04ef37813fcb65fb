package bots

import (
	"fmt"
	"strings"
)

// Kind identifies a bot engine. The set is closed; see AllKinds.
type Kind int

const (
	KindEvenOdd Kind = iota + 1
	KindOverUnder
	KindMatchesDiffers
	KindRiseFall
)

var kindNames = map[Kind]string{
	KindEvenOdd:        "even_odd",
	KindOverUnder:      "over_under",
	KindMatchesDiffers: "matches_differs",
	KindRiseFall:       "rise_fall",
}

// AllKinds lists every bot kind in display order.
func AllKinds() []Kind {
	return []Kind{KindEvenOdd, KindOverUnder, KindMatchesDiffers, KindRiseFall}
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind accepts the canonical names plus common spellings such as
// "Even/Odd", "even-odd" or "evenodd".
func ParseKind(s string) (Kind, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", "/", "_", " ", "_").Replace(norm)
	for k, name := range kindNames {
		if norm == name || norm == strings.ReplaceAll(name, "_", "") {
			return k, nil
		}
	}
	return 0, fmt.Errorf("bots: unknown bot kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
