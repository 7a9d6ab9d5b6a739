package models

import (
	"fmt"
	"strings"
)

type FactKind string

const (
	KindPrice       FactKind = "price"
	KindGeneration  FactKind = "generation"
	KindConsumption FactKind = "consumption"
)

var AllFactKinds = []FactKind{KindPrice, KindGeneration, KindConsumption}

// ParseFactKind accepts the canonical names plus "mcp" for prices.
func ParseFactKind(s string) (FactKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "price", "prices", "mcp":
		return KindPrice, nil
	case "generation":
		return KindGeneration, nil
	case "consumption":
		return KindConsumption, nil
	}
	return "", fmt.Errorf("unknown fact kind %q", s)
}

func (k FactKind) String() string { return string(k) }

type FactCounts struct {
	Price       int64 `json:"mcp"`
	Generation  int64 `json:"generation"`
	Consumption int64 `json:"consumption"`
}
