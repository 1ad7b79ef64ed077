package services

import (
	"strconv"
	"strings"
)

// SelectionKind classifies a reply to a matching prompt.
type SelectionKind int

const (
	SelectionInvalid SelectionKind = iota
	SelectionSkip
	SelectionDoNotMap
	SelectionTarget
)

func (k SelectionKind) String() string {
	switch k {
	case SelectionSkip:
		return "skip"
	case SelectionDoNotMap:
		return "do_not_map"
	case SelectionTarget:
		return "target"
	default:
		return "invalid"
	}
}

// Selection is a parsed reply. Seq is only set for SelectionTarget.
type Selection struct {
	Kind SelectionKind
	Seq  int
	Raw  string
}

// ParseSelection reads a reply: empty skips, exactly "0" marks do-not-map, a positive
// integer selects a target seq, anything else is invalid.
func ParseSelection(input string) Selection {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Selection{Kind: SelectionSkip, Raw: raw}
	}
	n, err := strconv.Atoi(raw)
	switch {
	case err != nil || n < 0:
		return Selection{Kind: SelectionInvalid, Raw: raw}
	case n == 0 && raw != "0":
		return Selection{Kind: SelectionInvalid, Raw: raw}
	case n == 0:
		return Selection{Kind: SelectionDoNotMap, Raw: raw}
	default:
		return Selection{Kind: SelectionTarget, Seq: n, Raw: raw}
	}
}
