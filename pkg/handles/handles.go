// Package handles is the port registry: it owns handle-id parsing, the fixed
// per-kind port catalog and membership checks against a node's declared ports.
//
// Canonical handle ids look like "out-right-2": a direction ("in" for target
// ports, "out" for source ports), a side and a positive index.
package handles

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aretw0/topograph/pkg/domain"
)

const (
	// MaxIndex bounds the numeric suffix of a handle id.
	MaxIndex = 999
	// MaxHandles caps the declared port set of a node.
	MaxHandles = 64
)

// Ref is a parsed handle id.
type Ref struct {
	Type  domain.HandleType
	Side  domain.Side
	Index int
}

// String formats the ref in canonical form.
func (r Ref) String() string {
	return Format(r.Type, r.Side, r.Index)
}

var (
	canonicalPattern = regexp.MustCompile(`^(in|out)-(top|right|bottom|left)-([1-9][0-9]*)$`)

	// Matched against the lowercased id with every separator stripped, so
	// "right-out-2", "outRight2" and "tgtbottom3" all reach the same shape.
	loosePattern = regexp.MustCompile(
		`^(?:(` + dirWords + `)(` + sideWords + `)|(` + sideWords + `)(` + dirWords + `))([0-9]*)$`,
	)
)

const (
	dirWords  = `inbound|incoming|input|in|target|tgt|outbound|outgoing|output|out|source|src`
	sideWords = `top|right|bottom|left`
)

var nullLike = map[string]bool{
	"":          true,
	"none":      true,
	"null":      true,
	"nil":       true,
	"undefined": true,
	"na":        true,
	"n/a":       true,
}

// IsNullLike reports whether raw is an empty or null-like literal.
func IsNullLike(raw string) bool {
	return nullLike[strings.ToLower(strings.TrimSpace(raw))]
}

// Format builds a canonical handle id.
func Format(t domain.HandleType, side domain.Side, index int) string {
	prefix := "out"
	if t == domain.HandleTarget {
		prefix = "in"
	}
	return fmt.Sprintf("%s-%s-%d", prefix, side, index)
}

// Parse strictly parses a canonical handle id.
func Parse(id string) (Ref, bool) {
	m := canonicalPattern.FindStringSubmatch(id)
	if m == nil {
		return Ref{}, false
	}
	index, err := strconv.Atoi(m[3])
	if err != nil || index > MaxIndex {
		return Ref{}, false
	}
	return Ref{Type: dirType(m[1]), Side: domain.Side(m[2]), Index: index}, true
}

// Normalize parses a loosely spelled handle id into canonical form.
// Null-like literals and unresolvable spellings report false.
func Normalize(raw string) (string, bool) {
	ref, ok := ParseLoose(raw)
	if !ok {
		return "", false
	}
	return ref.String(), true
}

// ParseLoose is Normalize returning the parsed ref.
func ParseLoose(raw string) (Ref, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if nullLike[s] {
		return Ref{}, false
	}
	if ref, ok := Parse(s); ok {
		return ref, true
	}

	compact := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, s)
	if nullLike[compact] {
		return Ref{}, false
	}

	m := loosePattern.FindStringSubmatch(compact)
	if m == nil {
		return Ref{}, false
	}
	dir, side := m[1], m[2]
	if dir == "" {
		side, dir = m[3], m[4]
	}

	index := 1
	if m[5] != "" {
		n, err := strconv.Atoi(m[5])
		if err != nil || n < 1 || n > MaxIndex {
			return Ref{}, false
		}
		index = n
	}
	return Ref{Type: dirType(dir), Side: domain.Side(side), Index: index}, true
}

// ParseType resolves a loose handle type spelling ("source", "out", "input", ...).
func ParseType(raw string) (domain.HandleType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "source", "src", "out", "output", "outbound", "outgoing":
		return domain.HandleSource, true
	case "target", "tgt", "in", "input", "inbound", "incoming":
		return domain.HandleTarget, true
	}
	return "", false
}

func dirType(word string) domain.HandleType {
	switch word {
	case "in", "input", "inbound", "incoming", "target", "tgt":
		return domain.HandleTarget
	}
	return domain.HandleSource
}
