package canon

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/topograph/pkg/domain"
)

// Text limits, in runes.
const (
	MaxTooltipTitleLength = 200
	MaxTooltipLength      = 2000
)

func decode(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

func asMap(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			if s, ok := k.(string); ok {
				out[s] = val
			}
		}
		return out
	}
	return nil
}

// text extracts a trimmed string from strings and numbers.
func text(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return ""
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	}
	return ""
}

func firstText(values ...any) string {
	for _, v := range values {
		if s := text(v); s != "" {
			return s
		}
	}
	return ""
}

// Finite coerces numbers and numeric strings to a finite float64.
func Finite(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ClampCoordinate bounds a coordinate to the canvas.
func ClampCoordinate(f float64) float64 {
	return math.Max(domain.MinCoordinate, math.Min(domain.MaxCoordinate, f))
}

func position(v any) domain.Position {
	m := asMap(v)
	var p domain.Position
	if x, ok := Finite(m["x"]); ok {
		p.X = ClampCoordinate(x)
	}
	if y, ok := Finite(m["y"]); ok {
		p.Y = ClampCoordinate(y)
	}
	return p
}

// optionalPosition keeps a position only when both coordinates are finite.
func optionalPosition(v any) *domain.Position {
	m := asMap(v)
	if m == nil {
		return nil
	}
	x, okX := Finite(m["x"])
	y, okY := Finite(m["y"])
	if !okX || !okY {
		return nil
	}
	return &domain.Position{X: ClampCoordinate(x), Y: ClampCoordinate(y)}
}

// Truncate trims s and cuts it to at most limit runes.
func Truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:limit]))
}

// OptionalText applies the blank-means-cleared rule: blank values become nil.
func OptionalText(v any, limit int) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = Truncate(s, limit)
	if s == "" {
		return nil
	}
	return &s
}

func flag(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return err == nil && parsed
	}
	return false
}
