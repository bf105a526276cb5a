package mutation

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/aretw0/topograph/pkg/canon"
	"github.com/aretw0/topograph/pkg/domain"
)

// MaxIDLength bounds channel, node and edge ids.
const MaxIDLength = 256

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the shared validator with the "diagramid" rule registered.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("diagramid", func(fl validator.FieldLevel) bool {
			return ValidID(fl.Field().String())
		})
	})
	return validate
}

// ValidID reports whether id is usable as a channel, node or edge id: non-blank,
// trimmed, at most MaxIDLength runes and free of control characters.
func ValidID(id string) bool {
	if id == "" || id != strings.TrimSpace(id) || utf8.RuneCountInString(id) > MaxIDLength {
		return false
	}
	return strings.IndexFunc(id, unicode.IsControl) < 0
}

type nodeRef struct {
	ChannelID string `validate:"diagramid"`
	NodeID    string `validate:"diagramid"`
}

type edgeRef struct {
	ChannelID string `validate:"diagramid"`
	EdgeID    string `validate:"diagramid"`
}

type channelRef struct {
	ChannelID string `validate:"diagramid"`
}

// checkStruct runs the validator and converts the first failure into a
// validation error.
func checkStruct(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return fieldError(fieldErrs[0])
	}
	return domain.Validationf("invalid input: %v", err)
}

// checkVar validates a single value against tag.
func checkVar(name string, v any, tag string) error {
	err := getValidator().Var(v, tag)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		if fe.Tag() == "max" {
			return domain.Validationf("%s must be at most %s characters", name, fe.Param())
		}
		return domain.Validationf("%s is invalid", name)
	}
	return domain.Validationf("%s is invalid: %v", name, err)
}

func fieldError(fe validator.FieldError) error {
	field := fe.Field()
	switch fe.Tag() {
	case "diagramid":
		return domain.Validationf("%s must be a non-empty id without surrounding spaces or control characters (max %d)", field, MaxIDLength)
	case "required":
		return domain.Validationf("%s is required", field)
	}
	return domain.Validationf("%s failed %q validation", field, fe.Tag())
}

// Optional is a patch field that is absent, explicitly null or set.
// Its zero value is absent.
type Optional struct {
	Set   bool
	Value *string
}

// Value returns a set field.
func Value(s string) Optional {
	return Optional{Set: true, Value: &s}
}

// Null returns an explicitly cleared field.
func Null() Optional {
	return Optional{Set: true}
}

// IsNull reports whether the field was explicitly cleared.
func (o Optional) IsNull() bool {
	return o.Set && o.Value == nil
}

// UnmarshalJSON marks the field as present. JSON null clears it.
func (o *Optional) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("expected string or null: %w", err)
	}
	o.Value = &s
	return nil
}

// MarshalJSON renders a cleared or absent field as null.
func (o Optional) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

// EdgePatch changes the endpoints of an edge. Absent fields are kept; a null
// handle clears it. Source and target cannot be null.
type EdgePatch struct {
	Source       Optional `json:"source"`
	SourceHandle Optional `json:"sourceHandle"`
	Target       Optional `json:"target"`
	TargetHandle Optional `json:"targetHandle"`
}

func (p EdgePatch) empty() bool {
	return !p.Source.Set && !p.SourceHandle.Set && !p.Target.Set && !p.TargetHandle.Set
}

// TooltipPatch edits the two tooltip fields independently. Blank values clear.
type TooltipPatch struct {
	TooltipTitle Optional `json:"tooltipTitle"`
	Tooltip      Optional `json:"tooltip"`
}

// endpoint validates a source/target patch field.
func endpoint(name string, o Optional) (string, error) {
	if !o.Set {
		return "", nil
	}
	if o.Value == nil {
		return "", domain.Validationf("%s cannot be null", name)
	}
	id := strings.TrimSpace(*o.Value)
	if !ValidID(id) {
		return "", domain.Validationf("%s must be a non-empty node id", name)
	}
	return id, nil
}

// tooltipText applies the blank-means-cleared rule and the length limit.
func tooltipText(name string, o Optional, limit int) (*string, error) {
	if o.Value == nil {
		return nil, nil
	}
	s := strings.TrimSpace(*o.Value)
	if err := checkVar(name, s, fmt.Sprintf("max=%d", limit)); err != nil {
		return nil, err
	}
	return canon.OptionalText(s, limit), nil
}

// coordinates reads a position input. Accepted shapes are domain.Position,
// *domain.Position and a map with numeric x and y. Strings, numeric or not,
// are rejected, as are NaN and infinities.
func coordinates(v any) (domain.Position, error) {
	switch p := v.(type) {
	case domain.Position:
		return checkedPosition(p.X, p.Y)
	case *domain.Position:
		if p == nil {
			return domain.Position{}, domain.Validationf("position is required")
		}
		return checkedPosition(p.X, p.Y)
	case map[string]any:
		x, okX := number(p["x"])
		y, okY := number(p["y"])
		if !okX || !okY {
			return domain.Position{}, domain.Validationf("position must have finite numeric x and y")
		}
		return checkedPosition(x, y)
	}
	return domain.Position{}, domain.Validationf("position must be an object with x and y")
}

func checkedPosition(x, y float64) (domain.Position, error) {
	fx, okX := canon.Finite(x)
	fy, okY := canon.Finite(y)
	if !okX || !okY {
		return domain.Position{}, domain.Validationf("position must have finite numeric x and y")
	}
	return domain.Position{X: canon.ClampCoordinate(fx), Y: canon.ClampCoordinate(fy)}, nil
}

// number accepts JSON numbers only.
func number(v any) (float64, bool) {
	switch v.(type) {
	case string, nil, bool:
		return 0, false
	}
	return canon.Finite(v)
}
