package selections

import (
	"fmt"
	"regexp"
	"sort"
	"unicode/utf8"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/errors"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/expression"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
)

type Options struct {
	// OutOfRangeStrict rejects values that break their input's constraints. Otherwise they are
	// dropped with a WARNING.
	OutOfRangeStrict bool
}

// Resolved holds the type-checked selections of one evaluation.
type Resolved struct {
	Values map[string]expression.Value
	// Defaulted lists the selection keys filled from an input's defaultValue.
	Defaulted []string
	Findings  []models.Finding
}

// Has reports whether a value is present for key.
func (r *Resolved) Has(key string) bool {
	_, ok := r.Values[key]
	return ok
}

// Resolve type-checks raw selections against the tree's ENABLED inputs. raw must be a JSON object.
func Resolve(ix *models.TreeIndex, raw any, opts Options) (*Resolved, error) {
	selections, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.Newf(errors.CodeInvalidSelections, "selections must be an object, got %s", models.JSONKind(raw)).
			AddPath("selections")
	}

	resolved := &Resolved{
		Values:    map[string]expression.Value{},
		Defaulted: []string{},
		Findings:  []models.Finding{},
	}

	keys := make([]string, 0, len(selections))
	for k := range selections {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		rawValue := selections[key]
		if rawValue == nil {
			continue
		}
		path := "selections." + key

		node, ok := ix.InputBySelectionKey(key)
		if !ok {
			resolved.Findings = append(resolved.Findings, models.Finding{
				Severity: models.SeverityWarning,
				Code:     errors.CodeSelectionUnknownKey,
				Message:  fmt.Sprintf("selection '%s' does not match any enabled input and was ignored", key),
				Path:     path,
			})
			continue
		}

		value, err := Coerce(node.Input, rawValue)
		if err != nil {
			return nil, errors.Newf(errors.CodeInvalidSelections, "selection '%s': %w", key, err).AddPath(path).AddEntity(node.ID)
		}

		if violation, ok := CheckConstraints(node.Input, value); !ok {
			if opts.OutOfRangeStrict {
				return nil, errors.Newf(errors.CodeSelectionOutOfRange, "selection '%s' %s", key, violation).AddPath(path).AddEntity(node.ID)
			}
			resolved.Findings = append(resolved.Findings, models.Finding{
				Severity: models.SeverityWarning,
				Code:     errors.CodeSelectionOutOfRange,
				Message:  fmt.Sprintf("selection '%s' %s and was dropped", key, violation),
				Path:     path,
				EntityID: node.ID,
			})
			continue
		}

		resolved.Values[key] = value
	}

	applyDefaults(ix, resolved)

	return resolved, nil
}

// applyDefaults fills absent selections from input defaults. A default that does not fit its own
// input is skipped with a WARNING.
func applyDefaults(ix *models.TreeIndex, resolved *Resolved) {
	inputs := ix.Inputs()
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		node := inputs[key]
		input := node.Input
		if input.DefaultValue == nil || resolved.Has(key) {
			continue
		}

		skip := func(code errors.Code, reason string) {
			resolved.Findings = append(resolved.Findings, models.Finding{
				Severity: models.SeverityWarning,
				Code:     code,
				Message:  fmt.Sprintf("default for '%s' %s and was not applied", key, reason),
				Path:     "nodes." + node.ID + ".defaultValue",
				EntityID: node.ID,
			})
		}

		value, err := Coerce(input, input.DefaultValue)
		if err != nil {
			skip(errors.CodeInputConstraintsInvalid, err.Error())
			continue
		}
		if violation, ok := CheckConstraints(input, value); !ok {
			skip(errors.CodeSelectionOutOfRange, violation)
			continue
		}
		resolved.Values[key] = value
		resolved.Defaulted = append(resolved.Defaulted, key)
	}
}

// Coerce converts raw to a Value of the input's declared type.
func Coerce(input *models.InputSpec, raw any) (expression.Value, error) {
	value, err := expression.FromAny(raw)
	if err != nil {
		return expression.Value{}, err
	}

	want, ok := input.ValueType.Kind()
	if !ok {
		return expression.Value{}, fmt.Errorf("input declares unknown value type '%s'", input.ValueType)
	}
	if value.Kind() != want {
		return expression.Value{}, fmt.Errorf("expected %s, got %s", input.ValueType, value.Kind())
	}
	return value, nil
}

// CheckConstraints tests a correctly typed value against the input's constraints. It returns a
// description of the violation and false when the value is out of range.
func CheckConstraints(input *models.InputSpec, value expression.Value) (string, bool) {
	c := input.Constraints

	switch input.ValueType {
	case models.ValueTypeNumber:
		n, _ := value.AsNumber()
		if c.Integer && !n.IsInteger() {
			return fmt.Sprintf("must be an integer, got %s", n), false
		}
		if c.Min != nil && n.LessThan(*c.Min) {
			return fmt.Sprintf("is below the minimum %s", c.Min), false
		}
		if c.Max != nil && n.GreaterThan(*c.Max) {
			return fmt.Sprintf("is above the maximum %s", c.Max), false
		}
	case models.ValueTypeText:
		s, _ := value.AsText()
		length := utf8.RuneCountInString(s)
		if c.MinLength != nil && length < *c.MinLength {
			return fmt.Sprintf("is shorter than %d characters", *c.MinLength), false
		}
		if c.MaxLength != nil && length > *c.MaxLength {
			return fmt.Sprintf("is longer than %d characters", *c.MaxLength), false
		}
		if c.Pattern != "" {
			re, err := regexp.Compile(c.Pattern)
			if err != nil {
				return fmt.Sprintf("cannot be checked against invalid pattern %q", c.Pattern), false
			}
			if !re.MatchString(s) {
				return fmt.Sprintf("does not match pattern %q", c.Pattern), false
			}
		}
	case models.ValueTypeEnum:
		s, _ := value.AsText()
		if !c.HasOption(s) {
			return fmt.Sprintf("value %q is not one of the allowed options", s), false
		}
	}
	return "", true
}

// ValidPattern reports whether pattern compiles.
func ValidPattern(pattern string) bool {
	_, err := regexp.Compile(pattern)
	return err == nil
}
