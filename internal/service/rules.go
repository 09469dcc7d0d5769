package service

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"feature-flags-be/internal/entity"
	"feature-flags-be/internal/pkg/apperror"

	"github.com/google/uuid"
)

var featureKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:|-]+$`)

// ValidateFeatureKey checks the wire format of a feature key before it is lowercased.
func ValidateFeatureKey(key string) error {
	if key == "" {
		return apperror.Validation("Must specify feature key")
	}
	if !featureKeyPattern.MatchString(key) {
		return apperror.Validation("Feature keys can only include letters, numbers, hyphens, and underscores.")
	}
	return nil
}

func NewRuleId() string {
	return "fr_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// AddIdsToRules gives every rule without an id a fresh one. Rules that already
// have an id keep it, so running it twice changes nothing.
func AddIdsToRules(settings map[string]entity.EnvironmentSettings) {
	for env, s := range settings {
		for i := range s.Rules {
			if s.Rules[i].Id == "" {
				s.Rules[i].Id = NewRuleId()
			}
		}
		settings[env] = s
	}
}

// ArrayMove removes the element at from and reinserts it at to. Both indexes must be in range.
func ArrayMove[T any](in []T, from, to int) []T {
	out := make([]T, 0, len(in))
	out = append(out, in[:from]...)
	out = append(out, in[from+1:]...)

	item := in[from]
	out = append(out, item)
	copy(out[to+1:], out[to:len(out)-1])
	out[to] = item
	return out
}

func validateRule(r entity.Rule) error {
	if !r.Type.Valid() {
		return apperror.Validation("Invalid rule type %q", r.Type)
	}
	if r.Coverage != nil && (*r.Coverage < 0 || *r.Coverage > 1) {
		return apperror.Validation("Rule coverage must be between 0 and 1")
	}
	if r.Condition != "" && !json.Valid([]byte(r.Condition)) {
		return apperror.Validation("Rule condition must be valid JSON")
	}
	if r.Type == entity.RuleTypeExperiment {
		for _, v := range r.Values {
			if v.Weight < 0 {
				return apperror.Validation("Experiment weights cannot be negative")
			}
		}
	}
	return nil
}

func validateEnvironmentSettings(settings map[string]entity.EnvironmentSettings) error {
	for env, s := range settings {
		for i, r := range s.Rules {
			if err := validateRule(r); err != nil {
				return apperror.Validation("%s rule %d: %s", env, i, apperror.From(err).Message)
			}
		}
	}
	return nil
}

// RequiresNotification reports whether the change from before to after can alter
// compiled definitions. Only defaultValue, project and environment settings count;
// rule descriptions are ignored.
func RequiresNotification(before, after *entity.Feature) bool {
	if before.DefaultValue != after.DefaultValue {
		return true
	}
	if before.Project != after.Project {
		return true
	}
	return !environmentSettingsEqual(before.EnvironmentSettings, after.EnvironmentSettings)
}

func environmentSettingsEqual(a, b map[string]entity.EnvironmentSettings) bool {
	if len(a) != len(b) {
		return false
	}
	for env, sa := range a {
		sb, ok := b[env]
		if !ok || sa.Enabled != sb.Enabled || len(sa.Rules) != len(sb.Rules) {
			return false
		}
		for i := range sa.Rules {
			if !rulesEqual(sa.Rules[i], sb.Rules[i]) {
				return false
			}
		}
	}
	return true
}

func rulesEqual(a, b entity.Rule) bool {
	if a.Id != b.Id ||
		a.Type != b.Type ||
		a.Condition != b.Condition ||
		a.Enabled != b.Enabled ||
		a.Value != b.Value ||
		a.HashAttribute != b.HashAttribute ||
		a.TrackingKey != b.TrackingKey {
		return false
	}
	if (a.Coverage == nil) != (b.Coverage == nil) {
		return false
	}
	if a.Coverage != nil && *a.Coverage != *b.Coverage {
		return false
	}
	if len(a.Values) != len(b.Values) {
		return false
	}
	for i := range a.Values {
		if a.Values[i] != b.Values[i] {
			return false
		}
	}
	return true
}

// DecodeValue turns the stored string encoding into the typed value SDKs receive.
func DecodeValue(valueType entity.ValueType, raw string) interface{} {
	switch valueType {
	case entity.ValueTypeBoolean:
		return raw != "" && raw != "false" && raw != "0"
	case entity.ValueTypeNumber:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return float64(0)
		}
		return f
	case entity.ValueTypeJSON:
		var v interface{}
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil
		}
		return v
	}
	return raw
}

func checkIndex(rules []entity.Rule, i int) error {
	if i < 0 || i >= len(rules) {
		return apperror.NotFound("Invalid rule index %d", i)
	}
	return nil
}

func unionSorted(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range lists {
		for _, s := range l {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
