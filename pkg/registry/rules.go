package registry

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/goliatone/go-formbuilder/pkg/model"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// maxCachedPatterns bounds the compiled pattern cache. Patterns come from
// user-edited schemas, so the set is open-ended.
const maxCachedPatterns = 256

var (
	patternCacheMu sync.Mutex
	patternCache   = map[string]*regexp.Regexp{}
)

func compilePattern(expr string) (*regexp.Regexp, error) {
	patternCacheMu.Lock()
	defer patternCacheMu.Unlock()
	if re, ok := patternCache[expr]; ok {
		return re, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	if len(patternCache) >= maxCachedPatterns {
		// evict an arbitrary entry
		for key := range patternCache {
			delete(patternCache, key)
			break
		}
	}
	patternCache[expr] = re
	return re, nil
}

// evaluateRule reports the violation produced by rule, if any.
func evaluateRule(rule model.ValidationRule, value any) (model.Violation, bool) {
	params := rule.Params
	fail := func(code, message string) (model.Violation, bool) {
		if custom := strings.TrimSpace(params["message"]); custom != "" {
			message = custom
		}
		return model.Violation{Code: code, Message: message, Params: ruleParams(rule)}, true
	}

	switch rule.Kind {
	case model.ValidationRuleMinLength, model.ValidationRuleMaxLength:
		limit, ok := ruleLimit(params)
		if !ok {
			return fail(model.CodeRule, fmt.Sprintf("rule %s needs a numeric value", rule.Kind))
		}
		length, ok := runeLength(value)
		if !ok {
			return fail(model.CodeType, fmt.Sprintf("rule %s applies to text values", rule.Kind))
		}
		if rule.Kind == model.ValidationRuleMinLength && float64(length) < limit {
			return fail(model.CodeLength, fmt.Sprintf("must be at least %s characters", formatNumber(limit)))
		}
		if rule.Kind == model.ValidationRuleMaxLength && float64(length) > limit {
			return fail(model.CodeLength, fmt.Sprintf("must be at most %s characters", formatNumber(limit)))
		}

	case model.ValidationRuleMin, model.ValidationRuleMax:
		limit, ok := ruleLimit(params)
		if !ok {
			return fail(model.CodeRule, fmt.Sprintf("rule %s needs a numeric value", rule.Kind))
		}
		number, ok := toNumber(value)
		if !ok {
			return fail(model.CodeType, "must be a number")
		}
		exclusive := strings.EqualFold(params["exclusive"], "true")
		if rule.Kind == model.ValidationRuleMin && (number < limit || (exclusive && number == limit)) {
			return fail(model.CodeRange, fmt.Sprintf("must be greater than %s%s", orEqual(exclusive), formatNumber(limit)))
		}
		if rule.Kind == model.ValidationRuleMax && (number > limit || (exclusive && number == limit)) {
			return fail(model.CodeRange, fmt.Sprintf("must be less than %s%s", orEqual(exclusive), formatNumber(limit)))
		}

	case model.ValidationRuleMinItems, model.ValidationRuleMaxItems:
		limit, ok := ruleLimit(params)
		if !ok {
			return fail(model.CodeRule, fmt.Sprintf("rule %s needs a numeric value", rule.Kind))
		}
		items, ok := toSlice(value)
		if !ok {
			return fail(model.CodeType, fmt.Sprintf("rule %s applies to lists", rule.Kind))
		}
		if rule.Kind == model.ValidationRuleMinItems && float64(len(items)) < limit {
			return fail(model.CodeItems, fmt.Sprintf("select at least %s", formatNumber(limit)))
		}
		if rule.Kind == model.ValidationRuleMaxItems && float64(len(items)) > limit {
			return fail(model.CodeItems, fmt.Sprintf("select at most %s", formatNumber(limit)))
		}

	case model.ValidationRulePattern:
		expr := params["pattern"]
		if expr == "" {
			expr = params["value"]
		}
		re, err := compilePattern(expr)
		if err != nil {
			return fail(model.CodeRule, fmt.Sprintf("invalid pattern %q", expr))
		}
		if !re.MatchString(toString(value)) {
			return fail(model.CodePattern, "does not match the expected format")
		}

	case model.ValidationRuleEmail:
		if !emailPattern.MatchString(strings.TrimSpace(toString(value))) {
			return fail(model.CodeFormat, "must be a valid email address")
		}

	default:
		return fail(model.CodeRule, fmt.Sprintf("unknown validation rule %q", rule.Kind))
	}

	return model.Violation{}, false
}

func ruleLimit(params map[string]string) (float64, bool) {
	raw, ok := params["value"]
	if !ok {
		return 0, false
	}
	return toNumber(raw)
}

func orEqual(exclusive bool) string {
	if exclusive {
		return ""
	}
	return "or equal to "
}

func ruleParams(rule model.ValidationRule) map[string]string {
	out := map[string]string{"rule": rule.Kind}
	for k, v := range rule.Params {
		if k == "message" {
			continue
		}
		out[k] = v
	}
	return out
}
