package expr

import (
	"strings"
	"testing"

	exprlang "github.com/expr-lang/expr"

	"github.com/goliatone/go-formbuilder/pkg/visibility"
)

func TestEvaluator(t *testing.T) {
	t.Parallel()

	values := map[string]any{
		"subscribe": true,
		"optout":    false,
		"country":   "us",
		"age":       float64(21),
		"plan":      []any{"pro", "addon"},
		"start":     "2024-03-01",
		"blank":     "  ",
		"address":   map[string]any{"city": "Lisbon"},
	}
	extras := map[string]any{"role": "admin"}

	tests := []struct {
		rule string
		want bool
	}{
		{rule: "", want: true},
		{rule: "subscribe", want: true},
		{rule: "!subscribe", want: false},
		{rule: "optout", want: false},
		{rule: "blank", want: false},
		{rule: "missing", want: false},
		{rule: `country == "us"`, want: true},
		{rule: `country != 'us'`, want: false},
		{rule: "country == nil", want: false},
		{rule: "subscribe == true", want: true},
		{rule: "optout == false", want: true},
		{rule: "missing == nil", want: true},
		{rule: "optout != nil", want: true},
		{rule: "age == 21", want: true},
		{rule: "age >= 18", want: true},
		{rule: "age < 18", want: false},
		{rule: "(missing ?? 0) > 0", want: false},
		{rule: `start >= "2024-01-01"`, want: true},
		{rule: `start < "2024-01-01"`, want: false},
		{rule: `"pro" in plan`, want: true},
		{rule: `"team" in plan`, want: false},
		{rule: `any(plan, # in ["team", "pro"])`, want: true},
		{rule: `country in ["ca", "mx"]`, want: false},
		{rule: "plan in []", want: false},
		{rule: `address.city == "Lisbon"`, want: true},
		{rule: `missing?.city == nil`, want: true},
		{rule: `extras.role == "admin"`, want: true},
		{rule: `subscribe && (country == "ca" || age > 20)`, want: true},
		{rule: `!(subscribe && optout)`, want: true},
		{rule: `optout || missing`, want: false},
		{rule: `!missing`, want: true},
		{rule: `!blank && subscribe`, want: true},
		{rule: `not optout and extras.role != nil`, want: true},
	}

	eval := New()
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			got, err := eval.Eval("target", tt.rule, visibility.Context{Values: values, Extras: extras})
			if err != nil {
				t.Fatalf("eval: %v", err)
			}
			if got != tt.want {
				t.Fatalf("want %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	t.Parallel()

	rules := []string{
		"a ==",
		"(a",
		`a == "open`,
		"a && ",
		"== 3",
		"a in [1,",
		`1 + "a"`,
		`!"a"`,
		"a b",
	}
	for _, rule := range rules {
		t.Run(rule, func(t *testing.T) {
			if _, err := Compile(rule); err == nil {
				t.Fatalf("expected error for %q", rule)
			}
		})
	}
}

func TestEvaluatorRuntimeError(t *testing.T) {
	t.Parallel()

	_, err := New().Eval("target", `age > "x"`, visibility.Context{Values: map[string]any{"age": 21.0}})
	if err == nil {
		t.Fatal("expected runtime error")
	}
	if strings.Contains(err.Error(), "\n") {
		t.Fatalf("error should be a single line, got %q", err)
	}
}

func TestEvaluatorOptions(t *testing.T) {
	t.Parallel()

	eval := New(exprlang.Function("adult", func(params ...any) (any, error) {
		age, _ := params[0].(float64)
		return age >= 18, nil
	}))
	got, err := eval.Eval("target", "adult(age)", visibility.Context{Values: map[string]any{"age": 16.0}})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if got {
		t.Fatal("expected adult(16) to hide the field")
	}
}

func TestEvaluatorCachesPrograms(t *testing.T) {
	t.Parallel()

	eval := New()
	for i := 0; i < 3; i++ {
		if _, err := eval.Eval("x", "a == 1", visibility.Context{}); err != nil {
			t.Fatalf("eval: %v", err)
		}
	}
	if len(eval.cache) != 1 {
		t.Fatalf("expected one cached program, got %d", len(eval.cache))
	}
	if got := eval.cache["a == 1"].String(); got != "a == 1" {
		t.Fatalf("unexpected source %q", got)
	}
}
