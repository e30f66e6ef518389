// File: internal/permexpr/parser_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package permexpr

import "testing"

func checkerFor(values map[string]bool) Checker {
	return func(name string) bool { return values[name] }
}

func TestCompileBasic(t *testing.T) {
	cases := []struct {
		expr   string
		values map[string]bool
		want   bool
	}{
		{"a", map[string]bool{"a": true}, true},
		{"a and b", map[string]bool{"a": true, "b": false}, false},
		{"a or b", map[string]bool{"a": false, "b": true}, true},
		{"not a", map[string]bool{"a": false}, true},
		{"a, b", map[string]bool{"a": false, "b": true}, true}, // comma == or
		{"(a or b) and c", map[string]bool{"a": true, "b": false, "c": true}, true},
		{"NOT a AND b", map[string]bool{"a": false, "b": true}, true},
		{"", map[string]bool{}, true},
	}
	for _, c := range cases {
		ex, err := Compile(c.expr)
		if err != nil {
			t.Fatalf("Compile(%q) failed: %v", c.expr, err)
		}
		got := ex.Eval(checkerFor(c.values))
		if got != c.want {
			t.Errorf("Eval(%q) = %v, want %v", c.expr, got, c.want)
		}
	}
}

func TestCompileInvalid(t *testing.T) {
	invalid := []string{"(a", "a and", "and a", "a or or b", "()"}
	for _, expr := range invalid {
		if _, err := Compile(expr); err == nil {
			t.Errorf("Compile(%q) expected error, got nil", expr)
		}
	}
}

// TestAlgebraicLaws verifies spec.md Testable Property #8.
func TestAlgebraicLaws(t *testing.T) {
	bools := []bool{false, true}
	for _, a := range bools {
		for _, b := range bools {
			for _, c := range bools {
				vals := map[string]bool{"a": a, "b": b, "c": c}
				check := checkerFor(vals)

				ab, _ := Compile("a and b")
				ba, _ := Compile("b and a")
				if ab.Eval(check) != ba.Eval(check) {
					t.Fatalf("a and b != b and a for a=%v b=%v", a, b)
				}

				notnot, _ := Compile("not not a")
				plain, _ := Compile("a")
				if notnot.Eval(check) != plain.Eval(check) {
					t.Fatalf("not not a != a for a=%v", a)
				}

				distribL, _ := Compile("a or (b and c)")
				distribR, _ := Compile("(a or b) and (a or c)")
				if distribL.Eval(check) != distribR.Eval(check) {
					t.Fatalf("distributive law failed for a=%v b=%v c=%v", a, b, c)
				}
			}
		}
	}
}
