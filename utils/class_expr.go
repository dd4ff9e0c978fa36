package utils

import (
	"fmt"
	"math"
	"strings"

	goeval "github.com/edisonguo/govaluate"
)

// ClassSpec maps one land-cover class to its output artifact. A class
// is selected either by an exact cell value or by a boolean expression
// over the variable "value".
type ClassSpec struct {
	Value      *float64 `yaml:"value"`
	Expression string   `yaml:"expression"`
	Name       string   `yaml:"name"`

	expr *goeval.EvaluableExpression
}

// Compile checks the class and parses its expression, if any.
func (c *ClassSpec) Compile() error {
	if c.Name == "" {
		return fmt.Errorf("class without output name")
	}
	if c.Value == nil && strings.TrimSpace(c.Expression) == "" {
		return fmt.Errorf("class %s needs a value or an expression", c.Name)
	}
	if c.Value != nil && c.Expression != "" {
		return fmt.Errorf("class %s has both value and expression", c.Name)
	}
	if c.Expression == "" {
		return nil
	}

	expr, err := parseExpression(c.Expression, map[string]struct{}{"value": {}})
	if err != nil {
		return fmt.Errorf("class %s: %v", c.Name, err)
	}
	c.expr = expr
	return nil
}

// less orders value classes by value, ahead of expression classes
// ordered by name.
func (c *ClassSpec) less(o *ClassSpec) bool {
	switch {
	case c.Value != nil && o.Value != nil:
		return *c.Value < *o.Value
	case c.Value != nil:
		return true
	case o.Value != nil:
		return false
	}
	return c.Name < o.Name
}

func (c *ClassSpec) String() string {
	if c.Value != nil {
		return fmt.Sprintf("%s(value == %v)", c.Name, *c.Value)
	}
	return fmt.Sprintf("%s(%s)", c.Name, c.Expression)
}

// Matcher returns a membership test for the class. Expression results
// are memoised per distinct cell value, which keeps categorical grids
// cheap to evaluate. A Matcher must not be shared between goroutines.
func (c *ClassSpec) Matcher() *ClassMatcher {
	return &ClassMatcher{spec: c, cache: map[float64]bool{}}
}

type ClassMatcher struct {
	spec  *ClassSpec
	cache map[float64]bool
}

func (m *ClassMatcher) Match(v float64) (bool, error) {
	if m.spec.Value != nil {
		return v == *m.spec.Value, nil
	}
	if math.IsNaN(v) {
		return false, nil
	}
	if res, ok := m.cache[v]; ok {
		return res, nil
	}
	if m.spec.expr == nil {
		return false, fmt.Errorf("class %s: expression not compiled", m.spec.Name)
	}

	result, err := m.spec.expr.Evaluate(map[string]interface{}{"value": v})
	if err != nil {
		return false, fmt.Errorf("class expression: %v", err)
	}
	val, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("class expression: result '%v' is not boolean", result)
	}
	m.cache[v] = val
	return val, nil
}

// ParsePatternExpression parses a file selection expression. The only
// variable available is "path".
func ParsePatternExpression(pattern string) (*goeval.EvaluableExpression, error) {
	if len(strings.TrimSpace(pattern)) == 0 {
		return nil, nil
	}
	return parseExpression(pattern, map[string]struct{}{"path": {}})
}

func parseExpression(pattern string, validVariables map[string]struct{}) (*goeval.EvaluableExpression, error) {
	expr, err := goeval.NewEvaluableExpression(pattern)
	if err != nil {
		return nil, err
	}

	for _, token := range expr.Tokens() {
		if token.Kind == goeval.VARIABLE {
			varName, ok := token.Value.(string)
			if !ok {
				return nil, fmt.Errorf("variable token '%v' failed to cast string", token.Value)
			}
			if _, found := validVariables[varName]; !found {
				var names []string
				for k := range validVariables {
					names = append(names, k)
				}
				return nil, fmt.Errorf("variable %v is not supported. Valid variables are %v", varName, names)
			}
		}
	}
	return expr, nil
}
