// Package cel wraps a compiled CEL program used to filter warm-tier records
// with caller-supplied expressions, e.g. `rec.owner_id == "u1" && rec.version > 3`.
package cel

import (
	"fmt"
	"reflect"

	"github.com/google/cel-go/cel"
)

// Evaluator struct contains the CEL expression & the cel program used to evaluate expression vs. a record's fields.
type Evaluator struct {
	Expression string
	program    cel.Program
}

// NewEvaluator compiles expression into a reusable program. The expression is
// evaluated against a variable "rec", a map of a record's fields, and must
// yield a boolean.
func NewEvaluator(expression string) (*Evaluator, error) {
	if expression == "" {
		return nil, fmt.Errorf("expression can't be emptry string")
	}

	env, err := cel.NewEnv(
		cel.Variable("rec", cel.MapType(cel.StringType, cel.AnyType)),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating CEL environment: %v", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("error compiling CEL expression: %v", issues.Err())
	}
	p, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("error creating Program: %v", err)
	}
	return &Evaluator{
		Expression: expression,
		program:    p,
	}, nil
}

// Evaluate runs the compiled expression against the provided record fields.
func (e *Evaluator) Evaluate(rec map[string]any) (bool, error) {
	out, _, err := e.program.Eval(map[string]any{
		"rec": rec,
	})
	if err != nil {
		return false, fmt.Errorf("error evaluating CEL expression: %v", err)
	}
	nv, err := out.ConvertToNative(reflect.TypeOf(false))
	if err != nil {
		return false, fmt.Errorf("error ConvertToNative, got err: %v", err)
	}
	v, ok := nv.(bool)
	if !ok {
		return false, fmt.Errorf("expression did not evaluate to bool, got: %v", nv)
	}
	return v, nil
}
