package stock

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// DefaultReorderExpression fires once available stock falls to the reorder level.
const DefaultReorderExpression = "reorder_level > 0.0 && available <= reorder_level"

// ReorderRule is a compiled CEL predicate over a product's counters.
// Variables: physical, reserved, available, reorder_level (all double).
type ReorderRule struct {
	expr    string
	program cel.Program
}

// NewReorderRule compiles expr. An empty expr uses DefaultReorderExpression.
func NewReorderRule(expr string) (*ReorderRule, error) {
	if expr == "" {
		expr = DefaultReorderExpression
	}

	env, err := cel.NewEnv(
		cel.Variable("physical", cel.DoubleType),
		cel.Variable("reserved", cel.DoubleType),
		cel.Variable("available", cel.DoubleType),
		cel.Variable("reorder_level", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("reorder rule env: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("compile reorder rule %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("reorder rule %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("reorder rule program: %w", err)
	}

	return &ReorderRule{expr: expr, program: prg}, nil
}

// Expression returns the source expression.
func (r *ReorderRule) Expression() string { return r.expr }

// Triggered evaluates the rule against p.
func (r *ReorderRule) Triggered(p *Product) (bool, error) {
	out, _, err := r.program.Eval(map[string]any{
		"physical":      p.PhysicalStock.Float64(),
		"reserved":      p.ReservedStock.Float64(),
		"available":     p.Available().Float64(),
		"reorder_level": p.ReorderLevel.Float64(),
	})
	if err != nil {
		return false, fmt.Errorf("evaluate reorder rule: %w", err)
	}
	hit, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("reorder rule returned %T", out.Value())
	}
	return hit, nil
}
