package replay

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// Expectations compiles and caches CEL step expectations. Each expression
// sees three variables: result (string, the rendered output or ""), ok
// (bool) and error (string, the failure kind or "").
type Expectations struct {
	env   *cel.Env
	mu    sync.RWMutex
	cache map[string]cel.Program
}

func NewExpectations() (*Expectations, error) {
	env, err := cel.NewEnv(
		cel.Variable("result", cel.StringType),
		cel.Variable("ok", cel.BoolType),
		cel.Variable("error", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return &Expectations{env: env, cache: make(map[string]cel.Program)}, nil
}

func (x *Expectations) program(expr string) (cel.Program, error) {
	x.mu.RLock()
	prg, hit := x.cache[expr]
	x.mu.RUnlock()
	if hit {
		return prg, nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if prg, hit = x.cache[expr]; hit {
		return prg, nil
	}
	ast, issues := x.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error in %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("CEL expectation %q must be boolean, is %s", expr, ast.OutputType())
	}
	prg, err := x.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program error in %q: %w", expr, err)
	}
	x.cache[expr] = prg
	return prg, nil
}

// Eval evaluates expr against one step outcome.
func (x *Expectations) Eval(expr, result string, ok bool, kind string) (bool, error) {
	prg, err := x.program(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(map[string]any{
		"result": result,
		"ok":     ok,
		"error":  kind,
	})
	if err != nil {
		return false, fmt.Errorf("CEL eval error in %q: %w", expr, err)
	}
	b, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("CEL expectation %q did not return bool", expr)
	}
	return b, nil
}
