package config

import (
	"fmt"
	"os"
	"regexp"
	"runtime"
	"strings"

	"github.com/expr-lang/expr"
)

// Env is the environment `{{ ... }}` interpolations and `when` conditions are
// evaluated against
type Env struct {
	TargetOS   string            `expr:"target_os"`
	TargetArch string            `expr:"target_arch"`
	Environ    map[string]string `expr:"environ"`
	basedir    string
}

func NewEnv(basedir string) Env {
	environ := make(map[string]string)
	for _, e := range os.Environ() {
		if i := strings.Index(e, "="); i >= 0 {
			environ[e[:i]] = e[i+1:]
		}
	}

	return Env{
		TargetOS:   runtime.GOOS,
		TargetArch: runtime.GOARCH,
		Environ:    environ,
		basedir:    basedir,
	}
}

// Dir is the directory relative paths in the config are resolved against
func (env Env) Dir() string { return env.basedir }

func (env Env) eval(expression string) (any, error) {
	program, err := expr.Compile(expression, expr.Env(env))
	if err != nil {
		return nil, fmt.Errorf("failed to compile expression %q: %w", expression, err)
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("failed to run expression %q: %w", expression, err)
	}
	return result, nil
}

// Condition evaluates a boolean expression; the empty expression is true
func (env Env) Condition(expression string) (bool, error) {
	if strings.TrimSpace(expression) == "" {
		return true, nil
	}
	result, err := env.eval(expression)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q returned %T, expected bool", expression, result)
	}
	return b, nil
}

var exprRegex = regexp.MustCompile(`\{\{(.+?)\}\}`)

// evaluateString finds and evaluates all {{...}} expressions in a string
func (env Env) evaluateString(s string) (string, error) {
	matches := exprRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var sb strings.Builder
	lastIndex := 0

	for _, m := range matches {
		sb.WriteString(s[lastIndex:m[0]])

		result, err := env.eval(strings.TrimSpace(s[m[2]:m[3]]))
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "%v", result)
		lastIndex = m[1]
	}

	sb.WriteString(s[lastIndex:])
	return sb.String(), nil
}

// processExpressions walks decoded config data, evaluating expressions in
// strings and dropping null values
func (env Env) processExpressions(data any) (any, error) {
	switch v := data.(type) {
	case map[string]any:
		for key, val := range v {
			if val == nil {
				delete(v, key)
				continue
			}
			processed, err := env.processExpressions(val)
			if err != nil {
				return nil, err
			}
			v[key] = processed
		}
		return v, nil
	case []any:
		out := v[:0]
		for _, item := range v {
			if item == nil {
				continue
			}
			processed, err := env.processExpressions(item)
			if err != nil {
				return nil, err
			}
			out = append(out, processed)
		}
		return out, nil
	case string:
		return env.evaluateString(v)
	default:
		return data, nil
	}
}
