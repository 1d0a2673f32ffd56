package inspect

import (
	"encoding/json"
	"strings"

	"github.com/google/cel-go/cel"
)

// Filter wraps a compiled CEL program evaluated per composition record.
// When disabled, Eval always returns true.
type Filter struct {
	prog    cel.Program
	enabled bool
}

// NewFilter compiles a CEL expression over the per-record variables:
// kind, hash, parentHash, segment, size, text, and json (the parsed
// record). An empty expression yields a disabled filter.
func NewFilter(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Filter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("kind", cel.StringType),
		cel.Variable("hash", cel.StringType),
		cel.Variable("parentHash", cel.StringType),
		cel.Variable("segment", cel.StringType),
		cel.Variable("size", cel.IntType),
		cel.Variable("text", cel.StringType),
		// Parsed record JSON for field filtering.
		cel.Variable("json", cel.DynType),
	)
	if err != nil {
		return Filter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return Filter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return Filter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return Filter{}, err
	}
	return Filter{prog: prog, enabled: true}, nil
}

// Eval evaluates the compiled expression against one record. When
// disabled, returns true. Evaluation errors count as non-matches.
func (f Filter) Eval(e Entry) bool {
	if !f.enabled {
		return true
	}
	var jsonObj any
	_ = json.Unmarshal(e.Record, &jsonObj)
	out, _, err := f.prog.Eval(map[string]any{
		"kind":       e.Kind,
		"hash":       e.HashBase16,
		"parentHash": e.ParentHashBase16,
		"segment":    e.Segment,
		"size":       int64(len(e.Record)),
		"text":       string(e.Record),
		"json":       jsonObj,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
