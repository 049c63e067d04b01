package lifecycle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/brugmanjoost/drumbeat/internal/message"
)

// Filter is a compiled CEL predicate over messages. The zero value matches
// everything.
//
// Variables: id, queue, subject, status (token), time_start_ms, time_end_ms
// (0 while unset), request and response (decoded JSON bodies, null if absent).
type Filter struct {
	prog cel.Program
}

// CompileFilter parses and type-checks expr. An empty expression yields the
// match-all filter.
func CompileFilter(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Filter{}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("id", cel.IntType),
		cel.Variable("queue", cel.StringType),
		cel.Variable("subject", cel.StringType),
		cel.Variable("status", cel.StringType),
		cel.Variable("time_start_ms", cel.IntType),
		cel.Variable("time_end_ms", cel.IntType),
		cel.Variable("request", cel.DynType),
		cel.Variable("response", cel.DynType),
	)
	if err != nil {
		return Filter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return Filter{}, fmt.Errorf("%w: filter: %v", message.ErrBadRequest, iss.Err())
	}
	checked, iss := env.Check(ast)
	if iss != nil && iss.Err() != nil {
		return Filter{}, fmt.Errorf("%w: filter: %v", message.ErrBadRequest, iss.Err())
	}
	if ot := checked.OutputType(); !ot.IsExactType(cel.BoolType) && !ot.IsExactType(cel.DynType) {
		return Filter{}, fmt.Errorf("%w: filter must evaluate to a bool, got %s", message.ErrBadRequest, ot)
	}
	prog, err := env.Program(checked)
	if err != nil {
		return Filter{}, err
	}
	return Filter{prog: prog}, nil
}

// Enabled reports whether the filter restricts anything.
func (f Filter) Enabled() bool { return f.prog != nil }

func decodeBody(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// Match evaluates the filter. Evaluation errors, for example a missing
// field in a body, count as no match.
func (f Filter) Match(m message.Message) bool {
	if f.prog == nil {
		return true
	}
	var end int64
	if m.TimeEnd != nil {
		end = m.TimeEnd.UnixMilli()
	}
	out, _, err := f.prog.Eval(map[string]any{
		"id":            m.ID,
		"queue":         m.Queue,
		"subject":       m.Subject,
		"status":        m.Status.String(),
		"time_start_ms": m.TimeStart.UnixMilli(),
		"time_end_ms":   end,
		"request":       decodeBody(m.RequestBody),
		"response":      decodeBody(m.ResponseBody),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
