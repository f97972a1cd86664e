package process

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/seedbed/seedbed/internal/ctxlog"
	"github.com/seedbed/seedbed/internal/document"
	"github.com/seedbed/seedbed/internal/fixture"
)

// placeholderRegex matches one `{{ namespace.arg }}` expression.
var placeholderRegex = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// processString resolves one string scalar. A whole-string reference token
// or placeholder adopts the resolved value's type; embedded placeholders
// interpolate into the surrounding text.
func (p *Processor) processString(ctx context.Context, s string, pctx *Context) (document.Node, error) {
	if target, ok := fixture.RefTarget(s); ok {
		if pctx.Refs == nil {
			return document.String(s), nil
		}
		value, found := pctx.Refs.Lookup(target)
		if !found {
			// Unresolved tokens are data, not errors.
			return document.String(s), nil
		}
		node, err := document.FromGo(value)
		if err != nil {
			return nil, fmt.Errorf("reference %q: %w", target, err)
		}
		return node, nil
	}

	matches := placeholderRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return document.String(s), nil
	}

	// Whole-string placeholder: keep the resolved type.
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		return p.eval(ctx, s[matches[0][2]:matches[0][3]], pctx)
	}

	var b strings.Builder
	prev := 0
	for _, m := range matches {
		b.WriteString(s[prev:m[0]])
		node, err := p.eval(ctx, s[m[2]:m[3]], pctx)
		if err != nil {
			return nil, err
		}
		text, err := stringify(node)
		if err != nil {
			return nil, fmt.Errorf("placeholder {{%s}}: %w", s[m[2]:m[3]], err)
		}
		b.WriteString(text)
		prev = m[1]
	}
	b.WriteString(s[prev:])
	return document.String(b.String()), nil
}

// eval dispatches one placeholder expression to its namespace handler.
func (p *Processor) eval(ctx context.Context, expr string, pctx *Context) (document.Node, error) {
	namespace, arg := expr, ""
	if i := strings.Index(expr, "."); i >= 0 {
		namespace, arg = expr[:i], expr[i+1:]
	}
	handler, ok := p.registry.Lookup(namespace)
	if !ok {
		return nil, fmt.Errorf("unknown placeholder namespace %q in {{%s}}", namespace, expr)
	}
	return handler(ctx, pctx, arg)
}

func (p *Processor) envHandler(ctx context.Context, _ *Context, arg string) (document.Node, error) {
	if arg == "" {
		return nil, fmt.Errorf("env placeholder needs a variable name")
	}
	value, ok := os.LookupEnv(arg)
	if !ok && !p.envWarned[arg] {
		p.envWarned[arg] = true
		ctxlog.FromContext(ctx).Warn("environment variable is not set", "name", arg)
	}
	return document.String(value), nil
}

func (p *Processor) fakeHandler(_ context.Context, _ *Context, arg string) (document.Node, error) {
	if arg == "" {
		return nil, fmt.Errorf("fake placeholder needs a function name")
	}
	out, err := p.faker.Generate("{" + arg + "}")
	if err != nil {
		return nil, fmt.Errorf("fake data function %q: %w", arg, err)
	}
	return document.String(out), nil
}

func (p *Processor) ordinalHandler(_ context.Context, pctx *Context, arg string) (document.Node, error) {
	if arg != "" {
		return nil, fmt.Errorf("ordinal placeholder takes no argument")
	}
	return document.Int(pctx.Ordinal), nil
}

func (p *Processor) fieldHandler(_ context.Context, pctx *Context, arg string) (document.Node, error) {
	if arg == "" {
		return nil, fmt.Errorf("field placeholder needs a path")
	}
	path, err := document.ParsePath(arg)
	if err != nil {
		return nil, fmt.Errorf("field placeholder: %w", err)
	}
	value, ok := document.Get(pctx.root, path)
	if !ok {
		return nil, fmt.Errorf("field placeholder: no field at %q", arg)
	}
	if containsFieldRef(value) {
		return nil, fmt.Errorf("field placeholder: %q is not resolved yet; sibling references cannot chain", arg)
	}
	return document.Clone(value), nil
}

// hasFieldPlaceholder reports whether s carries a `{{field.*}}` expression.
func hasFieldPlaceholder(s string) bool {
	for _, m := range placeholderRegex.FindAllStringSubmatchIndex(s, -1) {
		expr := s[m[2]:m[3]]
		if expr == "field" || strings.HasPrefix(expr, "field.") {
			return true
		}
	}
	return false
}

func stringify(n document.Node) (string, error) {
	switch v := n.(type) {
	case document.String:
		return string(v), nil
	case document.Int:
		return strconv.FormatInt(int64(v), 10), nil
	case document.Float:
		return strconv.FormatFloat(float64(v), 'f', -1, 64), nil
	case document.Bool:
		return strconv.FormatBool(bool(v)), nil
	case document.Null:
		return "", nil
	default:
		return "", fmt.Errorf("cannot interpolate a %T value into a string", n)
	}
}
