package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	texttemplate "text/template"
)

// RenderError carries the original template source alongside the underlying
// parse or execution error so the orchestrator can abort a single channel.
type RenderError struct {
	Template string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("template render failed: %v", e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// ValidationResult reports variables referenced by a template but missing
// from the supplied bag.
type ValidationResult struct {
	Valid   bool
	Missing []string
}

// Engine renders parameterized message content. Rendering is a pure function
// of (template, variables): no I/O, no hidden state. Helpers are held on the
// engine instance rather than registered into a shared compiler.
type Engine struct {
	funcs texttemplate.FuncMap
}

// NewEngine creates an Engine with the standard helper set: currency and date
// formatting plus string case transforms.
func NewEngine() *Engine {
	return &Engine{funcs: defaultHelpers()}
}

// Render executes a template against the variable bag. Variables are
// referenced as {{.name}}; helpers as {{formatCurrency .total_amount "GBP"}}.
func (e *Engine) Render(tmpl string, variables map[string]any) (string, error) {
	parsed, err := texttemplate.New("message").Funcs(e.funcs).Parse(tmpl)
	if err != nil {
		return "", &RenderError{Template: tmpl, Err: err}
	}

	var sb strings.Builder
	if err := parsed.Execute(&sb, variables); err != nil {
		return "", &RenderError{Template: tmpl, Err: err}
	}
	return sb.String(), nil
}

// variableRef matches ".identifier" tokens inside template actions.
var (
	actionRe      = regexp.MustCompile(`\{\{[^{}]*\}\}`)
	variableRefRe = regexp.MustCompile(`\.([a-zA-Z_][a-zA-Z0-9_]*)`)
)

// ExtractVariables returns the sorted set of variable identifiers referenced
// by a template, ignoring helper names and block syntax markers.
func (e *Engine) ExtractVariables(tmpl string) []string {
	seen := map[string]struct{}{}
	for _, action := range actionRe.FindAllString(tmpl, -1) {
		for _, m := range variableRefRe.FindAllStringSubmatch(action, -1) {
			seen[m[1]] = struct{}{}
		}
	}

	vars := make([]string, 0, len(seen))
	for v := range seen {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}

// ValidateVariables reports any referenced (or explicitly required) variable
// that is not present in the supplied bag.
func (e *Engine) ValidateVariables(tmpl string, variables map[string]any, required ...string) ValidationResult {
	wanted := e.ExtractVariables(tmpl)
	wanted = append(wanted, required...)

	var missing []string
	seen := map[string]struct{}{}
	for _, name := range wanted {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if _, ok := variables[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)

	return ValidationResult{Valid: len(missing) == 0, Missing: missing}
}
