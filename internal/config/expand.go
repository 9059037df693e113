package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/factbuild/internal/source"
)

// ExpandSpecs evaluates template placeholders like ${period} inside every
// pattern and path of the source map, returning a new map. Plain strings
// pass through untouched, so maps that never use templating keep working.
func ExpandSpecs(specs map[string]source.Spec, vars map[string]string) (map[string]source.Spec, error) {
	ctyVars := make(map[string]cty.Value, len(vars))
	for k, v := range vars {
		ctyVars[k] = cty.StringVal(v)
	}
	evalCtx := &hcl.EvalContext{Variables: ctyVars}

	out := make(map[string]source.Spec, len(specs))
	for name, spec := range specs {
		var err error
		if spec.Pattern, err = expandTemplate(spec.Pattern, evalCtx); err != nil {
			return nil, fmt.Errorf("source %q: %w", name, err)
		}
		if spec.Path, err = expandTemplate(spec.Path, evalCtx); err != nil {
			return nil, fmt.Errorf("source %q: %w", name, err)
		}
		out[name] = spec
	}
	return out, nil
}

// expandTemplate evaluates s as an HCL string template. Unknown variables
// surface as errors naming the reference, not as empty expansions.
func expandTemplate(s string, evalCtx *hcl.EvalContext) (string, error) {
	if s == "" {
		return "", nil
	}
	expr, diags := hclsyntax.ParseTemplate([]byte(s), "pattern", hcl.InitialPos)
	if diags.HasErrors() {
		return "", fmt.Errorf("parsing template %q: %s", s, diags.Error())
	}
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return "", fmt.Errorf("expanding template %q: %s", s, diags.Error())
	}
	if val.Type() != cty.String {
		return "", fmt.Errorf("template %q did not produce a string", s)
	}
	return val.AsString(), nil
}
