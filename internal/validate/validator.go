package validate

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"

	"github.com/vk/tfconvert/internal/ctxlog"
)

// Validator runs the target-schema checks over generated Terraform text.
type Validator struct {
	// CheckFormat enables the canonical-formatting phase, which emits
	// warnings when the text differs from hclwrite's canonical form.
	CheckFormat bool
}

// New returns a Validator with the formatting check enabled.
func New() *Validator {
	return &Validator{CheckFormat: true}
}

// Validate checks the document and returns all diagnostics from the first
// failing phase (or the warnings of later phases when everything parses).
func (v *Validator) Validate(ctx context.Context, filename string, src []byte) Result {
	logger := ctxlog.FromContext(ctx)

	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		logger.Debug("Syntax phase failed.", "diagnostics", len(diags))
		return Result{Pass: false, Diagnostics: fromHCLDiagnostics(diags)}
	}

	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return Result{Pass: false, Diagnostics: []Diagnostic{{
			Severity: SeverityError,
			Message:  "internal: parsed file is not native HCL syntax",
		}}}
	}

	refDiags := v.checkReferences(body)
	if len(refDiags) > 0 {
		logger.Debug("Reference phase failed.", "diagnostics", len(refDiags))
		return Result{Pass: false, Diagnostics: refDiags}
	}

	var warnings []Diagnostic
	if v.CheckFormat {
		if formatted := hclwrite.Format(src); !bytes.Equal(formatted, src) {
			warnings = append(warnings, Diagnostic{
				Severity: SeverityWarning,
				Location: filename,
				Message:  "document is not in canonical HCL format",
			})
		}
	}

	logger.Debug("Validation passed.", "warnings", len(warnings))
	return Result{Pass: true, Diagnostics: warnings}
}

// declarations indexes everything a reference may resolve to.
type declarations struct {
	variables map[string]bool // var.NAME
	locals    map[string]bool // local.NAME
	data      map[string]bool // data.TYPE.NAME
	resources map[string]bool // TYPE.NAME
	modules   map[string]bool // module.NAME
}

// builtinRoots are traversal roots that need no declaration in the document.
var builtinRoots = map[string]bool{
	"path":      true,
	"each":      true,
	"count":     true,
	"self":      true,
	"terraform": true,
}

// checkReferences verifies that every variable/resource/data/local traversal
// used anywhere in the document resolves to a declaration in the same
// document. All failures are collected, not just the first.
func (v *Validator) checkReferences(body *hclsyntax.Body) []Diagnostic {
	decls := collectDeclarations(body)

	var diags []Diagnostic
	walkExpressions(body, func(expr hclsyntax.Expression) {
		for _, traversal := range expr.Variables() {
			if d, ok := checkTraversal(traversal, decls); !ok {
				diags = append(diags, d)
			}
		}
	})
	return diags
}

func collectDeclarations(body *hclsyntax.Body) *declarations {
	decls := &declarations{
		variables: make(map[string]bool),
		locals:    make(map[string]bool),
		data:      make(map[string]bool),
		resources: make(map[string]bool),
		modules:   make(map[string]bool),
	}

	for _, block := range body.Blocks {
		switch block.Type {
		case "variable":
			if len(block.Labels) == 1 {
				decls.variables[block.Labels[0]] = true
			}
		case "locals":
			for name := range block.Body.Attributes {
				decls.locals[name] = true
			}
		case "data":
			if len(block.Labels) == 2 {
				decls.data[block.Labels[0]+"."+block.Labels[1]] = true
			}
		case "resource":
			if len(block.Labels) == 2 {
				decls.resources[block.Labels[0]+"."+block.Labels[1]] = true
			}
		case "module":
			if len(block.Labels) == 1 {
				decls.modules[block.Labels[0]] = true
			}
		}
	}
	return decls
}

func checkTraversal(traversal hcl.Traversal, decls *declarations) (Diagnostic, bool) {
	root := traversal.RootName()
	rng := traversal.SourceRange()

	fail := func(msg, subject string) (Diagnostic, bool) {
		return Diagnostic{
			Severity: SeverityError,
			Location: rng.String(),
			Message:  msg,
			Subject:  subject,
		}, false
	}

	attrAt := func(i int) (string, bool) {
		if i >= len(traversal) {
			return "", false
		}
		attr, ok := traversal[i].(hcl.TraverseAttr)
		if !ok {
			return "", false
		}
		return attr.Name, true
	}

	switch {
	case builtinRoots[root]:
		return Diagnostic{}, true

	case root == "var":
		name, ok := attrAt(1)
		if !ok {
			return fail("malformed variable reference", "var")
		}
		if !decls.variables[name] {
			return fail(fmt.Sprintf("reference to undeclared variable %q", name), "var."+name)
		}
		return Diagnostic{}, true

	case root == "local":
		name, ok := attrAt(1)
		if !ok {
			return fail("malformed local reference", "local")
		}
		if !decls.locals[name] {
			return fail(fmt.Sprintf("reference to undeclared local %q", name), "local."+name)
		}
		return Diagnostic{}, true

	case root == "data":
		dataType, okType := attrAt(1)
		dataName, okName := attrAt(2)
		if !okType || !okName {
			return fail("malformed data source reference", "data")
		}
		addr := dataType + "." + dataName
		if !decls.data[addr] {
			return fail(fmt.Sprintf("reference to undeclared data source %q", "data."+addr), "data."+addr)
		}
		return Diagnostic{}, true

	case root == "module":
		name, ok := attrAt(1)
		if !ok {
			return fail("malformed module reference", "module")
		}
		if !decls.modules[name] {
			return fail(fmt.Sprintf("reference to undeclared module %q", name), "module."+name)
		}
		return Diagnostic{}, true

	default:
		// Anything else is a managed resource address: TYPE.NAME.
		name, ok := attrAt(1)
		if !ok {
			return fail(fmt.Sprintf("unknown reference root %q", root), root)
		}
		addr := root + "." + name
		if !decls.resources[addr] {
			return fail(fmt.Sprintf("reference to undeclared resource %q", addr), addr)
		}
		return Diagnostic{}, true
	}
}

// walkExpressions visits every attribute expression in the body and all
// nested blocks.
func walkExpressions(body *hclsyntax.Body, visit func(hclsyntax.Expression)) {
	for _, attr := range body.Attributes {
		visit(attr.Expr)
	}
	for _, block := range body.Blocks {
		walkExpressions(block.Body, visit)
	}
}

func fromHCLDiagnostics(diags hcl.Diagnostics) []Diagnostic {
	out := make([]Diagnostic, 0, len(diags))
	for _, d := range diags {
		severity := SeverityError
		if d.Severity == hcl.DiagWarning {
			severity = SeverityWarning
		}
		location := ""
		if d.Subject != nil {
			location = d.Subject.String()
		}
		msg := d.Summary
		if d.Detail != "" {
			msg = strings.TrimRight(d.Summary, ".") + ": " + d.Detail
		}
		out = append(out, Diagnostic{
			Severity: severity,
			Location: location,
			Message:  msg,
		})
	}
	return out
}
