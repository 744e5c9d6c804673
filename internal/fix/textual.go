package fix

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/vk/tfconvert/internal/cfn"
	"github.com/vk/tfconvert/internal/tfmap"
)

// stripFencesRule removes the markdown code fences models like to wrap
// their output in, with or without a language hint.
type stripFencesRule struct{}

var (
	openFencePattern  = regexp.MustCompile("(?m)^```(?:hcl|terraform|tf)?[ \t]*\r?\n")
	closeFencePattern = regexp.MustCompile("(?m)^```[ \t]*$")
)

func (r *stripFencesRule) ID() string { return "strip-markdown-fences" }

func (r *stripFencesRule) Apply(_ context.Context, text string, _ *cfn.Template) (string, []string, []string) {
	out := openFencePattern.ReplaceAllString(text, "")
	out = closeFencePattern.ReplaceAllString(out, "")
	return strings.TrimSpace(out) + "\n", nil, nil
}

// intrinsicResidueRule replaces CloudFormation intrinsic syntax the model
// failed to translate with the equivalent Terraform expression, using the
// source template to resolve what each reference names.
type intrinsicResidueRule struct {
	table *tfmap.Table
}

var (
	getAZsPattern       = regexp.MustCompile(`(?:Fn::GetAZs|!GetAZs)(?:\s*"[^"]*")?`)
	refPattern          = regexp.MustCompile(`!Ref\s+([A-Za-z][A-Za-z0-9]*)`)
	getAttPattern       = regexp.MustCompile(`!GetAtt\s+([A-Za-z][A-Za-z0-9]*)\.([A-Za-z][A-Za-z0-9.]*)`)
	subPattern          = regexp.MustCompile(`!Sub\s+("(?:[^"\\]|\\.)*")`)
	selectPattern       = regexp.MustCompile(`!Select\s*\[\s*(\d+)\s*,\s*([^\[\]]+?)\s*\]`)
	cidrPattern         = regexp.MustCompile(`!Cidr\s*\[\s*([^,\[\]]+?)\s*,\s*(\d+)\s*,\s*(\d+)\s*\]`)
	cidrLiteralPattern  = regexp.MustCompile(`^"?\d+\.\d+\.\d+\.\d+/(\d+)"?$`)
	interpPattern       = regexp.MustCompile(`\$\{([A-Z][A-Za-z0-9]*)\}`)
	getAttInterpPattern = regexp.MustCompile(`\$\{([A-Z][A-Za-z0-9]*)\.([A-Za-z][A-Za-z0-9.]*)\}`)
	pseudoPattern       = regexp.MustCompile(`\$\{(AWS::[A-Za-z]+)\}`)
)

func (r *intrinsicResidueRule) ID() string { return "intrinsic-residues" }

func (r *intrinsicResidueRule) Apply(_ context.Context, text string, tpl *cfn.Template) (string, []string, []string) {
	var notes []string

	// Availability-zone lookups have a single canonical translation.
	text = getAZsPattern.ReplaceAllString(text, "data.aws_availability_zones.available.names")

	// Dropped !Sub wrappers: the quoted string is already a valid Terraform
	// template once its placeholders are rewritten below.
	text = subPattern.ReplaceAllString(text, "$1")

	text = refPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := refPattern.FindStringSubmatch(match)[1]
		if expr, ok := r.resolveRef(name, tpl); ok {
			return expr
		}
		notes = append(notes, fmt.Sprintf("unresolved !Ref residue %q", name))
		return match
	})

	text = getAttPattern.ReplaceAllStringFunc(text, func(match string) string {
		parts := getAttPattern.FindStringSubmatch(match)
		if expr, ok := r.resolveGetAtt(parts[1], parts[2], tpl); ok {
			return expr
		}
		notes = append(notes, fmt.Sprintf("unresolved !GetAtt residue %q", parts[1]+"."+parts[2]))
		return match
	})

	text = selectPattern.ReplaceAllString(text, "element($2, $1)")

	// Fn::Cidr's third argument is the host-bit count of each generated
	// block, while cidrsubnets takes newbits relative to the parent prefix.
	// The conversion needs the parent prefix, so only a literal CIDR can be
	// rewritten safely.
	text = cidrPattern.ReplaceAllStringFunc(text, func(match string) string {
		parts := cidrPattern.FindStringSubmatch(match)
		count, _ := strconv.Atoi(parts[2])
		hostBits, _ := strconv.Atoi(parts[3])

		prefixMatch := cidrLiteralPattern.FindStringSubmatch(parts[1])
		if prefixMatch == nil {
			notes = append(notes, fmt.Sprintf("Fn::Cidr residue over %q left untranslated: parent prefix is not statically known", parts[1]))
			return match
		}
		prefix, _ := strconv.Atoi(prefixMatch[1])

		newBits := (32 - hostBits) - prefix
		if count < 1 || count > 16 || newBits < 1 || hostBits < 1 {
			notes = append(notes, fmt.Sprintf("Fn::Cidr residue with count %d and %d host bits over /%d left untranslated", count, hostBits, prefix))
			return match
		}
		bits := make([]string, count)
		for i := range bits {
			bits[i] = strconv.Itoa(newBits)
		}
		return fmt.Sprintf("cidrsubnets(%s, %s)", parts[1], strings.Join(bits, ", "))
	})

	// ${LogicalId} placeholders inside strings.
	text = pseudoPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := pseudoPattern.FindStringSubmatch(match)[1]
		if expr, ok := tfmap.PseudoParameterExpr(name); ok {
			return "${" + expr + "}"
		}
		notes = append(notes, fmt.Sprintf("unresolved pseudo parameter %q", name))
		return match
	})
	text = getAttInterpPattern.ReplaceAllStringFunc(text, func(match string) string {
		parts := getAttInterpPattern.FindStringSubmatch(match)
		if expr, ok := r.resolveGetAtt(parts[1], parts[2], tpl); ok {
			return "${" + expr + "}"
		}
		if tpl != nil && tpl.Resources[parts[1]] != nil {
			notes = append(notes, fmt.Sprintf("unresolved Fn::Sub placeholder %q", parts[1]+"."+parts[2]))
		}
		return match
	})
	text = interpPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := interpPattern.FindStringSubmatch(match)[1]
		if expr, ok := r.resolveRef(name, tpl); ok {
			return "${" + expr + "}"
		}
		if tpl != nil && (tpl.Resources[name] != nil || tpl.Parameters[name] != nil) {
			notes = append(notes, fmt.Sprintf("unresolved Fn::Sub placeholder %q", name))
		}
		// Anything else is not a template name: leave the interpolation alone.
		return match
	})

	return text, nil, notes
}

func (r *intrinsicResidueRule) resolveRef(name string, tpl *cfn.Template) (string, bool) {
	if expr, ok := tfmap.PseudoParameterExpr(name); ok {
		return expr, true
	}
	if tpl == nil {
		return "", false
	}
	if _, ok := tpl.Parameters[name]; ok {
		return "var." + tfmap.TerraformName(name), true
	}
	if res, ok := tpl.Resources[name]; ok {
		if tfType, ok := r.table.ResourceType(res.Type); ok {
			return tfType + "." + tfmap.TerraformName(name) + ".id", true
		}
	}
	return "", false
}

func (r *intrinsicResidueRule) resolveGetAtt(name, attr string, tpl *cfn.Template) (string, bool) {
	if tpl == nil {
		return "", false
	}
	res, ok := tpl.Resources[name]
	if !ok {
		return "", false
	}
	tfType, ok := r.table.ResourceType(res.Type)
	if !ok {
		return "", false
	}
	return tfType + "." + tfmap.TerraformName(name) + "." + tfmap.TerraformName(strings.ReplaceAll(attr, ".", "_")), true
}

// modulePathRule rewrites bare file names in file()/templatefile() calls to
// module-relative paths so the emitted document is self-consistent with the
// output layout.
type modulePathRule struct{}

var barePathPattern = regexp.MustCompile(`\b(file|templatefile)\(\s*"([^"$/{][^"]*)"`)

func (r *modulePathRule) ID() string { return "module-relative-paths" }

func (r *modulePathRule) Apply(_ context.Context, text string, _ *cfn.Template) (string, []string, []string) {
	out := barePathPattern.ReplaceAllStringFunc(text, func(match string) string {
		parts := barePathPattern.FindStringSubmatch(match)
		path := strings.TrimPrefix(parts[2], "./")
		return fmt.Sprintf(`%s("${path.module}/%s"`, parts[1], path)
	})
	return out, nil, nil
}
