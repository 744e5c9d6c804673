package cfn

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vk/tfconvert/internal/ctxlog"
	"github.com/vk/tfconvert/internal/dag"
)

// supportedTopLevel is the set of template sections the converter handles.
// Anything else (e.g. Transform) is an unsupported construct and fails the
// parse outright rather than being silently dropped.
var supportedTopLevel = map[string]bool{
	"AWSTemplateFormatVersion": true,
	"Description":              true,
	"Metadata":                 true,
	"Parameters":               true,
	"Mappings":                 true,
	"Conditions":               true,
	"Resources":                true,
	"Outputs":                  true,
}

// Parse reads a CloudFormation template (YAML or JSON) and returns the
// parsed resource graph. It is a pure function: no side effects, and every
// failure mode is a *ParseError.
func Parse(ctx context.Context, src []byte) (*Template, error) {
	logger := ctxlog.FromContext(ctx)

	var root yaml.Node
	if err := yaml.Unmarshal(src, &root); err != nil {
		return nil, parseErrorf("malformed document: %v", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, parseErrorf("empty document")
	}
	body := root.Content[0]
	if body.Kind != yaml.MappingNode {
		return nil, parseErrorf("template body must be a mapping, got %s", kindName(body.Kind))
	}

	tpl := &Template{
		Parameters: make(map[string]*Parameter),
		Mappings:   make(map[string]Expr),
		Conditions: make(map[string]Expr),
		Resources:  make(map[string]*Resource),
		Outputs:    make(map[string]*Output),
	}

	for i := 0; i < len(body.Content); i += 2 {
		keyNode, valNode := body.Content[i], body.Content[i+1]
		section := keyNode.Value
		if !supportedTopLevel[section] {
			return nil, parseErrorf("unsupported top-level section %q", section)
		}

		var err error
		switch section {
		case "Description":
			tpl.Description = valNode.Value
		case "Parameters":
			err = parseParameters(valNode, tpl)
		case "Mappings":
			err = parseMappings(valNode, tpl)
		case "Conditions":
			err = parseConditions(valNode, tpl)
		case "Resources":
			err = parseResources(valNode, tpl)
		case "Outputs":
			err = parseOutputs(valNode, tpl)
		}
		if err != nil {
			return nil, err
		}
	}

	if len(tpl.Resources) == 0 {
		return nil, parseErrorf("template declares no resources")
	}

	if err := resolveReferences(tpl); err != nil {
		return nil, err
	}
	if err := inferDependencies(tpl); err != nil {
		return nil, err
	}

	logger.Debug("Template parsed.",
		"resources", len(tpl.Resources),
		"parameters", len(tpl.Parameters),
		"conditions", len(tpl.Conditions),
		"outputs", len(tpl.Outputs),
	)
	return tpl, nil
}

func parseParameters(node *yaml.Node, tpl *Template) error {
	if node.Kind != yaml.MappingNode {
		return parseErrorf("Parameters section must be a mapping")
	}
	for i := 0; i < len(node.Content); i += 2 {
		name, body := node.Content[i].Value, node.Content[i+1]
		if body.Kind != yaml.MappingNode {
			return parseErrorf("parameter %q must be a mapping", name)
		}

		param := &Parameter{Name: name}
		for j := 0; j < len(body.Content); j += 2 {
			key, val := body.Content[j].Value, body.Content[j+1]
			switch key {
			case "Type":
				param.Type = val.Value
			case "Description":
				param.Description = val.Value
			case "Default":
				expr, err := exprFromNode(val)
				if err != nil {
					return parseErrorf("parameter %q default: %v", name, err)
				}
				param.Default = expr
			case "AllowedValues":
				expr, err := exprFromNode(val)
				if err != nil {
					return parseErrorf("parameter %q allowed values: %v", name, err)
				}
				seq, ok := expr.(*Sequence)
				if !ok {
					return parseErrorf("parameter %q AllowedValues must be a list", name)
				}
				param.AllowedValues = seq.Items
			case "NoEcho":
				param.NoEcho = val.Value == "true"
			default:
				// Constraint fields (MinLength, AllowedPattern, ...) don't
				// influence conversion and are accepted untouched.
			}
		}
		if param.Type == "" {
			return parseErrorf("parameter %q is missing required field Type", name)
		}
		tpl.ParameterOrder = append(tpl.ParameterOrder, name)
		tpl.Parameters[name] = param
	}
	return nil
}

func parseMappings(node *yaml.Node, tpl *Template) error {
	if node.Kind != yaml.MappingNode {
		return parseErrorf("Mappings section must be a mapping")
	}
	for i := 0; i < len(node.Content); i += 2 {
		name := node.Content[i].Value
		expr, err := exprFromNode(node.Content[i+1])
		if err != nil {
			return parseErrorf("mapping %q: %v", name, err)
		}
		tpl.MappingOrder = append(tpl.MappingOrder, name)
		tpl.Mappings[name] = expr
	}
	return nil
}

func parseConditions(node *yaml.Node, tpl *Template) error {
	if node.Kind != yaml.MappingNode {
		return parseErrorf("Conditions section must be a mapping")
	}
	for i := 0; i < len(node.Content); i += 2 {
		name := node.Content[i].Value
		expr, err := exprFromNode(node.Content[i+1])
		if err != nil {
			return parseErrorf("condition %q: %v", name, err)
		}
		tpl.ConditionOrder = append(tpl.ConditionOrder, name)
		tpl.Conditions[name] = expr
	}
	return nil
}

// resourceMetaKeys are the resource-level directives that are accepted but
// carry no conversion semantics of their own.
var resourceMetaKeys = map[string]bool{
	"Metadata":            true,
	"DeletionPolicy":      true,
	"UpdateReplacePolicy": true,
	"CreationPolicy":      true,
	"UpdatePolicy":        true,
}

func parseResources(node *yaml.Node, tpl *Template) error {
	if node.Kind != yaml.MappingNode {
		return parseErrorf("Resources section must be a mapping")
	}
	for i := 0; i < len(node.Content); i += 2 {
		logicalID, body := node.Content[i].Value, node.Content[i+1]
		if _, dup := tpl.Resources[logicalID]; dup {
			return parseErrorf("duplicate logical ID %q", logicalID)
		}
		if body.Kind != yaml.MappingNode {
			return parseErrorf("resource %q must be a mapping", logicalID)
		}

		res := &Resource{LogicalID: logicalID}
		for j := 0; j < len(body.Content); j += 2 {
			key, val := body.Content[j].Value, body.Content[j+1]
			switch {
			case key == "Type":
				res.Type = val.Value
			case key == "Condition":
				res.Condition = val.Value
			case key == "Properties":
				expr, err := exprFromNode(val)
				if err != nil {
					return parseErrorf("resource %q properties: %v", logicalID, err)
				}
				props, ok := expr.(*Mapping)
				if !ok {
					return parseErrorf("resource %q Properties must be a mapping", logicalID)
				}
				res.Properties = props
			case key == "DependsOn":
				deps, err := parseDependsOn(val)
				if err != nil {
					return parseErrorf("resource %q: %v", logicalID, err)
				}
				res.ExplicitDeps = deps
			case resourceMetaKeys[key]:
				// accepted, not converted
			default:
				return parseErrorf("resource %q has unknown field %q", logicalID, key)
			}
		}
		if res.Type == "" {
			return parseErrorf("resource %q is missing required field Type", logicalID)
		}

		tpl.ResourceOrder = append(tpl.ResourceOrder, logicalID)
		tpl.Resources[logicalID] = res
	}
	return nil
}

func parseDependsOn(node *yaml.Node) ([]string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return []string{node.Value}, nil
	case yaml.SequenceNode:
		deps := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("DependsOn entries must be logical IDs")
			}
			deps = append(deps, item.Value)
		}
		return deps, nil
	default:
		return nil, fmt.Errorf("DependsOn must be a logical ID or a list of logical IDs")
	}
}

func parseOutputs(node *yaml.Node, tpl *Template) error {
	if node.Kind != yaml.MappingNode {
		return parseErrorf("Outputs section must be a mapping")
	}
	for i := 0; i < len(node.Content); i += 2 {
		name, body := node.Content[i].Value, node.Content[i+1]
		if body.Kind != yaml.MappingNode {
			return parseErrorf("output %q must be a mapping", name)
		}

		out := &Output{Name: name}
		for j := 0; j < len(body.Content); j += 2 {
			key, val := body.Content[j].Value, body.Content[j+1]
			switch key {
			case "Description":
				out.Description = val.Value
			case "Condition":
				out.Condition = val.Value
			case "Value":
				expr, err := exprFromNode(val)
				if err != nil {
					return parseErrorf("output %q value: %v", name, err)
				}
				out.Value = expr
			case "Export":
				if val.Kind != yaml.MappingNode {
					return parseErrorf("output %q Export must be a mapping", name)
				}
				for k := 0; k < len(val.Content); k += 2 {
					if val.Content[k].Value == "Name" {
						expr, err := exprFromNode(val.Content[k+1])
						if err != nil {
							return parseErrorf("output %q export name: %v", name, err)
						}
						out.ExportName = expr
					}
				}
			default:
				return parseErrorf("output %q has unknown field %q", name, key)
			}
		}
		if out.Value == nil {
			return parseErrorf("output %q is missing required field Value", name)
		}
		tpl.OutputOrder = append(tpl.OutputOrder, name)
		tpl.Outputs[name] = out
	}
	return nil
}

// exprFromNode converts a YAML node into the expression tree, resolving both
// short-form tags (!GetAtt) and long-form single-key mappings (Fn::GetAtt).
func exprFromNode(node *yaml.Node) (Expr, error) {
	if node.Kind == yaml.AliasNode {
		return exprFromNode(node.Alias)
	}

	// Short-form intrinsic tags.
	if tag := strings.TrimPrefix(node.Tag, "!"); tag != node.Tag && !strings.HasPrefix(node.Tag, "!!") {
		name, ok := shortTagIntrinsics[tag]
		if !ok {
			return nil, fmt.Errorf("unsupported YAML tag !%s", tag)
		}
		return intrinsicFromNode(name, node)
	}

	switch node.Kind {
	case yaml.ScalarNode:
		return scalarFromNode(node)

	case yaml.SequenceNode:
		items := make([]Expr, 0, len(node.Content))
		for _, item := range node.Content {
			expr, err := exprFromNode(item)
			if err != nil {
				return nil, err
			}
			items = append(items, expr)
		}
		return &Sequence{Items: items}, nil

	case yaml.MappingNode:
		// A single-key mapping whose key is an intrinsic name is a long-form
		// function call, not a plain mapping.
		if len(node.Content) == 2 && longFormIntrinsics[node.Content[0].Value] {
			return intrinsicFromNode(node.Content[0].Value, node.Content[1])
		}

		m := &Mapping{Values: make(map[string]Expr, len(node.Content)/2)}
		for i := 0; i < len(node.Content); i += 2 {
			key := node.Content[i].Value
			if _, dup := m.Values[key]; dup {
				return nil, fmt.Errorf("duplicate mapping key %q", key)
			}
			expr, err := exprFromNode(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			m.Keys = append(m.Keys, key)
			m.Values[key] = expr
		}
		return m, nil

	default:
		return nil, fmt.Errorf("unsupported node kind %s", kindName(node.Kind))
	}
}

// intrinsicFromNode builds the Ref or Call expression for an intrinsic whose
// operand is the given node. The node may carry a short-form tag, so its own
// tag is ignored here and only its shape matters.
func intrinsicFromNode(name string, node *yaml.Node) (Expr, error) {
	if name == FnRef {
		if node.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("Ref operand must be a name")
		}
		return &Ref{Target: node.Value}, nil
	}

	var args []Expr
	switch node.Kind {
	case yaml.ScalarNode:
		if name == FnGetAtt {
			// Short form "Resource.Attribute[.Deeper]".
			parts := strings.Split(node.Value, ".")
			if len(parts) < 2 {
				return nil, fmt.Errorf("Fn::GetAtt %q must name a resource and an attribute", node.Value)
			}
			for _, part := range parts {
				args = append(args, &Scalar{Value: part})
			}
			break
		}
		scalar, err := scalarFromNode(node)
		if err != nil {
			return nil, err
		}
		args = []Expr{scalar}

	case yaml.SequenceNode:
		for _, item := range node.Content {
			expr, err := exprFromNode(item)
			if err != nil {
				return nil, err
			}
			args = append(args, expr)
		}

	case yaml.MappingNode:
		expr, err := exprFromNode(node)
		if err != nil {
			return nil, err
		}
		args = []Expr{expr}

	default:
		return nil, fmt.Errorf("unsupported operand for %s", name)
	}

	return &Call{Name: name, Args: args}, nil
}

func scalarFromNode(node *yaml.Node) (*Scalar, error) {
	switch node.Tag {
	case "!!null":
		return &Scalar{Value: nil}, nil
	case "!!bool":
		return &Scalar{Value: node.Value == "true"}, nil
	case "!!int":
		n, err := strconv.ParseInt(node.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", node.Value, err)
		}
		return &Scalar{Value: n}, nil
	case "!!float":
		f, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q: %w", node.Value, err)
		}
		return &Scalar{Value: f}, nil
	default:
		return &Scalar{Value: node.Value}, nil
	}
}

// resolveReferences checks every reference in the template against its
// declarations. An unresolved reference is a parse error, not a translation
// error: it must be caught before any model call.
func resolveReferences(tpl *Template) error {
	check := func(where string, expr Expr) error {
		for _, ref := range References(expr) {
			switch ref.Kind {
			case ReferenceValue:
				if IsPseudoParameter(ref.Target) {
					continue
				}
				if _, ok := tpl.Parameters[ref.Target]; ok {
					continue
				}
				if _, ok := tpl.Resources[ref.Target]; ok {
					continue
				}
				return parseErrorf("%s references undeclared name %q", where, ref.Target)
			case ReferenceCondition:
				if _, ok := tpl.Conditions[ref.Target]; !ok {
					return parseErrorf("%s references undeclared condition %q", where, ref.Target)
				}
			case ReferenceMapping:
				if _, ok := tpl.Mappings[ref.Target]; !ok {
					return parseErrorf("%s references undeclared mapping %q", where, ref.Target)
				}
			}
		}
		return nil
	}

	for _, name := range tpl.ConditionOrder {
		if err := check(fmt.Sprintf("condition %q", name), tpl.Conditions[name]); err != nil {
			return err
		}
	}
	for _, id := range tpl.ResourceOrder {
		res := tpl.Resources[id]
		if res.Condition != "" {
			if _, ok := tpl.Conditions[res.Condition]; !ok {
				return parseErrorf("resource %q references undeclared condition %q", id, res.Condition)
			}
		}
		for _, dep := range res.ExplicitDeps {
			if dep == id {
				return parseErrorf("resource %q depends on itself", id)
			}
			if _, ok := tpl.Resources[dep]; !ok {
				return parseErrorf("resource %q depends on undeclared resource %q", id, dep)
			}
		}
		if err := check(fmt.Sprintf("resource %q", id), res.Properties); err != nil {
			return err
		}
	}
	for _, name := range tpl.OutputOrder {
		out := tpl.Outputs[name]
		if out.Condition != "" {
			if _, ok := tpl.Conditions[out.Condition]; !ok {
				return parseErrorf("output %q references undeclared condition %q", name, out.Condition)
			}
		}
		if err := check(fmt.Sprintf("output %q", name), out.Value); err != nil {
			return err
		}
		if out.ExportName != nil {
			if err := check(fmt.Sprintf("output %q export", name), out.ExportName); err != nil {
				return err
			}
		}
	}
	return nil
}

// inferDependencies scans each resource's property expressions for
// references to other logical IDs, records them as implicit dependencies,
// verifies the combined explicit+implicit edges form a DAG, and stores the
// resulting deployment order on the template.
func inferDependencies(tpl *Template) error {
	graph := dag.New()
	for _, id := range tpl.ResourceOrder {
		graph.AddNode(id)
	}

	for _, id := range tpl.ResourceOrder {
		res := tpl.Resources[id]

		seen := make(map[string]bool)
		for _, ref := range References(res.Properties) {
			if ref.Kind != ReferenceValue || ref.Target == id || seen[ref.Target] {
				continue
			}
			if !graph.HasNode(ref.Target) {
				continue // parameter or pseudo parameter
			}
			seen[ref.Target] = true
			res.ImplicitDeps = append(res.ImplicitDeps, ref.Target)
		}
		sort.Strings(res.ImplicitDeps)

		for _, dep := range res.Dependencies() {
			if err := graph.AddEdge(dep, id); err != nil {
				return parseErrorf("dependency edge %s -> %s: %v", dep, id, err)
			}
		}
	}

	order, err := graph.TopologicalOrder()
	if err != nil {
		return parseErrorf("dependency graph is not acyclic: %v", err)
	}
	tpl.DeploymentOrder = order
	return nil
}

func kindName(kind yaml.Kind) string {
	switch kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}
