package cfn

import "sort"

// Template is the parsed source graph: resources keyed by logical ID plus
// parameters, mappings, conditions and outputs. It is read-only after Parse
// returns; conversion attempts never mutate it.
type Template struct {
	Description string

	// ParameterOrder and ResourceOrder preserve declaration order so prompt
	// serialization is deterministic and follows the source document.
	ParameterOrder []string
	Parameters     map[string]*Parameter

	MappingOrder []string
	Mappings     map[string]Expr

	ConditionOrder []string
	Conditions     map[string]Expr

	ResourceOrder []string
	Resources     map[string]*Resource

	OutputOrder []string
	Outputs     map[string]*Output

	// DeploymentOrder is a topological ordering of ResourceOrder under the
	// combined explicit+implicit dependency edges, ties broken alphabetically.
	DeploymentOrder []string
}

// Parameter is a template input declaration.
type Parameter struct {
	Name          string
	Type          string
	Description   string
	Default       Expr
	AllowedValues []Expr
	NoEcho        bool
}

// Resource is a single node of the resource graph.
type Resource struct {
	LogicalID  string
	Type       string
	Condition  string
	Properties *Mapping

	// ExplicitDeps come from the DependsOn directive; ImplicitDeps are
	// inferred by scanning property expressions for references to other
	// logical IDs. Both are sorted and deduplicated.
	ExplicitDeps []string
	ImplicitDeps []string
}

// Output is a template output declaration.
type Output struct {
	Name        string
	Description string
	Value       Expr
	Condition   string
	ExportName  Expr
}

// Dependencies returns the union of explicit and implicit dependencies,
// sorted and deduplicated.
func (r *Resource) Dependencies() []string {
	seen := make(map[string]bool, len(r.ExplicitDeps)+len(r.ImplicitDeps))
	var out []string
	for _, lists := range [][]string{r.ExplicitDeps, r.ImplicitDeps} {
		for _, dep := range lists {
			if !seen[dep] {
				seen[dep] = true
				out = append(out, dep)
			}
		}
	}
	sort.Strings(out)
	return out
}
