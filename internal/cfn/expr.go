package cfn

import (
	"regexp"
	"strings"
)

// Expr is a tagged-variant expression tree: a property value is either a
// literal scalar, a sequence, a mapping, a Ref, or an intrinsic function
// call with nested operands. Dependency inference and intrinsic rewriting
// both walk this tree rather than matching strings.
type Expr interface {
	exprNode()
}

// Scalar is a literal leaf value (string, bool, int64, float64 or nil).
type Scalar struct {
	Value any
}

// Sequence is an ordered list of expressions.
type Sequence struct {
	Items []Expr
}

// Mapping is an ordered key/value collection. Keys preserves source order so
// serialization stays deterministic.
type Mapping struct {
	Keys   []string
	Values map[string]Expr
}

// Ref is the CloudFormation Ref intrinsic: a reference to a parameter,
// resource or pseudo parameter by name.
type Ref struct {
	Target string
}

// Call is any other intrinsic function invocation, e.g. Fn::GetAtt or
// Fn::Sub, with its operands as nested expressions.
type Call struct {
	Name string
	Args []Expr
}

func (*Scalar) exprNode()   {}
func (*Sequence) exprNode() {}
func (*Mapping) exprNode()  {}
func (*Ref) exprNode()      {}
func (*Call) exprNode()     {}

// Get returns the value for a mapping key, or nil if the key is absent.
func (m *Mapping) Get(key string) Expr {
	if m == nil {
		return nil
	}
	return m.Values[key]
}

// subRefPattern matches ${Name} placeholders inside Fn::Sub template
// strings. ${!Literal} is the escape form and must not count as a reference.
var subRefPattern = regexp.MustCompile(`\$\{([^!}][^}]*)\}`)

// Reference is a single discovered reference inside an expression tree.
type Reference struct {
	// Target is the referenced name: a logical resource ID, parameter name,
	// pseudo parameter ("AWS::Region"), or condition name for Kind
	// ReferenceCondition.
	Target string
	// Kind classifies how the reference must resolve.
	Kind ReferenceKind
}

// ReferenceKind distinguishes reference resolution rules.
type ReferenceKind int

const (
	// ReferenceValue must resolve to a parameter, resource or pseudo parameter.
	ReferenceValue ReferenceKind = iota
	// ReferenceCondition must resolve to a declared condition.
	ReferenceCondition
	// ReferenceMapping must resolve to a declared top-level mapping.
	ReferenceMapping
)

// References walks the expression tree and returns every reference it
// contains, in a stable depth-first order. It covers Ref, Fn::GetAtt,
// Fn::Sub placeholder scans, Fn::If condition names, Fn::FindInMap mapping
// names and Fn::Condition.
func References(expr Expr) []Reference {
	var out []Reference
	walkRefs(expr, &out)
	return out
}

func walkRefs(expr Expr, out *[]Reference) {
	switch e := expr.(type) {
	case nil:
		return
	case *Scalar:
		return
	case *Sequence:
		if e == nil {
			return
		}
		for _, item := range e.Items {
			walkRefs(item, out)
		}
	case *Mapping:
		if e == nil {
			return
		}
		for _, key := range e.Keys {
			walkRefs(e.Values[key], out)
		}
	case *Ref:
		*out = append(*out, Reference{Target: e.Target, Kind: ReferenceValue})
	case *Call:
		walkCallRefs(e, out)
	}
}

func walkCallRefs(call *Call, out *[]Reference) {
	switch call.Name {
	case FnGetAtt:
		// The first operand names the resource; the attribute path that
		// follows is opaque to dependency analysis.
		if len(call.Args) > 0 {
			if s, ok := call.Args[0].(*Scalar); ok {
				if name, ok := s.Value.(string); ok && name != "" {
					*out = append(*out, Reference{Target: name, Kind: ReferenceValue})
				}
			}
		}
		for _, arg := range call.Args[min(1, len(call.Args)):] {
			walkRefs(arg, out)
		}

	case FnSub:
		if len(call.Args) > 0 {
			if s, ok := call.Args[0].(*Scalar); ok {
				if tpl, ok := s.Value.(string); ok {
					var localNames map[string]bool
					if len(call.Args) > 1 {
						if m, ok := call.Args[1].(*Mapping); ok {
							localNames = make(map[string]bool, len(m.Keys))
							for _, k := range m.Keys {
								localNames[k] = true
							}
						}
					}
					for _, match := range subRefPattern.FindAllStringSubmatch(tpl, -1) {
						name := match[1]
						// ${Resource.Attr} references the resource part only.
						if dot := strings.Index(name, "."); dot > 0 {
							name = name[:dot]
						}
						if localNames[name] {
							continue
						}
						*out = append(*out, Reference{Target: name, Kind: ReferenceValue})
					}
				}
			}
		}
		// The substitution map values may themselves embed intrinsics.
		for _, arg := range call.Args[min(1, len(call.Args)):] {
			walkRefs(arg, out)
		}

	case FnIf:
		if len(call.Args) > 0 {
			if s, ok := call.Args[0].(*Scalar); ok {
				if name, ok := s.Value.(string); ok && name != "" {
					*out = append(*out, Reference{Target: name, Kind: ReferenceCondition})
				}
			}
		}
		for _, arg := range call.Args[min(1, len(call.Args)):] {
			walkRefs(arg, out)
		}

	case FnCondition:
		if len(call.Args) > 0 {
			if s, ok := call.Args[0].(*Scalar); ok {
				if name, ok := s.Value.(string); ok && name != "" {
					*out = append(*out, Reference{Target: name, Kind: ReferenceCondition})
				}
			}
		}

	case FnFindInMap:
		if len(call.Args) > 0 {
			if s, ok := call.Args[0].(*Scalar); ok {
				if name, ok := s.Value.(string); ok && name != "" {
					*out = append(*out, Reference{Target: name, Kind: ReferenceMapping})
				}
			}
		}
		for _, arg := range call.Args[min(1, len(call.Args)):] {
			walkRefs(arg, out)
		}

	default:
		for _, arg := range call.Args {
			walkRefs(arg, out)
		}
	}
}
