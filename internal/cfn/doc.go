// Package cfn parses AWS CloudFormation templates into an in-memory resource
// graph. It understands both the long form ("Fn::GetAtt") and the YAML
// short-form tags ("!GetAtt") of the intrinsic functions, resolves every
// reference against the declared parameters, resources, conditions, mappings
// and pseudo parameters, infers implicit dependencies by walking property
// expressions, and rejects templates whose dependency edges form a cycle.
//
// Parsing is a pure function over the input text: a successful parse yields
// an immutable *Template, and every failure is reported as a *ParseError
// before any downstream work (in particular, any model invocation) happens.
package cfn
