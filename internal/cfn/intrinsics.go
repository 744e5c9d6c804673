package cfn

// Canonical long-form intrinsic function names.
const (
	FnRef         = "Ref"
	FnGetAtt      = "Fn::GetAtt"
	FnSub         = "Fn::Sub"
	FnJoin        = "Fn::Join"
	FnSplit       = "Fn::Split"
	FnSelect      = "Fn::Select"
	FnGetAZs      = "Fn::GetAZs"
	FnBase64      = "Fn::Base64"
	FnCidr        = "Fn::Cidr"
	FnImportValue = "Fn::ImportValue"
	FnFindInMap   = "Fn::FindInMap"
	FnIf          = "Fn::If"
	FnEquals      = "Fn::Equals"
	FnNot         = "Fn::Not"
	FnAnd         = "Fn::And"
	FnOr          = "Fn::Or"
	FnCondition   = "Condition"
)

// shortTagIntrinsics maps the YAML short-form tag (without the leading "!")
// to the canonical long-form intrinsic name.
var shortTagIntrinsics = map[string]string{
	"Ref":         FnRef,
	"GetAtt":      FnGetAtt,
	"Sub":         FnSub,
	"Join":        FnJoin,
	"Split":       FnSplit,
	"Select":      FnSelect,
	"GetAZs":      FnGetAZs,
	"Base64":      FnBase64,
	"Cidr":        FnCidr,
	"ImportValue": FnImportValue,
	"FindInMap":   FnFindInMap,
	"If":          FnIf,
	"Equals":      FnEquals,
	"Not":         FnNot,
	"And":         FnAnd,
	"Or":          FnOr,
	"Condition":   FnCondition,
}

// longFormIntrinsics is the set of single-key mapping forms recognized as
// intrinsic calls, e.g. {"Fn::GetAtt": [...]}.
var longFormIntrinsics = func() map[string]bool {
	set := make(map[string]bool, len(shortTagIntrinsics))
	for _, name := range shortTagIntrinsics {
		set[name] = true
	}
	return set
}()

// pseudoParameters are the CloudFormation pseudo parameters that every
// template may reference without declaring.
var pseudoParameters = map[string]bool{
	"AWS::AccountId":        true,
	"AWS::NotificationARNs": true,
	"AWS::NoValue":          true,
	"AWS::Partition":        true,
	"AWS::Region":           true,
	"AWS::StackId":          true,
	"AWS::StackName":        true,
	"AWS::URLSuffix":        true,
}

// IsPseudoParameter reports whether name is a CloudFormation pseudo parameter.
func IsPseudoParameter(name string) bool {
	return pseudoParameters[name]
}
