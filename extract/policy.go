// ABOUTME: Shared IAM role policy scan used by the function and state machine rules to find
// ABOUTME: sibling resources an execution role is allowed to invoke.
package extract

import "github.com/2389-research/trunkline/cfn"

const (
	actionInvokeFunction = "lambda:InvokeFunction"
	actionStartExecution = "states:StartExecution"
)

// roleInvokeTargets resolves roleRef to a role declared in the same template
// and scans its inline policies for Allow statements granting any of the given
// actions. It returns the sorted known identifiers named by those statements'
// Resource entries. References to roles outside the template, or to resources
// that are not IAM roles, yield nothing.
func (rc *RuleContext) roleInvokeTargets(roleRef cfn.Value, actions ...string) ([]string, error) {
	roleID, found, err := rc.ResolveFirst(roleRef)
	if err != nil || !found {
		return nil, err
	}
	role, ok := rc.Template.Resource(roleID)
	if !ok || role.Type != cfn.TypeIAMRole {
		return nil, nil
	}

	targets := make(map[string]bool)
	policies, _ := role.Properties.Get("Policies")
	for _, policy := range policies.Items {
		doc, _ := policy.Get("PolicyDocument")
		statements, _ := doc.Get("Statement")
		for _, stmt := range statements.Items {
			effect, _ := stmt.Get("Effect")
			if effect.ScalarOr("") != "Allow" {
				continue
			}
			action, _ := stmt.Get("Action")
			if !grantsAny(action, actions) {
				continue
			}
			resource, _ := stmt.Get("Resource")
			ids, err := rc.resolver.Resolve(resource, rc.Known)
			if err != nil {
				return nil, err
			}
			for id := range ids {
				targets[id] = true
			}
		}
	}
	return sortedIDs(targets), nil
}

// grantsAny reports whether the Action entry, scalar or list, contains any of
// the wanted action strings.
func grantsAny(action cfn.Value, wanted []string) bool {
	match := func(s string) bool {
		for _, w := range wanted {
			if s == w {
				return true
			}
		}
		return false
	}
	switch action.Kind {
	case cfn.KindScalar:
		return match(action.Str)
	case cfn.KindSequence:
		for _, item := range action.Items {
			if item.Kind == cfn.KindScalar && match(item.Str) {
				return true
			}
		}
	}
	return false
}
