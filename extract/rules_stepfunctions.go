// ABOUTME: Extraction rule for Step Functions state machines: role-granted targets plus a
// ABOUTME: recursive walk of the state definition for task resources and parameters.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/2389-research/trunkline/cfn"
)

// definitionRefPattern rewrites ${Name} and ${Name.Arn} placeholders inside a
// JSON definition string to the bare identifier before parsing.
var definitionRefPattern = regexp.MustCompile(`\$\{([a-zA-Z0-9]+)(?:\.Arn)?\}`)

func ruleStateMachine(rc *RuleContext) error {
	props := rc.Resource.Properties

	// The execution role may grant invocation on functions or on other state
	// machines; unlike the function rule, targets are not filtered by type.
	if roleRef, ok := props.Get("RoleArn"); ok {
		targets, err := rc.roleInvokeTargets(roleRef, actionInvokeFunction, actionStartExecution)
		if err != nil {
			return err
		}
		for _, target := range targets {
			if err := rc.AddEdge(rc.LogicalID, target, "role policy"); err != nil {
				return err
			}
		}
	}

	def, ok, err := stateMachineDefinition(rc, props)
	if err != nil || !ok {
		return err
	}
	states, ok := def.Get("States")
	if !ok {
		return nil
	}
	refs := make(map[string]bool)
	if err := walkStates(rc, states, refs, 0); err != nil {
		return err
	}
	for _, target := range sortedIDs(refs) {
		if err := rc.AddEdge(rc.LogicalID, target, "definition"); err != nil {
			return err
		}
	}
	return nil
}

// stateMachineDefinition produces the definition mapping from whichever form
// the template uses: an inline Definition object, a JSON DefinitionString, or
// a DefinitionString wrapped in a substitution. Placeholders are rewritten to
// bare identifiers before JSON parsing; a string that still fails to parse is
// reported and the whole definition is skipped.
func stateMachineDefinition(rc *RuleContext, props cfn.Value) (cfn.Value, bool, error) {
	if def, ok := props.Get("Definition"); ok && def.Kind == cfn.KindMapping {
		return def, true, nil
	}

	ds, ok := props.Get("DefinitionString")
	if !ok {
		return cfn.Value{}, false, nil
	}
	var raw string
	switch {
	case ds.Kind == cfn.KindScalar:
		raw = ds.Str
	case ds.Kind == cfn.KindMapping:
		sub, ok := ds.Get("Fn::Sub")
		if !ok {
			return cfn.Value{}, false, nil
		}
		switch {
		case sub.Kind == cfn.KindScalar:
			raw = sub.Str
		case sub.Kind == cfn.KindSequence && len(sub.Items) > 0 && sub.Items[0].Kind == cfn.KindScalar:
			raw = sub.Items[0].Str
		default:
			return cfn.Value{}, false, nil
		}
	default:
		return cfn.Value{}, false, nil
	}

	raw = definitionRefPattern.ReplaceAllString(raw, "$1")
	def, err := cfn.DecodeValue([]byte(raw))
	if err != nil || def.Kind != cfn.KindMapping {
		rc.ReportUnresolved("DefinitionString", truncate(raw, 120))
		return cfn.Value{}, false, nil
	}
	return def, true, nil
}

// walkStates visits every state, descending into Map iterators and Parallel
// branches, and collects known identifiers from Task resources and
// parameters.
func walkStates(rc *RuleContext, states cfn.Value, refs map[string]bool, depth int) error {
	if depth > maxResolveDepth {
		return &cfn.MalformedInputError{
			Reason: fmt.Sprintf("state machine definition nests deeper than %d levels", maxResolveDepth),
		}
	}
	for _, name := range states.Keys() {
		state, _ := states.Get(name)
		switch typ, _ := state.Get("Type"); typ.ScalarOr("") {
		case "Task":
			if res, ok := state.Get("Resource"); ok && res.Kind == cfn.KindScalar {
				ids, err := rc.resolver.Resolve(res, rc.Known)
				if err != nil {
					return err
				}
				// Service integration ARNs name no template resource; surface
				// them rather than dropping silently.
				if len(ids) == 0 && strings.HasPrefix(res.Str, "arn:") {
					rc.ReportUnresolved("state "+name+" Resource", res.Str)
				}
				for id := range ids {
					refs[id] = true
				}
			}
			if params, ok := state.Get("Parameters"); ok && params.Kind == cfn.KindMapping {
				for _, key := range params.Keys() {
					val, _ := params.Get(key)
					ids, err := rc.resolver.Resolve(val, rc.Known)
					if err != nil {
						return err
					}
					for id := range ids {
						refs[id] = true
					}
				}
			}
		case "Map":
			for _, holder := range []string{"Iterator", "ItemProcessor"} {
				inner, _ := state.Get(holder)
				if sub, ok := inner.Get("States"); ok {
					if err := walkStates(rc, sub, refs, depth+1); err != nil {
						return err
					}
				}
			}
		case "Parallel":
			branches, _ := state.Get("Branches")
			for _, branch := range branches.Items {
				if sub, ok := branch.Get("States"); ok {
					if err := walkStates(rc, sub, refs, depth+1); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
