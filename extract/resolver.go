// ABOUTME: Expression resolver that walks arbitrarily nested template values and collects
// ABOUTME: every known logical identifier referenced by intrinsics, placeholders, or bare strings.
package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/2389-research/trunkline/cfn"
)

// maxResolveDepth bounds recursion through nested expressions. Templates never
// nest values anywhere near this deep; exceeding it means the input is
// malformed or adversarial.
const maxResolveDepth = 200

// placeholderPattern matches substitution placeholders like ${Name} or
// ${Name.Attribute} and captures the bare identifier.
var placeholderPattern = regexp.MustCompile(`\$\{([a-zA-Z0-9]+)(?:\.[a-zA-Z0-9]+)?\}`)

// Resolver extracts known logical identifiers from template expressions. A
// candidate only counts when it names a member of the known-identifier set;
// everything else is silently dropped.
type Resolver struct {
	maxDepth int
}

// NewResolver returns a resolver with the given recursion limit. A limit of
// zero or less selects the default.
func NewResolver(maxDepth int) *Resolver {
	if maxDepth <= 0 {
		maxDepth = maxResolveDepth
	}
	return &Resolver{maxDepth: maxDepth}
}

// Resolve walks v and returns the set of identifiers from known that v
// references. It returns a MalformedInputError when v nests deeper than the
// resolver's limit.
func (r *Resolver) Resolve(v cfn.Value, known map[string]bool) (map[string]bool, error) {
	refs := make(map[string]bool)
	if err := r.walk(v, known, refs, 0); err != nil {
		return nil, err
	}
	return refs, nil
}

// ResolveSorted is Resolve with the result returned as a sorted slice, for
// callers that need deterministic iteration or first-candidate selection.
func (r *Resolver) ResolveSorted(v cfn.Value, known map[string]bool) ([]string, error) {
	refs, err := r.Resolve(v, known)
	if err != nil {
		return nil, err
	}
	return sortedIDs(refs), nil
}

func (r *Resolver) walk(v cfn.Value, known, refs map[string]bool, depth int) error {
	if depth > r.maxDepth {
		return &cfn.MalformedInputError{
			Reason: fmt.Sprintf("expression nests deeper than %d levels", r.maxDepth),
		}
	}
	switch v.Kind {
	case cfn.KindMapping:
		// Intrinsic forms short-circuit: a mapping recognized as Ref, GetAtt,
		// or Sub yields only that intrinsic's identifiers and its remaining
		// keys are not visited.
		if ref, ok := v.Get("Ref"); ok && ref.Kind == cfn.KindScalar && known[ref.Str] {
			refs[ref.Str] = true
			return nil
		}
		if ga, ok := v.Get("Fn::GetAtt"); ok && getAttHead(ga, known, refs) {
			return nil
		}
		if sub, ok := v.Get("Fn::Sub"); ok {
			scanSub(sub, known, refs)
			return nil
		}
		for _, key := range v.Keys() {
			child, _ := v.Get(key)
			if err := r.walk(child, known, refs, depth+1); err != nil {
				return err
			}
		}
	case cfn.KindSequence:
		for _, item := range v.Items {
			if err := r.walk(item, known, refs, depth+1); err != nil {
				return err
			}
		}
	case cfn.KindScalar:
		scanScalar(v.Str, known, refs)
	}
	return nil
}

// getAttHead records the head of a sequence-form GetAtt when it names a known
// identifier. It reports whether the mapping was consumed as an intrinsic.
func getAttHead(ga cfn.Value, known, refs map[string]bool) bool {
	if ga.Kind != cfn.KindSequence || len(ga.Items) == 0 {
		return false
	}
	head := ga.Items[0]
	if head.Kind != cfn.KindScalar || !known[head.Str] {
		return false
	}
	refs[head.Str] = true
	return true
}

// scanSub extracts identifiers from a substitution payload: the scalar form,
// or the head of the two-element form whose second element carries variable
// bindings. Placeholders are scanned in either case; only the scalar form is
// additionally checked as a whole-string identifier.
func scanSub(sub cfn.Value, known, refs map[string]bool) {
	var tmpl string
	scalarForm := false
	switch sub.Kind {
	case cfn.KindScalar:
		tmpl = sub.Str
		scalarForm = true
	case cfn.KindSequence:
		if len(sub.Items) > 0 && sub.Items[0].Kind == cfn.KindScalar {
			tmpl = sub.Items[0].Str
		}
	}
	for _, m := range placeholderPattern.FindAllStringSubmatch(tmpl, -1) {
		if known[m[1]] {
			refs[m[1]] = true
		}
	}
	if scalarForm && known[tmpl] {
		refs[tmpl] = true
	}
}

// scanScalar applies the three string checks: an identifier prefix before the
// first dot, embedded placeholders, and the whole string as an identifier.
func scanScalar(s string, known, refs map[string]bool) {
	if i := strings.Index(s, "."); i >= 0 && known[s[:i]] {
		refs[s[:i]] = true
	}
	for _, m := range placeholderPattern.FindAllStringSubmatch(s, -1) {
		if known[m[1]] {
			refs[m[1]] = true
		}
	}
	if known[s] {
		refs[s] = true
	}
}

func sortedIDs(set map[string]bool) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
