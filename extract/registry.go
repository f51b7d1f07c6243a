// ABOUTME: Rule registry mapping CloudFormation resource types to extraction rules,
// ABOUTME: plus the per-resource context each rule runs against.
package extract

import (
	"sort"
	"strings"
	"time"

	"github.com/2389-research/trunkline/cfn"
	"github.com/2389-research/trunkline/graph"
)

// RuleFunc inspects one resource and records the invocation edges its type
// implies. Rules add edges and pseudo-nodes through the context; a returned
// error aborts the whole pass.
type RuleFunc func(rc *RuleContext) error

// RuleContext carries everything a rule needs to examine one resource within
// one template pass.
type RuleContext struct {
	// LogicalID is the resource being examined.
	LogicalID string
	// Resource is its declaration.
	Resource cfn.Resource
	// Template is the full template, for rules that inspect sibling resources.
	Template *cfn.Template
	// Known is the template's logical identifier set.
	Known map[string]bool
	// Account is the account label for this pass.
	Account string

	asm      *graph.Assembler
	resolver *Resolver
	emit     func(EngineEvent)
}

// Resolve returns the sorted known identifiers referenced by v.
func (rc *RuleContext) Resolve(v cfn.Value) ([]string, error) {
	return rc.resolver.ResolveSorted(v, rc.Known)
}

// ResolveFirst returns the lexicographically first identifier referenced by v,
// or found=false when v references nothing known.
func (rc *RuleContext) ResolveFirst(v cfn.Value) (id string, found bool, err error) {
	ids, err := rc.Resolve(v)
	if err != nil || len(ids) == 0 {
		return "", false, err
	}
	return ids[0], true, nil
}

// AddEdge records that source invokes target and emits an edge event. via
// labels which rule aspect produced the edge.
func (rc *RuleContext) AddEdge(source, target, via string) error {
	if err := rc.asm.AddEdge(source, target); err != nil {
		return err
	}
	rc.emitEvent(EngineEvent{
		Type:   EventEdgeAdded,
		NodeID: source,
		Data:   map[string]any{"target": target, "via": via},
	})
	return nil
}

// EnsurePseudo registers a pseudo-node under the display name for typeTag,
// emitting an event when the node is new to both the pass and the accumulated
// graph.
func (rc *RuleContext) EnsurePseudo(id, typeTag, account string) {
	if rc.asm.EnsurePseudo(id, cfn.DisplayType(typeTag), account) {
		rc.emitEvent(EngineEvent{
			Type:   EventPseudoCreated,
			NodeID: id,
			Data:   map[string]any{"type": cfn.DisplayType(typeTag), "account_name": account},
		})
	}
}

// ReportUnresolved emits a non-fatal event for an expression that resolved to
// no known identifier. where names the property that held it.
func (rc *RuleContext) ReportUnresolved(where string, raw any) {
	rc.emitEvent(EngineEvent{
		Type:   EventUnresolvedReference,
		NodeID: rc.LogicalID,
		Data:   map[string]any{"where": where, "value": raw},
	})
}

func (rc *RuleContext) emitEvent(event EngineEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if rc.emit != nil {
		rc.emit(event)
	}
}

// RuleRegistry maps resource type tags to extraction rules.
type RuleRegistry struct {
	rules map[string]RuleFunc
}

// NewRuleRegistry creates an empty registry.
func NewRuleRegistry() *RuleRegistry {
	return &RuleRegistry{rules: make(map[string]RuleFunc)}
}

// Register adds a rule for the given resource type tag, replacing any
// existing registration.
func (r *RuleRegistry) Register(typeTag string, fn RuleFunc) {
	r.rules[typeTag] = fn
}

// Get returns the rule registered for exactly typeTag, or nil.
func (r *RuleRegistry) Get(typeTag string) RuleFunc {
	return r.rules[typeTag]
}

// Resolve returns the rule for typeTag, falling back to the custom-resource
// rule for provider-defined Custom::* types. Types with no rule return nil;
// the engine skips them.
func (r *RuleRegistry) Resolve(typeTag string) RuleFunc {
	if fn, ok := r.rules[typeTag]; ok {
		return fn
	}
	if strings.HasPrefix(typeTag, "Custom::") {
		return r.rules[cfn.TypeCustomResource]
	}
	return nil
}

// Types returns the registered type tags in sorted order.
func (r *RuleRegistry) Types() []string {
	tags := make([]string, 0, len(r.rules))
	for tag := range r.rules {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// DefaultRuleRegistry returns a registry with every built-in rule installed.
func DefaultRuleRegistry() *RuleRegistry {
	r := NewRuleRegistry()
	r.Register(cfn.TypeLambdaFunction, ruleLambdaFunction)
	r.Register(cfn.TypeServerlessFunction, ruleLambdaFunction)
	r.Register(cfn.TypeAPIGatewayMethod, ruleAPIGatewayMethod)
	r.Register(cfn.TypeAPIGatewayAuth, ruleAPIGatewayAuthorizer)
	r.Register(cfn.TypeStateMachine, ruleStateMachine)
	r.Register(cfn.TypeS3Bucket, ruleS3Bucket)
	r.Register(cfn.TypeSNSSubscription, ruleSNSSubscription)
	r.Register(cfn.TypeEventsRule, ruleEventsRule)
	r.Register(cfn.TypeEventSourceMapping, ruleEventSourceMapping)
	r.Register(cfn.TypeLambdaPermission, ruleLambdaPermission)
	r.Register(cfn.TypeAppSyncDataSource, ruleAppSyncDataSource)
	r.Register(cfn.TypeAppSyncResolver, ruleAppSyncResolver)
	r.Register(cfn.TypeCustomResource, ruleCustomResource)
	r.Register(cfn.TypeCloudFront, ruleCloudFront)
	return r
}
