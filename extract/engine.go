// ABOUTME: Engine that runs extraction rules over parsed templates, folds per-template graphs
// ABOUTME: into an accumulated graph, and derives the reciprocal direction.
package extract

import (
	"fmt"
	"time"

	"github.com/2389-research/trunkline/cfn"
	"github.com/2389-research/trunkline/graph"
)

// EngineConfig holds the configuration for creating an extraction engine.
type EngineConfig struct {
	// Rules is the extraction rule registry. Nil selects the default set.
	Rules *RuleRegistry
	// EventHandler receives lifecycle events, when set.
	EventHandler func(event EngineEvent)
	// MaxDepth bounds expression recursion. Zero selects the default.
	MaxDepth int
}

// Engine extracts invocation graphs from templates.
type Engine struct {
	config   EngineConfig
	rules    *RuleRegistry
	resolver *Resolver
}

// NewEngine creates an engine from the given configuration.
func NewEngine(config EngineConfig) *Engine {
	rules := config.Rules
	if rules == nil {
		rules = DefaultRuleRegistry()
	}
	return &Engine{
		config:   config,
		rules:    rules,
		resolver: NewResolver(config.MaxDepth),
	}
}

// PassInput is one template to process: its raw document, the account label
// its resources belong to, and a name used in events and failure reports.
type PassInput struct {
	Name    string
	Source  []byte
	Account string
}

// PassFailure records a template whose pass failed. Failures never abort a
// run; the remaining inputs still process.
type PassFailure struct {
	Name    string
	Account string
	Err     error
}

// RunResult summarizes a run over a set of templates.
type RunResult struct {
	Passes   int
	Failures []PassFailure
	Started  time.Time
	Finished time.Time
}

// ParsePass extracts one template's invocation graph. accumulated, which may
// be nil, is consulted so pseudo-nodes already known keep their metadata and
// are not announced again; it is never modified. The account label is stamped
// on every resource the template declares.
func (e *Engine) ParsePass(tpl *cfn.Template, account string, accumulated *graph.Graph) (*graph.Graph, error) {
	asm := graph.NewAssembler(accumulated, account)
	known := tpl.IDSet()

	// Every declared resource becomes a node before any rule runs, so rules
	// can add edges between siblings in any order.
	for _, id := range tpl.LogicalIDs() {
		res, _ := tpl.Resource(id)
		asm.DeclareResource(id, cfn.DisplayType(res.Type))
	}

	for _, id := range tpl.LogicalIDs() {
		res, _ := tpl.Resource(id)
		rule := e.rules.Resolve(res.Type)
		if rule == nil {
			continue
		}
		rc := &RuleContext{
			LogicalID: id,
			Resource:  res,
			Template:  tpl,
			Known:     known,
			Account:   account,
			asm:       asm,
			resolver:  e.resolver,
			emit:      e.config.EventHandler,
		}
		if err := rule(rc); err != nil {
			return nil, fmt.Errorf("resource %s: %w", id, err)
		}
	}
	return asm.Finalize(), nil
}

// Run processes every input in order, merging each pass into the accumulated
// graph. base, which may be nil, seeds the accumulation; it is not modified.
// A template that fails to parse or extract is recorded and skipped.
func (e *Engine) Run(inputs []PassInput, base *graph.Graph) (*graph.Graph, *RunResult) {
	result := &RunResult{Started: time.Now()}
	acc := base
	if acc == nil {
		acc = graph.New()
	}

	for _, input := range inputs {
		e.emitEvent(EngineEvent{
			Type: EventPassStarted,
			Data: map[string]any{"name": input.Name, "account": input.Account},
		})

		tpl, err := cfn.ParseTemplate(input.Source)
		if err == nil {
			var passGraph *graph.Graph
			passGraph, err = e.ParsePass(tpl, input.Account, acc)
			if err == nil {
				acc = graph.Merge(acc, passGraph)
				result.Passes++
				e.emitEvent(EngineEvent{
					Type: EventPassCompleted,
					Data: map[string]any{"name": input.Name, "resources": tpl.Len()},
				})
				e.emitEvent(EngineEvent{
					Type: EventMergeDone,
					Data: map[string]any{"name": input.Name, "nodes": acc.Len(), "edges": acc.EdgeCount()},
				})
				continue
			}
		}

		result.Failures = append(result.Failures, PassFailure{
			Name:    input.Name,
			Account: input.Account,
			Err:     err,
		})
		e.emitEvent(EngineEvent{
			Type: EventPassFailed,
			Data: map[string]any{"name": input.Name, "error": err.Error()},
		})
	}

	result.Finished = time.Now()
	return acc, result
}

// Derive recomputes every node's invoked-by list from the invokes direction,
// emitting an event for each edge whose target is missing from the graph.
func (e *Engine) Derive(g *graph.Graph) []graph.DanglingRef {
	dangling := graph.DeriveInvokedBy(g)
	for _, d := range dangling {
		e.emitEvent(EngineEvent{
			Type:   EventDanglingTarget,
			NodeID: d.Source,
			Data:   map[string]any{"target": d.Target},
		})
	}
	e.emitEvent(EngineEvent{
		Type: EventDeriveDone,
		Data: map[string]any{"nodes": g.Len(), "dangling": len(dangling)},
	})
	return dangling
}

func (e *Engine) emitEvent(event EngineEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if e.config.EventHandler != nil {
		e.config.EventHandler(event)
	}
}
