// ABOUTME: Extraction rules for event plumbing: bucket notifications, topic subscriptions,
// ABOUTME: EventBridge rules, event source mappings, and permission grants.
package extract

import (
	"github.com/2389-research/trunkline/cfn"
	"github.com/2389-research/trunkline/graph"
)

// ruleS3Bucket turns notification configurations into edges from the S3
// service pseudo-node to each notified resource. The pseudo-node appears as
// soon as any configuration is present, even when its targets live outside
// the template.
func ruleS3Bucket(rc *RuleContext) error {
	nc, ok := rc.Resource.Properties.Get("NotificationConfiguration")
	if !ok {
		return nil
	}
	targets := make(map[string]bool)
	configured := false
	collect := func(listKey, refKey string) error {
		list, _ := nc.Get(listKey)
		for _, item := range list.Items {
			ref, ok := item.Get(refKey)
			if !ok {
				continue
			}
			configured = true
			ids, err := rc.resolver.Resolve(ref, rc.Known)
			if err != nil {
				return err
			}
			for id := range ids {
				targets[id] = true
			}
		}
		return nil
	}
	if err := collect("LambdaConfigurations", "Function"); err != nil {
		return err
	}
	if err := collect("QueueConfigurations", "Queue"); err != nil {
		return err
	}
	if err := collect("TopicConfigurations", "Topic"); err != nil {
		return err
	}
	if !configured {
		return nil
	}
	rc.EnsurePseudo("S3", cfn.TypeServiceS3, graph.ServiceAccount)
	for _, target := range sortedIDs(targets) {
		if err := rc.AddEdge("S3", target, "bucket notification"); err != nil {
			return err
		}
	}
	return nil
}

// ruleSNSSubscription records the topic delivering to its endpoint for lambda
// and sqs protocol subscriptions.
func ruleSNSSubscription(rc *RuleContext) error {
	props := rc.Resource.Properties
	protocol, _ := props.Get("Protocol")
	p := protocol.ScalarOr("")
	if p != "lambda" && p != "sqs" {
		return nil
	}
	topicRef, _ := props.Get("TopicArn")
	endpointRef, _ := props.Get("Endpoint")

	topic, topicFound, err := rc.ResolveFirst(topicRef)
	if err != nil {
		return err
	}
	endpoint, endpointFound, err := rc.ResolveFirst(endpointRef)
	if err != nil {
		return err
	}
	if !topicFound || !endpointFound {
		rc.ReportUnresolved("subscription", map[string]any{
			"topic":    topicRef.ScalarOr(""),
			"endpoint": endpointRef.ScalarOr(""),
		})
		return nil
	}
	return rc.AddEdge(topic, endpoint, "subscription")
}

// ruleEventsRule records each rule target the rule triggers.
func ruleEventsRule(rc *RuleContext) error {
	targets, _ := rc.Resource.Properties.Get("Targets")
	for _, target := range targets.Items {
		arn, ok := target.Get("Arn")
		if !ok {
			continue
		}
		ids, err := rc.Resolve(arn)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := rc.AddEdge(rc.LogicalID, id, "rule target"); err != nil {
				return err
			}
		}
	}
	return nil
}

// ruleEventSourceMapping records the polled source invoking the mapped
// function.
func ruleEventSourceMapping(rc *RuleContext) error {
	props := rc.Resource.Properties
	fnRef, _ := props.Get("FunctionName")
	sourceRef, _ := props.Get("EventSourceArn")

	fn, fnFound, err := rc.ResolveFirst(fnRef)
	if err != nil {
		return err
	}
	source, sourceFound, err := rc.ResolveFirst(sourceRef)
	if err != nil {
		return err
	}
	if !fnFound || !sourceFound {
		return nil
	}
	return rc.AddEdge(source, fn, "event source mapping")
}

// ruleLambdaPermission turns a service-principal grant into an edge from the
// service pseudo-node to the permitted function. Grants to principals the
// extractor does not recognize are reported, not modeled.
func ruleLambdaPermission(rc *RuleContext) error {
	props := rc.Resource.Properties
	principal, _ := props.Get("Principal")
	fnRef, _ := props.Get("FunctionName")

	fn, found, err := rc.ResolveFirst(fnRef)
	if err != nil || !found {
		return err
	}
	sp, ok := LookupServicePrincipal(principal.ScalarOr(""))
	if !ok {
		rc.ReportUnresolved("Principal", principal.ScalarOr(""))
		return nil
	}
	rc.EnsurePseudo(sp.ID, sp.TypeTag, graph.ServiceAccount)
	return rc.AddEdge(sp.ID, fn, "permission grant")
}
