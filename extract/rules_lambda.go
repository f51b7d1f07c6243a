// ABOUTME: Extraction rule for Lambda and SAM serverless functions: environment references,
// ABOUTME: role-granted invocations, SAM event sources, and dead-letter targets.
package extract

import (
	"github.com/2389-research/trunkline/cfn"
	"github.com/2389-research/trunkline/graph"
)

func ruleLambdaFunction(rc *RuleContext) error {
	props := rc.Resource.Properties

	// Environment variables referencing siblings mean the function calls them.
	env, _ := props.Get("Environment")
	if vars, ok := env.Get("Variables"); ok {
		ids, err := rc.Resolve(vars)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := rc.AddEdge(rc.LogicalID, id, "environment"); err != nil {
				return err
			}
		}
	}

	// An execution role whose inline policy allows lambda:InvokeFunction on a
	// sibling function means this function invokes it.
	if roleRef, ok := props.Get("Role"); ok {
		targets, err := rc.roleInvokeTargets(roleRef, actionInvokeFunction)
		if err != nil {
			return err
		}
		for _, target := range targets {
			res, ok := rc.Template.Resource(target)
			if !ok || !isFunctionType(res.Type) {
				continue
			}
			if err := rc.AddEdge(rc.LogicalID, target, "role policy"); err != nil {
				return err
			}
		}
	}

	// SAM event shorthand only appears on serverless functions.
	if rc.Resource.Type == cfn.TypeServerlessFunction {
		if events, ok := props.Get("Events"); ok {
			if err := samEventEdges(rc, events); err != nil {
				return err
			}
		}
	}

	if dlq, ok := props.Get("DeadLetterConfig"); ok {
		if targetRef, ok := dlq.Get("TargetArn"); ok {
			target, found, err := rc.ResolveFirst(targetRef)
			if err != nil {
				return err
			}
			if found {
				if err := rc.AddEdge(rc.LogicalID, target, "dead-letter"); err != nil {
					return err
				}
			} else {
				rc.ReportUnresolved("DeadLetterConfig.TargetArn", targetRef.ScalarOr(""))
			}
		}
	}
	return nil
}

func isFunctionType(typeTag string) bool {
	return typeTag == cfn.TypeLambdaFunction || typeTag == cfn.TypeServerlessFunction
}

// samEventEdges records the inbound edges implied by a serverless function's
// Events block. Event sources invoke the function, so the function is the
// target of every edge here.
func samEventEdges(rc *RuleContext, events cfn.Value) error {
	for _, name := range events.Keys() {
		event, _ := events.Get(name)
		typeVal, _ := event.Get("Type")
		eventProps, _ := event.Get("Properties")

		switch typeVal.ScalarOr("") {
		case "SQS":
			queueRef, _ := eventProps.Get("Queue")
			queue, found, err := rc.ResolveFirst(queueRef)
			if err != nil {
				return err
			}
			if !found {
				rc.ReportUnresolved("Events."+name+".Queue", queueRef.ScalarOr(""))
				continue
			}
			if err := rc.AddEdge(queue, rc.LogicalID, "sqs event"); err != nil {
				return err
			}

		case "Api":
			// A resolvable RestApiId points at a declared API; otherwise the
			// event implies a gateway outside the template.
			api := ""
			if ref, ok := eventProps.Get("RestApiId"); ok {
				id, found, err := rc.ResolveFirst(ref)
				if err != nil {
					return err
				}
				if found {
					api = id
				}
			}
			if api == "" {
				api = "APIGateway"
				rc.EnsurePseudo(api, cfn.TypeAPIGatewayRestAPI, rc.Account)
			}
			if err := rc.AddEdge(api, rc.LogicalID, "api event"); err != nil {
				return err
			}

		case "S3":
			if _, ok := eventProps.Get("Bucket"); !ok {
				rc.ReportUnresolved("Events."+name+".Bucket", "")
				continue
			}
			rc.EnsurePseudo("S3", cfn.TypeServiceS3, graph.ServiceAccount)
			if err := rc.AddEdge("S3", rc.LogicalID, "s3 event"); err != nil {
				return err
			}

		case "SNS":
			topicRef, _ := eventProps.Get("Topic")
			topic, found, err := rc.ResolveFirst(topicRef)
			if err != nil {
				return err
			}
			if !found {
				rc.ReportUnresolved("Events."+name+".Topic", topicRef.ScalarOr(""))
				continue
			}
			if err := rc.AddEdge(topic, rc.LogicalID, "sns event"); err != nil {
				return err
			}

		case "DynamoDB":
			streamRef, _ := eventProps.Get("Stream")
			table, found, err := dynamoStreamTable(rc, streamRef)
			if err != nil {
				return err
			}
			if !found {
				rc.ReportUnresolved("Events."+name+".Stream", streamRef.ScalarOr(""))
				continue
			}
			if err := rc.AddEdge(table, rc.LogicalID, "stream event"); err != nil {
				return err
			}

		case "Schedule":
			rc.EnsurePseudo("EventBridge", cfn.TypeServiceEventBridge, graph.ServiceAccount)
			if err := rc.AddEdge("EventBridge", rc.LogicalID, "schedule event"); err != nil {
				return err
			}
		}
	}
	return nil
}

// dynamoStreamTable finds the table behind a DynamoDB stream reference, which
// appears either as a long-form GetAtt mapping or as a flattened attribute
// string.
func dynamoStreamTable(rc *RuleContext, streamRef cfn.Value) (string, bool, error) {
	if ga, ok := streamRef.Get("Fn::GetAtt"); ok {
		if ga.Kind == cfn.KindSequence && len(ga.Items) > 0 &&
			ga.Items[0].Kind == cfn.KindScalar && rc.Known[ga.Items[0].Str] {
			return ga.Items[0].Str, true, nil
		}
		return "", false, nil
	}
	if streamRef.Kind == cfn.KindScalar {
		return rc.ResolveFirst(streamRef)
	}
	return "", false, nil
}
