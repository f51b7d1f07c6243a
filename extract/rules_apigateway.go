// ABOUTME: Extraction rules for API Gateway methods and Lambda authorizers.
package extract

import (
	"regexp"

	"github.com/2389-research/trunkline/cfn"
)

// authorizerURIPattern pulls the function name out of an invocation-style
// authorizer URI.
var authorizerURIPattern = regexp.MustCompile(`functions/arn:aws:lambda:[^:]+:[^:]+:function:([^/]+)/invocations`)

// ruleAPIGatewayMethod records the method's integration targets. Each target
// gains an edge from the method and, when the method names its REST API, from
// the API as well, so the graph shows the gateway calling the backend.
func ruleAPIGatewayMethod(rc *RuleContext) error {
	props := rc.Resource.Properties
	integration, _ := props.Get("Integration")
	uri, ok := integration.Get("Uri")
	if !ok {
		return nil
	}
	targets, err := rc.Resolve(uri)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return nil
	}

	api := ""
	if apiRef, ok := props.Get("RestApiId"); ok {
		id, found, err := rc.ResolveFirst(apiRef)
		if err != nil {
			return err
		}
		if found {
			api = id
		}
	}

	for _, target := range targets {
		if err := rc.AddEdge(rc.LogicalID, target, "integration"); err != nil {
			return err
		}
		if api == "" {
			continue
		}
		if err := rc.AddEdge(api, target, "integration"); err != nil {
			return err
		}
	}
	return nil
}

// ruleAPIGatewayAuthorizer connects a REST API to the Lambda function backing
// its authorizer. String URIs are matched against the invocation ARN shape;
// intrinsic URIs resolve directly.
func ruleAPIGatewayAuthorizer(rc *RuleContext) error {
	props := rc.Resource.Properties
	apiRef, hasAPI := props.Get("RestApiId")
	uriRef, hasURI := props.Get("AuthorizerUri")
	if !hasAPI || !hasURI {
		return nil
	}

	api, apiFound, err := rc.ResolveFirst(apiRef)
	if err != nil {
		return err
	}

	fns := make(map[string]bool)
	ids, err := rc.resolver.Resolve(uriRef, rc.Known)
	if err != nil {
		return err
	}
	for id := range ids {
		fns[id] = true
	}
	if uriRef.Kind == cfn.KindScalar {
		if m := authorizerURIPattern.FindStringSubmatch(uriRef.Str); m != nil {
			if rc.Known[m[1]] {
				fns[m[1]] = true
			} else {
				extracted, err := rc.resolver.Resolve(cfn.Scalar(m[1]), rc.Known)
				if err != nil {
					return err
				}
				for id := range extracted {
					fns[id] = true
				}
			}
		}
	}

	sorted := sortedIDs(fns)
	if !apiFound || len(sorted) == 0 {
		rc.ReportUnresolved("AuthorizerUri", uriRef.ScalarOr(""))
		return nil
	}
	return rc.AddEdge(api, sorted[0], "authorizer")
}
