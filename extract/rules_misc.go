// ABOUTME: Extraction rules for custom resources and CloudFront edge function associations.
package extract

import (
	"strings"

	"github.com/2389-research/trunkline/cfn"
)

// ruleCustomResource records the custom resource calling its provider
// function through ServiceToken. The registry also routes Custom::* types
// here.
func ruleCustomResource(rc *RuleContext) error {
	tokenRef, ok := rc.Resource.Properties.Get("ServiceToken")
	if !ok {
		return nil
	}
	token, found, err := rc.ResolveFirst(tokenRef)
	if err != nil {
		return err
	}
	if !found {
		rc.ReportUnresolved("ServiceToken", tokenRef.ScalarOr(""))
		return nil
	}
	return rc.AddEdge(rc.LogicalID, token, "service token")
}

// ruleCloudFront records the edge functions attached to a distribution's
// cache behaviors. Versioned function ARNs are retried without their trailing
// version segment.
func ruleCloudFront(rc *RuleContext) error {
	distConfig, ok := rc.Resource.Properties.Get("DistributionConfig")
	if !ok {
		return nil
	}
	targets := make(map[string]bool)

	scan := func(behavior cfn.Value) error {
		assocs, _ := behavior.Get("LambdaFunctionAssociations")
		for _, assoc := range assocs.Items {
			arn, ok := assoc.Get("LambdaFunctionARN")
			if !ok {
				continue
			}
			ids, err := edgeFunctionIDs(rc, arn)
			if err != nil {
				return err
			}
			for id := range ids {
				targets[id] = true
			}
		}
		return nil
	}

	if behavior, ok := distConfig.Get("DefaultCacheBehavior"); ok {
		if err := scan(behavior); err != nil {
			return err
		}
	}
	behaviors, _ := distConfig.Get("CacheBehaviors")
	for _, behavior := range behaviors.Items {
		if err := scan(behavior); err != nil {
			return err
		}
	}

	for _, target := range sortedIDs(targets) {
		if err := rc.AddEdge(rc.LogicalID, target, "edge function"); err != nil {
			return err
		}
	}
	return nil
}

// edgeFunctionIDs resolves an edge function ARN reference. String ARNs carry
// a version qualifier, so the string is first retried with the last
// colon-separated segment removed.
func edgeFunctionIDs(rc *RuleContext, arn cfn.Value) (map[string]bool, error) {
	if arn.Kind == cfn.KindScalar {
		if i := strings.LastIndex(arn.Str, ":"); i >= 0 {
			ids, err := rc.resolver.Resolve(cfn.Scalar(arn.Str[:i]), rc.Known)
			if err != nil {
				return nil, err
			}
			if len(ids) > 0 {
				return ids, nil
			}
		}
	}
	return rc.resolver.Resolve(arn, rc.Known)
}
