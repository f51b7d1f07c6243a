// ABOUTME: Table of recognized AWS service principals and the pseudo-node identity each one maps to.
package extract

import "github.com/2389-research/trunkline/cfn"

// ServicePrincipal is the pseudo-node identity synthesized when a permission
// grants invocation rights to a managed service rather than to a resource.
type ServicePrincipal struct {
	ID      string
	TypeTag string
}

var servicePrincipals = map[string]ServicePrincipal{
	"s3.amazonaws.com":         {ID: "S3", TypeTag: cfn.TypeServiceS3},
	"events.amazonaws.com":     {ID: "EventBridge", TypeTag: cfn.TypeServiceEventBridge},
	"apigateway.amazonaws.com": {ID: "APIGateway", TypeTag: cfn.TypeServiceAPIGateway},
	"sqs.amazonaws.com":        {ID: "SQS", TypeTag: cfn.TypeServiceSQS},
}

// LookupServicePrincipal returns the pseudo-node identity for a service
// principal string, if it is one the extractor recognizes.
func LookupServicePrincipal(principal string) (ServicePrincipal, bool) {
	sp, ok := servicePrincipals[principal]
	return sp, ok
}
