// ABOUTME: Maps raw CloudFormation type tags to human-readable display names for graph output.
// ABOUTME: Unmapped tags fall back to the raw tag so new resource types degrade gracefully.
package cfn

// Resource type tags the extraction rules dispatch on.
const (
	TypeLambdaFunction     = "AWS::Lambda::Function"
	TypeServerlessFunction = "AWS::Serverless::Function"
	TypeIAMRole            = "AWS::IAM::Role"
	TypeAPIGatewayRestAPI  = "AWS::ApiGateway::RestApi"
	TypeAPIGatewayMethod   = "AWS::ApiGateway::Method"
	TypeAPIGatewayAuth     = "AWS::ApiGateway::Authorizer"
	TypeStateMachine       = "AWS::StepFunctions::StateMachine"
	TypeS3Bucket           = "AWS::S3::Bucket"
	TypeSNSSubscription    = "AWS::SNS::Subscription"
	TypeEventsRule         = "AWS::Events::Rule"
	TypeEventSourceMapping = "AWS::Lambda::EventSourceMapping"
	TypeLambdaPermission   = "AWS::Lambda::Permission"
	TypeAppSyncDataSource  = "AWS::AppSync::DataSource"
	TypeAppSyncResolver    = "AWS::AppSync::Resolver"
	TypeCustomResource     = "AWS::CloudFormation::CustomResource"
	TypeCloudFront         = "AWS::CloudFront::Distribution"
)

// Pseudo-node type tags for external service principals.
const (
	TypeServiceS3          = "AWS::Service::S3"
	TypeServiceEventBridge = "AWS::Service::EventBridge"
	TypeServiceAPIGateway  = "AWS::Service::APIGateway"
	TypeServiceSQS         = "AWS::Service::SQS"
)

var displayTypes = map[string]string{
	TypeLambdaFunction:                 "Lambda Function",
	TypeServerlessFunction:             "Lambda Function (SAM)",
	"AWS::DynamoDB::Table":             "DynamoDB Table",
	"AWS::SQS::Queue":                  "SQS Queue",
	TypeAPIGatewayRestAPI:              "API Gateway",
	"AWS::ApiGateway::Resource":        "API Gateway Resource",
	TypeAPIGatewayMethod:               "API Gateway Method",
	"AWS::ApiGateway::Deployment":      "API Gateway Deployment",
	TypeAPIGatewayAuth:                 "API Gateway Authorizer",
	TypeS3Bucket:                       "S3 Bucket",
	TypeIAMRole:                        "IAM Role",
	"AWS::IAM::Policy":                 "IAM Policy",
	TypeEventsRule:                     "EventBridge Rule",
	"AWS::Events::EventBus":            "EventBridge Bus",
	TypeStateMachine:                   "Step Function",
	TypeEventSourceMapping:             "Lambda Event Source Mapping",
	"AWS::RDS::DBInstance":             "RDS DB Instance",
	"AWS::EC2::SecurityGroup":          "Security Group",
	"AWS::AppSync::GraphQLApi":         "AppSync API",
	TypeAppSyncDataSource:              "AppSync DataSource",
	TypeAppSyncResolver:                "AppSync Resolver",
	"AWS::AppSync::GraphQLSchema":      "AppSync Schema",
	"AWS::AppSync::ApiKey":             "AppSync ApiKey",
	TypeLambdaPermission:               "Lambda Permission",
	"AWS::SNS::Topic":                  "SNS Topic",
	TypeSNSSubscription:                "SNS Subscription",
	TypeCustomResource:                 "Custom Resource",
	TypeCloudFront:                     "CloudFront Distribution",
	TypeServiceS3:                      "S3 Service",
	TypeServiceEventBridge:             "EventBridge Service",
	TypeServiceAPIGateway:              "API Gateway Service",
	TypeServiceSQS:                     "SQS Service",
}

// DisplayType returns the human-readable name for a resource type tag,
// falling back to the raw tag when no mapping exists.
func DisplayType(typeTag string) string {
	if name, ok := displayTypes[typeTag]; ok {
		return name
	}
	return typeTag
}
