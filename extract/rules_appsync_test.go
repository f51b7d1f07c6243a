// ABOUTME: Tests for AppSync data source targets and resolver-to-data-source matching.
package extract

import "testing"

func TestDataSourceTargets(t *testing.T) {
	doc := `
Resources:
    LambdaDS:
        Type: AWS::AppSync::DataSource
        Properties:
            Name: lambda_source
            LambdaConfig:
                LambdaFunctionArn: !GetAtt [Handler, Arn]
    TableDS:
        Type: AWS::AppSync::DataSource
        Properties:
            Name: table_source
            DynamoDBConfig:
                TableName: !Ref Things
    Handler:
        Type: AWS::Lambda::Function
    Things:
        Type: AWS::DynamoDB::Table
`
	g := extractPass(t, doc, "prod")
	wantInvoke(t, g, "LambdaDS", "Handler")
	wantInvoke(t, g, "TableDS", "Things")
}

func TestDataSourceEventBus(t *testing.T) {
	doc := `
Resources:
    BusDS:
        Type: AWS::AppSync::DataSource
        Properties:
            Name: bus_source
            EventBridgeConfig:
                EventBusArn: !GetAtt [Bus, Arn]
    Bus:
        Type: AWS::Events::EventBus
`
	g := extractPass(t, doc, "prod")
	wantInvoke(t, g, "BusDS", "Bus")
}

func TestDataSourceHTTPEndpointReportedOnly(t *testing.T) {
	doc := `
Resources:
    HttpDS:
        Type: AWS::AppSync::DataSource
        Properties:
            Name: http_source
            HttpConfig:
                Endpoint: https://api.example.com
`
	var unresolved int
	engine := NewEngine(EngineConfig{
		EventHandler: func(event EngineEvent) {
			if event.Type == EventUnresolvedReference {
				unresolved++
			}
		},
	})
	g, err := engine.ParsePass(parseTemplate(t, doc), "prod", nil)
	if err != nil {
		t.Fatalf("ParsePass: %v", err)
	}
	if unresolved != 1 {
		t.Errorf("unresolved events = %d, want 1", unresolved)
	}
	ds := g.FindNode("HttpDS")
	if len(ds.Invokes) != 0 {
		t.Errorf("HttpDS invokes %v, want none", edgeNames(ds.Invokes))
	}
}

func TestResolverMatchesDataSourceByName(t *testing.T) {
	// DataSourceName carries the API-level name, not the logical id; the
	// rule must find the declared data source whose Name property matches.
	doc := `
Resources:
    GetThing:
        Type: AWS::AppSync::Resolver
        Properties:
            TypeName: Query
            FieldName: getThing
            DataSourceName: lambda_source
    LambdaDS:
        Type: AWS::AppSync::DataSource
        Properties:
            Name: lambda_source
            LambdaConfig:
                LambdaFunctionArn: !GetAtt [Handler, Arn]
    Handler:
        Type: AWS::Lambda::Function
`
	g := extractPass(t, doc, "prod")
	wantInvoke(t, g, "GetThing", "LambdaDS")
}

func TestResolverFallsBackToDirectResolution(t *testing.T) {
	doc := `
Resources:
    GetThing:
        Type: AWS::AppSync::Resolver
        Properties:
            DataSourceName: !GetAtt [LambdaDS, Name]
    LambdaDS:
        Type: AWS::AppSync::DataSource
        Properties:
            Name: lambda_source
`
	g := extractPass(t, doc, "prod")
	wantInvoke(t, g, "GetThing", "LambdaDS")
}

func TestResolverUnmatchedNameReported(t *testing.T) {
	doc := `
Resources:
    GetThing:
        Type: AWS::AppSync::Resolver
        Properties:
            DataSourceName: missing_source
`
	var unresolved int
	engine := NewEngine(EngineConfig{
		EventHandler: func(event EngineEvent) {
			if event.Type == EventUnresolvedReference {
				unresolved++
			}
		},
	})
	if _, err := engine.ParsePass(parseTemplate(t, doc), "prod", nil); err != nil {
		t.Fatalf("ParsePass: %v", err)
	}
	if unresolved != 1 {
		t.Errorf("unresolved events = %d, want 1", unresolved)
	}
}
