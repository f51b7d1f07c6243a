// ABOUTME: Extraction rules for AppSync data sources and resolvers.
package extract

import "github.com/2389-research/trunkline/cfn"

// ruleAppSyncDataSource records the backing resources a data source reaches:
// Lambda functions, DynamoDB tables, and EventBridge buses. HTTP endpoints
// carry no logical identifier and are only reported.
func ruleAppSyncDataSource(rc *RuleContext) error {
	props := rc.Resource.Properties

	targets := make(map[string]bool)
	for _, path := range []struct{ config, key string }{
		{"LambdaConfig", "LambdaFunctionArn"},
		{"DynamoDBConfig", "TableName"},
	} {
		config, _ := props.Get(path.config)
		ref, ok := config.Get(path.key)
		if !ok {
			continue
		}
		ids, err := rc.resolver.Resolve(ref, rc.Known)
		if err != nil {
			return err
		}
		for id := range ids {
			targets[id] = true
		}
	}
	for _, target := range sortedIDs(targets) {
		if err := rc.AddEdge(rc.LogicalID, target, "data source"); err != nil {
			return err
		}
	}

	if httpConfig, ok := props.Get("HttpConfig"); ok {
		if endpoint, ok := httpConfig.Get("Endpoint"); ok {
			rc.ReportUnresolved("HttpConfig.Endpoint", endpoint.ScalarOr(""))
		}
	}

	if ebConfig, ok := props.Get("EventBridgeConfig"); ok {
		if busRef, ok := ebConfig.Get("EventBusArn"); ok {
			bus, found, err := rc.ResolveFirst(busRef)
			if err != nil {
				return err
			}
			if !found {
				rc.ReportUnresolved("EventBridgeConfig.EventBusArn", busRef.ScalarOr(""))
				return nil
			}
			return rc.AddEdge(rc.LogicalID, bus, "data source")
		}
	}
	return nil
}

// ruleAppSyncResolver connects a resolver to its data source. DataSourceName
// is an API-level name, not a logical identifier, so declared data sources
// are matched by their Name property first; direct resolution is the
// fallback.
func ruleAppSyncResolver(rc *RuleContext) error {
	nameRef, ok := rc.Resource.Properties.Get("DataSourceName")
	if !ok {
		return nil
	}

	if name := nameRef.ScalarOr(""); name != "" {
		for _, id := range rc.Template.LogicalIDs() {
			res, _ := rc.Template.Resource(id)
			if res.Type != cfn.TypeAppSyncDataSource {
				continue
			}
			declared, _ := res.Properties.Get("Name")
			if declared.ScalarOr("") == name {
				return rc.AddEdge(rc.LogicalID, id, "resolver data source")
			}
		}
	}

	ds, found, err := rc.ResolveFirst(nameRef)
	if err != nil {
		return err
	}
	if !found {
		rc.ReportUnresolved("DataSourceName", nameRef.ScalarOr(""))
		return nil
	}
	return rc.AddEdge(rc.LogicalID, ds, "resolver data source")
}
