package payload

import "github.com/rulebook-dev/rulebook/internal/types"

var zero = 0

var builtinSchemas = map[types.TargetType]map[string]Field{
	types.TargetCodingRule: {
		"code":        {Kind: KindString, Required: true, MaxLen: 32},
		"name":        {Kind: KindString, Required: true, MaxLen: 200},
		"description": {Kind: KindString, Required: true},
		"severity": {
			Kind:     KindString,
			Required: true,
			Enum:     []string{string(types.SeverityInfo), string(types.SeverityWarning), string(types.SeverityError)},
		},
		"category": {Kind: KindString, MaxLen: 100},
	},
	types.TargetRuleExample: {
		"rule_id":     {Kind: KindString, Required: true},
		"kind":        {Kind: KindString, Required: true, Enum: []string{string(types.ExampleGood), string(types.ExampleBad)}},
		"language":    {Kind: KindString, Required: true, MaxLen: 50},
		"snippet":     {Kind: KindString, Required: true},
		"explanation": {Kind: KindString},
	},
	types.TargetClassTemplate: {
		"name":        {Kind: KindString, Required: true, MaxLen: 200},
		"layer":       {Kind: KindString, Required: true, MaxLen: 100},
		"language":    {Kind: KindString, Required: true, MaxLen: 50},
		"content":     {Kind: KindString, Required: true},
		"description": {Kind: KindString},
	},
	types.TargetChecklistItem: {
		"checklist":   {Kind: KindString, Required: true, MaxLen: 100},
		"title":       {Kind: KindString, Required: true, MaxLen: 200},
		"description": {Kind: KindString},
		"position":    {Kind: KindInteger, Min: &zero},
	},
}
