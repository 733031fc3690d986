package oracle

import (
	"github.com/kalambet/reqchat/internal/engine"
	"github.com/kalambet/reqchat/internal/requirements"
)

func stringList(desc string) *engine.Schema {
	return &engine.Schema{Type: "array", Description: desc, Items: &engine.Schema{Type: "string"}}
}

func itemSchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]*engine.Schema{
			"id":          {Type: "string"},
			"title":       {Type: "string"},
			"description": {Type: "string"},
			"priority":    {Type: "string", Enum: []string{"high", "medium", "low"}},
		},
		Required: []string{"title", "description"},
	}
}

func documentSchema() *engine.Schema {
	props := make(map[string]*engine.Schema, len(requirements.Categories))
	required := make([]string, 0, len(requirements.Categories))
	for _, c := range requirements.Categories {
		props[string(c)] = &engine.Schema{Type: "array", Items: itemSchema()}
		required = append(required, string(c))
	}
	return &engine.Schema{Type: "object", Properties: props, Required: required}
}

func extractionSchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]*engine.Schema{
			"requirements":      documentSchema(),
			"assistantResponse": {Type: "string", Description: "Reply shown to the user in the chat"},
		},
		Required: []string{"requirements", "assistantResponse"},
	}
}

func architectureSchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]*engine.Schema{
			"architecture_type":      {Type: "string"},
			"deployment_environment": {Type: "string", Enum: []string{requirements.DeployCloud, requirements.DeployOnPremise, requirements.DeployHybrid}},
			"components": {
				Type: "array",
				Items: &engine.Schema{
					Type: "object",
					Properties: map[string]*engine.Schema{
						"id":            {Type: "string"},
						"name":          {Type: "string"},
						"type":          {Type: "string", Enum: requirements.ComponentTypes},
						"description":   {Type: "string"},
						"technologies":  stringList(""),
						"justification": {Type: "string"},
					},
					Required: []string{"name", "type"},
				},
			},
			"network_requirements":       stringList(""),
			"security_measures":          stringList(""),
			"scalability_considerations": stringList(""),
		},
		Required: []string{"architecture_type", "deployment_environment", "components"},
	}
}

func validationSchema() *engine.Schema {
	return &engine.Schema{
		Type: "object",
		Properties: map[string]*engine.Schema{
			"overall_status":       {Type: "string", Enum: []string{requirements.StatusGood, requirements.StatusWarning, requirements.StatusCritical}},
			"missing_requirements": stringList(""),
			"contradictions":       stringList(""),
			"unclear_requirements": stringList(""),
			"recommendations":      stringList(""),
			"completeness_score":   {Type: "integer", Description: "0 to 100"},
			"critical_questions": {
				Type: "object",
				Properties: map[string]*engine.Schema{
					"system_type_missing":   {Type: "boolean"},
					"personal_data_missing": {Type: "boolean"},
					"user_scope_missing":    {Type: "boolean"},
				},
			},
		},
		Required: []string{"overall_status", "completeness_score"},
	}
}
