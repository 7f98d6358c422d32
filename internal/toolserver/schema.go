package toolserver

// JSON schemas the handlers validate their arguments against. These mirror
// the parameter declarations on the registered tools.

var creditScoreSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"applicant_name": map[string]any{"type": "string", "minLength": 1},
	},
	"required":             []any{"applicant_name"},
	"additionalProperties": false,
}

var riskSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"applicant_name": map[string]any{"type": "string", "minLength": 1},
		"annual_income":  map[string]any{"type": "number", "minimum": 0},
		"loan_amount":    map[string]any{"type": "number", "minimum": 0},
		"property_value": map[string]any{"type": "number", "minimum": 0},
		"monthly_debt":   map[string]any{"type": "number", "minimum": 0},
	},
	"required":             []any{"applicant_name"},
	"additionalProperties": false,
}
