package rule

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// FileSchema returns the JSON schema of the YAML rule-file format, for
// editor integration and the `rules-schema` CLI command. The schema is
// deliberately hand-maintained next to the parser: the two must agree.
func FileSchema() *jsonschema.Schema {
	pattern := &jsonschema.Schema{
		Type:        "string",
		Description: "Pattern source; $UPPERCASE identifiers are metavariables, ... matches any sibling sequence",
	}

	// Formula operators are mutually recursive; build the entry schema
	// first and close the cycle afterwards.
	formulaEntry := &jsonschema.Schema{
		Type:        "object",
		Description: "One formula operator",
	}
	formulaList := &jsonschema.Schema{Type: "array", Items: formulaEntry}

	metavariable := &jsonschema.Schema{
		Type:        "string",
		Description: "Metavariable name, including the $ sigil",
	}

	formulaEntry.Properties = map[string]*jsonschema.Schema{
		"pattern":            pattern,
		"pattern-inside":     pattern,
		"pattern-not":        pattern,
		"pattern-not-inside": pattern,
		"pattern-regex":      {Type: "string", Description: "Regular expression matched against the raw file text"},
		"pattern-not-regex":  {Type: "string"},
		"patterns":           formulaList,
		"pattern-either":     formulaList,
		"metavariable-regex": {
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"metavariable": metavariable,
				"regex":        {Type: "string"},
			},
			Required: []string{"metavariable", "regex"},
		},
		"metavariable-comparison": {
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"metavariable": metavariable,
				"comparison":   {Type: "string", Description: "Boolean expression over bound metavariables"},
			},
			Required: []string{"comparison"},
		},
		"metavariable-pattern": {
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"metavariable":   metavariable,
				"language":       {Type: "string", Description: "Re-parse the bound fragment under this language"},
				"pattern":        pattern,
				"patterns":       formulaList,
				"pattern-either": formulaList,
			},
			Required: []string{"metavariable"},
		},
		"metavariable-analysis": {
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"metavariable": metavariable,
				"analyzer":     {Type: "string", Enum: []interface{}{"entropy", "redos"}},
			},
			Required: []string{"metavariable", "analyzer"},
		},
		"focus-metavariable": {
			Description: "Metavariable (or list of metavariables) whose bound span narrows the reported match",
		},
	}

	ruleSchema := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"id":       {Type: "string", Description: "Unique rule identifier"},
			"message":  {Type: "string", Description: "Finding message; $METAVAR references are interpolated"},
			"severity": {Type: "string", Enum: []interface{}{"ERROR", "WARNING", "INFO"}},
			"languages": {
				Type:  "array",
				Items: &jsonschema.Schema{Type: "string"},
			},
			"metadata":       {Type: "object"},
			"pattern":        pattern,
			"patterns":       formulaList,
			"pattern-either": formulaList,
			"pattern-regex":  {Type: "string"},
		},
		Required: []string{"id", "languages"},
	}

	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"rules": {Type: "array", Items: ruleSchema},
		},
		Required: []string{"rules"},
	}
}

// FileSchemaJSON renders the rule-file schema as indented JSON.
func FileSchemaJSON() ([]byte, error) {
	return json.MarshalIndent(FileSchema(), "", "  ")
}
