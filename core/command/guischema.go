package command

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/liquers/liquers-go/core/lqerror"
)

// guiInfoSchemaSource is the JSON Schema every ArgumentInfo.GUIInfo value
// must satisfy: a widget hint plus free-form renderer options.
const guiInfoSchemaSource = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "widget": {"type": "string"},
    "placeholder": {"type": "string"},
    "options": {"type": "object"}
  },
  "additionalProperties": true
}`

var guiInfoSchema = mustCompileGUIInfoSchema()

func mustCompileGUIInfoSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	var doc any
	if err := json.Unmarshal([]byte(guiInfoSchemaSource), &doc); err != nil {
		panic(err)
	}
	const resourceName = "https://github.com/liquers/liquers-go/gui_info.json"
	if err := c.AddResource(resourceName, doc); err != nil {
		panic(err)
	}
	schema, err := c.Compile(resourceName)
	if err != nil {
		panic(err)
	}
	return schema
}

// ValidateGUIInfo validates g against the GUI info schema. A nil or empty
// GUIInfo is always valid.
func ValidateGUIInfo(g GUIInfo) error {
	if len(g) == 0 {
		return nil
	}
	raw, err := json.Marshal(g)
	if err != nil {
		return lqerror.NewWithCause(lqerror.KindSerializationError, "marshal gui_info for validation", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return lqerror.NewWithCause(lqerror.KindSerializationError, "decode gui_info for validation", err)
	}
	if err := guiInfoSchema.Validate(doc); err != nil {
		return lqerror.NewWithCause(lqerror.KindConversionError, "gui_info failed schema validation", err)
	}
	return nil
}
