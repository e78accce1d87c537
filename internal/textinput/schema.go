package textinput

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/*.schema.json
var schemaFS embed.FS

var (
	setClientSchema    = mustCompileSchema("set_client.schema.json")
	editingStateSchema = mustCompileSchema("editing_state.schema.json")
)

func mustCompileSchema(name string) *jsonschema.Schema {
	data, err := schemaFS.ReadFile("schema/" + name)
	if err != nil {
		panic(fmt.Sprintf("textinput: read schema %s: %v", name, err))
	}
	url := "mem://textinput/" + name
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
		panic(fmt.Sprintf("textinput: add schema %s: %v", name, err))
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("textinput: compile schema %s: %v", name, err))
	}
	return schema
}

// validate checks raw JSON against schema.
func validate(schema *jsonschema.Schema, raw json.RawMessage) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing arguments")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var instance any
	if err := dec.Decode(&instance); err != nil {
		return err
	}
	return schema.Validate(instance)
}
