package syncer

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/rcliao/state-sync/internal/model"
)

//go:embed appstate.schema.json
var appStateSchemaJSON []byte

const appStateSchemaURL = "appstate.schema.json"

var appStateSchema = compileAppStateSchema()

func compileAppStateSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	if err := c.AddResource(appStateSchemaURL, bytes.NewReader(appStateSchemaJSON)); err != nil {
		panic(fmt.Sprintf("add appstate schema: %v", err))
	}
	return c.MustCompile(appStateSchemaURL)
}

// document is a serialized AppState together with the stores it carried.
type document struct {
	state   model.AppState
	present map[model.StoreKey]bool
}

// decodeDocument parses a serialized AppState. It returns nil for an empty
// blob or an empty object.
func decodeDocument(data []byte) (*document, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, err
	}
	if len(top) == 0 {
		return nil, nil
	}

	doc := &document{present: make(map[model.StoreKey]bool, len(model.StoreKeys))}
	for _, k := range model.StoreKeys {
		if raw, ok := top[string(k)]; ok && !model.IsNull(raw) {
			doc.present[k] = true
		}
	}
	if err := json.Unmarshal(data, &doc.state); err != nil {
		return nil, err
	}
	doc.state.Normalize()
	return doc, nil
}

// validateImport checks data against the AppState backup schema.
func validateImport(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return appStateSchema.Validate(v)
}

// replace returns base with every store the document carried swapped for
// the document's copy. Stores missing from the document keep base's value.
func (d *document) replace(base model.AppState) model.AppState {
	out := base
	for k := range d.present {
		switch k {
		case model.StoreChat:
			out.Chat = d.state.Chat
		case model.StoreAccess:
			out.Access = d.state.Access
		case model.StoreConfig:
			out.Config = d.state.Config
		case model.StoreMask:
			out.Mask = d.state.Mask
		case model.StorePrompt:
			out.Prompt = d.state.Prompt
		}
	}
	return out
}
