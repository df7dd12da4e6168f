package listingapi

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const createResponseSchema = "schemas/create-response.json"

var createResponse = mustCompile(createResponseSchema)

func mustCompile(path string) *jsonschema.Schema {
	f, err := schemaFS.Open(path)
	if err != nil {
		panic(fmt.Sprintf("open schema %s: %v", path, err))
	}
	defer f.Close()

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource(path, f); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", path, err))
	}
	return compiler.MustCompile(path)
}

// validateCreateResponse checks body against the create-response contract.
func validateCreateResponse(body []byte) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("response body is not valid JSON: %w", err)
	}
	if err := createResponse.Validate(v); err != nil {
		return fmt.Errorf("response does not match contract: %w", err)
	}
	return nil
}
