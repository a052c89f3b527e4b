package validation

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/citizenhub/complaint-service/pkg/util/errorutil"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema names.
const (
	SchemaRegister        = "register"
	SchemaLogin           = "login"
	SchemaProfile         = "profile"
	SchemaComplaintCreate = "complaint_create"
	SchemaComplaintStatus = "complaint_status"
	SchemaAnnouncement    = "announcement"
	SchemaChat            = "chat"
	SchemaFrame           = "ws_frame"
)

const schemaBaseURL = "https://citizenhub.local/schemas/"

// Validator checks request bodies and WebSocket frames against the embedded
// JSON schemas.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// New compiles every embedded schema.
func New() (*Validator, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, err
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	c.AssertFormat = true

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		raw, err := schemaFS.ReadFile(path.Join("schemas", entry.Name()))
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(entry.Name(), ".json")
		if err := c.AddResource(schemaBaseURL+entry.Name(), bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
		names = append(names, name)
	}

	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(names))}
	for _, name := range names {
		compiled, err := c.Compile(schemaBaseURL + name + ".json")
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		v.schemas[name] = compiled
	}
	return v, nil
}

// Validate checks raw JSON against the named schema. Failures are
// VALIDATION_FAILED domain errors listing each violation.
func (v *Validator) Validate(name string, raw []byte) error {
	schema, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("validation: unknown schema %q", name)
	}

	doc, err := decodeJSON(raw)
	if err != nil {
		return errorutil.NewValidationError("malformed JSON body", nil)
	}

	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return errorutil.NewValidationError("request does not match schema", map[string]any{
				"violations": violations(ve),
			})
		}
		return errorutil.NewValidationError(err.Error(), nil)
	}
	return nil
}

// ValidateFrame checks a propagation channel frame.
func (v *Validator) ValidateFrame(raw []byte) error {
	return v.Validate(SchemaFrame, raw)
}

// decodeJSON decodes a single JSON value keeping numbers as json.Number, the
// representation the schema validator expects.
func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON value")
	}
	return doc, nil
}

func violations(ve *jsonschema.ValidationError) []string {
	out := []string{}
	for _, e := range ve.BasicOutput().Errors {
		if e.Error == "" || strings.HasPrefix(e.Error, "doesn't validate with") {
			continue
		}
		location := e.InstanceLocation
		if location == "" {
			location = "/"
		}
		out = append(out, location+": "+e.Error)
	}
	if len(out) == 0 {
		out = append(out, ve.Message)
	}
	return out
}
