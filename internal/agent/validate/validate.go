// Package validate checks inbound JSON payloads against embedded JSON Schemas
// and reports every violated field at once.
package validate

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/xeipuuv/gojsonschema"

	"github.com/atendimento-virtual/server/internal/agent/model"
	errx "github.com/atendimento-virtual/server/internal/core/error"
)

// DefaultLocale is applied when idiomaPreferido is omitted.
const DefaultLocale = "pt-BR"

// BodyField names errors that concern the payload as a whole.
const BodyField = "(body)"

const rootField = "(root)"

var (
	//go:embed schema/integrated.json
	integratedSchemaJSON []byte
	//go:embed schema/assist.json
	assistSchemaJSON []byte

	integratedSchema = mustSchema("integrated", integratedSchemaJSON)
	assistSchema     = mustSchema("assist", assistSchemaJSON)
)

// fieldOrder keeps error details stable for clients and tests.
var fieldOrder = map[string]int{
	BodyField:         0,
	"idCliente":       1,
	"mensagemUsuario": 2,
	"sentimento":      3,
	"confianca":       4,
	"idiomaPreferido": 5,
}

var fieldMessages = map[string]string{
	"idCliente":       "deve ter de 1 a 64 caracteres entre letras, dígitos, '_', '.' ou '-'",
	"mensagemUsuario": "deve ter de 1 a 500 caracteres e não pode ser vazia",
	"sentimento":      "deve ser POSITIVO, NEGATIVO ou NEUTRO",
	"confianca":       "deve ser um número entre 0 e 1",
	"idiomaPreferido": "deve seguir o formato xx-XX, por exemplo pt-BR",
}

func mustSchema(name string, raw []byte) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("validate: compile %s schema: %v", name, err))
	}
	return s
}

// ValidateIntegrated checks a /integrated payload.
func ValidateIntegrated(raw []byte) (model.IntegratedInput, error) {
	var in model.IntegratedInput
	if err := check(integratedSchema, raw, &in); err != nil {
		return model.IntegratedInput{}, err
	}
	if in.PreferredLocale == "" {
		in.PreferredLocale = DefaultLocale
	}
	return in, nil
}

// ValidateAssist checks a /assistant payload, including sentiment and confidence.
func ValidateAssist(raw []byte) (model.AssistRequest, error) {
	var req model.AssistRequest
	if err := check(assistSchema, raw, &req); err != nil {
		return model.AssistRequest{}, err
	}
	if req.PreferredLocale == "" {
		req.PreferredLocale = DefaultLocale
	}
	return req, nil
}

func check(schema *gojsonschema.Schema, raw []byte, out any) error {
	if !json.Valid(raw) {
		return errx.Validation([]errx.FieldError{{Field: BodyField, Message: "JSON malformado"}})
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return errx.Validation([]errx.FieldError{{Field: BodyField, Message: err.Error()}})
	}
	if !result.Valid() {
		return errx.Validation(fieldErrors(result.Errors()))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return errx.Validation([]errx.FieldError{{Field: BodyField, Message: err.Error()}})
	}
	return nil
}

// fieldErrors keeps one message per field, in a fixed order.
func fieldErrors(results []gojsonschema.ResultError) []errx.FieldError {
	seen := make(map[string]bool, len(results))
	out := make([]errx.FieldError, 0, len(results))
	for _, re := range results {
		field, msg := describe(re)
		if seen[field] {
			continue
		}
		seen[field] = true
		out = append(out, errx.FieldError{Field: field, Message: msg})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return rank(out[i].Field) < rank(out[j].Field)
	})
	return out
}

func describe(re gojsonschema.ResultError) (string, string) {
	field := re.Field()
	if re.Type() == "required" {
		if p, ok := re.Details()["property"].(string); ok {
			return p, "campo obrigatório"
		}
	}
	if field == rootField || field == "" {
		return BodyField, "o corpo deve ser um objeto JSON"
	}
	if msg, ok := fieldMessages[field]; ok {
		return field, msg
	}
	return field, re.Description()
}

func rank(field string) int {
	if r, ok := fieldOrder[field]; ok {
		return r
	}
	return len(fieldOrder)
}
