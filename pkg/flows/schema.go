package flows

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dukex/lexflow/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

var ErrPayloadSchema = errors.New("payload does not match schema")

// PayloadSchema builds the JSON schema the payload of the action on stepIndex
// must satisfy: every rule of that step and the steps before it.
func PayloadSchema(def *models.FlowDefinition, stepIndex int) map[string]any {
	properties := make(map[string]any)
	required := make([]string, 0)

	var omitted []models.Field
	if action := def.Steps[stepIndex].Action; action != nil {
		omitted = action.Omit
	}

	for i := 0; i <= stepIndex && i < len(def.Steps); i++ {
		for _, rule := range def.Steps[i].Rules {
			if slices.Contains(omitted, rule.Field) {
				continue
			}

			key := rule.Field.String()

			prop, ok := properties[key].(map[string]any)
			if !ok {
				prop = map[string]any{"type": "string"}
				properties[key] = prop
			}

			switch rule.Check {
			case models.CheckRequired:
				prop["minLength"] = max(1, intOr(prop["minLength"]))
			case models.CheckEmail:
				prop["pattern"] = `^[^\s@]+@[^\s@]+\.[^\s@]+$`
			case models.CheckMinLength:
				prop["minLength"] = max(rule.Min, intOr(prop["minLength"]))
			case models.CheckMatches:
			}

			if rule.Check != models.CheckMatches && !slices.Contains(required, key) {
				required = append(required, key)
			}
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		slices.Sort(required)
		schema["required"] = required
	}

	return schema
}

func intOr(v any) int {
	n, _ := v.(int)

	return n
}

// ValidatePayload checks a submission payload against PayloadSchema.
func ValidatePayload(def *models.FlowDefinition, stepIndex int, payload map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(PayloadSchema(def, stepIndex)),
		gojsonschema.NewGoLoader(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to validate payload: %w", err)
	}

	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		details = append(details, e.String())
	}

	return fmt.Errorf("%w: %s", ErrPayloadSchema, strings.Join(details, "; "))
}
