package sim

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// fieldType names the gjson.Result.Type classification a required field
// must satisfy. Using gjson's own type vocabulary, rather than reflecting
// over a decoded map[string]any, keeps validation structural: a field is
// "the right shape of JSON value", not "the right Go type", matching the
// schemaless, dynamically-typed payload the rest of the system treats Data
// as (see the Design Notes on dynamic payload typing).
type fieldType int

const (
	typeAny fieldType = iota
	typeString
	typeNumber
	typeBool
)

// fieldSpec describes one required key within an event Kind's Data schema.
type fieldSpec struct {
	key  string
	kind fieldType
}

// schema is the set of required fields for a recognized EventKind.
type schema struct {
	required []fieldSpec
}

// Validator checks that an Event's Data payload satisfies the minimum
// schema registered for its Kind. Kinds with no registered schema are
// accepted unconditionally: user-defined event kinds are always legal,
// they simply opt out of structural validation.
type Validator struct {
	schemas map[EventKind]schema
}

// NewValidator returns a Validator pre-loaded with the schemas for every
// built-in EventKind.
func NewValidator() *Validator {
	return &Validator{schemas: defaultSchemas()}
}

func defaultSchemas() map[EventKind]schema {
	return map[EventKind]schema{
		KindSimulationStarted: {required: []fieldSpec{
			{"simulation_id", typeString},
			{"time_scale", typeNumber},
		}},
		KindSimulationPaused: {required: []fieldSpec{
			{"simulation_id", typeString},
			{"paused_at", typeNumber},
		}},
		KindSimulationResumed: {required: []fieldSpec{
			{"simulation_id", typeString},
		}},
		KindSimulationStopped: {required: []fieldSpec{
			{"simulation_id", typeString},
		}},
		KindTimeScaled: {required: []fieldSpec{
			{"old_scale", typeNumber},
			{"new_scale", typeNumber},
		}},
		KindMarkerCreated: {required: []fieldSpec{
			{"label", typeString},
		}},
		KindEntityCreated: {required: []fieldSpec{
			{"entity_id", typeString},
			{"entity_type", typeString},
			{"position", typeAny},
		}},
		KindEntityMoved: {required: []fieldSpec{
			{"entity_id", typeString},
			{"position", typeAny},
			{"velocity", typeAny},
		}},
		KindEntityDestroyed: {required: []fieldSpec{
			{"entity_id", typeString},
		}},
		KindCheckpointCreated: {required: []fieldSpec{
			{"checkpoint_id", typeString},
		}},
		KindCheckpointRestored: {required: []fieldSpec{
			{"checkpoint_id", typeString},
		}},
	}
}

// Validate checks e.Data against the schema registered for e.Kind. Events
// of an unregistered Kind are always valid. Returns a *Error tagged
// CodeEventValidation describing the first missing or mis-typed field.
func (v *Validator) Validate(e Event) error {
	sc, ok := v.schemas[e.Kind]
	if !ok {
		return nil
	}

	raw, err := e.DataJSON()
	if err != nil {
		return newError(CodeEventValidation, "Validate", fmt.Errorf("encode data: %w", err))
	}

	for _, f := range sc.required {
		res := gjson.GetBytes(raw, f.key)
		if !res.Exists() {
			return newError(CodeEventValidation, "Validate",
				fmt.Errorf("event kind %q missing required field %q", e.Kind, f.key))
		}
		if !matchesType(res, f.kind) {
			return newError(CodeEventValidation, "Validate",
				fmt.Errorf("event kind %q field %q has wrong type: got %s", e.Kind, f.key, res.Type))
		}
	}
	return nil
}

// IsValid reports whether e satisfies its schema without describing why.
func (v *Validator) IsValid(e Event) bool { return v.Validate(e) == nil }

func matchesType(res gjson.Result, want fieldType) bool {
	switch want {
	case typeAny:
		return true
	case typeString:
		return res.Type == gjson.String
	case typeNumber:
		return res.Type == gjson.Number
	case typeBool:
		return res.Type == gjson.True || res.Type == gjson.False
	default:
		return false
	}
}

// RegisterSchema installs or replaces the schema for kind. fieldSpec is
// unexported, so callers pass only the required key names; each listed key
// must be present in Data, and its value may be of any JSON type.
func (v *Validator) RegisterSchema(kind EventKind, requiredStringFields []string) {
	specs := make([]fieldSpec, 0, len(requiredStringFields))
	for _, k := range requiredStringFields {
		specs = append(specs, fieldSpec{key: strings.TrimSpace(k), kind: typeAny})
	}
	v.schemas[kind] = schema{required: specs}
}
