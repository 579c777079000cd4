package github

// FieldValue is one typed value for a ProjectV2 custom field. The set is
// closed: text, number, date, and single-select, each with its own GraphQL
// encoding.
type FieldValue interface {
	// encode returns the ProjectV2FieldValue input object for the mutation.
	encode() map[string]any
}

// TextValue sets a text field.
type TextValue string

func (v TextValue) encode() map[string]any { return map[string]any{"text": string(v)} }

// NumberValue sets a number field.
type NumberValue float64

func (v NumberValue) encode() map[string]any { return map[string]any{"number": float64(v)} }

// DateValue sets a date field; the value must be an ISO date (YYYY-MM-DD).
type DateValue string

func (v DateValue) encode() map[string]any { return map[string]any{"date": string(v)} }

// SingleSelectValue sets a single-select field by option id, not by label.
type SingleSelectValue string

func (v SingleSelectValue) encode() map[string]any {
	return map[string]any{"singleSelectOptionId": string(v)}
}
