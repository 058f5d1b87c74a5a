// Package contract defines the metric-output contracts the grading harness
// parses, plus classification of incoming prompts against them.
//
// A contract is a fixed JSON shape: field names, field types, and value
// domains. The harness's parser is byte-for-byte strict about these, so the
// definitions here are the single source of truth shared by the enhancer
// (which tells the model what to emit) and the normalizer (which repairs what
// the model actually emitted).
package contract

import (
	"fmt"
	"strings"
)

// Name identifies one of the known contracts.
type Name string

const (
	// StatementVerdicts is a per-statement faithfulness verdict list:
	// {"statements":[{"statement":...,"verdict":0|1}]}
	StatementVerdicts Name = "statement_verdicts"
	// QuestionNoncommittal is a generated question plus evasiveness flag:
	// {"question":...,"noncommittal":0|1}
	QuestionNoncommittal Name = "question_noncommittal"
	// ContextVerdict is a usefulness judgment over retrieved context:
	// {"reason":...,"verdict":0|1}
	ContextVerdict Name = "context_verdict"
	// AttributionList classifies statements by context attribution:
	// {"classifications":[{"statement":...,"reason":...,"attributed":0|1}]}
	AttributionList Name = "attribution_list"
	// CorrectnessSets partitions statements into TP/FP/FN sets:
	// {"TP":[{"statement":...,"reason":...}],"FP":[...],"FN":[...]}
	CorrectnessSets Name = "correctness_sets"
	// PassThrough is the no-match contract: responses normalize to an
	// empty JSON object.
	PassThrough Name = "pass_through"
)

// FieldType describes the value domain of a contract field.
type FieldType string

const (
	// TypeString is a free-text string.
	TypeString FieldType = "string"
	// TypeFlag is a boolean encoded as the integer 0 or 1, never as a
	// word. Model output frequently drifts to true/false or "yes"/"no";
	// the normalizer coerces those back into this domain.
	TypeFlag FieldType = "flag"
	// TypeObjectList is a list of objects whose shape is given by Items.
	TypeObjectList FieldType = "object_list"
)

// Field is one named field of a contract.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
	// Items describes the object shape for TypeObjectList fields.
	Items []Field
}

// Contract is an immutable description of one metric-output shape.
//
// Keywords drive prompt classification: each inner slice is an AND-group of
// lowercase words that must all appear in the prompt; groups are ORed.
// Catalog order is the classification priority, first match wins.
type Contract struct {
	Name     Name
	Keywords [][]string
	Fields   []Field
	// Instruction is the formatting block the enhancer appends, including
	// a worked example. Fixed text, never templated per call.
	Instruction string
}

// statementFields is shared by the TP/FP/FN sets of CorrectnessSets.
var statementFields = []Field{
	{Name: "statement", Type: TypeString, Required: true},
	{Name: "reason", Type: TypeString, Required: true},
}

// Catalog lists the known contracts in classification priority order.
// More specific keyword sets come first so that, e.g., a correctness prompt
// that also mentions "statement" and "verdict" still lands on CorrectnessSets.
var Catalog = []*Contract{
	{
		Name:     CorrectnessSets,
		Keywords: [][]string{{"tp", "fp", "fn"}},
		Fields: []Field{
			{Name: "TP", Type: TypeObjectList, Required: true, Items: statementFields},
			{Name: "FP", Type: TypeObjectList, Required: true, Items: statementFields},
			{Name: "FN", Type: TypeObjectList, Required: true, Items: statementFields},
		},
		Instruction: `Return only a single JSON object with exactly the keys "TP", "FP" and "FN".
Each key maps to an array of objects with string fields "statement" and "reason".
Do not add any other keys, prose, or markdown fences.
Example:
{"TP": [{"statement": "The sky is blue.", "reason": "Supported by the answer."}], "FP": [], "FN": [{"statement": "Water boils at 100C.", "reason": "Present in the ground truth but missing from the answer."}]}`,
	},
	{
		Name:     AttributionList,
		Keywords: [][]string{{"attributed"}},
		Fields: []Field{
			{Name: "classifications", Type: TypeObjectList, Required: true, Items: []Field{
				{Name: "statement", Type: TypeString, Required: true},
				{Name: "reason", Type: TypeString, Required: true},
				{Name: "attributed", Type: TypeFlag, Required: true},
			}},
		},
		Instruction: `Return only a single JSON object with exactly one key "classifications".
It maps to an array of objects with fields "statement" (string), "reason" (string) and "attributed" (the integer 0 or 1, not a word).
Use 1 when the statement can be attributed to the given context, 0 otherwise.
Do not add any other keys, prose, or markdown fences.
Example:
{"classifications": [{"statement": "Einstein was born in Germany.", "reason": "Stated verbatim in the context.", "attributed": 1}]}`,
	},
	{
		Name:     StatementVerdicts,
		Keywords: [][]string{{"statement", "verdict"}},
		Fields: []Field{
			{Name: "statements", Type: TypeObjectList, Required: true, Items: []Field{
				{Name: "statement", Type: TypeString, Required: true},
				{Name: "verdict", Type: TypeFlag, Required: true},
			}},
		},
		Instruction: `Return only a single JSON object with exactly one key "statements".
It maps to an array of objects with fields "statement" (string) and "verdict" (the integer 0 or 1, not a word).
Use 1 when the statement is supported by the context, 0 otherwise.
Do not add any other keys, prose, or markdown fences.
Example:
{"statements": [{"statement": "The capital of France is Paris.", "verdict": 1}, {"statement": "Paris has ten million residents.", "verdict": 0}]}`,
	},
	{
		Name:     QuestionNoncommittal,
		Keywords: [][]string{{"noncommittal"}},
		Fields: []Field{
			{Name: "question", Type: TypeString, Required: true},
			{Name: "noncommittal", Type: TypeFlag, Required: true},
		},
		Instruction: `Return only a single JSON object with exactly the keys "question" (string) and "noncommittal" (the integer 0 or 1, not a word).
Use 1 when the answer is evasive or refuses to commit, 0 otherwise.
Do not add any other keys, prose, or markdown fences.
Example:
{"question": "Where was Albert Einstein born?", "noncommittal": 0}`,
	},
	{
		Name:     ContextVerdict,
		Keywords: [][]string{{"verdict"}, {"useful", "context"}},
		Fields: []Field{
			{Name: "reason", Type: TypeString, Required: true},
			{Name: "verdict", Type: TypeFlag, Required: true},
		},
		Instruction: `Return only a single JSON object with exactly the keys "reason" (string) and "verdict" (the integer 0 or 1, not a word).
Use 1 when the context was useful in arriving at the answer, 0 otherwise.
Do not add any other keys, prose, or markdown fences.
Example:
{"reason": "The context directly states the answer.", "verdict": 1}`,
	},
}

// passThrough is returned when no contract keywords match. It has no fields,
// so normalization degrades to an empty object.
var passThrough = &Contract{Name: PassThrough}

// Get returns the contract with the given name.
func Get(name Name) (*Contract, error) {
	if name == PassThrough {
		return passThrough, nil
	}
	for _, c := range Catalog {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("unknown contract %q", name)
}

// List returns the catalog in classification priority order.
func List() []*Contract {
	result := make([]*Contract, len(Catalog))
	copy(result, Catalog)
	return result
}

// FlagFields returns the names of top-level and nested flag fields,
// qualified as "field" or "list.field".
func (c *Contract) FlagFields() []string {
	if c == nil {
		return nil
	}
	var flags []string
	for _, f := range c.Fields {
		switch f.Type {
		case TypeFlag:
			flags = append(flags, f.Name)
		case TypeObjectList:
			for _, item := range f.Items {
				if item.Type == TypeFlag {
					flags = append(flags, f.Name+"."+item.Name)
				}
			}
		}
	}
	return flags
}

// IsPassThrough reports whether the contract is the no-match placeholder.
func (c *Contract) IsPassThrough() bool {
	return c == nil || c.Name == PassThrough
}

func (c *Contract) String() string {
	if c == nil {
		return string(PassThrough)
	}
	return string(c.Name)
}

// fieldNames is used in diagnostics and CLI listings.
func fieldNames(fields []Field) string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return strings.Join(names, ", ")
}

// Summary renders a short human-readable description of the contract shape.
func (c *Contract) Summary() string {
	if c.IsPassThrough() {
		return "pass-through (normalizes to {})"
	}
	return fieldNames(c.Fields)
}
