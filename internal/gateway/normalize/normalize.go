// Package normalize repairs raw backend text into contract-valid JSON.
//
// Clean never fails: whatever the backend produced, the return value parses
// under the requested contract. Unrepairable output degrades to Fallback,
// a minimal synthesized object with neutral placeholder values.
package normalize

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/evalgate/evalgate/internal/gateway/contract"
)

// Clean extracts, repairs, and coerces rawText into the contract's shape.
//
// Steps: strip markdown code fences, trim to the outermost bracketed span,
// repair common serialization defects, parse, then coerce every field into
// the contract's value domain. Any step that cannot recover falls through to
// Fallback. Clean is idempotent on already-clean input.
func Clean(rawText string, c *contract.Contract) string {
	// No matched contract means no field schema to conform to; the result is
	// always an empty object regardless of what the backend produced.
	if c.IsPassThrough() {
		return "{}"
	}

	parsed, ok := parseLenient(rawText)
	if !ok {
		return Fallback(c)
	}

	obj, ok := parsed.(map[string]any)
	if !ok {
		return Fallback(c)
	}
	return marshal(conform(obj, c))
}

// Fallback synthesizes a minimal object satisfying the contract's required
// fields: empty strings, empty lists, and neutral flag values.
func Fallback(c *contract.Contract) string {
	if c.IsPassThrough() {
		return "{}"
	}
	return marshal(conform(map[string]any{}, c))
}

// parseLenient attempts to parse rawText as JSON, applying increasingly
// aggressive repairs between attempts.
func parseLenient(rawText string) (any, bool) {
	candidate := bracketSpan(stripFences(rawText))
	if candidate == "" {
		return nil, false
	}

	var parsed any
	if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
		return parsed, true
	}

	repaired := repair(candidate)
	if err := json.Unmarshal([]byte(repaired), &parsed); err == nil {
		return parsed, true
	}
	return nil, false
}

// stripFences removes markdown code-fence delimiters around the payload.
// Models frequently wrap JSON in ```json blocks despite instructions.
func stripFences(text string) string {
	lines := strings.Split(text, "\n")
	var fenced []string
	inBlock := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !inBlock && (trimmed == "```json" || trimmed == "```") {
			inBlock = true
			continue
		}
		if inBlock && trimmed == "```" {
			break
		}
		if inBlock {
			fenced = append(fenced, line)
		}
	}
	if len(fenced) > 0 {
		return strings.TrimSpace(strings.Join(fenced, "\n"))
	}

	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// bracketSpan trims to the outermost {...} or [...] span, discarding prose
// before and after the payload. Returns "" when no bracket pair exists.
func bracketSpan(text string) string {
	objStart := strings.IndexByte(text, '{')
	arrStart := strings.IndexByte(text, '[')

	start, closer := objStart, byte('}')
	if start == -1 || (arrStart != -1 && arrStart < start) {
		start, closer = arrStart, ']'
	}
	if start == -1 {
		return ""
	}

	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return ""
	}
	return text[start : end+1]
}

var (
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	pythonTokenRe   = regexp.MustCompile(`\b(True|False|None)\b`)
	smartQuotes     = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'")
)

// repair fixes the defect classes observed in practice: trailing commas,
// typographic quotes, Python literal tokens, and single-quoted payloads.
func repair(text string) string {
	text = smartQuotes.Replace(text)
	text = trailingCommaRe.ReplaceAllString(text, "$1")
	text = pythonTokenRe.ReplaceAllStringFunc(text, func(tok string) string {
		switch tok {
		case "True":
			return "true"
		case "False":
			return "false"
		default:
			return "null"
		}
	})
	// Single-quoted JSON (a Python repr, typically) only when the text uses
	// no double quotes at all; mixing would corrupt string contents.
	if !strings.Contains(text, `"`) && strings.Contains(text, `'`) {
		text = strings.ReplaceAll(text, `'`, `"`)
	}
	return text
}

// conform rebuilds the object with exactly the contract's fields, coercing
// present values into their domains and synthesizing absent required ones.
// Unknown keys are dropped: the harness parser tolerates nothing else.
func conform(obj map[string]any, c *contract.Contract) map[string]any {
	result := make(map[string]any, len(c.Fields))
	for _, f := range c.Fields {
		value, present := obj[f.Name]
		switch f.Type {
		case contract.TypeString:
			result[f.Name] = coerceString(value)
		case contract.TypeFlag:
			if present {
				result[f.Name] = coerceFlag(value, f.Name)
			} else {
				result[f.Name] = neutralFlag(f.Name)
			}
		case contract.TypeObjectList:
			result[f.Name] = conformList(value, f.Items)
		}
	}
	return result
}

func conformList(value any, items []contract.Field) []map[string]any {
	list, _ := value.([]any)
	result := make([]map[string]any, 0, len(list))
	for _, element := range list {
		switch typed := element.(type) {
		case map[string]any:
			result = append(result, conformItem(typed, items))
		case string:
			// A bare string stands in for the item's first string field;
			// remaining fields get neutral values.
			wrapped := map[string]any{}
			for _, f := range items {
				if f.Type == contract.TypeString {
					wrapped[f.Name] = typed
					break
				}
			}
			result = append(result, conformItem(wrapped, items))
		}
	}
	return result
}

func conformItem(obj map[string]any, items []contract.Field) map[string]any {
	result := make(map[string]any, len(items))
	for _, f := range items {
		value, present := obj[f.Name]
		switch f.Type {
		case contract.TypeString:
			result[f.Name] = coerceString(value)
		case contract.TypeFlag:
			if present {
				result[f.Name] = coerceFlag(value, f.Name)
			} else {
				result[f.Name] = neutralFlag(f.Name)
			}
		}
	}
	return result
}

// coerceFlag maps the boolean encodings models actually emit onto the 0|1
// integer domain.
func coerceFlag(value any, field string) int {
	switch typed := value.(type) {
	case bool:
		if typed {
			return 1
		}
		return 0
	case float64:
		if typed != 0 {
			return 1
		}
		return 0
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "1", "yes", "y", "true":
			return 1
		case "0", "no", "n", "false":
			return 0
		}
	}
	return neutralFlag(field)
}

// neutralFlag picks the value that cannot award unearned credit when the
// real verdict is unknown. An unknown noncommittal answer is treated as
// noncommittal; every other flag defaults to a negative verdict.
func neutralFlag(field string) int {
	if field == "noncommittal" {
		return 1
	}
	return 0
}

func coerceString(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case nil:
		return ""
	case float64, bool:
		data, _ := json.Marshal(typed)
		return string(data)
	default:
		return ""
	}
}

func marshal(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return "{}"
	}
	return string(data)
}
