package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evalgate/evalgate/internal/gateway/contract"
)

func mustContract(t *testing.T, name contract.Name) *contract.Contract {
	t.Helper()
	c, err := contract.Get(name)
	require.NoError(t, err)
	return c
}

func TestCleanCoercesBooleanVerdicts(t *testing.T) {
	c := mustContract(t, contract.StatementVerdicts)
	out := Clean(`{"statements":[{"statement":"x","verdict":true}]}`, c)
	require.JSONEq(t, `{"statements":[{"statement":"x","verdict":1}]}`, out)
}

func TestCleanCoercesWordFlags(t *testing.T) {
	c := mustContract(t, contract.ContextVerdict)

	out := Clean(`{"reason":"r","verdict":"yes"}`, c)
	require.JSONEq(t, `{"reason":"r","verdict":1}`, out)

	out = Clean(`{"reason":"r","verdict":false}`, c)
	require.JSONEq(t, `{"reason":"r","verdict":0}`, out)

	out = Clean(`{"reason":"r","verdict":"no"}`, c)
	require.JSONEq(t, `{"reason":"r","verdict":0}`, out)
}

func TestCleanStripsCodeFences(t *testing.T) {
	c := mustContract(t, contract.ContextVerdict)
	raw := "```json\n{\"reason\": \"ok\", \"verdict\": 1}\n```"
	require.JSONEq(t, `{"reason":"ok","verdict":1}`, Clean(raw, c))
}

func TestCleanTrimsSurroundingProse(t *testing.T) {
	c := mustContract(t, contract.ContextVerdict)
	raw := `Sure, here is the JSON you asked for: {"reason":"ok","verdict":1} Hope that helps!`
	require.JSONEq(t, `{"reason":"ok","verdict":1}`, Clean(raw, c))
}

func TestCleanRepairsTrailingCommas(t *testing.T) {
	c := mustContract(t, contract.StatementVerdicts)
	raw := `{"statements":[{"statement":"x","verdict":1},]}`
	require.JSONEq(t, `{"statements":[{"statement":"x","verdict":1}]}`, Clean(raw, c))
}

func TestCleanRepairsPythonLiterals(t *testing.T) {
	c := mustContract(t, contract.StatementVerdicts)
	raw := `{"statements":[{"statement":"x","verdict":True}]}`
	require.JSONEq(t, `{"statements":[{"statement":"x","verdict":1}]}`, Clean(raw, c))
}

func TestCleanRepairsSingleQuotedPayload(t *testing.T) {
	c := mustContract(t, contract.ContextVerdict)
	raw := `{'reason': 'ok', 'verdict': 1}`
	require.JSONEq(t, `{"reason":"ok","verdict":1}`, Clean(raw, c))
}

func TestCleanUnparseableFallsBack(t *testing.T) {
	c := mustContract(t, contract.ContextVerdict)
	out := Clean("I cannot answer.", c)

	var decoded struct {
		Reason  string `json:"reason"`
		Verdict int    `json:"verdict"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Contains(t, []int{0, 1}, decoded.Verdict)
}

func TestCleanDropsUnknownKeys(t *testing.T) {
	c := mustContract(t, contract.ContextVerdict)
	out := Clean(`{"reason":"ok","verdict":1,"confidence":0.9}`, c)
	require.JSONEq(t, `{"reason":"ok","verdict":1}`, out)
}

func TestCleanSynthesizesMissingRequiredFields(t *testing.T) {
	c := mustContract(t, contract.QuestionNoncommittal)
	out := Clean(`{"question":"Where was he born?"}`, c)
	// Unknown noncommittal state must not award credit.
	require.JSONEq(t, `{"question":"Where was he born?","noncommittal":1}`, out)
}

func TestCleanWrapsBareStringListElements(t *testing.T) {
	c := mustContract(t, contract.CorrectnessSets)
	out := Clean(`{"TP":["The sky is blue."],"FP":[],"FN":[]}`, c)
	require.JSONEq(t, `{"TP":[{"statement":"The sky is blue.","reason":""}],"FP":[],"FN":[]}`, out)
}

func TestCleanIdempotent(t *testing.T) {
	inputs := map[contract.Name]string{
		contract.StatementVerdicts:    `{"statements":[{"statement":"x","verdict":"yes"}]}`,
		contract.QuestionNoncommittal: `{"question":"q","noncommittal":true}`,
		contract.ContextVerdict:       "```json\n{\"reason\":\"r\",\"verdict\":0}\n```",
		contract.AttributionList:      `{"classifications":[{"statement":"s","reason":"r","attributed":"no"}]}`,
		contract.CorrectnessSets:      `{"TP":[{"statement":"s","reason":"r"}],"FP":[],"FN":[]}`,
	}
	for name, raw := range inputs {
		c := mustContract(t, name)
		once := Clean(raw, c)
		require.JSONEq(t, once, Clean(once, c), "contract %s", name)
	}
}

func TestFallbackParsesUnderEveryContract(t *testing.T) {
	for _, c := range contract.List() {
		out := Fallback(c)
		var decoded map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &decoded), "contract %s", c.Name)
		for _, f := range c.Fields {
			if !f.Required {
				continue
			}
			require.Contains(t, decoded, f.Name, "contract %s", c.Name)
			if f.Type == contract.TypeFlag {
				flag, ok := decoded[f.Name].(float64)
				require.True(t, ok, "contract %s field %s", c.Name, f.Name)
				require.Contains(t, []float64{0, 1}, flag)
			}
		}
	}
}

func TestFallbackPassThroughIsEmptyObject(t *testing.T) {
	c := mustContract(t, contract.PassThrough)
	require.Equal(t, "{}", Fallback(c))
}

func TestCleanPassThroughIsEmptyObject(t *testing.T) {
	c := mustContract(t, contract.PassThrough)
	// With no matched contract there is no schema to conform to, so even a
	// parseable payload collapses to an empty object.
	require.Equal(t, "{}", Clean(`{"anything": 42}`, c))
	require.Equal(t, "{}", Clean("not json at all", c))
}
