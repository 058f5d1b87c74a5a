package contract

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetKnownContracts(t *testing.T) {
	for _, name := range []Name{StatementVerdicts, QuestionNoncommittal, ContextVerdict, AttributionList, CorrectnessSets} {
		c, err := Get(name)
		require.NoError(t, err)
		require.Equal(t, name, c.Name)
		require.NotEmpty(t, c.Fields)
	}
}

func TestGetUnknownContract(t *testing.T) {
	_, err := Get("nonsense")
	require.Error(t, err)
}

func TestGetPassThrough(t *testing.T) {
	c, err := Get(PassThrough)
	require.NoError(t, err)
	require.True(t, c.IsPassThrough())
	require.Empty(t, c.Fields)
}

func TestInstructionExamplesParseUnderOwnContract(t *testing.T) {
	// Every worked example embedded in an instruction block must itself be
	// valid JSON; a malformed example teaches the model a malformed shape.
	for _, c := range Catalog {
		lines := strings.Split(c.Instruction, "\n")
		example := lines[len(lines)-1]
		var decoded map[string]any
		require.NoError(t, json.Unmarshal([]byte(example), &decoded), "contract %s", c.Name)
		for _, f := range c.Fields {
			if f.Required {
				require.Contains(t, decoded, f.Name, "contract %s", c.Name)
			}
		}
	}
}

func TestFlagFieldsQualifiedNames(t *testing.T) {
	c, err := Get(AttributionList)
	require.NoError(t, err)
	require.Equal(t, []string{"classifications.attributed"}, c.FlagFields())

	c, err = Get(ContextVerdict)
	require.NoError(t, err)
	require.Equal(t, []string{"verdict"}, c.FlagFields())
}

func TestEnhanceAppendsInstructionOnce(t *testing.T) {
	prompt := "For each statement give a verdict.\n"
	enhanced, c := Enhance(prompt)
	require.Equal(t, StatementVerdicts, c.Name)
	require.True(t, strings.HasPrefix(enhanced, "For each statement give a verdict."))
	require.Equal(t, 1, strings.Count(enhanced, `one key "statements"`))
	require.Contains(t, enhanced, "the integer 0 or 1")
}

func TestEnhancePassThroughUnchanged(t *testing.T) {
	prompt := "Summarize the paragraph."
	enhanced, c := Enhance(prompt)
	require.True(t, c.IsPassThrough())
	require.Equal(t, prompt, enhanced)
}
