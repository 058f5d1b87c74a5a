package contract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyStatementVerdicts(t *testing.T) {
	c := Classify("For each statement below, give a verdict on whether it is supported by the context.")
	require.Equal(t, StatementVerdicts, c.Name)
}

func TestClassifyCorrectnessSetsWinsOverStatementVerdicts(t *testing.T) {
	// Correctness prompts also talk about statements; the TP/FP/FN keywords
	// must take priority.
	c := Classify("Classify each statement into TP, FP or FN and give a verdict with a reason.")
	require.Equal(t, CorrectnessSets, c.Name)
}

func TestClassifyAttributionList(t *testing.T) {
	c := Classify("Decide whether each statement can be attributed to the given context.")
	require.Equal(t, AttributionList, c.Name)
}

func TestClassifyQuestionNoncommittal(t *testing.T) {
	c := Classify("Generate a question for the answer and state if the answer is noncommittal.")
	require.Equal(t, QuestionNoncommittal, c.Name)
}

func TestClassifyContextVerdict(t *testing.T) {
	c := Classify("Verify if the context was useful in arriving at the answer. Give a verdict.")
	require.Equal(t, ContextVerdict, c.Name)
}

func TestClassifyNoMatchIsPassThrough(t *testing.T) {
	c := Classify("Summarize the following paragraph in one sentence.")
	require.True(t, c.IsPassThrough())
}

func TestClassifyShortKeywordsNeedWordBoundaries(t *testing.T) {
	// "output" contains "tp" as a substring; that must not classify as
	// correctness. Without other keywords this is pass-through.
	c := Classify("Write the output exactly as shown.")
	require.True(t, c.IsPassThrough())
}

func TestClassifyPluralKeywordForms(t *testing.T) {
	c := Classify("Return verdicts for the statements you extracted.")
	require.Equal(t, StatementVerdicts, c.Name)
}
