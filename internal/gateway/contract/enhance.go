package contract

import "strings"

// Enhance classifies the prompt and appends the matched contract's
// formatting instruction block. Pass-through prompts are returned unchanged.
func Enhance(prompt string) (string, *Contract) {
	c := Classify(prompt)
	return EnhanceFor(c, prompt), c
}

// EnhanceFor appends the contract's instruction block to the prompt.
//
// The block restates the exact field names and value domains (flags as 0/1
// integers, not words) plus a worked example. Backends follow explicit shape
// instructions far more reliably than they infer them from the metric prose,
// and the harness parser accepts nothing but the exact shape.
func EnhanceFor(c *Contract, prompt string) string {
	if c.IsPassThrough() || strings.TrimSpace(c.Instruction) == "" {
		return prompt
	}
	return strings.TrimRight(prompt, "\n") + "\n\n" + c.Instruction + "\n"
}
