package anthropic

import (
	"fmt"
	"strings"

	"github.com/evalgate/evalgate/internal/gateway/driver"
)

type messagesResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      *usage         `json:"usage,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func toDriverResponse(resp *messagesResponse) (*driver.Response, error) {
	if resp == nil || len(resp.Content) == 0 {
		return nil, fmt.Errorf("empty response content")
	}

	parts := make([]string, 0, len(resp.Content))
	for _, block := range resp.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no text content in response")
	}

	response := &driver.Response{
		Text:         strings.Join(parts, "\n"),
		FinishReason: resp.StopReason,
	}

	if resp.Usage != nil {
		response.Usage = &driver.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		}
	}

	return response, nil
}
