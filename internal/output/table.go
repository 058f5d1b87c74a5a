package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/evalgate/evalgate/internal/gateway"
	"github.com/evalgate/evalgate/internal/gateway/contract"
)

// RateLimitRow is one provider's limiter counters for display.
type RateLimitRow struct {
	Provider         string `json:"provider"`
	TotalCalls       int64  `json:"total_calls"`
	SuccessCalls     int64  `json:"success_calls"`
	RateLimitedCalls int64  `json:"rate_limited_calls"`
	TotalWaitMS      int64  `json:"total_wait_ms"`
}

// Contracts renders the contract catalog in the requested format.
func Contracts(format Format, contracts []*contract.Contract) (string, error) {
	if format == FormatJSON {
		type entry struct {
			Name     string `json:"name"`
			Fields   string `json:"fields"`
			Keywords int    `json:"keyword_groups"`
		}
		entries := make([]entry, 0, len(contracts))
		for _, c := range contracts {
			entries = append(entries, entry{
				Name:     string(c.Name),
				Fields:   c.Summary(),
				Keywords: len(c.Keywords),
			})
		}
		return marshalJSON(entries)
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Contract", "Fields", "Keyword Groups"})
	for _, c := range contracts {
		t.AppendRow(table.Row{string(c.Name), c.Summary(), formatKeywords(c.Keywords)})
	}
	return render(t, format), nil
}

// RateLimits renders per-provider limiter counters in the requested format.
func RateLimits(format Format, rows []RateLimitRow) (string, error) {
	if format == FormatJSON {
		return marshalJSON(rows)
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Provider", "Calls", "Success", "Rate Limited", "Total Wait"})
	var calls, success, limited int64
	for _, row := range rows {
		t.AppendRow(table.Row{
			row.Provider,
			row.TotalCalls,
			row.SuccessCalls,
			row.RateLimitedCalls,
			(time.Duration(row.TotalWaitMS) * time.Millisecond).String(),
		})
		calls += row.TotalCalls
		success += row.SuccessCalls
		limited += row.RateLimitedCalls
	}
	if len(rows) > 1 {
		t.AppendFooter(table.Row{"total", calls, success, limited, ""})
	}
	return render(t, format), nil
}

// Completion renders a gateway result. Table and markdown formats print the
// normalized text followed by a metadata table; JSON emits the full result.
func Completion(format Format, res *gateway.Result) (string, error) {
	if res == nil {
		return "", nil
	}
	if format == FormatJSON {
		return marshalJSON(res)
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendRow(table.Row{"Contract", string(res.Contract)})
	t.AppendRow(table.Row{"Provider", displayProvider(res)})
	t.AppendRow(table.Row{"Attempts", res.Attempts})
	t.AppendRow(table.Row{"Fallback", res.Fallback})
	if res.Waited > 0 {
		t.AppendRow(table.Row{"Waited", res.Waited.Round(time.Millisecond).String()})
	}
	if res.Usage != nil {
		t.AppendRow(table.Row{"Tokens", fmt.Sprintf("%d prompt, %d completion", res.Usage.PromptTokens, res.Usage.CompletionTokens)})
	}
	return res.Text + "\n\n" + render(t, format), nil
}

func displayProvider(res *gateway.Result) string {
	if res.Provider == "" {
		return "(none)"
	}
	if res.Model == "" {
		return res.Provider
	}
	return res.Provider + " (" + res.Model + ")"
}

func formatKeywords(groups [][]string) string {
	if len(groups) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(groups))
	for _, group := range groups {
		parts = append(parts, strings.Join(group, "+"))
	}
	return strings.Join(parts, ", ")
}

func render(t table.Writer, format Format) string {
	if format == FormatMarkdown {
		return t.RenderMarkdown()
	}
	return t.Render()
}
