package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"orderdesk/internal/config"
	"orderdesk/internal/normalize"
)

// Client asks a chat-completion model to map raw extraction fields onto the
// canonical line-item names. It is strictly best-effort: any transport
// failure or malformed reply falls back to the manual synonym tables in
// normalize, which remain the guaranteed path.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.LLMTimeoutMs) * time.Millisecond},
	}
}

// Enabled reports whether an API key is configured at all.
func (c *Client) Enabled() bool {
	return strings.TrimSpace(c.cfg.OpenAIAPIKey) != ""
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Normalize returns enriched records, or the manual normalization of the
// input when enrichment cannot be used. It never fails.
func (c *Client) Normalize(ctx context.Context, items []normalize.Record) []normalize.Record {
	if !c.Enabled() {
		return normalize.Records(items)
	}
	enriched, err := c.call(ctx, items)
	if err != nil {
		return normalize.Records(items)
	}
	// Run the manual pass over the model's output too: it is idempotent on
	// canonical names and repairs anything the model left unmapped.
	return normalize.Records(enriched)
}

func (c *Client) call(ctx context.Context, items []normalize.Record) ([]normalize.Record, error) {
	itemsJSON, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.cfg.OpenAIModel,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a helpful assistant that processes and normalizes extracted sales order data. Your task is to identify Quantity, Unit Price, and Total fields and map them to standardized names."},
			{Role: "user", Content: mappingPrompt(string(itemsJSON))},
		},
		Temperature: 0,
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(c.cfg.OpenAIBaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.OpenAIAPIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("llm status %d: %s", resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("llm returned no choices")
	}

	return extractJSONArray(parsed.Choices[0].Message.Content)
}

// extractJSONArray pulls the first JSON array out of a model reply that may
// wrap it in prose or code fences.
func extractJSONArray(text string) ([]normalize.Record, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end <= start {
		return nil, errors.New("no JSON array in response")
	}

	var records []normalize.Record
	if err := json.Unmarshal([]byte(text[start:end+1]), &records); err != nil {
		return nil, err
	}
	return records, nil
}

func mappingPrompt(itemsJSON string) string {
	return fmt.Sprintf(`
I have extracted data from a sales order PDF. The data contains items with various field names.
Here's the extracted data:

%s

Please normalize this data to have consistent field names. I need the following fields for each item:
1. "Request Item" - The name/description of the item
2. "Quantity" - The number of items (may be in fields like "Quantity", "Qty", "Amount", etc.)
3. "Unit Price" - The price per unit (may be in fields like "Unit Price", "Price", "Unit Cost", etc.)
4. "Total" - The total cost for the line item (may be in fields like "Total", "Amount", "Line Total", etc.)

For each item, please:
1. Keep the "Request Item" field as is
2. Map the quantity field to "Quantity"
3. Map the unit price field to "Unit Price"
4. Map the total amount field to "Total"
5. If a field is missing but can be calculated (e.g., Total = Quantity * Unit Price), please calculate it
6. Keep any other fields that might be useful

Return the normalized data as a JSON array of objects with standardized field names.
The response should be ONLY the JSON array, with no additional text.
`, itemsJSON)
}
