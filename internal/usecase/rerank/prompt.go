package rerank

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/lookbook/internal/domain"
)

const systemPromptTemplate = `You are a fashion recommendation engine designed to help users discover relevant products based on a natural-language query.

TASK:
From the provided list of stock items (each containing an "id" and a fashion-related "description"), select the top %[1]d items that best match the user's intent.

INPUT FORMAT:
You will receive a JSON object with:
- "stock_items": a list of fashion product entries, each with:
  - "id": a unique product identifier
  - "description": a structured string such as "solid black jersey top with narrow shoulder straps"
- "user_query": a rephrased, natural-language description of what the user is looking for

Example:
{
  "stock_items": [
    {"id": "4", "description": "solid black fitted top in soft stretch jersey with a v-neck and short sleeves"},
    {"id": "15684", "description": "solid dark grey long-sleeved jumper in a rib knit with a slightly wider neckline"}
  ],
  "user_query": "I'm looking for a polo shirt that complements my black shoes. Ideally, it should be in a neutral color like gray or navy, perfect for casual outings."
}

RULES:
- Select exactly %[1]d items from the "stock_items" list.
- Use only the "id" values of the selected items in your output.
- Never repeat an id and never invent one.
- Rank by relevance to the user's preferences (color, style, season, usage), most relevant first.

OUTPUT FORMAT:
Return a JSON object like this:
{
  "results": [
    {"id": "4"},
    {"id": "1485"}
  ]
}
No additional text or explanation is allowed outside this JSON object.`

const userPromptTemplate = `Analyze these fashion items and user query:

%s

Return recommendations in the exact output format.`

type stockItem struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

type promptInput struct {
	StockItems []stockItem `json:"stock_items"`
	UserQuery  string      `json:"user_query"`
}

func buildMessages(intent domain.NormalizedIntent, cands []domain.Candidate, n int) ([]domain.Message, error) {
	in := promptInput{StockItems: make([]stockItem, len(cands)), UserQuery: intent.String()}
	for i, c := range cands {
		in.StockItems[i] = stockItem{ID: strconv.Itoa(c.ID), Description: c.Content}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(in); err != nil {
		return nil, fmt.Errorf("encode rerank input: %w", err)
	}

	return []domain.Message{
		{Role: domain.RoleSystem, Content: fmt.Sprintf(systemPromptTemplate, n)},
		{Role: domain.RoleUser, Content: fmt.Sprintf(userPromptTemplate, bytes.TrimSpace(buf.Bytes()))},
	}, nil
}
