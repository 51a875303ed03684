package rerank

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/lookbook/internal/domain"
)

// itemID accepts both "4" and 4.
type itemID int

func (id *itemID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err //nolint:wrapcheck // surfaced through the response decode error
		}
	} else {
		var num json.Number
		if err := json.Unmarshal(b, &num); err != nil {
			return err //nolint:wrapcheck // surfaced through the response decode error
		}
		s = num.String()
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("id %s is not an integer", b)
	}
	*id = itemID(v)
	return nil
}

type response struct {
	Results *[]struct {
		ID *itemID `json:"id"`
	} `json:"results"`
}

// parseResponse decodes the model answer into ids in the order given.
func parseResponse(content string) ([]int, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty response", domain.ErrRerankFormat)
	}
	var resp response
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRerankFormat, err)
	}
	if resp.Results == nil {
		return nil, fmt.Errorf("%w: missing \"results\"", domain.ErrRerankFormat)
	}
	ids := make([]int, 0, len(*resp.Results))
	for i, r := range *resp.Results {
		if r.ID == nil {
			return nil, fmt.Errorf("%w: results[%d] has no id", domain.ErrRerankFormat, i)
		}
		ids = append(ids, int(*r.ID))
	}
	return ids, nil
}

// selection is the outcome of validating ids against the candidate set.
type selection struct {
	ids        []int
	unknown    []int
	duplicates []int
}

// selectIDs keeps the first n ids that belong to cands, dropping unknown and
// repeated ids. Fewer than n survivors is a format error.
func selectIDs(ids []int, cands []domain.Candidate, n int) (selection, error) {
	allowed := make(map[int]struct{}, len(cands))
	for _, c := range cands {
		allowed[c.ID] = struct{}{}
	}

	var sel selection
	seen := make(map[int]struct{}, n)
	for _, id := range ids {
		if len(sel.ids) == n {
			break
		}
		if _, ok := allowed[id]; !ok {
			sel.unknown = append(sel.unknown, id)
			continue
		}
		if _, dup := seen[id]; dup {
			sel.duplicates = append(sel.duplicates, id)
			continue
		}
		seen[id] = struct{}{}
		sel.ids = append(sel.ids, id)
	}
	if len(sel.ids) < n {
		return sel, fmt.Errorf("%w: %d valid ids, want %d (unknown %v, duplicate %v)",
			domain.ErrRerankFormat, len(sel.ids), n, sel.unknown, sel.duplicates)
	}
	return sel, nil
}
