package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Bulk operation types.
const (
	OpIndex  = "index"
	OpUpdate = "update"
)

// Action is the instruction header line of a bulk pair.
type Action struct {
	Op    string
	Index string
	ID    string
}

// IndexAction returns a header that indexes a new document; the backend
// assigns its ID.
func IndexAction(index string) Action {
	return Action{Op: OpIndex, Index: index}
}

// UpdateAction returns a header that updates document id in index.
func UpdateAction(index, id string) Action {
	return Action{Op: OpUpdate, Index: index, ID: id}
}

type actionTarget struct {
	Index string `json:"_index"`
	ID    string `json:"_id,omitempty"`
}

// MarshalJSON renders {"<op>":{"_index":...,"_id":...}}.
func (a Action) MarshalJSON() ([]byte, error) {
	if a.Op == "" {
		return nil, fmt.Errorf("bulk action has no operation")
	}
	return json.Marshal(map[string]actionTarget{a.Op: {Index: a.Index, ID: a.ID}})
}

// UnmarshalJSON parses a header line.
func (a *Action) UnmarshalJSON(data []byte) error {
	var raw map[string]actionTarget
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("bulk action must have exactly one operation, got %d", len(raw))
	}
	for op, target := range raw {
		*a = Action{Op: op, Index: target.Index, ID: target.ID}
	}
	return nil
}

// BulkItem is one header/payload pair.
type BulkItem struct {
	Action Action
	Source Document
}

// EncodeBulk renders items as newline-delimited JSON, header line first,
// with the trailing newline the bulk endpoint requires.
func EncodeBulk(items []BulkItem) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, item := range items {
		if err := enc.Encode(item.Action); err != nil {
			return nil, fmt.Errorf("failed to encode bulk header %d: %w", i, err)
		}
		if err := enc.Encode(item.Source); err != nil {
			return nil, fmt.Errorf("failed to encode bulk payload %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// ErrorCause is the error object attached to a failed bulk item.
type ErrorCause struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// BulkItemResult is the per-item outcome of a bulk request.
type BulkItemResult struct {
	Index  string      `json:"_index"`
	ID     string      `json:"_id"`
	Status int         `json:"status"`
	Result string      `json:"result,omitempty"`
	Error  *ErrorCause `json:"error,omitempty"`
}

// BulkResponse is the body of a bulk reply. Each entry of Items is keyed by
// the operation it answers.
type BulkResponse struct {
	Took   int64                        `json:"took"`
	Errors bool                         `json:"errors"`
	Items  []map[string]*BulkItemResult `json:"items"`
}

// Failed returns the items that carry an error.
func (r *BulkResponse) Failed() []*BulkItemResult {
	if r == nil {
		return nil
	}
	var failed []*BulkItemResult
	for _, entry := range r.Items {
		for _, res := range entry {
			if res != nil && res.Error != nil {
				failed = append(failed, res)
			}
		}
	}
	return failed
}
