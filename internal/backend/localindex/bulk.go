package localindex

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/google/uuid"

	"github.com/Aman-CERP/idxstore/internal/backend"
)

// bulkWriter applies bulk items to per-index batches. Documents staged
// earlier in the same request are visible to later updates.
type bulkWriter struct {
	b       *Backend
	batches map[string]*bleve.Batch
	indexes map[string]bleve.Index
	staged  map[string]map[string]map[string]any
}

func newBulkWriter(b *Backend) *bulkWriter {
	return &bulkWriter{
		b:       b,
		batches: make(map[string]*bleve.Batch),
		indexes: make(map[string]bleve.Index),
		staged:  make(map[string]map[string]map[string]any),
	}
}

func itemError(res *backend.BulkItemResult, status int, typ, reason string) *backend.BulkItemResult {
	res.Status = status
	res.Error = &backend.ErrorCause{Type: typ, Reason: reason}
	return res
}

func (w *bulkWriter) apply(item backend.BulkItem) *backend.BulkItemResult {
	a := item.Action
	res := &backend.BulkItemResult{Index: a.Index, ID: a.ID}

	switch a.Op {
	case backend.OpIndex:
		idx, err := w.index(a.Index, true)
		if err != nil {
			return itemError(res, statusOf(err), typeOf(err), reasonOf(err))
		}
		if res.ID == "" {
			res.ID = uuid.NewString()
		}
		_, existed, err := w.lookup(a.Index, idx, res.ID)
		if err != nil {
			return itemError(res, http.StatusInternalServerError, "exception", err.Error())
		}
		if err := w.stage(a.Index, idx, res.ID, item.Source); err != nil {
			return itemError(res, http.StatusBadRequest, "document_parsing_exception", err.Error())
		}
		if existed {
			res.Status, res.Result = http.StatusOK, "updated"
		} else {
			res.Status, res.Result = http.StatusCreated, "created"
		}
		return res

	case backend.OpUpdate:
		if a.ID == "" {
			return itemError(res, http.StatusBadRequest, "action_request_validation_exception", "id is missing")
		}
		idx, err := w.index(a.Index, false)
		if err != nil {
			return itemError(res, statusOf(err), typeOf(err), reasonOf(err))
		}
		if _, ok := item.Source["script"]; ok {
			return itemError(res, http.StatusBadRequest, "illegal_argument_exception",
				"script updates are not supported by the embedded backend")
		}
		partial, ok := asObject(item.Source["doc"])
		if !ok {
			return itemError(res, http.StatusBadRequest, "action_request_validation_exception", "script or doc is missing")
		}
		current, found, err := w.lookup(a.Index, idx, a.ID)
		if err != nil {
			return itemError(res, http.StatusInternalServerError, "exception", err.Error())
		}
		if !found {
			return itemError(res, http.StatusNotFound, "document_missing_exception",
				fmt.Sprintf("[%s]: document missing", a.ID))
		}
		if err := w.stage(a.Index, idx, a.ID, mergeDocuments(current, partial)); err != nil {
			return itemError(res, http.StatusBadRequest, "document_parsing_exception", err.Error())
		}
		res.Status, res.Result = http.StatusOK, "updated"
		return res

	default:
		return itemError(res, http.StatusBadRequest, "illegal_argument_exception",
			fmt.Sprintf("unknown bulk operation [%s]", a.Op))
	}
}

// index resolves the target index, creating it for index operations the
// way Elasticsearch auto-creates on write.
func (w *bulkWriter) index(name string, create bool) (bleve.Index, error) {
	if idx, ok := w.indexes[name]; ok {
		return idx, nil
	}

	idx, ok, err := w.b.lookupLocked(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		if !create {
			return nil, indexNotFound(name)
		}
		if idx, err = w.b.createLocked(name); err != nil {
			return nil, err
		}
	}

	w.indexes[name] = idx
	w.batches[name] = idx.NewBatch()
	return idx, nil
}

// lookup returns the current source of id, preferring documents staged in
// this request over what is committed.
func (w *bulkWriter) lookup(index string, idx bleve.Index, id string) (map[string]any, bool, error) {
	if doc, ok := w.staged[index][id]; ok {
		return doc, true, nil
	}

	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{id}))
	req.Fields = []string{sourceField}
	res, err := idx.Search(req)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load document %s: %w", id, err)
	}
	if len(res.Hits) == 0 {
		return nil, false, nil
	}

	raw, _ := res.Hits[0].Fields[sourceField].(string)
	doc, err := decodeSource(raw)
	if err != nil {
		return nil, false, fmt.Errorf("stored source of %s is corrupt: %w", id, err)
	}
	return doc, true, nil
}

func (w *bulkWriter) stage(index string, idx bleve.Index, id string, src map[string]any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return err
	}
	// bleve maps float64 as numeric; json.Number would be indexed as text.
	var indexable map[string]any
	if err := json.Unmarshal(raw, &indexable); err != nil {
		return err
	}
	if indexable == nil {
		indexable = make(map[string]any, 1)
	}
	indexable[sourceField] = string(raw)

	doc, err := decodeSource(string(raw))
	if err != nil {
		return err
	}

	if err := w.batches[index].Index(id, indexable); err != nil {
		return err
	}

	if w.staged[index] == nil {
		w.staged[index] = make(map[string]map[string]any)
	}
	w.staged[index][id] = doc
	return nil
}

// commit executes every non-empty batch.
func (w *bulkWriter) commit() error {
	for name, batch := range w.batches {
		if batch.Size() == 0 {
			continue
		}
		if err := w.indexes[name].Batch(batch); err != nil {
			return fmt.Errorf("failed to execute batch for %s: %w", name, err)
		}
	}
	return nil
}

// decodeSource parses a stored source, keeping numbers exact.
func decodeSource(raw string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func asObject(v any) (map[string]any, bool) {
	switch o := v.(type) {
	case map[string]any:
		return o, true
	case backend.Document:
		return o, true
	}
	return nil, false
}

// mergeDocuments applies partial onto base. Nested objects merge
// recursively; every other value replaces what was there.
func mergeDocuments(base, partial map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(partial))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range partial {
		if po, ok := asObject(v); ok {
			if bo, ok := asObject(out[k]); ok {
				out[k] = mergeDocuments(bo, po)
				continue
			}
		}
		out[k] = v
	}
	return out
}

func statusOf(err error) int {
	if re, ok := err.(*backend.ResponseError); ok {
		return re.Status
	}
	return http.StatusInternalServerError
}

func typeOf(err error) string {
	if re, ok := err.(*backend.ResponseError); ok {
		return re.Type
	}
	return "exception"
}

func reasonOf(err error) string {
	if re, ok := err.(*backend.ResponseError); ok {
		return re.Reason
	}
	return err.Error()
}
