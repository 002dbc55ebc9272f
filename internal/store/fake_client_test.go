package store

import (
	"context"

	"github.com/Aman-CERP/idxstore/internal/backend"
)

// fakeClient records every call and answers from programmable state.
type fakeClient struct {
	indexes map[string]bool

	existsErr error
	createErr error
	deleteErr error
	bulkErr   error
	searchErr error

	bulkResp  *backend.BulkResponse
	searchRes backend.SearchResult

	createCalls []string
	deleteCalls []string
	bulkCalls   [][]backend.BulkItem
	searches    []searchCall
	closed      bool
}

type searchCall struct {
	index      string
	query      backend.Query
	size       int
	searchType string
}

func newFakeClient() *fakeClient {
	return &fakeClient{indexes: make(map[string]bool)}
}

func (f *fakeClient) IndexExists(_ context.Context, name string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.indexes[name], nil
}

func (f *fakeClient) CreateIndex(_ context.Context, name string) error {
	f.createCalls = append(f.createCalls, name)
	if f.createErr != nil {
		return f.createErr
	}
	f.indexes[name] = true
	return nil
}

func (f *fakeClient) DeleteIndex(_ context.Context, name string) error {
	f.deleteCalls = append(f.deleteCalls, name)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.indexes, name)
	return nil
}

func (f *fakeClient) Bulk(_ context.Context, items []backend.BulkItem) (*backend.BulkResponse, error) {
	sent := make([]backend.BulkItem, len(items))
	copy(sent, items)
	f.bulkCalls = append(f.bulkCalls, sent)
	if f.bulkErr != nil {
		return nil, f.bulkErr
	}
	if f.bulkResp != nil {
		return f.bulkResp, nil
	}
	return &backend.BulkResponse{}, nil
}

func (f *fakeClient) Search(_ context.Context, index string, query backend.Query, size int, searchType string) (backend.SearchResult, error) {
	f.searches = append(f.searches, searchCall{index: index, query: query, size: size, searchType: searchType})
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchRes, nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

var _ backend.Client = (*fakeClient)(nil)
