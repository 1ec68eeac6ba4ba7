// Package responsestore implements the Response Store: a persistent map of
// responseId -> (Response, inputItems[]) used to thread multi-turn
// conversations via previous_response_id, per SPEC_FULL §4.9.
//
// Grounded on the teacher's pkg/registry/registry.go for the read-mostly,
// mutex-guarded-map shape; there is no direct teacher analogue for response
// persistence (the teacher has no Responses-API server), so the pagination
// semantics (after/before/limit/order, has_more) are built fresh from
// SPEC_FULL §4.9.
package responsestore

import (
	"fmt"
	"sync"

	"github.com/masaic-ai-platform/gateway/pkg/responsetypes"
)

// Record is the ResponseRecord data-model entry.
type Record struct {
	Response   responsetypes.Response
	InputItems []responsetypes.InputItem
	CreatedAt  int64
}

// Store is a thread-safe in-memory Response Store.
type Store struct {
	mu      sync.RWMutex
	records map[string]Record
}

// New builds an empty Store.
func New() *Store {
	return &Store{records: map[string]Record{}}
}

// Put inserts or replaces the record for response.ID.
func (s *Store) Put(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Response.ID] = rec
}

// Get returns the record for id, or false if absent.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}

// Delete removes id's record. Idempotent: deleting an absent id is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
}

// Order directions for ListInputItems.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// ListInputItemsParams configures a paginated input-item listing.
type ListInputItemsParams struct {
	Limit  int    // <= 0 means 20; values above 100 are capped at 100
	Order  string // "asc" | "desc", default "asc"
	After  string // item id; excludes its referent
	Before string // item id; excludes its referent
}

// ListInputItemsResult is one page of input items.
type ListInputItemsResult struct {
	Items   []responsetypes.InputItem
	HasMore bool
}

// ListInputItems returns a page of responseId's input items per
// SPEC_FULL §4.9: sorted by created order in the requested direction, with
// after/before excluding their referents and has_more computed relative to
// the requested order direction.
func (s *Store) ListInputItems(responseID string, params ListInputItemsParams) (ListInputItemsResult, error) {
	rec, ok := s.Get(responseID)
	if !ok {
		return ListInputItemsResult{}, fmt.Errorf("response not found: %s", responseID)
	}

	order := params.Order
	if order == "" {
		order = OrderAsc
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	items := make([]responsetypes.InputItem, len(rec.InputItems))
	copy(items, rec.InputItems)
	// InputItems are stored in insertion (ascending, created) order.
	if order == OrderDesc {
		reversed := make([]responsetypes.InputItem, len(items))
		for i, it := range items {
			reversed[len(items)-1-i] = it
		}
		items = reversed
	}

	if params.After != "" {
		items = sliceAfter(items, params.After)
	}
	if params.Before != "" {
		items = sliceBefore(items, params.Before)
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	return ListInputItemsResult{Items: items, HasMore: hasMore}, nil
}

func sliceAfter(items []responsetypes.InputItem, id string) []responsetypes.InputItem {
	for i, it := range items {
		if it.ID == id {
			return items[i+1:]
		}
	}
	return items
}

func sliceBefore(items []responsetypes.InputItem, id string) []responsetypes.InputItem {
	for i, it := range items {
		if it.ID == id {
			return items[:i]
		}
	}
	return items
}
