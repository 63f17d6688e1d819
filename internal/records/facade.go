// Package records is the paginated query surface over stored student
// records: listing/search with stale-result protection, single-record
// operations, spreadsheet export, and aggregate statistics.
//
// Two reads deliberately degrade to a zero value when the backend is
// unreachable — search and statistics — so the listing screens never
// block on backend absence. Every other operation is a direct user
// intent and propagates its failure. Keep that asymmetry; do not
// generalize it.
package records

import (
	"context"
	"errors"
	"sync"

	"docuscan/internal/gateway"
	"docuscan/internal/model"
)

// ErrStaleResult marks a search response that was superseded by a later
// call before it resolved. Its data is discarded, never displayed.
var ErrStaleResult = errors.New("records: result superseded by a newer search")

// Facade runs queries through the gateway. Page size is fixed for the
// lifetime of the facade.
type Facade struct {
	gw       *gateway.Client
	pageSize int

	mu        sync.Mutex
	seq       uint64
	lastQuery string
	visible   model.SearchResponse
}

// New creates a facade with the given fixed page size.
func New(gw *gateway.Client, pageSize int) *Facade {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Facade{gw: gw, pageSize: pageSize}
}

// Search fetches one page of records. Changing the query text resets
// the page to 1 before the fetch. Each call is tagged with a sequence
// number; a response that is no longer the latest issued returns
// ErrStaleResult and does not touch the visible state. An unreachable
// backend degrades to an empty page.
func (f *Facade) Search(ctx context.Context, query string, page int) (model.SearchResponse, error) {
	f.mu.Lock()
	if query != f.lastQuery {
		page = 1
		f.lastQuery = query
	}
	if page < 1 {
		page = 1
	}
	f.seq++
	issued := f.seq
	f.mu.Unlock()

	resp, err := f.gw.SearchStudents(ctx, query, page, f.pageSize)
	if err != nil {
		if !gateway.IsUnreachable(err) {
			return model.SearchResponse{}, err
		}
		resp = model.SearchResponse{
			Page:     page,
			PageSize: f.pageSize,
			Students: []model.Student{},
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if issued != f.seq {
		return model.SearchResponse{}, ErrStaleResult
	}
	f.visible = resp
	return resp, nil
}

// Visible returns the last applied search result. Stale completions
// never appear here.
func (f *Facade) Visible() model.SearchResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible
}

// Get fetches a single record. Failures propagate.
func (f *Facade) Get(ctx context.Context, id int64) (model.Student, error) {
	return f.gw.GetStudent(ctx, id)
}

// Update applies a partial edit. Failures propagate.
func (f *Facade) Update(ctx context.Context, id int64, update model.StudentUpdate) (model.Student, error) {
	return f.gw.UpdateStudent(ctx, id, update)
}

// Delete removes a record. Failures propagate.
func (f *Facade) Delete(ctx context.Context, id int64) error {
	return f.gw.DeleteStudent(ctx, id)
}

// Export returns the spreadsheet payload for records matching query.
// Failures propagate; the caller presents the bytes as a download.
func (f *Facade) Export(ctx context.Context, query string) ([]byte, error) {
	return f.gw.ExportExcel(ctx, query)
}

// Statistics returns the aggregate view. Without a stored token it
// returns the zero aggregate immediately — firing the request would
// only collect a guaranteed 401. An unreachable backend degrades to
// the same zero aggregate. Any other failure propagates.
func (f *Facade) Statistics(ctx context.Context) (model.Statistics, error) {
	stats, err := f.gw.Statistics(ctx)
	if err != nil {
		if errors.Is(err, gateway.ErrAuthenticationRequired) || gateway.IsUnreachable(err) {
			return zeroStatistics(), nil
		}
		return model.Statistics{}, err
	}
	return stats, nil
}

func zeroStatistics() model.Statistics {
	return model.Statistics{Departments: []model.DepartmentCount{}}
}
