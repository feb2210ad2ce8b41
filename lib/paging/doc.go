// Package paging exposes paginated listings of a data store as forward-only cursors.
//
// A listing endpoint returns bounded pages together with an opaque continuation
// token. Cursor hides that protocol: it remembers the latest page and uses its token
// to request the next one.
//
// Usage:
//
//	cursor := paging.NewCursor(func(ctx context.Context, token string) (datastore.Page[datastore.KeyInfo], error) {
//		return store.ListKeys(ctx, query, token)
//	})
//
//	page, err := cursor.GetCurrentPage(ctx) // first fetch happens here
//	for !cursor.IsFinished() {
//		page, err = cursor.AdvanceToNextPage(ctx)
//		...
//	}
//
// Or with range-over-func:
//
//	for page, err := range cursor.Pages(ctx) {
//		...
//	}
//
// Advancing past the last page returns datastore.ErrEndOfSequence. Neither that nor a
// failed fetch changes the current page, so a failed AdvanceToNextPage may be retried.
package paging
