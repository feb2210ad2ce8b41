package paging

import (
	"context"
	"errors"
	"iter"

	"github.com/ValentinKolb/cloudstore/lib/datastore"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("paging")

var (
	fetchesTotal     = metrics.NewCounter(`cloudstore_paging_fetches_total`)
	fetchErrorsTotal = metrics.NewCounter(`cloudstore_paging_fetch_errors_total`)
)

// FetchFunc loads the page identified by token. The empty token requests the first page.
type FetchFunc[T any] func(ctx context.Context, token string) (datastore.Page[T], error)

// Cursor walks a paginated listing one page at a time.
//
// The cursor holds the most recently fetched page and moves forward only. It is
// owned by a single caller; concurrent calls to AdvanceToNextPage are not allowed.
type Cursor[T any] struct {
	fetch   FetchFunc[T]
	current datastore.Page[T]
	loaded  bool
}

// NewCursor creates a cursor over fetch. Nothing is fetched until the first page is requested.
func NewCursor[T any](fetch FetchFunc[T]) *Cursor[T] {
	return &Cursor[T]{fetch: fetch}
}

// GetCurrentPage returns the most recently fetched page, fetching the first one on the first call.
func (c *Cursor[T]) GetCurrentPage(ctx context.Context) (datastore.Page[T], error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return datastore.Page[T]{}, err
	}
	return c.current, nil
}

// AdvanceToNextPage fetches the page following the current one and makes it current.
//
// If the current page is the last one, datastore.ErrEndOfSequence is returned. A failed
// fetch returns its error. In both cases the current page stays as it was.
func (c *Cursor[T]) AdvanceToNextPage(ctx context.Context) (datastore.Page[T], error) {
	if !c.loaded {
		if err := c.ensureLoaded(ctx); err != nil {
			return datastore.Page[T]{}, err
		}
	}

	if c.current.IsFinished() {
		return datastore.Page[T]{}, datastore.ErrEndOfSequence
	}

	page, err := c.load(ctx, c.current.NextPageToken)
	if err != nil {
		return datastore.Page[T]{}, err
	}
	c.current = page
	return page, nil
}

// IsFinished reports whether the current page is the last one.
// It is false before the first page was fetched.
func (c *Cursor[T]) IsFinished() bool {
	return c.loaded && c.current.IsFinished()
}

// Pages iterates over the current page and all following pages.
// Iteration stops after the last page or after the first error, which is yielded.
func (c *Cursor[T]) Pages(ctx context.Context) iter.Seq2[datastore.Page[T], error] {
	return func(yield func(datastore.Page[T], error) bool) {
		page, err := c.GetCurrentPage(ctx)
		for {
			if err != nil {
				yield(datastore.Page[T]{}, err)
				return
			}
			if !yield(page, nil) {
				return
			}
			page, err = c.AdvanceToNextPage(ctx)
			if errors.Is(err, datastore.ErrEndOfSequence) {
				return
			}
		}
	}
}

// Collect drains the cursor and returns all remaining items, the current page included.
func (c *Cursor[T]) Collect(ctx context.Context) ([]T, error) {
	var items []T
	for page, err := range c.Pages(ctx) {
		if err != nil {
			return items, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (c *Cursor[T]) ensureLoaded(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	page, err := c.load(ctx, "")
	if err != nil {
		return err
	}
	c.current = page
	c.loaded = true
	return nil
}

func (c *Cursor[T]) load(ctx context.Context, token string) (datastore.Page[T], error) {
	fetchesTotal.Inc()
	page, err := c.fetch(ctx, token)
	if err != nil {
		fetchErrorsTotal.Inc()
		Logger.Debugf("fetching page (token %q) failed: %v", token, err)
		return datastore.Page[T]{}, err
	}
	return page, nil
}
