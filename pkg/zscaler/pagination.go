package zscaler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fivetwenty-io/zscaler/internal/constants"
)

// ErrNoMorePages is returned by PaginationIterator.Next after the last page.
var ErrNoMorePages = errors.New("no more pages")

// ListOptions controls a paginated list call.
type ListOptions struct {
	// Params are extra query parameters sent with every page.
	Params url.Values

	// Page is the first page to fetch. Zero means 1.
	Page int
	// PageSize is the number of items per page. Zero means 20; values above
	// 500 are reduced to 500.
	PageSize int
	// MaxItems stops pagination once this many items are collected; the result
	// is truncated to exactly MaxItems.
	MaxItems int
	// MaxPages stops pagination after this many pages.
	MaxPages int

	Search      string
	SearchField string
	SortOrder   string
	SortBy      string
	SortDir     string
	StartTime   string
	EndTime     string
	AllEntries  bool

	MicrotenantID string

	// KeepEmptyParams sends parameters with empty values instead of dropping them.
	KeepEmptyParams bool
}

// EffectivePageSize returns the page size sent to the API.
func (o *ListOptions) EffectivePageSize() int {
	switch {
	case o == nil || o.PageSize <= 0:
		return constants.DefaultPageSize
	case o.PageSize > constants.MaxPageSize:
		return constants.MaxPageSize
	default:
		return o.PageSize
	}
}

// StartPage returns the first page number.
func (o *ListOptions) StartPage() int {
	if o == nil || o.Page < constants.FirstPage {
		return constants.FirstPage
	}

	return o.Page
}

// ToQuery builds the query parameters for one page.
func (o *ListOptions) ToQuery(page int) url.Values {
	query := url.Values{}

	if o != nil {
		for key, values := range o.Params {
			query[key] = append([]string(nil), values...)
		}

		setParam(query, "search", o.Search)
		setParam(query, "searchField", o.SearchField)
		setParam(query, "sortOrder", o.SortOrder)
		setParam(query, "sortBy", o.SortBy)
		setParam(query, "sortDir", o.SortDir)
		setParam(query, "startTime", o.StartTime)
		setParam(query, "endTime", o.EndTime)
		setParam(query, "microtenantId", o.MicrotenantID)

		if o.AllEntries {
			query.Set("allEntries", "true")
		}
	}

	query.Set("page", strconv.Itoa(page))
	query.Set("pagesize", strconv.Itoa(o.EffectivePageSize()))

	return query
}

// setParam sets an option only when it has a value, so KeepEmptyParams
// applies to the caller's own Params alone.
func setParam(query url.Values, key, value string) {
	if value == "" {
		return
	}

	query.Set(key, value)
}

type page struct {
	items      []json.RawMessage
	totalPages int
}

var listKeys = []string{"list", "items", "records"}

// parsePage accepts a bare JSON array or an object holding the items under
// one of listKeys. An object with none of them is an empty page.
func parsePage(body []byte) (*page, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return &page{}, nil
	}

	if trimmed[0] == '[' {
		var items []json.RawMessage

		err := json.Unmarshal(trimmed, &items)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnexpectedListBody, err)
		}

		return &page{items: items}, nil
	}

	var object map[string]json.RawMessage

	err := json.Unmarshal(trimmed, &object)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnexpectedListBody, err)
	}

	result := &page{totalPages: parseCount(object["totalPages"])}

	for _, key := range listKeys {
		raw, ok := object[key]
		if !ok {
			continue
		}

		err = json.Unmarshal(raw, &result.items)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrUnexpectedListBody, key, err)
		}

		break
	}

	return result, nil
}

// parseCount reads a count sent either as a number or as a numeric string.
func parseCount(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}

	var number int
	if json.Unmarshal(raw, &number) == nil {
		return number
	}

	var text string
	if json.Unmarshal(raw, &text) == nil {
		number, err := strconv.Atoi(text)
		if err == nil {
			return number
		}
	}

	return 0
}

// PaginationIterator fetches one page per Next call.
type PaginationIterator[T any] struct {
	ctx      context.Context
	executor Executor
	path     string
	options  ListOptions

	page      int
	pages     int
	collected int
	done      bool
	err       error
}

// NewPaginationIterator creates a new pagination iterator.
func NewPaginationIterator[T any](ctx context.Context, executor Executor, path string, options *ListOptions) *PaginationIterator[T] {
	iterator := &PaginationIterator[T]{
		ctx:      ctx,
		executor: executor,
		path:     path,
	}

	if options != nil {
		iterator.options = *options
	}

	iterator.page = iterator.options.StartPage()

	return iterator
}

// HasNext returns true if another page may be fetched.
func (it *PaginationIterator[T]) HasNext() bool {
	return !it.done && it.err == nil
}

// Err returns the error that stopped the iterator, if any.
func (it *PaginationIterator[T]) Err() error {
	return it.err
}

// PagesFetched returns the number of pages requested so far.
func (it *PaginationIterator[T]) PagesFetched() int {
	return it.pages
}

// Next fetches the next page.
func (it *PaginationIterator[T]) Next() ([]T, error) {
	if it.err != nil {
		return nil, it.err
	}

	if it.done {
		return nil, ErrNoMorePages
	}

	items, totalPages, err := it.fetch()
	if err != nil {
		it.err = err

		return nil, err
	}

	it.pages++

	if len(items) == 0 {
		it.done = true

		return items, nil
	}

	maxItems := it.options.MaxItems
	if maxItems > 0 && it.collected+len(items) >= maxItems {
		items = items[:maxItems-it.collected]
		it.done = true
	}

	it.collected += len(items)

	if it.options.MaxPages > 0 && it.pages >= it.options.MaxPages {
		it.done = true
	}

	if totalPages > 0 && it.page >= totalPages {
		it.done = true
	}

	it.page++

	return items, nil
}

// All fetches every remaining page. On error it returns the items gathered so
// far together with the error.
func (it *PaginationIterator[T]) All() ([]T, error) {
	allItems := make([]T, 0)

	for it.HasNext() {
		items, err := it.Next()
		if err != nil {
			return allItems, err
		}

		allItems = append(allItems, items...)
	}

	return allItems, nil
}

// ForEach calls fn for every remaining item, stopping at the first error.
func (it *PaginationIterator[T]) ForEach(fn func(T) error) error {
	for it.HasNext() {
		items, err := it.Next()
		if err != nil {
			return err
		}

		for _, item := range items {
			err = fn(item)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func (it *PaginationIterator[T]) fetch() ([]T, int, error) {
	query := it.options.ToQuery(it.page)

	req, err := it.executor.CreateRequest(it.ctx, http.MethodGet, it.path, nil, nil, query, it.options.KeepEmptyParams)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request for page %d: %w", it.page, err)
	}

	resp, err := it.executor.Execute(it.ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch page %d: %w", it.page, err)
	}

	parsed, err := parsePage(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse page %d: %w", it.page, err)
	}

	items := make([]T, 0, len(parsed.items))

	for _, raw := range parsed.items {
		var item T

		err = json.Unmarshal(raw, &item)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to decode item on page %d: %w", it.page, err)
		}

		items = append(items, item)
	}

	return items, parsed.totalPages, nil
}

// Paginate fetches every page of a list endpoint into one ordered slice.
//
// It stops on an empty page, when MaxItems or MaxPages is reached, or when the
// server-reported totalPages is reached. On error the items gathered so far
// are returned with the error.
func Paginate[T any](ctx context.Context, executor Executor, path string, options *ListOptions) ([]T, error) {
	return NewPaginationIterator[T](ctx, executor, path, options).All()
}

// PageResult is one element of StreamPages.
type PageResult[T any] struct {
	Page  int
	Items []T
	Err   error
}

// StreamPages fetches pages in a goroutine and sends them on the returned
// channel, which is closed after the last page, an error, or cancellation.
func StreamPages[T any](ctx context.Context, executor Executor, path string, options *ListOptions) <-chan PageResult[T] {
	results := make(chan PageResult[T], constants.StreamBufferSize)

	go func() {
		defer close(results)

		iterator := NewPaginationIterator[T](ctx, executor, path, options)

		for iterator.HasNext() {
			pageNumber := iterator.page

			items, err := iterator.Next()

			select {
			case results <- PageResult[T]{Page: pageNumber, Items: items, Err: err}:
			case <-ctx.Done():
				return
			}

			if err != nil {
				return
			}
		}
	}()

	return results
}
