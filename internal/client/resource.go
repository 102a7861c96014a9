package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/zscaler/pkg/zscaler"
)

// Resource is a generic CRUD client for one collection endpoint. T is decoded
// from wire JSON, so its json tags use the API's camelCase keys.
type Resource[T any] struct {
	executor zscaler.Executor
	path     string
	name     string
}

// NewResource creates a resource client rooted at path, e.g. the result of
// Client.CustomerPath("segmentGroup").
func NewResource[T any](executor zscaler.Executor, path, name string) *Resource[T] {
	return &Resource[T]{
		executor: executor,
		path:     strings.TrimRight(path, "/"),
		name:     name,
	}
}

// Path returns the collection path.
func (r *Resource[T]) Path() string {
	return r.path
}

// List fetches every page.
func (r *Resource[T]) List(ctx context.Context, options *zscaler.ListOptions) ([]T, error) {
	items, err := zscaler.Paginate[T](ctx, r.executor, r.path, options)
	if err != nil {
		return items, fmt.Errorf("listing %s: %w", r.name, err)
	}

	return items, nil
}

// Iterator returns a lazy page iterator.
func (r *Resource[T]) Iterator(ctx context.Context, options *zscaler.ListOptions) *zscaler.PaginationIterator[T] {
	return zscaler.NewPaginationIterator[T](ctx, r.executor, r.path, options)
}

// Get fetches one item by ID.
func (r *Resource[T]) Get(ctx context.Context, id string) (*T, error) {
	resp, err := r.do(ctx, http.MethodGet, r.itemPath(id), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("getting %s %s: %w", r.name, id, err)
	}

	return decodeItem[T](resp, r.name)
}

// Create posts a new item and returns the created item.
func (r *Resource[T]) Create(ctx context.Context, body interface{}) (*T, error) {
	resp, err := r.do(ctx, http.MethodPost, r.path, body, nil)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", r.name, err)
	}

	return decodeItem[T](resp, r.name)
}

// Update replaces an item. Endpoints that answer 204 yield a nil item.
func (r *Resource[T]) Update(ctx context.Context, id string, body interface{}) (*T, error) {
	resp, err := r.do(ctx, http.MethodPut, r.itemPath(id), body, nil)
	if err != nil {
		return nil, fmt.Errorf("updating %s %s: %w", r.name, id, err)
	}

	return decodeItem[T](resp, r.name)
}

// Delete removes an item.
func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	_, err := r.do(ctx, http.MethodDelete, r.itemPath(id), nil, nil)
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", r.name, id, err)
	}

	return nil
}

func (r *Resource[T]) itemPath(id string) string {
	return r.path + "/" + url.PathEscape(id)
}

func (r *Resource[T]) do(ctx context.Context, method, path string, body interface{}, params url.Values) (*zscaler.Response, error) {
	req, err := r.executor.CreateRequest(ctx, method, path, body, nil, params, false)
	if err != nil {
		return nil, err
	}

	return r.executor.Execute(ctx, req)
}

func decodeItem[T any](resp *zscaler.Response, name string) (*T, error) {
	if len(resp.Body) == 0 {
		return nil, nil //nolint:nilnil // 204 responses carry no item
	}

	var item T

	err := json.Unmarshal(resp.Body, &item)
	if err != nil {
		return nil, fmt.Errorf("parsing %s response: %w", name, err)
	}

	return &item, nil
}
