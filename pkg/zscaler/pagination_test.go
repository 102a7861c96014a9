package zscaler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/fivetwenty-io/zscaler/pkg/zscaler"
	"github.com/fivetwenty-io/zscaler/pkg/zscaler/mocks"
)

type segment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// pagedExecutor serves a fixed item list in pages, the way ZPA list
// endpoints do.
type pagedExecutor struct {
	mu         sync.Mutex
	total      int
	totalPages func(pageSize int) string
	bareArray  bool
	failPage   int
	queries    []url.Values
}

func newPagedExecutor(total int) *pagedExecutor {
	return &pagedExecutor{
		total: total,
		totalPages: func(pageSize int) string {
			return strconv.Itoa((total + pageSize - 1) / pageSize)
		},
	}
}

func (e *pagedExecutor) CreateRequest(_ context.Context, method, path string, _ interface{}, _ map[string]string, params url.Values, _ bool) (*zscaler.Request, error) {
	return &zscaler.Request{Method: method, Path: path, URL: "https://host" + path, Query: params}, nil
}

func (e *pagedExecutor) Execute(_ context.Context, req *zscaler.Request) (*zscaler.Response, error) {
	e.mu.Lock()
	e.queries = append(e.queries, req.Query)
	e.mu.Unlock()

	page, _ := strconv.Atoi(req.Query.Get("page"))
	pageSize, _ := strconv.Atoi(req.Query.Get("pagesize"))

	if page == e.failPage {
		return nil, zscaler.NewAPIError(req.Method, req.URL, http.StatusInternalServerError, nil, 5, true)
	}

	items := make([]segment, 0, pageSize)
	for i := (page - 1) * pageSize; i < page*pageSize && i < e.total; i++ {
		items = append(items, segment{ID: strconv.Itoa(i + 1), Name: fmt.Sprintf("segment-%d", i+1)})
	}

	var body interface{} = map[string]interface{}{
		"totalPages": e.totalPages(pageSize),
		"list":       items,
	}
	if e.bareArray {
		body = items
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	return &zscaler.Response{StatusCode: http.StatusOK, Body: data}, nil
}

func (e *pagedExecutor) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.queries)
}

func ids(items []segment) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}

	return out
}

func TestPaginate_TotalPages(t *testing.T) {
	t.Parallel()

	executor := newPagedExecutor(5)

	items, err := zscaler.Paginate[segment](context.Background(), executor, "/segmentGroup", &zscaler.ListOptions{PageSize: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, ids(items))
	assert.Equal(t, 3, executor.calls())
	assert.Equal(t, "3", executor.queries[2].Get("page"))
	assert.Equal(t, "2", executor.queries[2].Get("pagesize"))
}

func TestPaginate_EmptyPageStops(t *testing.T) {
	t.Parallel()

	// No totalPages: pagination runs until an empty page.
	executor := newPagedExecutor(4)
	executor.totalPages = func(int) string { return "" }

	items, err := zscaler.Paginate[segment](context.Background(), executor, "/x", &zscaler.ListOptions{PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, items, 4)
	assert.Equal(t, 3, executor.calls())
}

func TestPaginate_BareArray(t *testing.T) {
	t.Parallel()

	executor := newPagedExecutor(3)
	executor.bareArray = true

	items, err := zscaler.Paginate[segment](context.Background(), executor, "/x", &zscaler.ListOptions{PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, ids(items))
	assert.Equal(t, 3, executor.calls())
}

func TestPaginate_EmptyList(t *testing.T) {
	t.Parallel()

	executor := newPagedExecutor(0)

	items, err := zscaler.Paginate[segment](context.Background(), executor, "/x", nil)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.Equal(t, 1, executor.calls())
	assert.Equal(t, "20", executor.queries[0].Get("pagesize"))
}

func TestPaginate_MaxItems(t *testing.T) {
	t.Parallel()

	executor := newPagedExecutor(100)

	items, err := zscaler.Paginate[segment](context.Background(), executor, "/x", &zscaler.ListOptions{PageSize: 10, MaxItems: 25})
	require.NoError(t, err)
	assert.Len(t, items, 25)
	assert.Equal(t, "25", items[24].ID)
	assert.Equal(t, 3, executor.calls())
}

func TestPaginate_MaxPages(t *testing.T) {
	t.Parallel()

	executor := newPagedExecutor(100)

	items, err := zscaler.Paginate[segment](context.Background(), executor, "/x", &zscaler.ListOptions{PageSize: 10, MaxPages: 2})
	require.NoError(t, err)
	assert.Len(t, items, 20)
	assert.Equal(t, 2, executor.calls())
}

func TestPaginate_StartPage(t *testing.T) {
	t.Parallel()

	executor := newPagedExecutor(6)

	items, err := zscaler.Paginate[segment](context.Background(), executor, "/x", &zscaler.ListOptions{PageSize: 2, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "4", "5", "6"}, ids(items))
}

func TestPaginate_ErrorReturnsPartialItems(t *testing.T) {
	t.Parallel()

	executor := newPagedExecutor(10)
	executor.failPage = 3

	items, err := zscaler.Paginate[segment](context.Background(), executor, "/x", &zscaler.ListOptions{PageSize: 2})
	require.Error(t, err)
	require.ErrorIs(t, err, zscaler.ErrRetriesExhausted)
	assert.Contains(t, err.Error(), "page 3")
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(items))
}

func TestPaginate_CreateRequestError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	executor := mocks.NewMockExecutor(ctrl)

	executor.EXPECT().
		CreateRequest(gomock.Any(), http.MethodGet, "?bad", nil, nil, gomock.Any(), false).
		Return(nil, zscaler.ErrInvalidRequestPath)

	items, err := zscaler.Paginate[segment](context.Background(), executor, "?bad", nil)
	require.ErrorIs(t, err, zscaler.ErrInvalidRequestPath)
	assert.Empty(t, items)
}

func TestPaginate_UnexpectedBody(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	executor := mocks.NewMockExecutor(ctrl)

	req := &zscaler.Request{Method: http.MethodGet}
	executor.EXPECT().CreateRequest(gomock.Any(), http.MethodGet, "/x", nil, nil, gomock.Any(), false).Return(req, nil)
	executor.EXPECT().Execute(gomock.Any(), req).Return(&zscaler.Response{StatusCode: http.StatusOK, Body: []byte(`"text"`)}, nil)

	_, err := zscaler.Paginate[segment](context.Background(), executor, "/x", nil)
	require.ErrorIs(t, err, zscaler.ErrUnexpectedListBody)
}

func TestPaginationIterator(t *testing.T) {
	t.Parallel()

	executor := newPagedExecutor(3)
	iterator := zscaler.NewPaginationIterator[segment](context.Background(), executor, "/x", &zscaler.ListOptions{PageSize: 2})

	require.True(t, iterator.HasNext())

	first, err := iterator.Next()
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids(first))
	assert.True(t, iterator.HasNext())

	second, err := iterator.Next()
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, ids(second))
	assert.False(t, iterator.HasNext())
	assert.Equal(t, 2, iterator.PagesFetched())

	_, err = iterator.Next()
	require.ErrorIs(t, err, zscaler.ErrNoMorePages)
	require.NoError(t, iterator.Err())
}

func TestPaginationIterator_ForEach(t *testing.T) {
	t.Parallel()

	executor := newPagedExecutor(5)
	iterator := zscaler.NewPaginationIterator[segment](context.Background(), executor, "/x", &zscaler.ListOptions{PageSize: 2})

	var seen []string

	err := iterator.ForEach(func(item segment) error {
		seen = append(seen, item.ID)
		if item.ID == "3" {
			return zscaler.ErrNoMorePages
		}

		return nil
	})
	require.ErrorIs(t, err, zscaler.ErrNoMorePages)
	assert.Equal(t, []string{"1", "2", "3"}, seen)
	assert.Equal(t, 2, executor.calls())
}

func TestStreamPages(t *testing.T) {
	t.Parallel()

	executor := newPagedExecutor(5)

	var pages []int

	var items []string

	for result := range zscaler.StreamPages[segment](context.Background(), executor, "/x", &zscaler.ListOptions{PageSize: 2}) {
		require.NoError(t, result.Err)

		pages = append(pages, result.Page)
		items = append(items, ids(result.Items)...)
	}

	assert.Equal(t, []int{1, 2, 3}, pages)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, items)
}

func TestStreamPages_Error(t *testing.T) {
	t.Parallel()

	executor := newPagedExecutor(10)
	executor.failPage = 2

	var results []zscaler.PageResult[segment]
	for result := range zscaler.StreamPages[segment](context.Background(), executor, "/x", &zscaler.ListOptions{PageSize: 2}) {
		results = append(results, result)
	}

	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
	assert.Equal(t, 2, results[1].Page)
}

func TestStreamPages_Cancel(t *testing.T) {
	t.Parallel()

	executor := newPagedExecutor(1000)
	ctx, cancel := context.WithCancel(context.Background())

	stream := zscaler.StreamPages[segment](ctx, executor, "/x", &zscaler.ListOptions{PageSize: 1})

	first := <-stream
	require.NoError(t, first.Err)
	cancel()

	// Drain; the channel closes once the producer sees the cancellation.
	for result := range stream {
		_ = result
	}

	assert.Less(t, executor.calls(), 1000)
}

func TestListOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		options  *zscaler.ListOptions
		pageSize int
		start    int
	}{
		{"nil", nil, 20, 1},
		{"zero", &zscaler.ListOptions{}, 20, 1},
		{"custom", &zscaler.ListOptions{PageSize: 100, Page: 3}, 100, 3},
		{"clamped", &zscaler.ListOptions{PageSize: 5000}, 500, 1},
		{"negative page", &zscaler.ListOptions{Page: -1}, 20, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.pageSize, tt.options.EffectivePageSize())
			assert.Equal(t, tt.start, tt.options.StartPage())
			assert.Equal(t, strconv.Itoa(tt.pageSize), tt.options.ToQuery(1).Get("pagesize"))
		})
	}
}

func TestListOptions_ToQuery(t *testing.T) {
	t.Parallel()

	options := &zscaler.ListOptions{
		Params:        url.Values{"extra": []string{"1"}, "search": []string{"from-params"}},
		Search:        "",
		SortBy:        "name",
		MicrotenantID: "mt-1",
		AllEntries:    true,
	}

	query := options.ToQuery(4)

	assert.Equal(t, "4", query.Get("page"))
	assert.Equal(t, "1", query.Get("extra"))
	assert.Equal(t, "from-params", query.Get("search"))
	assert.Equal(t, "name", query.Get("sortBy"))
	assert.Equal(t, "mt-1", query.Get("microtenantId"))
	assert.Equal(t, "true", query.Get("allEntries"))

	// Unset options are left out entirely.
	assert.NotContains(t, query, "sortOrder")
	assert.NotContains(t, query, "endTime")

	// Params are copied, not aliased.
	query.Set("extra", "2")
	assert.Equal(t, "1", options.Params.Get("extra"))
}

func TestPaginate_KeepEmptyParamsSendsOnlyCallerKeys(t *testing.T) {
	t.Parallel()

	executor := newPagedExecutor(3)

	_, err := zscaler.Paginate[segment](context.Background(), executor, "/segments", &zscaler.ListOptions{
		Params:          url.Values{"name": []string{""}},
		KeepEmptyParams: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, executor.queries)

	for _, query := range executor.queries {
		keys := make([]string, 0, len(query))
		for key := range query {
			keys = append(keys, key)
		}

		assert.ElementsMatch(t, []string{"name", "page", "pagesize"}, keys)
		assert.Empty(t, query.Get("name"))
	}
}
