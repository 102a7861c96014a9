// Package zscaler provides the contracts and building blocks shared by the
// Zscaler API clients (ZPA, ZIA, ZCC, ZDX, ZCON, ZTW, ZWA).
//
// # Overview
//
// The package defines the configuration (Config), the cloud environment table
// (Cloud), the request executor contract (Executor) and the client contract
// (Client). A concrete implementation is provided by the zsclient package,
// which wires configuration, transport, authentication and caching. Resource
// wrappers build a path, serialize a payload and delegate to an Executor.
//
// Getting a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/zscaler/pkg/zscaler"
//	  "github.com/fivetwenty-io/zscaler/pkg/zsclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := zsclient.New(ctx, &zscaler.Config{
//	    ClientID:     "client-id",
//	    ClientSecret: "client-secret",
//	    CustomerID:   "216196257331281920",
//	    Cloud:        zscaler.CloudProduction,
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  groups, err := zscaler.Paginate[map[string]any](ctx, cli,
//	    "/mgmtconfig/v1/admin/customers/"+cli.CustomerID()+"/segmentGroup",
//	    &zscaler.ListOptions{PageSize: 100})
//	  if err != nil { log.Fatal(err) }
//	  _ = groups
//	}
//
// # Pagination
//
// Paginate drives page-numbered list endpoints until an empty page, the
// server-reported last page, MaxItems or MaxPages is reached. The lazy forms
// PaginationIterator and StreamPages fetch one page at a time.
//
// # Keys
//
// The API speaks lower camelCase. FormResponseBody and FormatRequestBody
// convert generic map payloads to and from snake_case, consulting a fixed
// override table for acronym-bearing names such as routableIP.
//
// # Errors
//
// HTTP-level failures are returned as *APIError values. Helpers such as
// IsNotFound, IsUnauthorized and IsRateLimited branch on common cases, and
// errors.Is(err, ErrRetriesExhausted) reports an exhausted retry budget.
//
// # Caching
//
// GET responses are cached through the Cache interface; any successful
// mutation clears the whole cache. MemoryCache, NoOpCache, NATSKVCache,
// RedisCache and CacheChain implement it.
package zscaler
