// Package zsclient provides the main entry point for constructing a Zscaler
// API client that implements the zscaler.Client interface.
//
// It layers configuration validation, cloud resolution, the response cache,
// authentication and the retrying request executor on top of the contracts
// defined in the zscaler package. Construction signs in; a rejected sign-in
// fails New.
//
// Quick start
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/zscaler/pkg/zscaler"
//	  "github.com/fivetwenty-io/zscaler/pkg/zsclient"
//	)
//
//	type SegmentGroup struct {
//	  ID   string `json:"id"`
//	  Name string `json:"name"`
//	}
//
//	func example() {
//	  ctx := context.Background()
//
//	  cli, err := zsclient.New(ctx, &zscaler.Config{
//	    ClientID:     "client-id",
//	    ClientSecret: "client-secret",
//	    CustomerID:   "216196257331281920",
//	    Cloud:        zscaler.CloudProduction,
//	  })
//	  if err != nil { log.Fatal(err) }
//	  defer cli.Close()
//
//	  groups := zsclient.NewResource[SegmentGroup](cli, cli.CustomerPath("segmentGroup"), "segment group")
//	  all, err := groups.List(ctx, &zscaler.ListOptions{PageSize: 500})
//	  if err != nil { log.Fatal(err) }
//	  _ = all
//	}
//
// # Caching
//
// GET responses are cached in memory by default. Set Config.Cache to select
// the NATS JetStream or Redis backend, or Cache.Disabled to turn caching off.
// Any successful mutation clears the cache.
//
// # Environment
//
// The zsconfig package loads a Config from ZSCALER_* environment variables
// and an optional YAML file; NewFromEnv combines both steps.
package zsclient
