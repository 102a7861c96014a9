package commands

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/zscaler/pkg/zscaler"
)

// NewListCommand lists every item of a collection endpoint.
func NewListCommand() *cobra.Command {
	var (
		options zscaler.ListOptions
		raw     bool
		params  map[string]string
	)

	cmd := &cobra.Command{
		Use:   "list RESOURCE",
		Short: "List a resource collection",
		Long: `List every item of a customer-scoped collection, following pages.

RESOURCE is a management API resource name such as segmentGroup or
application, or an absolute API path starting with "/".`,
		Example: `  zscaler list segmentGroup
  zscaler list application --search web --max-items 50 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd.Context())
			if err != nil {
				return err
			}

			defer func() { _ = client.Close() }()

			options.Params = toValues(params)

			items, err := zscaler.Paginate[map[string]interface{}](cmd.Context(), client, resourcePath(client, args[0]), &options)
			if err != nil {
				return fmt.Errorf("failed to list %s: %w", args[0], err)
			}

			if !raw {
				for i, item := range items {
					items[i] = client.FormResponseBody(item)
				}
			}

			return writeOutput(cmd.OutOrStdout(), items, func(out io.Writer) error {
				return renderObjects(out, items)
			})
		},
	}

	cmd.Flags().IntVar(&options.PageSize, "page-size", 0, "items per page (default 20, max 500)")
	cmd.Flags().IntVar(&options.MaxItems, "max-items", 0, "stop after this many items")
	cmd.Flags().IntVar(&options.MaxPages, "max-pages", 0, "stop after this many pages")
	cmd.Flags().StringVar(&options.Search, "search", "", "search filter")
	cmd.Flags().StringVar(&options.MicrotenantID, "microtenant", "", "microtenant ID")
	cmd.Flags().StringToStringVar(&params, "param", nil, "extra query parameters (key=value)")
	cmd.Flags().BoolVar(&raw, "raw", false, "keep API field names instead of snake_case")

	return cmd
}

// NewGetCommand fetches a single item.
func NewGetCommand() *cobra.Command {
	var (
		microtenantID string
		raw           bool
	)

	cmd := &cobra.Command{
		Use:   "get RESOURCE ID",
		Short: "Get a single resource",
		Long:  "Fetch one item of a customer-scoped collection by ID",
		Args:  cobra.ExactArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd.Context())
			if err != nil {
				return err
			}

			defer func() { _ = client.Close() }()

			query := url.Values{}
			if microtenantID != "" {
				query.Set("microtenantId", microtenantID)
			}

			req, err := client.CreateRequest(cmd.Context(), http.MethodGet, resourcePath(client, args[0], args[1]), nil, nil, query, false)
			if err != nil {
				return err
			}

			resp, err := client.Execute(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("failed to get %s %s: %w", args[0], args[1], err)
			}

			item := map[string]interface{}{}

			err = resp.Decode(&item)
			if err != nil {
				return err
			}

			if !raw {
				item = client.FormResponseBody(item)
			}

			return writeOutput(cmd.OutOrStdout(), item, func(out io.Writer) error {
				return renderProperties(out, item)
			})
		},
	}

	cmd.Flags().StringVar(&microtenantID, "microtenant", "", "microtenant ID")
	cmd.Flags().BoolVar(&raw, "raw", false, "keep API field names instead of snake_case")

	return cmd
}

func toValues(params map[string]string) url.Values {
	values := url.Values{}
	for key, value := range params {
		values.Set(key, value)
	}

	return values
}
