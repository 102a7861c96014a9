package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/zscaler/internal/constants"
)

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// NewRequestCommand sends an arbitrary authenticated API request.
func NewRequestCommand() *cobra.Command {
	var (
		data   string
		params map[string]string
	)

	cmd := &cobra.Command{
		Use:   "request METHOD PATH",
		Short: "Send a raw API request",
		Long: `Send an authenticated request and print the response body.

PATH is relative to the cloud's base URL, e.g.
/mgmtconfig/v1/admin/customers/<id>/segmentGroup. Request data keys may be
written in snake_case; they are converted to the API's camelCase.`,
		Args: cobra.ExactArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			method := strings.ToUpper(args[0])
			if !allowedMethods[method] {
				return fmt.Errorf("%w: %s", constants.ErrInvalidMethod, args[0])
			}

			body, err := parseData(data)
			if err != nil {
				return err
			}

			client, err := newClient(cmd.Context())
			if err != nil {
				return err
			}

			defer func() { _ = client.Close() }()

			req, err := client.CreateRequest(cmd.Context(), method, args[1], body, nil, toValues(params), false)
			if err != nil {
				return err
			}

			resp, err := client.Execute(cmd.Context(), req)
			if err != nil {
				return err
			}

			if len(resp.Body) == 0 {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))

				return err
			}

			var decoded interface{}

			err = json.Unmarshal(resp.Body, &decoded)
			if err != nil {
				_, err = cmd.OutOrStdout().Write(resp.Body)

				return err
			}

			return writeOutput(cmd.OutOrStdout(), decoded, func(out io.Writer) error {
				switch typed := decoded.(type) {
				case map[string]interface{}:
					return renderProperties(out, typed)
				case []interface{}:
					return renderObjects(out, objectsOf(typed))
				default:
					_, err := fmt.Fprintln(out, formatCell(typed))

					return err
				}
			})
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")
	cmd.Flags().StringToStringVar(&params, "param", nil, "query parameters (key=value)")

	return cmd
}

// parseData decodes a JSON object or array. Empty data means no body.
func parseData(data string) (interface{}, error) {
	if strings.TrimSpace(data) == "" {
		return nil, nil //nolint:nilnil
	}

	var body interface{}

	err := json.Unmarshal([]byte(data), &body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", constants.ErrInvalidData, err)
	}

	switch body.(type) {
	case map[string]interface{}, []interface{}:
		return body, nil
	default:
		return nil, constants.ErrInvalidData
	}
}

func objectsOf(values []interface{}) []map[string]interface{} {
	objects := make([]map[string]interface{}, 0, len(values))

	for _, value := range values {
		object, ok := value.(map[string]interface{})
		if !ok {
			object = map[string]interface{}{"value": value}
		}

		objects = append(objects, object)
	}

	return objects
}
