package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/zscaler/internal/constants"
	"github.com/fivetwenty-io/zscaler/pkg/zscaler"
	"github.com/fivetwenty-io/zscaler/pkg/zsclient"
	"github.com/fivetwenty-io/zscaler/pkg/zsconfig"
)

// Viper keys bound to the root persistent flags.
const (
	KeyConfig  = "config"
	KeyOutput  = "output"
	KeyVerbose = "verbose"
	KeyNoCache = "no_cache"
)

// loadConfig reads the config file and environment, then applies the global
// flag overrides.
func loadConfig() (*zscaler.Config, error) {
	config, err := zsconfig.Load(viper.GetString(KeyConfig))
	if err != nil {
		return nil, err
	}

	if cloud := viper.GetString(zsconfig.KeyCloud); cloud != "" {
		config.Cloud = zscaler.Cloud(strings.ToUpper(cloud))
	}

	if baseURL := viper.GetString(zsconfig.KeyBaseURL); baseURL != "" {
		config.BaseURL = baseURL
	}

	if viper.GetBool(KeyNoCache) {
		config.Cache.Disabled = true
	}

	config.Debug = viper.GetBool(KeyVerbose)
	config.Logger = newStderrLogger(os.Stderr, config.Debug)

	return config, nil
}

// newClient signs in with the configured credentials.
func newClient(ctx context.Context) (zscaler.Client, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if config.ClientID == "" || config.ClientSecret == "" {
		return nil, constants.ErrNoCredentials
	}

	return zsclient.New(ctx, config)
}

// resourcePath treats arguments starting with "/" as absolute API paths and
// everything else as a customer-scoped resource name.
func resourcePath(client zscaler.Client, resource string, segments ...string) string {
	if strings.HasPrefix(resource, "/") {
		return strings.TrimRight(resource, "/") + joinSegments(segments)
	}

	return client.CustomerPath(append([]string{resource}, segments...)...)
}

func joinSegments(segments []string) string {
	if len(segments) == 0 {
		return ""
	}

	return "/" + strings.Join(segments, "/")
}

// writeOutput renders value as JSON or YAML, or calls renderTable for the
// table format.
func writeOutput(out io.Writer, value interface{}, renderTable func(io.Writer) error) error {
	switch viper.GetString(KeyOutput) {
	case constants.FormatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", constants.JSONIndent)

		return encoder.Encode(value)
	case constants.FormatYAML:
		encoder := yaml.NewEncoder(out)
		defer func() { _ = encoder.Close() }()

		return encoder.Encode(value)
	case constants.FormatTable, "":
		return renderTable(out)
	default:
		return fmt.Errorf("%w: %q", constants.ErrUnknownOutput, viper.GetString(KeyOutput))
	}
}

// renderObjects prints one row per object using the inferred columns.
func renderObjects(out io.Writer, items []map[string]interface{}) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(out, "No results found")

		return err
	}

	columns := tableColumns(items)

	table := tablewriter.NewWriter(out)
	table.Header(toAny(columns)...)

	for _, item := range items {
		row := make([]interface{}, len(columns))
		for i, column := range columns {
			row[i] = formatCell(item[column])
		}

		_ = table.Append(row...)
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

// renderProperties prints one object as a property/value table.
func renderProperties(out io.Writer, item map[string]interface{}) error {
	keys := make([]string, 0, len(item))
	for key := range item {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	table := tablewriter.NewWriter(out)
	table.Header("Property", "Value")

	for _, key := range keys {
		_ = table.Append(key, formatCell(item[key]))
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

// tableColumns picks id and name first, then other scalar fields in order,
// up to MaxTableColumns.
func tableColumns(items []map[string]interface{}) []string {
	seen := make(map[string]bool)

	var scalars []string

	for _, item := range items {
		for key, value := range item {
			if seen[key] {
				continue
			}

			seen[key] = true

			switch value.(type) {
			case map[string]interface{}, []interface{}:
				continue
			}

			scalars = append(scalars, key)
		}
	}

	sort.Strings(scalars)

	columns := make([]string, 0, constants.MaxTableColumns)

	for _, preferred := range []string{"id", "name"} {
		if seen[preferred] {
			columns = append(columns, preferred)
		}
	}

	for _, key := range scalars {
		if len(columns) >= constants.MaxTableColumns {
			break
		}

		if key == "id" || key == "name" {
			continue
		}

		columns = append(columns, key)
	}

	return columns
}

func formatCell(value interface{}) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	default:
		data, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}

		return string(data)
	}
}

func toAny(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, value := range values {
		out[i] = value
	}

	return out
}

// stderrLogger adapts slog to zscaler.Logger. Debug records are dropped
// unless verbose output is on.
type stderrLogger struct {
	logger *slog.Logger
}

func newStderrLogger(out io.Writer, debug bool) *stderrLogger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	return &stderrLogger{logger: slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))}
}

func (l *stderrLogger) Debug(msg string, fields map[string]interface{}) {
	l.logger.Debug(msg, attrs(fields)...)
}

func (l *stderrLogger) Info(msg string, fields map[string]interface{}) {
	l.logger.Info(msg, attrs(fields)...)
}

func (l *stderrLogger) Warn(msg string, fields map[string]interface{}) {
	l.logger.Warn(msg, attrs(fields)...)
}

func (l *stderrLogger) Error(msg string, fields map[string]interface{}) {
	l.logger.Error(msg, attrs(fields)...)
}

// attrs orders fields by key so lines are stable.
func attrs(fields map[string]interface{}) []any {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	out := make([]any, 0, len(keys))
	for _, key := range keys {
		out = append(out, slog.Any(key, fields[key]))
	}

	return out
}
