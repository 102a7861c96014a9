package constants

import "errors"

// CLI configuration errors.
var (
	ErrNoCredentials     = errors.New("no client credentials configured, set ZSCALER_CLIENT_ID and ZSCALER_CLIENT_SECRET or use 'zscaler login'")
	ErrSecretPromptNoTTY = errors.New("client secret not set and stdin is not a terminal")
	ErrUnknownOutput     = errors.New("unknown output format, use table, json or yaml")
	ErrInvalidMethod     = errors.New("invalid HTTP method")
	ErrInvalidData       = errors.New("request data must be a JSON object or array")
)
