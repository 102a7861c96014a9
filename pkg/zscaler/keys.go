package zscaler

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// keyOverrides pairs wire keys with host keys that the generic rule would
// mangle, mostly because of consecutive capitals ("IP") or digits ("L10n").
var keyOverrides = map[string]string{
	"routableIP":                          "routable_ip",
	"surrogateIP":                         "surrogate_ip",
	"surrogateIPEnforcedForKnownBrowsers": "surrogate_ip_enforced_for_known_browsers",
	"isNameL10nTag":                       "is_name_l10n_tag",
	"nameL10nTag":                         "name_l10n_tag",
	"enableIPv6":                          "enable_ipv6",
	"internalIPRange":                     "internal_ip_range",
	"dnsResolutionIPv4":                   "dns_resolution_ipv4",
}

var hostOverrides = invertOverrides(keyOverrides)

func invertOverrides(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for wire, host := range in {
		out[host] = wire
	}

	return out
}

// KeyOverrides returns a copy of the wire to host override table.
func KeyOverrides() map[string]string {
	out := make(map[string]string, len(keyOverrides))
	for wire, host := range keyOverrides {
		out[wire] = host
	}

	return out
}

// ToHost converts a lower camelCase wire key to snake_case.
func ToHost(wireKey string) string {
	if host, ok := keyOverrides[wireKey]; ok {
		return host
	}

	var builder strings.Builder

	builder.Grow(len(wireKey) + 4)

	for i, r := range wireKey {
		if i > 0 && unicode.IsUpper(r) {
			builder.WriteByte('_')
		}

		builder.WriteRune(unicode.ToLower(r))
	}

	return builder.String()
}

// ToWire converts a snake_case host key to lower camelCase.
func ToWire(hostKey string) string {
	if wire, ok := hostOverrides[hostKey]; ok {
		return wire
	}

	tokens := strings.Split(hostKey, "_")

	var builder strings.Builder

	builder.Grow(len(hostKey))
	builder.WriteString(tokens[0])

	for _, token := range tokens[1:] {
		builder.WriteString(capitalize(token))
	}

	return lowerFirst(builder.String())
}

func capitalize(token string) string {
	r, size := utf8.DecodeRuneInString(token)
	if size == 0 {
		return token
	}

	return string(unicode.ToUpper(r)) + token[size:]
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}

	return string(unicode.ToLower(r)) + s[size:]
}

// FormResponseBody converts a decoded response object to host keys. Nested
// maps and slices are converted element-wise; scalars pass through.
func FormResponseBody(body map[string]interface{}) map[string]interface{} {
	if body == nil {
		return nil
	}

	out, _ := convertKeys(body, ToHost, false).(map[string]interface{})

	return out
}

// FormatRequestBody converts an outgoing object to wire keys, dropping nil
// values at every level.
func FormatRequestBody(body map[string]interface{}) map[string]interface{} {
	if body == nil {
		return nil
	}

	out, _ := convertKeys(body, ToWire, true).(map[string]interface{})

	return out
}

// ConvertValue applies FormResponseBody or FormatRequestBody to any decoded
// JSON value, including top-level arrays.
func ConvertValue(value interface{}, toWire bool) interface{} {
	if toWire {
		return convertKeys(value, ToWire, true)
	}

	return convertKeys(value, ToHost, false)
}

func convertKeys(value interface{}, convert func(string) string, dropNil bool) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))

		for key, item := range typed {
			if dropNil && item == nil {
				continue
			}

			out[convert(key)] = convertKeys(item, convert, dropNil)
		}

		return out
	case []interface{}:
		out := make([]interface{}, 0, len(typed))

		for _, item := range typed {
			if dropNil && item == nil {
				continue
			}

			out = append(out, convertKeys(item, convert, dropNil))
		}

		return out
	case []map[string]interface{}:
		out := make([]interface{}, 0, len(typed))
		for _, item := range typed {
			out = append(out, convertKeys(item, convert, dropNil))
		}

		return out
	default:
		return value
	}
}
