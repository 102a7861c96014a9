package zscaler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fivetwenty-io/zscaler/pkg/zscaler"
)

func TestToHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wire string
		host string
	}{
		{"name", "name"},
		{"domainName", "domain_name"},
		{"bypassTypeId", "bypass_type_id"},
		{"routableIP", "routable_ip"},
		{"isNameL10nTag", "is_name_l10n_tag"},
		{"enableIPv6", "enable_ipv6"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.wire, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.host, zscaler.ToHost(tt.wire))
		})
	}
}

func TestToWire(t *testing.T) {
	t.Parallel()

	tests := []struct {
		host string
		wire string
	}{
		{"name", "name"},
		{"domain_name", "domainName"},
		{"bypass_type_id", "bypassTypeId"},
		{"routable_ip", "routableIP"},
		{"is_name_l10n_tag", "isNameL10nTag"},
		{"microtenant_id", "microtenantId"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.wire, zscaler.ToWire(tt.host))
		})
	}
}

func TestKeyOverrides_RoundTrip(t *testing.T) {
	t.Parallel()

	for wire, host := range zscaler.KeyOverrides() {
		assert.Equal(t, host, zscaler.ToHost(wire))
		assert.Equal(t, wire, zscaler.ToWire(host))
	}
}

func TestKeyOverrides_ReturnsCopy(t *testing.T) {
	t.Parallel()

	overrides := zscaler.KeyOverrides()
	overrides["routableIP"] = "changed"

	assert.Equal(t, "routable_ip", zscaler.ToHost("routableIP"))
}

func TestFormResponseBody(t *testing.T) {
	t.Parallel()

	body := map[string]interface{}{
		"id":         "72058304855015574",
		"domainName": "app.example.com",
		"routableIP": "10.0.0.1",
		"serverGroups": []interface{}{
			map[string]interface{}{"id": "1", "configSpace": "DEFAULT"},
			"literal",
		},
		"descriptionNote": nil,
	}

	out := zscaler.FormResponseBody(body)

	assert.Equal(t, "app.example.com", out["domain_name"])
	assert.Equal(t, "10.0.0.1", out["routable_ip"])
	assert.Contains(t, out, "description_note")
	assert.Nil(t, out["description_note"])

	groups, ok := out["server_groups"].([]interface{})
	if assert.True(t, ok) {
		assert.Equal(t, map[string]interface{}{"id": "1", "config_space": "DEFAULT"}, groups[0])
		assert.Equal(t, "literal", groups[1])
	}

	assert.Nil(t, zscaler.FormResponseBody(nil))
}

func TestFormatRequestBody(t *testing.T) {
	t.Parallel()

	body := map[string]interface{}{
		"name":            "segment",
		"description":     nil,
		"routable_ip":     "10.0.0.1",
		"tcp_port_ranges": []interface{}{"80", nil, "443"},
		"server_groups":   []map[string]interface{}{{"id": "1", "config_space": nil}},
	}

	out := zscaler.FormatRequestBody(body)

	assert.Equal(t, map[string]interface{}{
		"name":          "segment",
		"routableIP":    "10.0.0.1",
		"tcpPortRanges": []interface{}{"80", "443"},
		"serverGroups":  []interface{}{map[string]interface{}{"id": "1"}},
	}, out)

	assert.Nil(t, zscaler.FormatRequestBody(nil))
}

func TestConvertValue_TopLevelArray(t *testing.T) {
	t.Parallel()

	value := []interface{}{
		map[string]interface{}{"segment_group_id": "1"},
	}

	wire := zscaler.ConvertValue(value, true)
	assert.Equal(t, []interface{}{map[string]interface{}{"segmentGroupId": "1"}}, wire)

	host := zscaler.ConvertValue(wire, false)
	assert.Equal(t, value, host)

	assert.Equal(t, 42, zscaler.ConvertValue(42, true))
}
