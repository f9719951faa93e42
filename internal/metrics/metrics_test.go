package metrics

import (
	"strings"
	"testing"
)

func TestSanitizeMethod(t *testing.T) {
	tests := []struct {
		method   string
		expected string
	}{
		{method: "eth_call", expected: "eth_call"},
		{method: "eth_getBlockByNumber", expected: "eth_getBlockByNumber"},
		{method: "net_version", expected: "net_version"},
		{method: "nope", expected: "other"},
		{method: "UNKNOWN", expected: "other"},
		{method: strings.Repeat("ohno", 9999), expected: "other"},
	}

	for _, d := range tests {
		actual := SanitizeMethod(d.method)
		if actual != d.expected {
			t.Errorf("Not same: expected %#v, but got %#v", d.expected, actual)
		}
	}
}
