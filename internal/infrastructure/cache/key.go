package cache

import (
	"net/url"
	"strings"
)

// Key builds a deterministic cache key from provider, endpoint and parameters.
// Parameter order does not matter: url.Values.Encode sorts by name.
func Key(provider, endpoint string, params map[string]string) string {
	var b strings.Builder
	b.WriteString(provider)
	b.WriteByte(':')
	b.WriteString(endpoint)

	if len(params) == 0 {
		return b.String()
	}
	values := make(url.Values, len(params))
	for k, v := range params {
		values.Set(k, v)
	}
	b.WriteByte('?')
	b.WriteString(values.Encode())
	return b.String()
}
