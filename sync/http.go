package sync

import (
	"strings"
	"time"
)

// HTTPRequestTimeout is the default timeout for all HTTP requests to the audience API.
const HTTPRequestTimeout = 60 * time.Second

// APIHost derives the data-center-qualified host (plus any base path) from
// the configured endpoint. The scheme prefix and any trailing slash are
// stripped; if the result does not already carry a data-center prefix, the
// portion of the API key after its final hyphen is prepended.
func (s APISettings) APIHost() string {
	host := s.Endpoint
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimSuffix(host, "/")
	if !dataCenterPrefix.MatchString(host) {
		if i := strings.LastIndex(s.Key, "-"); i >= 0 && i+1 < len(s.Key) {
			host = s.Key[i+1:] + "." + host
		}
	}
	return host
}
