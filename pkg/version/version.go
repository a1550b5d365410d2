// Package version holds the build identity of the service.
package version

import "fmt"

// Name is the service name used in the user agent and the Via header.
const Name = "allorigins"

// Version is overridden at build time:
//
//	go build -ldflags "-X github.com/andesco/allorigins/pkg/version.Version=v1.2.3" ./cmd
var Version = "dev"

// UserAgent is sent on every outbound fetch.
func UserAgent() string {
	return fmt.Sprintf("Mozilla/5.0 (compatible; %s/%s)", Name, Version)
}

// Via identifies the proxy on every enriched response.
func Via() string {
	return Name
}
