package instance

import (
	"os"
	"strings"
)

// EnvWorkerID overrides the identifier reported by background workers.
const EnvWorkerID = "STOREFRONT_WORKER_ID"

// GetID returns the configured worker ID, falling back to the hostname so
// replicas stay distinguishable in logs.
func GetID() string {
	if id := strings.TrimSpace(os.Getenv(EnvWorkerID)); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
