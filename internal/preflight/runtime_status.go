package preflight

import (
	"context"
	"strings"

	"acrscan/internal/config"
)

// CheckACRCloudFromConfig evaluates identify host reachability from config.
func CheckACRCloudFromConfig(ctx context.Context, cfg *config.Config) Result {
	const name = "ACRCloud"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	host := strings.TrimSpace(cfg.ACRCloud.Host)
	if host == "" {
		return Result{Name: name, Detail: "Missing host"}
	}
	return CheckACRCloud(ctx, BaseURL(host))
}

// BaseURL turns a configured host into an https base URL. Hosts that already
// carry a scheme are returned unchanged.
func BaseURL(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" || strings.Contains(host, "://") {
		return host
	}
	return "https://" + host
}
