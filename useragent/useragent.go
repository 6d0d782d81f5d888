package useragent

import (
	"context"

	"github.com/pylock/attest/version"
)

type userAgentKeyType string

const (
	userAgentKey     userAgentKeyType = "pylock-attest-user-agent"
	defaultUserAgent string           = "pylock-attest/unknown"
)

// Set stores an HTTP user agent string on the context for outgoing requests.
func Set(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentKey, userAgent)
}

// Get returns the user agent stored on the context, falling back to one
// derived from the module version.
func Get(ctx context.Context) string {
	if ua, ok := ctx.Value(userAgentKey).(string); ok {
		return ua
	}
	version, err := version.Get()
	if err != nil || version == nil {
		return defaultUserAgent
	}

	return "pylock-attest/" + version.String()
}
