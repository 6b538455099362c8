package genomcore

import (
	"fmt"
	"strings"
)

var envBaseURLs = map[string]string{
	"dev":     "https://api.dev.genomcore.net",
	"staging": "https://api.pre.genomcore.net",
	"pre":     "https://api.pre.genomcore.net",
	"prod":    "https://api.genomcore.net",
}

// BaseURLFor maps a deployment name to its API root.
func BaseURLFor(env string) (string, error) {
	env = strings.ToLower(strings.TrimSpace(env))
	switch env {
	case "development":
		env = "dev"
	case "production":
		env = "prod"
	}
	u, ok := envBaseURLs[env]
	if !ok {
		return "", fmt.Errorf("genomcore: unknown environment %q (want dev, staging, pre or prod)", env)
	}
	return u, nil
}
