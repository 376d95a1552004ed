package vlm

import (
	"fmt"
	"os"
	"slices"
)

// APIKey reads the credential for provider from envVar. An unset or empty
// variable is a configuration error; vendor names the key's issuer in the
// message ("Google" for Gemini).
func APIKey(provider, vendor, envVar string) (string, error) {
	key, ok := os.LookupEnv(envVar)
	if !ok || key == "" {
		return "", Configuration(provider, fmt.Sprintf("%s API key is missing. Set '%s' in environment variables", vendor, envVar), nil)
	}
	return key, nil
}

// RequireModel checks that model is advertised in catalog.
func RequireModel(provider, model string, catalog []string) error {
	if slices.Contains(catalog, model) {
		return nil
	}
	return UnsupportedModel(provider, model, catalog)
}
