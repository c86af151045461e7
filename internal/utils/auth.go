package utils

import (
	"crypto/subtle"
	"strings"
)

const bearerPrefix = "Bearer "

// BearerToken returns the token of an Authorization header value, empty for other schemes.
func BearerToken(header string) string {
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

// IsValidAPIKey checks if the provided API key is valid against the list of allowed keys.
func IsValidAPIKey(apiKey string, allowedKeys []string) bool {
	if apiKey == "" {
		return false
	}

	valid := false
	for _, key := range allowedKeys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
			valid = true
		}
	}
	return valid
}
