package tokensync

import (
	"strings"

	"arenasync-backend/lib/platforms/arenapro"
)

// ExtractMappings filters raw token records down to address -> image URL
// pairs. Records missing an address, missing a photo URL, or pointing at a
// host outside the allow-list (placeholder and third-party images) are
// dropped. When a page repeats an address the last occurrence wins; the
// upstream gives no ordering guarantee, this is just the tie-break.
func ExtractMappings(records []arenapro.Token, allowedHost string) map[string]string {
	mappings := make(map[string]string)
	for _, token := range records {
		if token.ContractAddress == "" {
			continue
		}
		if token.PhotoURL == "" || !strings.Contains(token.PhotoURL, allowedHost) {
			continue
		}
		mappings[token.ContractAddress] = token.PhotoURL
	}
	return mappings
}
