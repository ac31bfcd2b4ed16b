package tokensync

import (
	"testing"

	"arenasync-backend/lib/platforms/arenapro"

	"github.com/stretchr/testify/require"
)

func TestExtractMappings(t *testing.T) {
	records := []arenapro.Token{
		{ContractAddress: "0xaaa", PhotoURL: "https://static.starsarena.com/a.jpg"},
		{ContractAddress: "0xbbb", PhotoURL: "https://cdn.example.com/b.jpg"},
		{ContractAddress: "0xccc", PhotoURL: ""},
		{ContractAddress: "", PhotoURL: "https://static.starsarena.com/ghost.jpg"},
		{ContractAddress: "0xaaa", PhotoURL: "https://static.starsarena.com/a2.jpg"},
	}

	mappings := ExtractMappings(records, "static.starsarena.com")

	require.Len(t, mappings, 1)
	require.Equal(t, "https://static.starsarena.com/a2.jpg", mappings["0xaaa"])
}

func TestExtractMappingsNoHostFilter(t *testing.T) {
	records := []arenapro.Token{
		{ContractAddress: "0xaaa", PhotoURL: "https://static.starsarena.com/a.jpg"},
		{ContractAddress: "0xbbb", PhotoURL: "https://cdn.example.com/b.jpg"},
	}

	mappings := ExtractMappings(records, "")

	require.Len(t, mappings, 2)
	require.Equal(t, "https://cdn.example.com/b.jpg", mappings["0xbbb"])
}
