// Package testdata provides captured detector plugin responses for tests.
package testdata

import (
	"embed"
	"fmt"
)

//go:embed responses/*
var responsesFS embed.FS

// LoadResponse returns one captured plugin response line by name.
func LoadResponse(name string) ([]byte, error) {
	data, err := responsesFS.ReadFile("responses/" + name)
	if err != nil {
		return nil, fmt.Errorf("load response %s: %w", name, err)
	}
	return data, nil
}

// ResponseNames lists the available response fixtures.
func ResponseNames() ([]string, error) {
	entries, err := responsesFS.ReadDir("responses")
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}
