// Package id generates prefixed, URL-safe record identifiers.
package id

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Record prefixes. The prefix makes an ID self-describing in logs and URLs.
const (
	PrefixUser         = "usr"
	PrefixGroup        = "grp"
	PrefixWorkout      = "wo"
	PrefixReaction     = "rx"
	PrefixComment      = "cmt"
	PrefixCompetition  = "comp"
	PrefixDuel         = "duel"
	PrefixAnnouncement = "ann"
)

// Generate creates a prefixed unique ID using NanoID.
// Format: prefix-nanoid (e.g., "duel-V1StGXR8_Z5jdHi6B-myT").
//
// Returns an error if the system has insufficient entropy for secure random generation.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// HasPrefix reports whether id was generated with prefix.
func HasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, prefix+"-") && len(id) > len(prefix)+1
}
