// Package idgen mints record ids: a kind prefix followed by a random
// alphanumeric nanoid.
package idgen

import (
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Kind is the prefix that tells what an id names.
type Kind string

const (
	Record   Kind = "rec-"
	Backlog  Kind = "bl-"
	Decision Kind = "dec-"
	Post     Kind = "post-"
)

// alphabet leaves out '-' and '_' so ids survive double-click selection.
const (
	alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	size     = 12
)

// New returns a fresh id of the given kind.
func New(k Kind) (string, error) {
	id, err := nanoid.Generate(alphabet, size)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return string(k) + id, nil
}

// KindOf reports which known kind minted id.
func KindOf(id string) (Kind, bool) {
	for _, k := range []Kind{Record, Backlog, Decision, Post} {
		if strings.HasPrefix(id, string(k)) && len(id) == len(k)+size {
			return k, true
		}
	}
	return "", false
}
