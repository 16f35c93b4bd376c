// Package reference generates human readable transaction references.
package reference

import (
	"crypto/rand"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const DefaultPrefix = "DEXC_TX"

// Generator produces PREFIX_XXXXXXXXXXXXXXXX references from 16 uppercased
// hex digits of a random UUID.
type Generator struct {
	prefix  string
	rand    io.Reader
	pattern *regexp.Regexp
}

// New returns a generator backed by crypto/rand.
func New(prefix string) *Generator {
	return NewWithReader(prefix, rand.Reader)
}

func NewWithReader(prefix string, r io.Reader) *Generator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Generator{
		prefix:  prefix,
		rand:    r,
		pattern: regexp.MustCompile("^" + regexp.QuoteMeta(prefix) + "_[A-Z0-9]{16}$"),
	}
}

func (g *Generator) Generate() (string, error) {
	id, err := uuid.NewRandomFromReader(g.rand)
	if err != nil {
		return "", fmt.Errorf("generate reference: %w", err)
	}
	hex := strings.ReplaceAll(id.String(), "-", "")
	return g.prefix + "_" + strings.ToUpper(hex[:16]), nil
}

// Pattern matches every reference this generator can produce.
func (g *Generator) Pattern() *regexp.Regexp {
	return g.pattern
}
