package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceSubstitutesPort(t *testing.T) {
	src := Source(24678)
	assert.NotContains(t, src, PortPlaceholder)
	assert.Contains(t, src, ":24678`")
}

// The import rewriter and the CSS plugin import these names.
func TestRuntimeExports(t *testing.T) {
	src := Source(1)
	for _, e := range []string{
		"export function createHotContext(",
		"export function updateStyle(",
		"export function removeStyle(",
	} {
		assert.Contains(t, src, e)
	}
}
