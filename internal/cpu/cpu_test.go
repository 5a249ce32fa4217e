package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	for _, typ := range []Type{Generic, SSE42, AVX2, AVX512, NEON} {
		got, ok := Parse(typ.String())
		assert.True(t, ok)
		assert.Equal(t, typ, got)
	}
	_, ok := Parse("mmx")
	assert.False(t, ok)
}

func TestDetected(t *testing.T) {
	assert.True(t, Available(Detected()))
	assert.True(t, Available(Generic))
}
