package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimate(t *testing.T) {
	assert.Equal(t, 1, Estimate(""))
	assert.Equal(t, 4, Estimate("dolor de cabeza"))
	assert.Equal(t, 25, Estimate(strings.Repeat("a", 100)))
}
