package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateDeterministic(t *testing.T) {
	a := Generate("1.2.3.4", "Mozilla/5.0", "https://ref.com", "en-US")
	b := Generate("1.2.3.4", "Mozilla/5.0", "https://ref.com", "en-US")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestGenerateDiffersPerInput(t *testing.T) {
	base := Generate("1.2.3.4", "Mozilla/5.0", "https://ref.com", "en-US")
	assert.NotEqual(t, base, Generate("1.2.3.5", "Mozilla/5.0", "https://ref.com", "en-US"))
	assert.NotEqual(t, base, Generate("1.2.3.4", "curl/8.0", "https://ref.com", "en-US"))
	assert.NotEqual(t, base, Generate("1.2.3.4", "Mozilla/5.0", "", "en-US"))
	assert.NotEqual(t, base, Generate("1.2.3.4", "Mozilla/5.0", "https://ref.com", "de-DE"))
}

func TestGenerateEmptyInputs(t *testing.T) {
	a := Generate("", "", "", "")
	b := Generate("", "", "", "")
	assert.Equal(t, a, b, "unknown visitor has a stable digest")
	assert.Len(t, a, 64)
}
