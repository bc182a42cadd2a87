package stt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLanguage(t *testing.T) {
	t.Parallel()

	testCases := map[string]string{
		"":      "en-US",
		"en":    "en-US",
		" en ":  "en-US",
		"id":    "id-ID",
		"id-ID": "id-ID",
		"fr-FR": "fr-FR",
	}
	for in, want := range testCases {
		assert.Equal(t, want, NormalizeLanguage(in), "input %q", in)
	}
}
