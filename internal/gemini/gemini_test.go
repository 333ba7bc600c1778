package gemini

import (
	"context"
	"testing"

	"github.com/katalogcu/partalog/internal/providers"
	"github.com/stretchr/testify/assert"
)

func TestImageFormat(t *testing.T) {
	assert.Equal(t, "png", imageFormat([]byte("\x89PNG\r\n\x1a\n0000")))
	assert.Equal(t, "jpeg", imageFormat([]byte("\xff\xd8\xff\xe0")))
	assert.Equal(t, "jpeg", imageFormat([]byte("plain text")))
}

func TestExtractTextRequiresKey(t *testing.T) {
	_, err := New("").ExtractText(context.Background(), providers.Config{Prompt: "hi"})
	assert.ErrorContains(t, err, "GEMINI_API_KEY")
}
