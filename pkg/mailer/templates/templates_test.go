package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	const link = "http://app.local/activate?uid=1&token=abc"
	data := map[string]any{
		"Username": "alice",
		"Link":     link,
	}

	for _, name := range []string{"activation", "reset_password"} {
		subject, text, html, err := Render(name, data)
		require.NoError(t, err, name)
		assert.NotEmpty(t, subject)
		assert.Contains(t, text, link)
		assert.Contains(t, html, "alice")
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, _, _, err := Render("nope", nil)
	assert.Error(t, err)
}
