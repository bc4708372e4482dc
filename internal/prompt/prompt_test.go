package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripHTML(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"<p>hello</p>", "hello"},
		{"<p>  </p>", ""},
		{"plain text", "plain text"},
		{"<div><span>a</span>b</div>", "ab"},
		{"", ""},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, StripHTML(tc.in))
	}
}

func TestDescriptionInput_IsRewrite(t *testing.T) {
	assert.True(t, DescriptionInput{ProductDescription: "<p>A solid walnut desk</p>"}.IsRewrite())
	// Markup with fewer than five visible characters means draft mode.
	assert.False(t, DescriptionInput{ProductDescription: "<p>ab</p>"}.IsRewrite())
	assert.False(t, DescriptionInput{ProductDescription: ""}.IsRewrite())
}

func TestDescription_DraftMode(t *testing.T) {
	p, err := Description(DescriptionInput{
		ProductTitle: "Walnut Standing Desk",
		Tone:         "professional",
		Length:       "short",
	})
	require.NoError(t, err)

	assert.Contains(t, p, "Generate a new product description")
	assert.Contains(t, p, "Walnut Standing Desk")
	assert.Contains(t, p, "English", "language defaults to English")
	assert.NotContains(t, p, "Rewrite the provided product description")
}

func TestDescription_DraftModeRequiresTitle(t *testing.T) {
	_, err := Description(DescriptionInput{ProductDescription: "<p></p>"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "product title is required")
}

func TestDescription_RewriteMode(t *testing.T) {
	p, err := Description(DescriptionInput{
		ProductTitle:       "Walnut Standing Desk",
		ProductDescription: "<p>A desk made of walnut wood.</p>",
		Tone:               "premium",
		Length:             "long",
		Language:           "German",
		CustomInstructions: "mention the warranty",
	})
	require.NoError(t, err)

	assert.Contains(t, p, "rewrite existing product descriptions")
	assert.Contains(t, p, "<p>A desk made of walnut wood.</p>")
	assert.Contains(t, p, "German")
	assert.Contains(t, p, "mention the warranty")
	assert.NotContains(t, p, "from scratch")
}

func TestSEO(t *testing.T) {
	p, err := SEO(SEOInput{
		ProductTitle:       "Organic Cotton T-Shirt",
		ProductDescription: "Soft, breathable, sustainably sourced.",
		Keywords:           "organic tshirt, eco friendly",
	})
	require.NoError(t, err)

	assert.Contains(t, p, "Organic Cotton T-Shirt")
	assert.Contains(t, p, "organic tshirt")
	assert.Contains(t, p, `JSON with keys "title" and "description"`)

	_, err = SEO(SEOInput{})
	require.Error(t, err)
}

func TestCleanJSONReply(t *testing.T) {
	raw := "```json\n{\"title\": \"T\", \"description\": \"D\"}\n```"
	cleaned := CleanJSONReply(raw)
	assert.True(t, strings.HasPrefix(cleaned, "{"))
	assert.True(t, strings.HasSuffix(cleaned, "}"))
	assert.Equal(t, "{\"a\":1}", CleanJSONReply("{\"a\":1}"))
}
