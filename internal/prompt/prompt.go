// Package prompt builds the model prompts for the two generation features:
// product descriptions (draft or rewrite) and SEO metadata.
package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// minMeaningfulLength is the threshold below which an existing description is
// treated as empty, switching from rewrite mode to draft mode.
const minMeaningfulLength = 5

// DescriptionInput carries the merchant-supplied fields for a description
// generation request.
type DescriptionInput struct {
	ProductTitle       string
	ProductDescription string // existing description, HTML
	Tone               string
	Length             string
	Language           string
	CustomInstructions string
}

// SEOInput carries the fields for an SEO title/meta generation request.
type SEOInput struct {
	ProductTitle       string
	ProductDescription string // plain text, for context
	Keywords           string
}

// StripHTML removes markup so emptiness checks look at real content.
func StripHTML(s string) string {
	return strings.TrimSpace(htmlTagPattern.ReplaceAllString(s, ""))
}

// IsRewrite reports whether the input holds enough existing content to
// rewrite. Anything shorter than a few visible characters is treated as a
// draft-from-title request.
func (in DescriptionInput) IsRewrite() bool {
	return len(StripHTML(in.ProductDescription)) >= minMeaningfulLength
}

const toneAndLengthRules = `Tone Rules:
- simple: Easy language, Short sentences
- premium: Polished, Elegant
- indian audience: Friendly, Practical, No Western slang
- professional: Formal, Trustworthy, Expert
- persuasive: Compelling, Action-oriented, Benefit-focused
- witty: Fun, Engaging, Clever, Light-hearted
- luxury: Exclusive, Sophisticated, High-end vocabulary
- minimalist: Direct, Clean, No fluff
- storytelling: Narrative, Emotional connection, Descriptive`

// Description builds the prompt for a description request, choosing draft or
// rewrite mode from the existing content.
func Description(in DescriptionInput) (string, error) {
	if in.Language == "" {
		in.Language = "English"
	}

	custom := ""
	if in.CustomInstructions != "" {
		custom = fmt.Sprintf("- IMPORTANT: Follow these custom instructions: %s\n", in.CustomInstructions)
	}

	if !in.IsRewrite() {
		if strings.TrimSpace(in.ProductTitle) == "" {
			return "", fmt.Errorf("product title is required to generate a description")
		}

		return fmt.Sprintf(`You are an AI product description writer for an online store.
Generate a new product description based on the product title.

Product Title: %s
Tone: %s
Length: %s
Language: %s
Custom Instructions: %s

Rules:
- Create a compelling description from scratch.
- Focus on benefits and features implied by the title.
- Do NOT hallucinate specific specs (like dimensions) unless standard.
- Output MUST be valid HTML.
- No emojis.
%s
%s

Length Rules:
- short: Concise, ~50 words
- long: Detailed, ~150 words

Final Instruction:
Generate a product description in HTML format in %s language. Return ONLY the HTML.`,
			in.ProductTitle, in.Tone, in.Length, in.Language, in.CustomInstructions,
			custom, toneAndLengthRules, in.Language), nil
	}

	return fmt.Sprintf(`You are an AI product description editor for an online store.
This tool must rewrite existing product descriptions.

Core Rules:
- NEVER create a description from nothing.
- Preserve factual meaning.
- Optimize for low token usage.
- Input is HTML, Output MUST be valid HTML.
- Do NOT add new features.
%s
Rewrite Guidelines:
- Improve clarity, readability, and flow.
- Fix grammar.
- No emojis.
- Avoid exaggerated marketing words unless tone = premium.

%s

Length Rules:
- short: Reduce verbosity
- long: Slightly expand explanations

Input Variables:
Original description (HTML):
%s

Tone: %s
Length: %s
Language: %s
Custom Instructions: %s

Final Instruction:
Rewrite the provided product description HTML according to the selected tone and length in %s language. Return ONLY the HTML.`,
		custom, toneAndLengthRules,
		in.ProductDescription, in.Tone, in.Length, in.Language, in.CustomInstructions,
		in.Language), nil
}

// SEO builds the prompt for an SEO title and meta description. The model is
// asked for JSON with "title" and "description" keys.
func SEO(in SEOInput) (string, error) {
	if strings.TrimSpace(in.ProductTitle) == "" {
		return "", fmt.Errorf("product title is required to generate SEO metadata")
	}

	return fmt.Sprintf(`You are an SEO expert for online stores.
Generate an optimized SEO Title and Meta Description for the following product.

Product Title: %s
Product Description: %s
Target Keywords: %s

Rules:
1. SEO Title: Max 60 characters. Include the main keyword near the beginning.
2. Meta Description: Max 160 characters. Compelling, encourages clicks, includes keywords naturally.
3. Output Format: JSON with keys "title" and "description".

Example Output:
{
  "title": "Premium Organic Cotton T-Shirt | Eco-Friendly Brand",
  "description": "Shop our softest organic cotton t-shirt. Sustainable, breathable, and perfect for everyday wear."
}

Generate JSON:`, in.ProductTitle, in.ProductDescription, in.Keywords), nil
}

// CleanJSONReply strips markdown code fences models wrap around JSON output.
func CleanJSONReply(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
