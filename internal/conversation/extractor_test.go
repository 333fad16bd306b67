package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractor_Extract(t *testing.T) {
	e := NewExtractor(nil)

	tests := []struct {
		name  string
		input string
		want  ExtractResult
	}{
		{
			name:  "name phrase with email",
			input: "my name is Dana, dana@example.com",
			want:  ExtractResult{HasContact: true, Name: "Dana", Email: "dana@example.com", Confidence: confidencePhrase, NameConfidence: confidencePhrase},
		},
		{
			name:  "email only",
			input: "you can reach me at dana@example.com",
			want:  ExtractResult{HasContact: true, Email: "dana@example.com", Confidence: confidenceExact},
		},
		{
			name:  "name comma email shorthand",
			input: "Dana Smith, dana@example.com",
			want:  ExtractResult{HasContact: true, Name: "Dana Smith", Email: "dana@example.com", Confidence: confidenceShortcut, NameConfidence: confidenceShortcut},
		},
		{
			name:  "phone with parentheses",
			input: "(555) 123-4567",
			want:  ExtractResult{HasContact: true, Phone: "(555) 123-4567", Confidence: confidenceExact},
		},
		{
			name:  "call me is not a name",
			input: "call me at 555-123-4567",
			want:  ExtractResult{HasContact: true, Phone: "555-123-4567", Confidence: confidenceExact},
		},
		{
			name:  "name stops at and",
			input: "I'm Sarah and I need a site",
			want:  ExtractResult{HasContact: true, Name: "Sarah", Confidence: confidenceLoose, NameConfidence: confidenceLoose},
		},
		{
			name:  "loose pattern with stoplisted word",
			input: "i'm looking for a new website",
			want:  ExtractResult{},
		},
		{
			name:  "adjective after it's is not a name",
			input: "it's too pricey for me",
			want:  ExtractResult{},
		},
		{
			name:  "bare name",
			input: "Dana",
			want:  ExtractResult{HasContact: true, Name: "Dana", Confidence: confidenceBareName, NameConfidence: confidenceBareName},
		},
		{
			name:  "stoplisted reply",
			input: "ok thanks",
			want:  ExtractResult{},
		},
		{
			name:  "greeting is not a name",
			input: "hello",
			want:  ExtractResult{},
		},
		{
			name:  "digits only",
			input: "12345",
			want:  ExtractResult{},
		},
		{
			name:  "empty",
			input: "   ",
			want:  ExtractResult{},
		},
		{
			name:  "digits inside email are not a phone",
			input: "dana5551234567@example.com",
			want:  ExtractResult{HasContact: true, Email: "dana5551234567@example.com", Confidence: confidenceExact},
		},
		{
			name:  "typo tolerant",
			input: "my nmae is Jordan",
			want:  ExtractResult{HasContact: true, Name: "Jordan", Confidence: confidencePhrase, NameConfidence: confidencePhrase},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Extract(tt.input))
		})
	}
}

func TestExtractor_LoosePhrasesRankBelowMyNameIs(t *testing.T) {
	e := NewExtractor(nil)
	for _, input := range []string{"i'm Dana", "this is Dana", "call me Dana"} {
		got := e.Extract(input)
		assert.Equal(t, "Dana", got.Name, "input %q", input)
		assert.Less(t, got.NameConfidence, e.Extract("my name is Dana").NameConfidence, "input %q", input)
	}
}

func TestExtractor_MyNameIsCapturesName(t *testing.T) {
	e := NewExtractor(nil)
	for _, name := range []string{"Dana", "Mary Jane", "Jo", "Christopher Robinson"} {
		got := e.Extract("my name is " + name)
		assert.Equal(t, name, got.Name, "input %q", name)
		assert.True(t, got.HasContact)
	}
}

func TestExtractor_EmailWithoutNameAlwaysExtracted(t *testing.T) {
	e := NewExtractor(nil)
	for _, email := range []string{"a.b@example.co", "first+tag@sub.domain.org", "x_y@z.io"} {
		got := e.Extract("send details to " + email + " please")
		assert.Equal(t, email, got.Email)
		assert.True(t, got.HasContact)
	}
}

func TestExtractor_IsPure(t *testing.T) {
	e := NewExtractor(nil)
	input := "I'm Alex, alex@example.com, 555.123.4567"
	assert.Equal(t, e.Extract(input), e.Extract(input))
}

func TestValidators(t *testing.T) {
	assert.True(t, ValidName("Dana"))
	assert.False(t, ValidName("   "))
	assert.False(t, ValidName("123 45"))

	assert.True(t, ValidEmail("a@b.co"))
	assert.False(t, ValidEmail("a@b"))
	assert.False(t, ValidEmail("not an email"))

	assert.True(t, ValidPhone("555-123-4567"))
	assert.True(t, ValidPhone("+1 (555) 123-4567"))
	assert.False(t, ValidPhone("555-1234"))
}

func TestExtractResult_Validated(t *testing.T) {
	res := ExtractResult{HasContact: true, Name: "123", Email: "dana@example.com", Phone: "555-1234"}
	assert.Equal(t, LeadInfo{Email: "dana@example.com"}, res.Validated())
}
