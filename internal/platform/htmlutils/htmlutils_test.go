package htmlutils

import "testing"

func TestToText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain text passes through",
			input:    "no markup here",
			expected: "no markup here",
		},
		{
			name:     "paragraphs become blank lines",
			input:    "<p>first paragraph</p><p>second paragraph</p>",
			expected: "first paragraph\n\nsecond paragraph",
		},
		{
			name:     "inline tags join with spaces",
			input:    "<p>the <b>central</b> <i>bank</i> moved</p>",
			expected: "the central bank moved",
		},
		{
			name:     "script content dropped",
			input:    "<p>before</p><script>var x = 1;</script><p>after</p>",
			expected: "before\n\nafter",
		},
		{
			name:     "entities decoded",
			input:    "<p>Barnes &amp; Noble</p>",
			expected: "Barnes & Noble",
		},
		{
			name:     "br breaks paragraph",
			input:    "line one<br/>line two",
			expected: "line one\n\nline two",
		},
		{
			name:     "whitespace collapsed",
			input:    "spaced    out\t\ttext",
			expected: "spaced out text",
		},
		{
			name:     "unclosed markup tolerated",
			input:    "<p>open paragraph <b>bold run",
			expected: "open paragraph bold run",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "list items separated",
			input:    "<ul><li>alpha</li><li>beta</li></ul>",
			expected: "alpha\n\nbeta",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToText(tt.input); got != tt.expected {
				t.Errorf("ToText(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
