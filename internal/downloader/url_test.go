package downloader

import (
	"strings"
	"testing"
)

// =============================================================================
// ValidURL Tests
// =============================================================================

func TestValidURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"watch link", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"watch link no www", "https://youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"watch link http", "http://www.youtube.com/watch?v=abc123", true},
		{"watch link with extra params", "https://www.youtube.com/watch?v=abc123&t=42s", true},
		{"shorts link", "https://www.youtube.com/shorts/abc-123_XY", true},
		{"short link", "https://youtu.be/dQw4w9WgXcQ", true},
		{"playlist link", "https://www.youtube.com/playlist?list=PLabc123", true},
		{"channel link", "https://www.youtube.com/channel/UCabc123", true},
		{"handle link", "https://www.youtube.com/@somecreator", true},
		{"empty", "", false},
		{"wrong host", "https://evil.example.com/watch?v=abc123", false},
		{"host suffix spoof", "https://notyoutube.com/watch?v=abc123", false},
		{"bare host", "https://www.youtube.com/", false},
		{"watch without id", "https://www.youtube.com/watch?v=", false},
		{"not a url", "watch?v=abc123", false},
		{"over length bound", "https://www.youtube.com/watch?v=" + strings.Repeat("a", 500), false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ValidURL(tt.url); got != tt.want {
				t.Errorf("ValidURL(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestValidURLLengthBoundary(t *testing.T) {
	t.Parallel()

	base := "https://www.youtube.com/watch?v=abc123"
	atLimit := base + strings.Repeat("x", maxURLLength-len(base))
	if !ValidURL(atLimit) {
		t.Errorf("URL of exactly %d chars should be accepted", maxURLLength)
	}
	if ValidURL(atLimit + "x") {
		t.Errorf("URL of %d chars should be rejected", maxURLLength+1)
	}
}

// =============================================================================
// ValidateBatch Tests
// =============================================================================

func TestValidateBatch(t *testing.T) {
	t.Parallel()

	const maxBatch = 10
	valid := "https://www.youtube.com/watch?v=abc123"

	tests := []struct {
		name    string
		urls    []string
		wantLen int
		wantErr bool
	}{
		{
			name:    "single valid url",
			urls:    []string{valid},
			wantLen: 1,
		},
		{
			name:    "whitespace and blanks trimmed",
			urls:    []string{"  " + valid + "  ", "", "   "},
			wantLen: 1,
		},
		{
			name:    "empty list",
			urls:    nil,
			wantErr: true,
		},
		{
			name:    "only blanks",
			urls:    []string{"", "  "},
			wantErr: true,
		},
		{
			name:    "one invalid rejects whole batch",
			urls:    []string{valid, "https://evil.example.com/watch?v=x"},
			wantErr: true,
		},
		{
			name:    "over batch limit",
			urls:    repeatURL(valid, maxBatch+1),
			wantErr: true,
		},
		{
			name:    "at batch limit",
			urls:    repeatURL(valid, maxBatch),
			wantLen: maxBatch,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ValidateBatch(tt.urls, maxBatch)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateBatch() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && len(got) != tt.wantLen {
				t.Errorf("ValidateBatch() returned %d URLs, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func repeatURL(url string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = url
	}
	return out
}
