package table

import (
	"testing"
)

// ============================================================================
// Decode Tests
// ============================================================================

func TestDecode(t *testing.T) {
	tests := []struct {
		name         string
		input        []byte
		wantText     string
		wantEncoding string
		wantLossy    bool
	}{
		{
			name:         "plain ascii",
			input:        []byte("a,b\n1,2\n"),
			wantText:     "a,b\n1,2\n",
			wantEncoding: "utf-8",
		},
		{
			name:         "utf-8 with BOM strips BOM",
			input:        append([]byte{0xEF, 0xBB, 0xBF}, []byte("name\nJosé")...),
			wantText:     "name\nJosé",
			wantEncoding: "utf-8",
		},
		{
			name:         "gb18030 chinese",
			input:        []byte{0xD6, 0xD0, 0xCE, 0xC4}, // 中文
			wantText:     "中文",
			wantEncoding: "gb18030",
		},
		{
			name:         "latin-1 text without BOM is windows-1252",
			input:        []byte("name,city\nJos\xe9,Z\xfcrich\n"),
			wantText:     "name,city\nJosé,Zürich\n",
			wantEncoding: "windows-1252",
		},
		{
			name:         "utf-16 requires its BOM",
			input:        []byte{0xFF, 0xFE, 'h', 0x00, 'i', 0x00},
			wantText:     "hi",
			wantEncoding: "utf-16",
		},
		{
			name:         "empty input",
			input:        []byte{},
			wantText:     "",
			wantEncoding: "utf-8",
		},
		{
			name:         "CRLF and bare CR normalized",
			input:        []byte("a\r\nb\rc"),
			wantText:     "a\nb\nc",
			wantEncoding: "utf-8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, info := Decode(tt.input)
			if got != tt.wantText {
				t.Errorf("Decode() text = %q, want %q", got, tt.wantText)
			}
			if info.Encoding != tt.wantEncoding {
				t.Errorf("Decode() encoding = %q, want %q", info.Encoding, tt.wantEncoding)
			}
			if info.Lossy != tt.wantLossy {
				t.Errorf("Decode() lossy = %v, want %v", info.Lossy, tt.wantLossy)
			}
		})
	}
}

func TestDecode_Idempotent(t *testing.T) {
	input := []byte("id;name\n1;Zoë\n2;Łukasz\n")

	first, _ := Decode(input)
	second, _ := Decode([]byte(first))

	if first != second {
		t.Errorf("decoding twice changed text: %q vs %q", first, second)
	}
}

func TestDecode_LossyFallback(t *testing.T) {
	// With no fallbacks left to try, invalid UTF-8 must still decode.
	got, info := decodeWith([]byte("caf\xe9\r\n"), nil)

	if got != "café\n" {
		t.Errorf("lossy decode = %q, want %q", got, "café\n")
	}
	if !info.Lossy {
		t.Error("lossy decode should set Lossy")
	}
	if info.Encoding != LossyEncoding {
		t.Errorf("encoding = %q, want %q", info.Encoding, LossyEncoding)
	}
}

func TestDecode_SkipsEncodingThatIntroducesReplacement(t *testing.T) {
	// 0xFF is never valid in GB18030; only the latin-1 fallback can take it.
	fallbacks := []NamedEncoding{FallbackEncodings[0]}

	_, info := decodeWith([]byte{'a', 0xFF}, fallbacks)
	if info.Encoding != LossyEncoding {
		t.Errorf("encoding = %q, want %q", info.Encoding, LossyEncoding)
	}
}

// ============================================================================
// NormalizeNewlines Tests
// ============================================================================

func TestNormalizeNewlines(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"a\r\nb\rc", "a\nb\nc"},
		{"no breaks", "no breaks"},
		{"\r\r\n", "\n\n"},
		{"a\n\rb", "a\n\nb"},
	}

	for _, tt := range tests {
		if got := NormalizeNewlines(tt.input); got != tt.want {
			t.Errorf("NormalizeNewlines(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
