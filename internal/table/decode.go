package table

// decode.go turns uploaded bytes into normalized text.
//
// Uploads come from unknown locales and tools, so the decoder never fails on
// encoding alone. Encodings are tried in a fixed priority order and the first
// one that decodes the whole stream cleanly wins. When nothing fits, the bytes
// are read as ISO-8859-1, which maps every byte to a rune, and the result is
// flagged as lossy so the caller can log it.

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// utf8BOM is the byte order mark Excel and Notepad prepend to UTF-8 files.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// NamedEncoding pairs an x/text encoding with the name reported in DecodeInfo.
type NamedEncoding struct {
	Name     string
	Encoding encoding.Encoding
}

// FallbackEncodings are tried, in order, after UTF-8 fails.
var FallbackEncodings = []NamedEncoding{
	{Name: "gb18030", Encoding: simplifiedchinese.GB18030},
	{Name: "big5", Encoding: traditionalchinese.Big5},
	{Name: "shift_jis", Encoding: japanese.ShiftJIS},
	{Name: "utf-16", Encoding: unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM)},
	{Name: "utf-32", Encoding: utf32.UTF32(utf32.LittleEndian, utf32.ExpectBOM)},
	{Name: "windows-1252", Encoding: charmap.Windows1252},
}

// LossyEncoding is the terminal step of the chain. It cannot fail.
const LossyEncoding = "latin-1"

// DecodeInfo describes how Decode interpreted the input.
type DecodeInfo struct {
	Encoding string `json:"encoding"`
	Lossy    bool   `json:"lossy"`
}

// newlines folds CRLF and bare CR into LF. CRLF is listed first so it is
// matched before its CR prefix.
var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Decode converts raw file bytes into text with "\n" line endings.
func Decode(data []byte) (string, DecodeInfo) {
	return decodeWith(data, FallbackEncodings)
}

func decodeWith(data []byte, fallbacks []NamedEncoding) (string, DecodeInfo) {
	if text, ok := decodeUTF8(data); ok {
		return NormalizeNewlines(text), DecodeInfo{Encoding: "utf-8"}
	}

	for _, enc := range fallbacks {
		if text, ok := decodeStrict(enc.Encoding, data); ok {
			return NormalizeNewlines(text), DecodeInfo{Encoding: enc.Name}
		}
	}

	text, _ := charmap.ISO8859_1.NewDecoder().Bytes(data)
	return NormalizeNewlines(string(text)), DecodeInfo{Encoding: LossyEncoding, Lossy: true}
}

// NormalizeNewlines rewrites every CRLF and bare CR as LF.
func NormalizeNewlines(s string) string {
	if !strings.ContainsRune(s, '\r') {
		return s
	}
	return newlines.Replace(s)
}

func decodeUTF8(data []byte) (string, bool) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", false
	}
	return string(data), true
}

// decodeStrict runs an x/text decoder and rejects any output containing the
// replacement rune. x/text decoders substitute U+FFFD for byte sequences that
// are invalid in the source encoding instead of returning an error.
func decodeStrict(enc encoding.Encoding, data []byte) (string, bool) {
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", false
	}
	if !utf8.Valid(out) || bytes.ContainsRune(out, utf8.RuneError) {
		return "", false
	}
	return string(out), true
}
