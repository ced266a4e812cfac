package document

import "github.com/woxQAQ/unified-markup-lsp/pkg/markup"

// LineIndex maps protocol positions to byte offsets.
// LSP uses 0-based line/character positions with UTF-16 code units for
// characters; offsets handed to the analysis passes are byte offsets.
type LineIndex struct {
	text       string
	lineStarts []int // Byte offset of each line start
}

// NewLineIndex builds the line-start table for text.
func NewLineIndex(text string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{text: text, lineStarts: starts}
}

// LineCount returns the number of lines. An empty text has one line.
func (li *LineIndex) LineCount() int {
	return len(li.lineStarts)
}

// lineBounds returns the byte range of a line's content, excluding the line
// terminator.
func (li *LineIndex) lineBounds(line int) (start, end int) {
	start = li.lineStarts[line]
	if line+1 < len(li.lineStarts) {
		end = li.lineStarts[line+1] - 1 // drop '\n'
		if end > start && li.text[end-1] == '\r' {
			end--
		}
	} else {
		end = len(li.text)
	}
	return start, end
}

// ToOffset converts a position into a byte offset.
// Out-of-range lines and characters are clamped, so the result always lies in
// [0, len(text)].
func (li *LineIndex) ToOffset(pos markup.Position) int {
	line := pos.Line
	if line < 0 {
		line = 0
	}
	if line >= len(li.lineStarts) {
		line = len(li.lineStarts) - 1
	}

	start, end := li.lineBounds(line)
	return start + utf16ToByteOffset(li.text[start:end], pos.Character)
}

// ToSpan returns the zero-length span (insertion point) at pos.
func (li *LineIndex) ToSpan(pos markup.Position) markup.Span {
	return markup.Span{Start: li.ToOffset(pos), Length: 0}
}

// utf16ToByteOffset converts a UTF-16 offset within a line to a byte offset.
// A character pointing into the middle of a surrogate pair rounds up to the
// end of that rune.
func utf16ToByteOffset(s string, utf16Off int) int {
	if utf16Off <= 0 {
		return 0
	}

	units := 0
	for i, r := range s {
		if units >= utf16Off {
			return i
		}
		if r >= 0x10000 {
			units += 2 // Surrogate pair
		} else {
			units++
		}
	}
	return len(s)
}
