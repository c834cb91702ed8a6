// Package reformat rewraps fenced code blocks in model replies so that no code
// line runs past a fixed width.
package reformat

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Width is the maximum line length inside a fenced block.
const Width = 80

const fence = "```"

// fenceRe matches an opening fence with an optional language tag, the body,
// and the first closing fence after it. Unterminated fences never match.
var fenceRe = regexp.MustCompile("(?s)```([^\\n`]*)\\n(.*?)```")

// CodeBlocks rewraps every fenced region of text to Width. Text outside the
// fences is returned untouched.
func CodeBlocks(text string) string {
	return CodeBlocksWidth(text, Width)
}

func CodeBlocksWidth(text string, width int) string {
	if width <= 0 || !strings.Contains(text, fence) {
		return text
	}
	return fenceRe.ReplaceAllStringFunc(text, func(block string) string {
		m := fenceRe.FindStringSubmatch(block)
		if m == nil {
			return block
		}
		lang, body := m[1], m[2]
		lines := strings.Split(body, "\n")
		out := make([]string, 0, len(lines))
		for _, line := range lines {
			out = append(out, WrapLine(line, width)...)
		}
		return fence + lang + "\n" + strings.Join(out, "\n") + fence
	})
}

// WrapLine splits line into pieces of at most width characters, breaking only
// on whitespace. A line already within width is returned as is. A single word
// longer than width stays whole on its own line.
func WrapLine(line string, width int) []string {
	if utf8.RuneCountInString(line) <= width {
		return []string{line}
	}
	words := strings.Fields(line)
	if len(words) == 0 {
		// whitespace only
		return []string{""}
	}
	var (
		out     []string
		current strings.Builder
		n       int
	)
	for _, w := range words {
		wn := utf8.RuneCountInString(w)
		if n == 0 {
			current.WriteString(w)
			n = wn
			continue
		}
		if n+1+wn <= width {
			current.WriteByte(' ')
			current.WriteString(w)
			n += 1 + wn
			continue
		}
		out = append(out, current.String())
		current.Reset()
		current.WriteString(w)
		n = wn
	}
	if n > 0 {
		out = append(out, current.String())
	}
	return out
}
