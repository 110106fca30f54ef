package codec

import "strings"

const byteOrderMark = "\ufeff"

type line struct {
	content string
	eol     string
}

func (l line) raw() string {
	return l.content + l.eol
}

func (l line) blank() bool {
	return strings.TrimSpace(l.content) == ""
}

// splitLines splits raw into lines, remembering each line's terminator
// ("\r\n", "\n", a lone "\r", or "" for a final unterminated line). A leading
// byte order mark is returned separately.
func splitLines(raw string) (string, []line) {
	lead := ""
	if strings.HasPrefix(raw, byteOrderMark) {
		lead = byteOrderMark
		raw = raw[len(byteOrderMark):]
	}
	var lines []line
	for raw != "" {
		idx := strings.IndexAny(raw, "\r\n")
		if idx < 0 {
			lines = append(lines, line{content: raw})
			break
		}
		eol := raw[idx : idx+1]
		if strings.HasPrefix(raw[idx:], "\r\n") {
			eol = "\r\n"
		}
		lines = append(lines, line{content: raw[:idx], eol: eol})
		raw = raw[idx+len(eol):]
	}
	return lead, lines
}
