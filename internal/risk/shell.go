package risk

import "strings"

// splitSegments splits a command line on unquoted |, ||, && and ;.
func splitSegments(s string) []string {
	var segments []string
	var current strings.Builder
	inSingle := false
	inDouble := false
	prev := rune(0)

	flush := func() {
		if seg := strings.TrimSpace(current.String()); seg != "" {
			segments = append(segments, seg)
		}
		current.Reset()
	}

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]

		switch {
		case ch == '\'' && !inDouble && prev != '\\':
			inSingle = !inSingle
			current.WriteRune(ch)
		case ch == '"' && !inSingle && prev != '\\':
			inDouble = !inDouble
			current.WriteRune(ch)
		case ch == '|' && !inSingle && !inDouble:
			flush()
			if i+1 < len(runes) && runes[i+1] == '|' {
				i++
			}
		case ch == ';' && !inSingle && !inDouble:
			flush()
		case ch == '&' && !inSingle && !inDouble && i+1 < len(runes) && runes[i+1] == '&':
			flush()
			i++
		default:
			current.WriteRune(ch)
		}
		prev = ch
	}

	flush()

	return segments
}

// tokenize splits a segment into shell-like words, dropping quotes.
func tokenize(s string) []string {
	var tokens []string
	var current strings.Builder
	inSingle := false
	inDouble := false
	prev := rune(0)

	for _, ch := range s {
		switch {
		case ch == '\'' && !inDouble && prev != '\\':
			inSingle = !inSingle
		case ch == '"' && !inSingle && prev != '\\':
			inDouble = !inDouble
		case (ch == ' ' || ch == '\t') && !inSingle && !inDouble:
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(ch)
		}
		prev = ch
	}

	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}

	return tokens
}

// commandWords returns the words of a segment starting at the real command:
// leading VAR=value assignments and sudo (with its options) are skipped, and
// a path-qualified command is reduced to its base name.
func commandWords(seg string) []string {
	tokens := tokenize(seg)
	i := 0

	for i < len(tokens) {
		tok := tokens[i]

		switch {
		case strings.Contains(tok, "=") && !strings.HasPrefix(tok, "-"):
			i++
		case tok == "sudo":
			i++
			for i < len(tokens) && strings.HasPrefix(tokens[i], "-") {
				// options that take a value
				if tokens[i] == "-u" || tokens[i] == "-g" || tokens[i] == "-C" {
					i++
				}
				i++
			}
		default:
			words := append([]string(nil), tokens[i:]...)
			if idx := strings.LastIndex(words[0], "/"); idx >= 0 {
				words[0] = words[0][idx+1:]
			}
			return words
		}
	}

	return nil
}

// redirectsToFile reports an unquoted > or >> whose target is a file, ignoring
// descriptor duplication (2>&1) and /dev/null.
func redirectsToFile(s string) bool {
	inSingle := false
	inDouble := false
	prev := rune(0)

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]

		switch {
		case ch == '\'' && !inDouble && prev != '\\':
			inSingle = !inSingle
		case ch == '"' && !inSingle && prev != '\\':
			inDouble = !inDouble
		case ch == '>' && !inSingle && !inDouble:
			j := i + 1
			if j < len(runes) && runes[j] == '>' {
				j++
			}
			target := strings.TrimSpace(string(runes[j:]))
			if strings.HasPrefix(target, "&") || strings.HasPrefix(target, "/dev/null") {
				i = j - 1
				break
			}
			return true
		}
		prev = runes[i]
	}

	return false
}
