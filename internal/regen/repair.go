package regen

import "strings"

// RepairResponse applies best-effort cleanup to a raw model response before
// parsing: markdown code fences are stripped, text outside the outermost
// braces is trimmed, and raw control characters inside string values are
// escaped. Returns the cleaned text and whether any repair changed it.
func RepairResponse(raw string) (string, bool) {
	cleaned := stripFences(raw)
	cleaned = trimToBraces(cleaned)
	cleaned = escapeControlChars(cleaned)
	return cleaned, cleaned != strings.TrimSpace(raw)
}

// stripFences removes leading/trailing markdown code fences
// (```json ... ``` or ``` ... ```).
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		// Remove first line (the fence opener)
		idx := strings.Index(s, "\n")
		if idx >= 0 {
			s = s[idx+1:]
		}
	}
	if strings.HasSuffix(s, "```") {
		idx := strings.LastIndex(s, "\n```")
		if idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

// trimToBraces drops any leading commentary before the first "{" and any
// trailing text after the matching last "}".
func trimToBraces(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

// escapeControlChars escapes raw newlines, carriage returns, and tabs that
// appear inside JSON string values. Models emitting multi-line section text
// frequently forget to escape them.
func escapeControlChars(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	inString := false
	escaped := false
	for _, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			case r == '\n':
				sb.WriteString(`\n`)
				continue
			case r == '\r':
				sb.WriteString(`\r`)
				continue
			case r == '\t':
				sb.WriteString(`\t`)
				continue
			}
		} else if r == '"' {
			inString = true
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
