package rank

import "strings"

// RepresentativeLine returns the 1-based index of the first line that is not
// blank, not a comment, and not an import or re-export statement. A file made
// entirely of such lines anchors at line 1.
func RepresentativeLine(content string) int {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	inBlockComment := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if inBlockComment {
			if idx := strings.Index(trimmed, "*/"); idx >= 0 {
				inBlockComment = false
				rest := strings.TrimSpace(trimmed[idx+2:])
				if rest == "" || isSkippable(rest) {
					continue
				}
				return i + 1
			}
			continue
		}

		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "//") {
			continue
		}
		if strings.HasPrefix(trimmed, "/*") {
			if !strings.Contains(trimmed[2:], "*/") {
				inBlockComment = true
			}
			continue
		}
		if isSkippable(trimmed) {
			continue
		}
		return i + 1
	}
	return 1
}

// isSkippable matches plain import statements and `export {`-style
// re-exports, which make poor citation anchors.
func isSkippable(trimmed string) bool {
	if strings.HasPrefix(trimmed, "import ") || trimmed == "import" {
		return true
	}
	if strings.HasPrefix(trimmed, "export {") || strings.HasPrefix(trimmed, "export *") {
		return true
	}
	return false
}
