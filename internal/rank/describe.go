package rank

import (
	"strings"

	"worklens/internal/catalog"
)

// Describe produces a one-line description for a cited file, by filename
// convention first, then by extension.
func Describe(path, content string) string {
	base := baseName(path)

	switch {
	case base == "package.json":
		return "Project dependencies and scripts"
	case strings.HasPrefix(base, "tsconfig"):
		return "TypeScript compiler configuration"
	case base == "README.md":
		return "Project documentation"
	case hasSegment(path, "services"):
		return "Backend service logic"
	case hasSegment(path, "components"):
		return "UI component"
	}

	switch strings.ToLower(catalog.Extension(base)) {
	case "tsx":
		if strings.Contains(content, "export default") {
			return "React component entry point"
		}
		return "React component"
	case "jsx":
		return "React component"
	case "ts":
		return "TypeScript module"
	case "js":
		return "JavaScript module"
	case "json":
		return "Configuration file"
	case "md":
		return "Markdown documentation"
	case "css", "scss":
		return "Styling definitions"
	case "html":
		return "HTML template"
	default:
		return "Source file"
	}
}
