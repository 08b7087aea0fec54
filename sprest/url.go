package sprest

import (
	"fmt"
	"strings"
)

// rest addresses come in three grammars:
// - absolute: https://contoso.sharepoint.com/sites/dev/_api/web
// - plain segments: web/lists
// - grouped identifier: items(19) or items(19)/fields
// the grammar in play decides what the parent of a derived node is

func IsUrlAbsolute(url string) bool {
	lowerUrl := strings.ToLower(url)
	return strings.HasPrefix(lowerUrl, "https://") ||
		strings.HasPrefix(lowerUrl, "http://") ||
		strings.HasPrefix(lowerUrl, "//")
}

// joins non-empty parts with exactly one separator between each
func CombinePaths(paths ...string) string {
	parts := []string{}
	for _, path := range paths {
		path = strings.ReplaceAll(path, "\\", "/")
		path = strings.Trim(path, "/")
		if path != "" {
			parts = append(parts, path)
		}
	}
	return strings.Join(parts, "/")
}

// grouping must be balanced for parent derivation to be well defined
func validateGrouping(url string) error {
	depth := 0
	for _, c := range url {
		switch c {
		case '(':
			depth += 1
		case ')':
			depth -= 1
			if depth < 0 {
				return fmt.Errorf("unbalanced grouping in url: %s", url)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("unbalanced grouping in url: %s", url)
	}
	return nil
}
