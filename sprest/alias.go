package sprest

import (
	"strings"

	"github.com/golang/glog"
)

// alias tokens let a facade embed a literal value inside a path segment,
// for example getByLoginName('!@v::i:0#.f|m|user@contoso.com'), instead of
// escaping the value inline. at serialization time the token collapses to
// the bare label and the value is promoted to a quoted query parameter:
// getByLoginName(@v)?@v='...'
const aliasOpen = "'!@"
const aliasSeparator = "::"
const aliasClose = "'"

// rewrites alias tokens in url into params, left to right in a single pass.
// replacement text is never re-scanned, so values cannot expand recursively.
func rewriteAliases(url string, params *QueryParams) string {
	var out strings.Builder
	for {
		start := strings.Index(url, aliasOpen)
		if start < 0 {
			break
		}
		rest := url[start+len(aliasOpen):]
		sep := strings.Index(rest, aliasSeparator)
		if sep < 0 {
			break
		}
		valueStart := sep + len(aliasSeparator)
		end := strings.Index(rest[valueStart:], aliasClose)
		if end < 0 {
			break
		}
		label := "@" + rest[:sep]
		value := rest[valueStart : valueStart+end]
		glog.V(2).Infof("[alias]rewrite %s = '%s'\n", label, value)
		params.Set(label, "'"+value+"'")
		out.WriteString(url[:start])
		out.WriteString(label)
		url = rest[valueStart+end+len(aliasClose):]
	}
	out.WriteString(url)
	return out.String()
}
