package transcript

import "strings"

var markupReplacer = strings.NewReplacer(
	"<b>", "<strong>",
	"</b>", "</strong>",
	"<i>", "<em>",
	"</i>", "</em>",
)

// NormalizeMarkup rewrites <b> and <i> tags to <strong> and <em>. Any other
// markup is left as is.
func NormalizeMarkup(content string) string {
	return markupReplacer.Replace(content)
}
