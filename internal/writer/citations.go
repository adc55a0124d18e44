package writer

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/xiaomayi-ant/smart-agent-go/internal/state"
)

// sanitizer strips everything but the safe subset of HTML a rendered
// markdown snippet can legitimately contain, the same policy
// showcases/profile's profiling report uses before it lets rendered
// markdown anywhere near a client.
var sanitizer = bluemonday.UGCPolicy()

// renderCitations builds a "Citations:" footer from the Vector
// worker's evidence, one numbered line per passage. Each snippet's
// Text may itself be markdown (retrieved document content), so it goes
// through the same render-then-sanitize pipeline
// showcases/profile/main.go and showcases/deerflow/nodes.go use before
// a goquery pass collapses the sanitized HTML back down to the plain
// text a chat footnote actually wants -- the retrieved content is
// never trusted to be safe HTML, only safe markdown source.
func renderCitations(merged []state.Evidence) string {
	var vectorItems []state.Evidence
	for _, item := range merged {
		if item.Source == state.SourceVector {
			vectorItems = append(vectorItems, item)
		}
	}
	if len(vectorItems) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Citations:\n")
	for i, item := range vectorItems {
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, renderSnippet(item.Text))
	}
	return sb.String()
}

// renderSnippet renders markdown source to HTML, sanitizes it, and
// extracts the resulting plain text.
func renderSnippet(text string) string {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse([]byte(text))

	opts := mdhtml.RendererOptions{Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank}
	renderer := mdhtml.NewRenderer(opts)
	rendered := markdown.Render(doc, renderer)

	safe := sanitizer.SanitizeBytes(rendered)

	dom, err := goquery.NewDocumentFromReader(strings.NewReader(string(safe)))
	if err != nil {
		return strings.TrimSpace(text)
	}
	return strings.Join(strings.Fields(dom.Text()), " ")
}
