package processor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/ZaguanLabs/transcache"
)

// TranslatableAttributes lists the attributes whose values are translated
// along with text content.
var TranslatableAttributes = []string{"alt", "title", "placeholder", "aria-label"}

// HTMLProcessor extracts and applies translations to HTML content.
type HTMLProcessor struct {
	ignoredTags map[string]bool
	attributes  map[string]bool
}

// NewHTMLProcessor creates a new HTML processor with default ignored tags.
func NewHTMLProcessor() *HTMLProcessor {
	return newHTMLProcessor(transcache.IgnoredTags)
}

// NewHTMLProcessorWithIgnoredTags creates a new HTML processor with custom ignored tags.
func NewHTMLProcessorWithIgnoredTags(tags []string) *HTMLProcessor {
	ignored := make(map[string]bool)
	for _, tag := range tags {
		ignored[strings.ToLower(tag)] = true
	}
	return newHTMLProcessor(ignored)
}

func newHTMLProcessor(ignored map[string]bool) *HTMLProcessor {
	attrs := make(map[string]bool, len(TranslatableAttributes))
	for _, a := range TranslatableAttributes {
		attrs[a] = true
	}
	return &HTMLProcessor{ignoredTags: ignored, attributes: attrs}
}

// target is one place a translation is written back to.
type target struct {
	node *html.Node
	attr string // empty for the text node itself
}

// parsedHTML holds the parsed document and the write-back targets per hash.
type parsedHTML struct {
	doc     *goquery.Document
	targets map[string][]target
}

// Extract parses HTML and returns one TextNode per distinct text. Every
// occurrence of a text is recorded for Apply.
func (p *HTMLProcessor) Extract(content string) (interface{}, []TextNode, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, nil, &transcache.ProcessorError{
			Message:     "failed to parse HTML",
			Cause:       err,
			ContentType: "html",
		}
	}

	parsed := &parsedHTML{doc: doc, targets: make(map[string][]target)}
	var nodes []TextNode

	add := func(text string, t target, nodeType, context string) {
		hash := transcache.HashText(text)
		if _, seen := parsed.targets[hash]; !seen {
			node := TextNode{
				ID:       fmt.Sprintf("node-%d", len(nodes)),
				Text:     text,
				Hash:     hash,
				NodeType: nodeType,
				Context:  context,
				Metadata: map[string]string{},
			}
			if nodeType == NodeTypeAttribute {
				node.Metadata["attribute"] = t.attr
				node.Metadata["parent_tag"] = t.node.Data
			} else if t.node.Parent != nil {
				node.Metadata["parent_tag"] = t.node.Parent.Data
			}
			nodes = append(nodes, node)
		}
		parsed.targets[hash] = append(parsed.targets[hash], t)
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if p.skip(n) {
				return
			}
			for _, attr := range n.Attr {
				if !p.attributes[attr.Key] {
					continue
				}
				if trimmed := strings.TrimSpace(attr.Val); trimmed != "" {
					add(trimmed, target{node: n, attr: attr.Key}, NodeTypeAttribute,
						fmt.Sprintf("%s attribute of <%s>", attr.Key, n.Data))
				}
			}
		case html.TextNode:
			if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
				add(trimmed, target{node: n}, NodeTypeText, buildContext(n))
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	for _, n := range doc.Nodes {
		walk(n)
	}

	return parsed, nodes, nil
}

// skip reports whether an element and its subtree are excluded from translation.
func (p *HTMLProcessor) skip(n *html.Node) bool {
	if p.ignoredTags[strings.ToLower(n.Data)] {
		return true
	}
	for _, attr := range n.Attr {
		if attr.Key == "data-no-translate" || (attr.Key == "translate" && strings.EqualFold(attr.Val, "no")) {
			return true
		}
	}
	return false
}

// Apply writes translations (keyed by TextNode.Hash) back into the document.
func (p *HTMLProcessor) Apply(parsed interface{}, nodes []TextNode, translations map[string]string) (string, error) {
	ph, ok := parsed.(*parsedHTML)
	if !ok {
		return "", &transcache.ProcessorError{
			Message:     "invalid parsed content type",
			ContentType: "html",
		}
	}

	for _, node := range nodes {
		translated, ok := translations[node.Hash]
		if !ok {
			continue
		}
		for _, t := range ph.targets[node.Hash] {
			if t.attr == "" {
				t.node.Data = preserveWhitespace(t.node.Data, translated)
				continue
			}
			for i := range t.node.Attr {
				if t.node.Attr[i].Key == t.attr {
					t.node.Attr[i].Val = preserveWhitespace(t.node.Attr[i].Val, translated)
				}
			}
		}
	}

	out, err := ph.doc.Html()
	if err != nil {
		return "", &transcache.ProcessorError{
			Message:     "failed to serialize HTML",
			Cause:       err,
			ContentType: "html",
		}
	}

	return out, nil
}

// ContentType returns "html".
func (p *HTMLProcessor) ContentType() string {
	return "html"
}

// buildContext describes where a text node sits: its parent element, up to
// three sibling texts and up to three ancestors.
func buildContext(n *html.Node) string {
	parent := n.Parent
	if parent == nil {
		return ""
	}

	var parts []string

	switch class, id := attrValue(parent, "class"), attrValue(parent, "id"); {
	case class != "":
		parts = append(parts, fmt.Sprintf("in <%s class=\"%s\">", parent.Data, class))
	case id != "":
		parts = append(parts, fmt.Sprintf("in <%s id=\"%s\">", parent.Data, id))
	default:
		parts = append(parts, fmt.Sprintf("in <%s>", parent.Data))
	}

	var siblings []string
	for sib := parent.FirstChild; sib != nil && len(siblings) < 3; sib = sib.NextSibling {
		if sib == n || sib.Type != html.TextNode {
			continue
		}
		if text := strings.TrimSpace(sib.Data); text != "" && len(text) < 100 {
			siblings = append(siblings, text)
		}
	}
	if len(siblings) > 0 {
		parts = append(parts, "with: "+strings.Join(siblings, ", "))
	}

	var ancestors []string
	for a, i := parent.Parent, 0; a != nil && i < 3; a, i = a.Parent, i+1 {
		if a.Type == html.ElementNode && a.Data != "html" && a.Data != "body" {
			ancestors = append([]string{a.Data}, ancestors...)
		}
	}
	if len(ancestors) > 0 {
		parts = append(parts, "inside: "+strings.Join(ancestors, " > "))
	}

	return strings.Join(parts, " | ")
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// preserveWhitespace keeps the leading and trailing whitespace of original
// around translated.
func preserveWhitespace(original, translated string) string {
	const space = " \t\n\r"
	leading := original[:len(original)-len(strings.TrimLeft(original, space))]
	trailing := original[len(strings.TrimRight(original, space)):]
	return leading + translated + trailing
}

// Verify HTMLProcessor implements ContentProcessor
var _ ContentProcessor = (*HTMLProcessor)(nil)
