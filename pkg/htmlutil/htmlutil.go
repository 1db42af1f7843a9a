package htmlutil

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// \s in RE2 is ascii only, &nbsp; decodes to U+00A0 which should collapse as well.
var whitespace = regexp.MustCompile(`[\s\p{Zs}]+`)

func clean(text string) string {
	text = html.UnescapeString(text)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err == nil {
		var out strings.Builder
		for _, n := range doc.Nodes {
			out.WriteString(GetText(n))
		}
		text = out.String()
	}
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Sanitize turns a rich text field into plain text: entities are decoded,
// tags are removed and whitespace is collapsed into single spaces.
//
// Decoding entities may reveal new markup (ex. "&lt;b&gt;"), so the clean pass
// is repeated until the text stops changing. This makes Sanitize idempotent.
func Sanitize(text string) string {
	// every pass that changes the text consumes entity or tag syntax of the input, so
	// the fixed point is reached well within len(text) passes
	limit := len(text) + 1
	for i := 0; i < limit; i++ {
		cleaned := clean(text)
		if cleaned == text {
			return cleaned
		}
		text = cleaned
	}
	return text
}

var illegalFilenameChars = regexp.MustCompile(`[\\/*?:"<>|]`)

// SafeFilename removes the characters that are not allowed in file names on
// common filesystems.
func SafeFilename(name string) string {
	return illegalFilenameChars.ReplaceAllString(name, "")
}
