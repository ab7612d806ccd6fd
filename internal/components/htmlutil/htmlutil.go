package htmlutil

import (
	"strings"

	"golang.org/x/net/html"
)

// Text concatenates the text nodes under node in document order. Comments
// and script bodies are left out, nil yields an empty string.
func Text(node *html.Node) string {
	var out strings.Builder
	writeText(node, &out)
	return out.String()
}

func writeText(node *html.Node, out *strings.Builder) {
	if node == nil {
		return
	}
	switch node.Type {
	case html.TextNode:
		out.WriteString(node.Data)
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		if node.Data == "script" || node.Data == "style" {
			return
		}
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		writeText(child, out)
	}
}
