package report

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var feedbackMarkdown = goldmark.New(goldmark.WithExtensions(extension.Strikethrough))

// plainText flattens markdown feedback for terminal output. Emphasis and
// link markers go, bullets become "•", code keeps its text, and blocks are
// separated by a blank line.
func plainText(md string) string {
	src := []byte(strings.ReplaceAll(md, "\r\n", "\n"))
	doc := feedbackMarkdown.Parser().Parse(text.NewReader(src))
	f := flattener{src: src}
	return strings.TrimSpace(strings.Join(f.blocks(doc, "", true), "\n"))
}

type flattener struct {
	src []byte
}

func (f flattener) blocks(parent ast.Node, indent string, spaced bool) []string {
	var out []string
	for child := parent.FirstChild(); child != nil; child = child.NextSibling() {
		lines := f.block(child, indent)
		if len(lines) == 0 {
			continue
		}
		if spaced && len(out) > 0 {
			out = append(out, "")
		}
		out = append(out, lines...)
	}
	return out
}

func (f flattener) block(n ast.Node, indent string) []string {
	switch n := n.(type) {
	case *ast.ThematicBreak, *ast.HTMLBlock:
		return nil
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		segments := n.Lines()
		lines := make([]string, 0, segments.Len())
		for i := 0; i < segments.Len(); i++ {
			seg := segments.At(i)
			lines = append(lines, indent+strings.TrimRight(string(seg.Value(f.src)), " \t\n"))
		}
		return lines
	case *ast.List:
		var lines []string
		number := n.Start
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			marker := "• "
			if n.IsOrdered() {
				marker = fmt.Sprintf("%d. ", number)
				number++
			}
			lines = append(lines, f.item(item, indent, marker)...)
		}
		return lines
	case *ast.Paragraph, *ast.TextBlock, *ast.Heading:
		return f.textLines(n, indent)
	}
	if n.HasChildren() && n.Type() == ast.TypeBlock {
		return f.blocks(n, indent, true)
	}
	return f.textLines(n, indent)
}

// item renders one list item with marker on its first line and the rest
// aligned under the item text.
func (f flattener) item(item ast.Node, indent, marker string) []string {
	pad := indent + "  "
	lines := f.blocks(item, pad, false)
	if len(lines) == 0 {
		return []string{indent + strings.TrimSpace(marker)}
	}
	lines[0] = indent + marker + strings.TrimPrefix(lines[0], pad)
	return lines
}

func (f flattener) textLines(n ast.Node, indent string) []string {
	raw := strings.Split(f.inline(n), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		lines = append(lines, indent+strings.TrimRight(line, " \t"))
	}
	return lines
}

func (f flattener) inline(n ast.Node) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := node.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(f.src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.AutoLink:
			b.Write(node.URL(f.src))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
