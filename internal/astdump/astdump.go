// Package astdump is an in-process AST dumper for C and C++ sources built on
// tree-sitter. It prints one line per named syntax node in pre-order:
//
//	<depth spaces><node type> <file>:<line>:<col>
//
// Lines and columns are 1-based. Nodes tree-sitter could not parse are
// suffixed with " (error)".
package astdump

import (
	"bufio"
	"context"
	"fmt"
	"io"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/tudump/internal/runtime"
)

// Dump parses src as lang ("c" or "cpp") and writes the node listing to w,
// labelling locations with label.
func Dump(ctx context.Context, w io.Writer, label string, src []byte, lang string) error {
	grammar, ok := runtime.ParserForLanguage(lang)
	if !ok {
		return fmt.Errorf("astdump: unsupported language %q", lang)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return fmt.Errorf("astdump: parse %s: %w", label, err)
	}
	defer tree.Close()

	bw := bufio.NewWriter(w)
	if err := writeNode(bw, tree.RootNode(), label, 0); err != nil {
		return err
	}
	return bw.Flush()
}

func writeNode(w *bufio.Writer, n *sitter.Node, label string, depth int) error {
	for range depth {
		w.WriteByte(' ')
	}
	p := n.StartPoint()
	fmt.Fprintf(w, "%s %s:%d:%d", n.Type(), label, p.Row+1, p.Column+1)
	if n.Type() == "ERROR" {
		w.WriteString(" (error)")
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		if err := writeNode(w, n.NamedChild(i), label, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// LanguageFor picks the grammar for a source path. Sources with an
// extension tudump does not know are parsed as C++.
func LanguageFor(path string) string {
	if lang, ok := runtime.LanguageForFile(path); ok {
		return lang
	}
	return "cpp"
}
