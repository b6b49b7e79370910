package conversion_test

import (
	"testing"

	"github.com/texlify/texlify/domain/conversion"
)

func TestParseTool(t *testing.T) {
	for _, tool := range conversion.Tools() {
		parsed, ok := conversion.ParseTool(string(tool))
		if !ok || parsed != tool {
			t.Fatalf("ParseTool(%q) = %q, %v", tool, parsed, ok)
		}
	}

	if _, ok := conversion.ParseTool("word-to-latex"); ok {
		t.Fatal("unknown tool accepted")
	}
	if _, ok := conversion.ParseTool(""); ok {
		t.Fatal("empty tool accepted")
	}
}

func TestOperation_IsTool(t *testing.T) {
	if conversion.General(100).IsTool() {
		t.Fatal("general operation reported as tool")
	}
	if !conversion.ToolOp(conversion.ToolPDFToLatex, 100).IsTool() {
		t.Fatal("tool operation not recognized")
	}
}

func TestRequiresAuth(t *testing.T) {
	if !conversion.ToolLatexToWord.RequiresAuth() {
		t.Fatal("latex-to-word should require auth")
	}
	if conversion.ToolImageToLatex.RequiresAuth() {
		t.Fatal("image-to-latex should not require auth")
	}
}
