// Package conversion defines the value types for conversion requests
// and their persisted records.
package conversion

import "time"

// Tool names an auxiliary conversion kind with its own daily sub-quota.
type Tool string

const (
	ToolImageToLatex Tool = "image-to-latex"
	ToolPDFToLatex   Tool = "pdf-to-latex"
	ToolLatexToImage Tool = "latex-to-image"
	ToolLatexToWord  Tool = "latex-to-word"
)

// Tools lists all known tools.
func Tools() []Tool {
	return []Tool{ToolImageToLatex, ToolPDFToLatex, ToolLatexToImage, ToolLatexToWord}
}

// ParseTool validates a tool name from the wire.
func ParseTool(s string) (Tool, bool) {
	switch Tool(s) {
	case ToolImageToLatex, ToolPDFToLatex, ToolLatexToImage, ToolLatexToWord:
		return Tool(s), true
	}
	return "", false
}

// Operation describes what a request wants to do (value type). A zero
// Tool means a general text conversion; otherwise a tool conversion.
type Operation struct {
	Tool        Tool
	InputLength int
}

// General builds a general conversion operation.
func General(inputLength int) Operation {
	return Operation{InputLength: inputLength}
}

// ToolOp builds a tool conversion operation.
func ToolOp(tool Tool, inputLength int) Operation {
	return Operation{Tool: tool, InputLength: inputLength}
}

// IsTool reports whether the operation targets a named tool.
func (o Operation) IsTool() bool {
	return o.Tool != ""
}

// RequiresAuth reports whether the tool is only available to signed-in
// accounts. LaTeX-to-Word is a pro feature with no anonymous quota at all.
func (t Tool) RequiresAuth() bool {
	return t == ToolLatexToWord
}

// Status is the lifecycle state of a file conversion.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

// Record is a persisted text conversion (history entry).
type Record struct {
	ID         string
	UserID     string // empty for anonymous
	SessionKey string // empty for authenticated
	Input      string
	Output     string
	Anonymous  bool
	CreatedAt  time.Time
}

// FileRecord is a persisted tool conversion with its lifecycle.
type FileRecord struct {
	ID             string
	UserID         string
	SessionKey     string
	Tool           Tool
	InputText      string
	OutputText     string
	Status         Status
	ErrorMessage   string
	IdempotencyKey string
	LatencyMs      int64
	CostUSD        float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Favorite marks a conversion a user starred.
type Favorite struct {
	ID           string
	UserID       string
	ConversionID string
	CreatedAt    time.Time
}

// Output is what the converter collaborator returns for a successful call.
type Output struct {
	LaTeX        string
	Model        string
	InputTokens  int64
	OutputTokens int64
	LatencyMs    int64
	CostUSD      float64
}
