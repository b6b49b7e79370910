// Package gemini implements the converter port using the Google Gemini SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/texlify/texlify/domain/conversion"
	"github.com/texlify/texlify/ports"
)

// Per-million-token pricing used for cost attribution on records.
const (
	inputPricePerMillion  = 0.075
	outputPricePerMillion = 0.30
)

// Config holds Gemini configuration.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
}

// Converter calls the Gemini API to turn text into LaTeX.
// Thread-safe; one instance is shared across requests.
type Converter struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
}

// New creates a new Gemini converter.
func New(ctx context.Context, cfg Config) (*Converter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-flash-latest"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000
	}
	if cfg.Temperature == 0 {
		// Low temperature keeps the formatting consistent between runs.
		cfg.Temperature = 0.1
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	maxTokens := int32(cfg.MaxTokens)
	model.MaxOutputTokens = &maxTokens
	model.SetTemperature(cfg.Temperature)

	return &Converter{
		client:    client,
		model:     model,
		modelName: cfg.Model,
	}, nil
}

// Close closes the underlying client.
func (c *Converter) Close() error {
	return c.client.Close()
}

// ConvertText converts plain text to LaTeX.
func (c *Converter) ConvertText(ctx context.Context, text string) (conversion.Output, error) {
	return c.generate(ctx, textPrompt(text))
}

// ConvertTool runs a named tool conversion over its input.
func (c *Converter) ConvertTool(ctx context.Context, tool conversion.Tool, input string) (conversion.Output, error) {
	prompt, err := toolPrompt(tool, input)
	if err != nil {
		return conversion.Output{}, err
	}
	return c.generate(ctx, prompt)
}

func (c *Converter) generate(ctx context.Context, prompt string) (conversion.Output, error) {
	start := time.Now()
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return conversion.Output{}, fmt.Errorf("gemini request failed: %w", err)
	}

	out := conversion.Output{
		Model:     c.modelName,
		LatencyMs: time.Since(start).Milliseconds(),
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		var sb strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		out.LaTeX = strings.TrimSpace(sb.String())
	}
	if out.LaTeX == "" {
		return conversion.Output{}, errors.New("empty response from model")
	}

	if resp.UsageMetadata != nil {
		out.InputTokens = int64(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
		out.CostUSD = float64(out.InputTokens)*inputPricePerMillion/1e6 +
			float64(out.OutputTokens)*outputPricePerMillion/1e6
	}

	return out, nil
}

// textPrompt builds the general conversion prompt. The few-shot
// examples pin down math-mode delimiters and escaping, which the model
// otherwise applies inconsistently.
func textPrompt(text string) string {
	return strings.Join([]string{
		"Convert the following text to LaTeX format.",
		"Ensure the output:",
		"1. Can render in KaTeX",
		"2. Is compatible with Overleaf",
		"3. Includes necessary math mode delimiters ($ for inline or $$ for block math) where appropriate",
		"4. Properly escapes special characters",
		"\n\nEXAMPLES:\n",

		"Example 1: Inline Math and Escaping Special Characters",
		"INPUT:",
		"The derivative of f(x) = 3x^2 - 2x + 1 is given by f'(x) = 6x - 2.",
		"OUTPUT:",
		"The derivative of \\( f(x) = 3x^2 - 2x + 1 \\) is given by \\( f'(x) = 6x - 2 \\).",

		"\nExample 2: Block Math with Complex Expressions",
		"INPUT:",
		"Calculate the probability density function: (1 / sqrt(2 * pi * sigma^2)) * exp(-(x - mu)^2 / (2 * sigma^2))",
		"OUTPUT:",
		"Calculate the probability density function:\n$$\nf(x) = \\frac{1}{\\sqrt{2 \\pi \\sigma^2}} \\exp\\left(-\\frac{(x - \\mu)^2}{2 \\sigma^2}\\right)\n$$",

		"\nExample 3: Mixed Inline and Block Math with Complex Expressions",
		"INPUT:",
		"Find the cumulative distribution function F(x) by integrating from negative infinity to x of the probability density function. Then calculate the conditional probability of A given B as P(A and B) / P(B).",
		"OUTPUT:",
		"Find the cumulative distribution function \\( F(x) \\) by integrating from \\( -\\infty \\) to \\( x \\) of the probability density function:\n$$\nF(x) = \\int_{-\\infty}^x f(t) \\, dt\n$$\nThen, calculate the conditional probability of \\( A \\) given \\( B \\) as \\( P(A \\cap B) / P(B) \\).",

		"\n\nINPUT:",
		text,
		"\n\nOUTPUT:",
	}, "\n")
}

func toolPrompt(tool conversion.Tool, input string) (string, error) {
	switch tool {
	case conversion.ToolImageToLatex:
		return strings.Join([]string{
			"The following is extracted text from an image containing mathematical notation.",
			"Reconstruct it as LaTeX that renders in KaTeX and compiles in Overleaf.",
			"Use $ for inline and $$ for block math. Output only the LaTeX.",
			"\nINPUT:",
			input,
			"\nOUTPUT:",
		}, "\n"), nil
	case conversion.ToolPDFToLatex:
		return strings.Join([]string{
			"The following is extracted text from a PDF document.",
			"Produce a complete LaTeX document that reproduces it, starting with",
			"\\documentclass{article} and compiling in Overleaf without extra packages",
			"beyond amsmath and graphicx. Output only the LaTeX source.",
			"\nINPUT:",
			input,
			"\nOUTPUT:",
		}, "\n"), nil
	case conversion.ToolLatexToImage:
		return strings.Join([]string{
			"Normalize the following LaTeX so it renders standalone in KaTeX:",
			"strip document preamble, keep only the renderable body, and balance",
			"all math delimiters. Output only the normalized LaTeX.",
			"\nINPUT:",
			input,
			"\nOUTPUT:",
		}, "\n"), nil
	case conversion.ToolLatexToWord:
		return strings.Join([]string{
			"Convert the following LaTeX source to OMML-friendly plain text with",
			"Unicode math symbols, suitable for pasting into a Word document.",
			"Preserve structure (sections, lists, equations). Output only the result.",
			"\nINPUT:",
			input,
			"\nOUTPUT:",
		}, "\n"), nil
	}
	return "", fmt.Errorf("unknown tool %q", tool)
}

var _ ports.Converter = (*Converter)(nil)
