package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tiktoken-go/tokenizer"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"reg-scraper/pkg/models"
	"reg-scraper/pkg/utils"
)

// Model is the slice of the langchaingo chat surface the analyzer needs;
// *openai.LLM satisfies it.
type Model interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// NewOpenAIModel builds the JSON-mode OpenAI chat model used in
// production. The analyzer never parses free-form prose, so JSON mode is
// set once here rather than per call.
func NewOpenAIModel(modelName, apiKey string) (Model, error) {
	llm, err := openai.New(
		openai.WithModel(modelName),
		openai.WithToken(apiKey),
		openai.WithResponseFormat(openai.ResponseFormatJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: creating OpenAI client: %w", utils.ErrAnalysis, err)
	}
	return llm, nil
}

// Analyzer sends one regulation at a time to the model and validates the
// verdict against the allowed red-flag set.
type Analyzer struct {
	model     Model
	modelName string
	codec     tokenizer.Codec
	maxTokens int
	log       *logrus.Entry
}

// NewAnalyzer wires an analyzer. maxContentTokens bounds the regulation
// content sent per prompt (cl100k tokens); non-positive disables clipping.
func NewAnalyzer(model Model, modelName string, maxContentTokens int, log *logrus.Entry) (*Analyzer, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("%w: loading cl100k tokenizer: %w", utils.ErrAnalysis, err)
	}
	return &Analyzer{
		model:     model,
		modelName: modelName,
		codec:     codec,
		maxTokens: maxContentTokens,
		log:       log.WithField("component", "analyzer"),
	}, nil
}

// ModelName returns the configured model identifier, recorded on every
// stored verdict.
func (a *Analyzer) ModelName() string {
	return a.modelName
}

// Analyze classifies one record. Any failure (transport, empty choice,
// unparseable verdict) comes back as ErrAnalysis; the caller stores
// nothing and the record is retried on the next run.
func (a *Analyzer) Analyze(ctx context.Context, record models.RegulationRecord) (models.RegulationAnalysis, error) {
	content := a.clipToBudget(record.CleanedContent, record.URL)

	resp, err := a.model.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt()),
			llms.TextParts(llms.ChatMessageTypeHuman, userPrompt(content)),
		},
		llms.WithTemperature(0),
	)
	if err != nil {
		return models.RegulationAnalysis{}, fmt.Errorf("%w: model call for %s: %w", utils.ErrAnalysis, record.URL, err)
	}
	if len(resp.Choices) == 0 {
		return models.RegulationAnalysis{}, fmt.Errorf("%w: empty model response for %s", utils.ErrAnalysis, record.URL)
	}
	return a.parseVerdict(resp.Choices[0].Content, record.URL)
}

// clipToBudget truncates content to the token budget. On tokenizer
// trouble the content passes through unclipped; an oversized prompt fails
// loudly at the API instead of silently losing text.
func (a *Analyzer) clipToBudget(content, url string) string {
	if a.maxTokens <= 0 {
		return content
	}
	ids, _, err := a.codec.Encode(content)
	if err != nil {
		a.log.WithField("url", url).Warnf("Token count failed, sending unclipped content: %v", err)
		return content
	}
	if len(ids) <= a.maxTokens {
		return content
	}
	clipped, err := a.codec.Decode(ids[:a.maxTokens])
	if err != nil {
		a.log.WithField("url", url).Warnf("Token clip failed, sending unclipped content: %v", err)
		return content
	}
	a.log.WithFields(logrus.Fields{"url": url, "tokens": len(ids), "budget": a.maxTokens}).Debug("Content clipped to token budget")
	return clipped
}

// verdictWire is the raw JSON shape the model returns. Flags arrive as
// plain strings and are validated against the allowed set afterwards.
type verdictWire struct {
	RedFlags             []string `json:"red_flags"`
	SpecificTextExamples []string `json:"specific_text_examples"`
	SeverityScore        int      `json:"severity_score"`
}

// parseVerdict decodes and sanitizes a model response: code fences
// stripped, unknown identifiers dropped with a warning, severity clamped
// to 0-10.
func (a *Analyzer) parseVerdict(raw, url string) (models.RegulationAnalysis, error) {
	var wire verdictWire
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &wire); err != nil {
		return models.RegulationAnalysis{}, fmt.Errorf("%w: unparseable verdict for %s: %w", utils.ErrAnalysis, url, err)
	}

	analysis := models.RegulationAnalysis{
		RedFlags:             make([]models.RedFlagType, 0, len(wire.RedFlags)),
		SpecificTextExamples: wire.SpecificTextExamples,
		SeverityScore:        wire.SeverityScore,
	}
	for _, ident := range wire.RedFlags {
		flag := models.RedFlagType(ident)
		if !flag.IsValid() {
			a.log.WithFields(logrus.Fields{"url": url, "flag": ident}).Warn("Dropping unknown red flag identifier")
			continue
		}
		analysis.RedFlags = append(analysis.RedFlags, flag)
	}
	if analysis.SpecificTextExamples == nil {
		analysis.SpecificTextExamples = []string{}
	}
	if analysis.SeverityScore < 0 {
		analysis.SeverityScore = 0
	} else if analysis.SeverityScore > 10 {
		analysis.SeverityScore = 10
	}
	return analysis, nil
}

// stripCodeFences unwraps a response the model wrapped in a Markdown code
// block despite JSON mode.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:] // drop the info string line ("json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
