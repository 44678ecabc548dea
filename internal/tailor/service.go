// Package tailor generates and refines career documents through a
// text-generation provider. One provider call produces all four sections of
// a tailoring run, delimited by literal markers; partial output is treated
// as a failed call because the client assumes all four sections exist.
package tailor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/careerforge/careerforge/internal/llm"
	"github.com/rs/zerolog/log"
)

// SectionKind names one of the four generated sections. The values double
// as the wire-level outputType in the refine API.
type SectionKind string

const (
	SectionOptimizedResume    SectionKind = "optimizedResume"
	SectionCoverLetter        SectionKind = "coverLetter"
	SectionKeywordGap         SectionKind = "keywordGap"
	SectionInterviewQuestions SectionKind = "interviewQuestions"
)

// SectionKinds lists all valid kinds in output order.
var SectionKinds = []SectionKind{
	SectionOptimizedResume,
	SectionCoverLetter,
	SectionKeywordGap,
	SectionInterviewQuestions,
}

// displayNames maps kinds to the human-readable names used in prompts.
var displayNames = map[SectionKind]string{
	SectionOptimizedResume:    "Optimized Resume",
	SectionCoverLetter:        "Cover Letter",
	SectionKeywordGap:         "Keyword Gap Analysis",
	SectionInterviewQuestions: "Interview Questions",
}

// ValidSectionKind reports whether s names a known section.
func ValidSectionKind(s string) bool {
	_, ok := displayNames[SectionKind(s)]
	return ok
}

var (
	// ErrEmptyResponse is returned when the provider produced no text.
	ErrEmptyResponse = errors.New("tailor: provider returned empty response")
	// ErrInvalidSection is returned for an unknown outputType.
	ErrInvalidSection = errors.New("tailor: invalid section kind")
)

// MalformedResponseError reports a generation response missing one or more
// of the expected sections. The whole call fails; there is no partial
// success.
type MalformedResponseError struct {
	Missing []SectionKind
}

func (e *MalformedResponseError) Error() string {
	names := make([]string, len(e.Missing))
	for i, k := range e.Missing {
		names[i] = string(k)
	}
	return fmt.Sprintf("tailor: response missing sections: %s", strings.Join(names, ", "))
}

// Result holds all four generated sections.
type Result struct {
	OptimizedResume    string `json:"optimizedResume"`
	CoverLetter        string `json:"coverLetter"`
	KeywordGap         string `json:"keywordGap"`
	InterviewQuestions string `json:"interviewQuestions"`
}

// RefineInput describes a single-section refinement request.
type RefineInput struct {
	Kind        SectionKind
	CurrentText string
	Instruction string
	ResumeText  string
	JobText     string
}

// Service drives generation and refinement through a provider.
type Service struct {
	provider  llm.Provider
	model     string
	maxTokens int
}

// NewService creates a tailoring service. maxTokens caps the generation
// call; refinement uses half of it, mirroring the smaller output.
func NewService(provider llm.Provider, model string, maxTokens int) *Service {
	if maxTokens <= 0 {
		maxTokens = 8000
	}
	return &Service{provider: provider, model: model, maxTokens: maxTokens}
}

// Generate produces all four sections for a resume/job pair in one
// provider call.
func (s *Service) Generate(ctx context.Context, resumeText, jobText string) (*Result, error) {
	resp, err := s.provider.Chat(ctx, llm.ChatRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System:    systemInstruction,
		Messages: []llm.Message{
			{Role: "user", Content: generatePrompt(resumeText, jobText)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	result, missing := parseSections(resp.Content)
	if len(missing) > 0 {
		log.Error().
			Strs("missing", sectionNames(missing)).
			Int("response_length", len(resp.Content)).
			Msg("generation response malformed")
		return nil, &MalformedResponseError{Missing: missing}
	}

	log.Info().
		Int("input_tokens", resp.InputTokens).
		Int("output_tokens", resp.OutputTokens).
		Msg("generated all four sections")
	return result, nil
}

// Refine rewrites one section according to a user instruction.
func (s *Service) Refine(ctx context.Context, in RefineInput) (string, error) {
	name, ok := displayNames[in.Kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidSection, in.Kind)
	}

	resp, err := s.provider.Chat(ctx, llm.ChatRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens / 2,
		System:    systemInstruction,
		Messages: []llm.Message{
			{Role: "user", Content: refinePrompt(name, in.ResumeText, in.JobText, in.CurrentText, in.Instruction)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("refine %s: %w", in.Kind, err)
	}

	refined := strings.TrimSpace(resp.Content)
	if refined == "" {
		return "", ErrEmptyResponse
	}
	return refined, nil
}

// parseSections locates each marker and captures text up to the next
// marker or end of text. Markers may arrive in any order; any absent or
// empty section is reported as missing.
func parseSections(text string) (*Result, []SectionKind) {
	markers := map[SectionKind]string{
		SectionOptimizedResume:    markerOptimizedResume,
		SectionCoverLetter:        markerCoverLetter,
		SectionKeywordGap:         markerKeywordGap,
		SectionInterviewQuestions: markerInterviewQuestions,
	}

	sections := make(map[SectionKind]string, len(markers))
	var missing []SectionKind
	for _, kind := range SectionKinds {
		body, ok := extractSection(text, markers[kind], markers)
		if !ok || body == "" {
			missing = append(missing, kind)
			continue
		}
		sections[kind] = body
	}
	if len(missing) > 0 {
		return nil, missing
	}

	return &Result{
		OptimizedResume:    sections[SectionOptimizedResume],
		CoverLetter:        sections[SectionCoverLetter],
		KeywordGap:         sections[SectionKeywordGap],
		InterviewQuestions: sections[SectionInterviewQuestions],
	}, nil
}

func extractSection(text, marker string, all map[SectionKind]string) (string, bool) {
	start := strings.Index(text, marker)
	if start < 0 {
		return "", false
	}
	body := text[start+len(marker):]

	// Capture up to the nearest following marker, if any.
	end := len(body)
	for _, other := range all {
		if other == marker {
			continue
		}
		if idx := strings.Index(body, other); idx >= 0 && idx < end {
			end = idx
		}
	}
	return strings.TrimSpace(body[:end]), true
}

func sectionNames(kinds []SectionKind) []string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return names
}
