package tailor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/careerforge/careerforge/internal/llm"
)

// fakeProvider returns canned responses and records requests.
type fakeProvider struct {
	response string
	err      error
	lastReq  llm.ChatRequest
}

func (f *fakeProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.response}, nil
}

func (f *fakeProvider) ListModels(ctx context.Context) ([]llm.ModelInfo, error) {
	return nil, nil
}

func (f *fakeProvider) Name() string { return "fake" }

func fullResponse() string {
	return `===OPTIMIZED_RESUME===
A better resume.

===COVER_LETTER===
Dear hiring manager,

I am writing to you.

===KEYWORD_GAP===
MATCH SCORE: 80%

===INTERVIEW_QUESTIONS===
Why Go?`
}

func TestGenerateParsesAllSections(t *testing.T) {
	p := &fakeProvider{response: fullResponse()}
	svc := NewService(p, "claude-test", 8000)

	result, err := svc.Generate(context.Background(), "my resume", "a job")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if result.OptimizedResume != "A better resume." {
		t.Errorf("OptimizedResume=%q", result.OptimizedResume)
	}
	if !strings.HasPrefix(result.CoverLetter, "Dear hiring manager,") {
		t.Errorf("CoverLetter=%q", result.CoverLetter)
	}
	if result.KeywordGap != "MATCH SCORE: 80%" {
		t.Errorf("KeywordGap=%q", result.KeywordGap)
	}
	if result.InterviewQuestions != "Why Go?" {
		t.Errorf("InterviewQuestions=%q", result.InterviewQuestions)
	}

	// The outbound prompt carries both inputs and the system instruction.
	if p.lastReq.System == "" {
		t.Error("system instruction not set")
	}
	prompt := p.lastReq.Messages[0].Content
	if !strings.Contains(prompt, "my resume") || !strings.Contains(prompt, "a job") {
		t.Error("prompt missing user inputs")
	}
}

func TestGenerateFailsWhenAnySectionMissing(t *testing.T) {
	// Drop each marker in turn; every variant must fail the whole call.
	markers := []string{
		"===OPTIMIZED_RESUME===",
		"===COVER_LETTER===",
		"===KEYWORD_GAP===",
		"===INTERVIEW_QUESTIONS===",
	}
	for _, dropped := range markers {
		t.Run(dropped, func(t *testing.T) {
			p := &fakeProvider{response: strings.Replace(fullResponse(), dropped, "", 1)}
			svc := NewService(p, "claude-test", 8000)

			_, err := svc.Generate(context.Background(), "r", "j")
			var malformed *MalformedResponseError
			if !errors.As(err, &malformed) {
				t.Fatalf("err=%v, want MalformedResponseError", err)
			}
			if len(malformed.Missing) != 1 {
				t.Fatalf("Missing=%v, want exactly one section", malformed.Missing)
			}
		})
	}
}

func TestGenerateFailsOnEmptySectionBody(t *testing.T) {
	// Marker present but empty body is missing, not an empty success.
	resp := strings.Replace(fullResponse(), "Why Go?", "", 1)
	p := &fakeProvider{response: resp}
	svc := NewService(p, "claude-test", 8000)

	_, err := svc.Generate(context.Background(), "r", "j")
	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("err=%v, want MalformedResponseError", err)
	}
	if malformed.Missing[0] != SectionInterviewQuestions {
		t.Fatalf("Missing=%v, want interviewQuestions", malformed.Missing)
	}
}

func TestGenerateWrapsProviderError(t *testing.T) {
	p := &fakeProvider{err: errors.New("upstream down")}
	svc := NewService(p, "claude-test", 8000)
	if _, err := svc.Generate(context.Background(), "r", "j"); err == nil {
		t.Fatal("expected error")
	}
}

func TestRefine(t *testing.T) {
	p := &fakeProvider{response: "  A sharper cover letter.  "}
	svc := NewService(p, "claude-test", 8000)

	got, err := svc.Refine(context.Background(), RefineInput{
		Kind:        SectionCoverLetter,
		CurrentText: "old text",
		Instruction: "make it sharper",
		ResumeText:  "resume",
		JobText:     "job",
	})
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if got != "A sharper cover letter." {
		t.Fatalf("got %q, want trimmed refined text", got)
	}

	prompt := p.lastReq.Messages[0].Content
	for _, want := range []string{"old text", "make it sharper", "Cover Letter", "COVER LETTER"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("refine prompt missing %q", want)
		}
	}
	if p.lastReq.MaxTokens != 4000 {
		t.Errorf("MaxTokens=%d, want 4000 (half the generation cap)", p.lastReq.MaxTokens)
	}
}

func TestRefineEmptyOutputIsError(t *testing.T) {
	p := &fakeProvider{response: "   \n  "}
	svc := NewService(p, "claude-test", 8000)
	_, err := svc.Refine(context.Background(), RefineInput{Kind: SectionKeywordGap})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("err=%v, want ErrEmptyResponse", err)
	}
}

func TestRefineRejectsUnknownSection(t *testing.T) {
	svc := NewService(&fakeProvider{response: "x"}, "claude-test", 8000)
	_, err := svc.Refine(context.Background(), RefineInput{Kind: "salaryDemands"})
	if !errors.Is(err, ErrInvalidSection) {
		t.Fatalf("err=%v, want ErrInvalidSection", err)
	}
}

func TestValidSectionKind(t *testing.T) {
	for _, k := range SectionKinds {
		if !ValidSectionKind(string(k)) {
			t.Errorf("%q should be valid", k)
		}
	}
	if ValidSectionKind("resume") {
		t.Error("unknown kind should be invalid")
	}
}
