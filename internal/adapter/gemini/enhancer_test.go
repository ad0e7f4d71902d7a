package gemini

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"
)

type fakeModel struct {
	text string
	err  error

	gotModel  string
	gotPrompt string
}

func (f *fakeModel) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.gotPrompt = contents[0].Parts[0].Text
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

func TestEnhance(t *testing.T) {
	fake := &fakeModel{text: "  a lighthouse at dusk, volumetric fog, golden hour\n"}
	e := newWithModel(fake, "gemini-2.0-flash")

	got, err := e.Enhance(context.Background(), "lighthouse")
	if err != nil {
		t.Fatalf("Enhance: %v", err)
	}
	if got != "a lighthouse at dusk, volumetric fog, golden hour" {
		t.Errorf("Enhance = %q", got)
	}
	if fake.gotModel != "gemini-2.0-flash" {
		t.Errorf("model = %q", fake.gotModel)
	}
	if fake.gotPrompt != "lighthouse" {
		t.Errorf("prompt = %q", fake.gotPrompt)
	}
}

func TestEnhanceError(t *testing.T) {
	fake := &fakeModel{err: errors.New("quota exceeded")}
	e := newWithModel(fake, "gemini-2.0-flash")

	if _, err := e.Enhance(context.Background(), "lighthouse"); err == nil {
		t.Fatal("expected error")
	}
}

func TestEnhanceEmptyResponse(t *testing.T) {
	fake := &fakeModel{text: "   "}
	e := newWithModel(fake, "gemini-2.0-flash")

	if _, err := e.Enhance(context.Background(), "lighthouse"); err == nil {
		t.Fatal("expected error on empty response")
	}
}
