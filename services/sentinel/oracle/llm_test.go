// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/model"
	"github.com/tawfig2020/ArchLensyst-sub001/services/sentinel/rules"
)

// cannedGenerator answers every prompt with the same document.
type cannedGenerator struct {
	response string
	err      error
	prompts  []string
	inputs   []any
}

func (g *cannedGenerator) Name() string { return "canned" }

func (g *cannedGenerator) GenerateJSON(_ context.Context, prompt string, input any) (json.RawMessage, error) {
	g.prompts = append(g.prompts, prompt)
	g.inputs = append(g.inputs, input)
	if g.err != nil {
		return nil, g.err
	}
	return json.RawMessage(g.response), nil
}

func TestLLM_Enrich(t *testing.T) {
	gen := &cannedGenerator{response: `{"tier":"Module","metadata":{"roleSummary":"renders the panel",
		"imports":[{"source":"./store"},{"source":"  "}],"securityVulnerabilityCount":2}}`}
	o := NewLLM(gen, nil)

	e, err := o.Enrich(context.Background(), model.NewSourceFile("src/Panel.tsx", "x"))
	require.NoError(t, err)
	assert.Equal(t, model.TierModule, e.Tier)
	assert.Equal(t, "renders the panel", e.Patch.RoleSummary)
	assert.Equal(t, []model.Import{{Source: "./store"}}, e.Patch.Imports)
	require.NotNil(t, e.Patch.SecurityVulnerabilityCount)
	assert.Equal(t, 2, *e.Patch.SecurityVulnerabilityCount)
}

func TestLLM_EnrichRejectsUnknownTier(t *testing.T) {
	o := NewLLM(&cannedGenerator{response: `{"tier":"Galactic"}`}, nil)
	_, err := o.Enrich(context.Background(), model.NewSourceFile("a.ts", ""))
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestLLM_EnrichDefaultsEmptyTier(t *testing.T) {
	o := NewLLM(&cannedGenerator{response: "```json\n{\"metadata\":{}}\n```"}, nil)
	e, err := o.Enrich(context.Background(), model.NewSourceFile("a.ts", ""))
	require.NoError(t, err)
	assert.Equal(t, model.TierImplementation, e.Tier)
}

func TestLLM_AnalyzeImpactNormalisesViolations(t *testing.T) {
	gen := &cannedGenerator{response: `{"safe":false,"score":140,"affectedNodes":["b.ts"],
		"rationale":"breaks b",
		"ruleViolations":[
			{"ruleId":"ARCH-005","severity":"error","message":"secret","line":4},
			{"ruleId":"","severity":"error","message":"anonymous","line":1},
			{"ruleId":"ARCH-006","severity":"shrug","message":"style","line":0}
		]}`}
	o := NewLLM(gen, nil)

	v, err := o.AnalyzeImpact(context.Background(), "a.ts", "code", rules.DefaultEngine().Descriptors())
	require.NoError(t, err)
	assert.False(t, v.Safe)
	assert.Equal(t, 100, v.Score)
	assert.Equal(t, []string{"b.ts"}, v.AffectedNodes)
	require.Len(t, v.RuleViolations, 2)
	assert.Equal(t, model.SeverityWarning, v.RuleViolations[1].Severity)
	assert.Equal(t, 1, v.RuleViolations[1].Line)

	input := gen.inputs[0].(map[string]any)
	assert.Equal(t, "a.ts", input["fileName"])
	assert.Len(t, input["rules"], 12)
}

func TestLLM_InvalidJSON(t *testing.T) {
	o := NewLLM(&cannedGenerator{response: `not json`}, nil)
	_, err := o.AnalyzeImpact(context.Background(), "a.ts", "", nil)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestLLM_GeneratorErrorPassesThrough(t *testing.T) {
	o := NewLLM(&cannedGenerator{err: errBackend}, nil)
	_, err := o.RunSimulatedSuite(context.Background(), nil, "")
	assert.ErrorIs(t, err, errBackend)
}

func TestLLM_RunSimulatedSuite(t *testing.T) {
	gen := &cannedGenerator{response: `{"totalTestsRun":3,"results":[
		{"suite":"a.test.ts","status":"passed"},
		{"suite":"b.test.ts","status":"failed","error":"expected 2"},
		{"suite":"c.test.ts","status":"skipped"}]}`}
	o := NewLLM(gen, nil)

	rep, err := o.RunSimulatedSuite(context.Background(),
		[]*model.SourceFile{model.NewSourceFile("a.ts", ""), nil}, "new")
	require.NoError(t, err)
	assert.Equal(t, model.TestReport{Passed: 1, Total: 3, Errors: []string{"b.test.ts: expected 2"}}, rep)
	assert.Equal(t, []string{"a.ts"}, gen.inputs[0].(map[string]any)["nodes"])
}

func TestTestResponse_PassRateOnly(t *testing.T) {
	assert.Equal(t, 8, testResponse{TotalTestsRun: 10, PassRate: 80}.report().Passed)
	assert.Equal(t, 5, testResponse{TotalTestsRun: 10, PassRate: 0.5}.report().Passed)
	assert.Equal(t, 0, testResponse{TotalTestsRun: -3, PassRate: 1}.report().Total)
}

func TestLLM_SemanticSearchFiltersAndSorts(t *testing.T) {
	gen := &cannedGenerator{response: `{"results":[
		{"filePath":"b.ts","score":0.2,"rationale":"weak"},
		{"filePath":"ghost.ts","score":0.9,"rationale":"hallucinated"},
		{"filePath":"a.ts","score":0.8,"rationale":"strong"}]}`}
	o := NewLLM(gen, nil)

	files := []*model.SourceFile{
		model.NewSourceFile("a.ts", strings.Repeat("x", 800)),
		model.NewSourceFile("b.ts", "y"),
	}
	rs, err := o.SemanticSearch(context.Background(), "auth", files)
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.Equal(t, "a.ts", rs[0].FilePath)
	assert.Equal(t, "b.ts", rs[1].FilePath)

	raw, err := json.Marshal(gen.inputs[0])
	require.NoError(t, err)
	assert.NotContains(t, string(raw), strings.Repeat("x", searchSnippetLimit+1))
}

// fakeChat records the request and returns a canned completion.
type fakeChat struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

func TestOpenAIBackend_GenerateJSON(t *testing.T) {
	chat := &fakeChat{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: `{"ok":true}`}}},
	}}
	b := &OpenAIBackend{client: chat, model: "gpt-test"}

	raw, err := b.GenerateJSON(context.Background(), "prompt", map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(raw))
	assert.Equal(t, "gpt-test", chat.req.Model)
	require.NotNil(t, chat.req.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, chat.req.ResponseFormat.Type)
	require.Len(t, chat.req.Messages, 2)
	assert.Contains(t, chat.req.Messages[1].Content, "[INPUT JSON]")
	assert.Contains(t, chat.req.Messages[1].Content, `"k": "v"`)
	assert.Equal(t, "openai:gpt-test", b.Name())
}

func TestOpenAIBackend_Errors(t *testing.T) {
	b := &OpenAIBackend{client: &fakeChat{}, model: "m"}
	_, err := b.GenerateJSON(context.Background(), "p", nil)
	assert.ErrorIs(t, err, ErrInvalidResponse)

	b = &OpenAIBackend{client: &fakeChat{err: errBackend}, model: "m"}
	_, err = b.GenerateJSON(context.Background(), "p", nil)
	assert.ErrorIs(t, err, errBackend)

	_, err = NewOpenAIBackend("", "m")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

// fakeModels is a canned Gemini content generator.
type fakeModels struct {
	model  string
	config *genai.GenerateContentConfig
	resp   *genai.GenerateContentResponse
	err    error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, _ []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	return f.resp, f.err
}

func TestGeminiBackend_GenerateJSON(t *testing.T) {
	fm := &fakeModels{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: `{"tier":"Module"}`}}}}},
	}}
	b := &GeminiBackend{models: fm, model: "gemini-test"}

	raw, err := b.GenerateJSON(context.Background(), "p", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tier":"Module"}`, string(raw))
	assert.Equal(t, "gemini-test", fm.model)
	assert.Equal(t, "application/json", fm.config.ResponseMIMEType)
}

func TestGeminiBackend_Errors(t *testing.T) {
	b := &GeminiBackend{models: &fakeModels{resp: &genai.GenerateContentResponse{}}, model: "m"}
	_, err := b.GenerateJSON(context.Background(), "p", nil)
	assert.ErrorIs(t, err, ErrInvalidResponse)

	b = &GeminiBackend{models: &fakeModels{err: errBackend}, model: "m"}
	_, err = b.GenerateJSON(context.Background(), "p", nil)
	assert.True(t, errors.Is(err, errBackend))

	_, err = NewGeminiBackend(context.Background(), "", "m")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestNew_Providers(t *testing.T) {
	g, err := New(context.Background(), Settings{Provider: ProviderStatic}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, CircuitClosed, g.State())

	_, err = New(context.Background(), Settings{Provider: "carrier-pigeon"}, nil, nil)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = New(context.Background(), Settings{Provider: ProviderOpenAI}, nil, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
