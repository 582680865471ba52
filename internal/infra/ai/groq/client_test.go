package groq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/lintora/lintora/internal/domain/audits"
)

type fakeCompleter struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return openai.ChatCompletionResponse{}, f.errs[i]
	}
	content := "[]"
	if i < len(f.responses) {
		content = f.responses[i]
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}, nil
}

func testReviewer(c completer) *Reviewer {
	return &Reviewer{
		client:     c,
		apiKey:     "gsk_test",
		Model:      "llama-3.3-70b-versatile",
		MaxTokens:  4096,
		Timeout:    time.Second,
		MaxRetries: 2,
		backoff:    time.Millisecond,
	}
}

func ws(files ...domain.SourceFile) *domain.Workspace {
	return &domain.Workspace{Files: files}
}

func TestAnalyzeParsesFindings(t *testing.T) {
	fake := &fakeCompleter{responses: []string{
		`[{"severity": "high", "title": "Reentrancy", "description": "d", "line_number": 7, "category": "reentrancy", "recommendation": "r"}]`,
	}}
	r := testReviewer(fake)

	findings, err := r.Analyze(context.Background(), ws(domain.SourceFile{Rel: "v.sol", Content: "contract V {}"}))
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, domain.SourceAI, findings[0].Source)
	assert.Equal(t, "v.sol", findings[0].FilePath)
}

func TestAnalyzeRetriesTransientFailure(t *testing.T) {
	fake := &fakeCompleter{
		errs:      []error{errors.New("503"), nil},
		responses: []string{"", "[]"},
	}
	r := testReviewer(fake)

	findings, err := r.Analyze(context.Background(), ws(domain.SourceFile{Rel: "v.sol"}))
	require.NoError(t, err)
	assert.Empty(t, findings)
	assert.Equal(t, 2, fake.calls)
}

func TestAnalyzeGivesUpAfterMaxRetries(t *testing.T) {
	boom := errors.New("connection refused")
	fake := &fakeCompleter{errs: []error{boom, boom, boom}}
	r := testReviewer(fake)

	_, err := r.Analyze(context.Background(), ws(domain.SourceFile{Rel: "v.sol"}))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, fake.calls) // initial try + 2 retries
}

func TestAnalyzeStopsOnCancelledContext(t *testing.T) {
	boom := errors.New("network down")
	fake := &fakeCompleter{errs: []error{boom, boom, boom}}
	r := testReviewer(fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Analyze(ctx, ws(domain.SourceFile{Rel: "v.sol"}))
	assert.Error(t, err)
}

func TestAvailable(t *testing.T) {
	assert.True(t, testReviewer(&fakeCompleter{}).Available())

	noKey := testReviewer(&fakeCompleter{})
	noKey.apiKey = ""
	assert.False(t, noKey.Available())
}
