package deck

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckforge/app/internal/llm"
)

func assemblerReturning(response string) (*Assembler, *memorySink, *statusLog, *scriptedCompleter) {
	completer := &scriptedCompleter{respond: func(int, llm.Request) (*llm.Completion, error) {
		return text(response, 100, 50), nil
	}}
	sink := &memorySink{}
	observer := &statusLog{}
	return NewAssembler(completer, AssemblerOptions{Debug: sink, Observer: observer}), sink, observer, completer
}

var sampleResearch = []ResearchedItem{
	{Topic: "Revenue", Content: "Up 12%", Sources: []string{"10-Q", "Press release"}, NeedsSearch: true},
	{Topic: "Outlook", Content: "Steady", Sources: []string{}},
}

func TestAssembleReturnsCleanedSlides(t *testing.T) {
	t.Parallel()

	response := "```json\n" + `{"slides":[
	  {"type":"title","title":"  Quarterly Update \r\n","content":{"subtitle":"Q3 – 2024"}},
	  {"type":"text","title":"Revenue","content":{"text":"Line one\r\nLine two","sources":["10-Q"]},"speakerNotes":"keep me"},
	]}` + "\n```"

	assembler, sink, observer, completer := assemblerReturning(response)
	assembly, err := assembler.Assemble(context.Background(), "Quarterly Update", "Summarize Q3", sampleResearch)
	require.NoError(t, err)

	require.Len(t, assembly.Slides, 2)
	assert.Empty(t, assembly.Warnings)
	assert.Empty(t, sink.contexts())

	assert.Equal(t, "Quarterly Update", assembly.Slides[0].Title())
	assert.Equal(t, "Q3 – 2024", assembly.Slides[0].Text("subtitle"))
	assert.Equal(t, "Line one\nLine two", assembly.Slides[1].Text("text"))
	assert.Equal(t, "keep me", assembly.Slides[1]["speakerNotes"])

	calls := completer.calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].JSONMode)
	assert.Equal(t, "o4-mini", calls[0].Model)
	assert.Contains(t, calls[0].Messages[0].Content, "Topic: Revenue\nContent: Up 12%\nSources: 10-Q; Press release\n---\n")
	assert.Contains(t, calls[0].Messages[0].Content, "Topic: Outlook\nContent: Steady\n---\n")

	assert.Equal(t, 1, observer.count(PhaseGenerationComplete))
	assert.Equal(t, []string{"Presentation successfully generated with 2 slides."}, observer.messages(PhaseGenerationComplete))
}

func TestAssembleAcceptsBareArray(t *testing.T) {
	t.Parallel()

	assembler, _, _, _ := assemblerReturning(`[{"type":"quote","title":"Q","content":{"quote":"Less is more"}}]`)
	assembly, err := assembler.Assemble(context.Background(), "T", "M", nil)
	require.NoError(t, err)
	require.Len(t, assembly.Slides, 1)
	assert.Equal(t, SlideQuote, assembly.Slides[0].Type())
}

func TestAssembleFailsOnEmptyResponse(t *testing.T) {
	t.Parallel()

	assembler, sink, _, _ := assemblerReturning("  \n\t ")
	_, err := assembler.Assemble(context.Background(), "T", "M", sampleResearch)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrEmptyResponse))
	assert.False(t, eris.Is(err, ErrInvalidResponse))
	assert.Empty(t, sink.contexts())
}

func TestAssembleFailsOnUnparsableResponse(t *testing.T) {
	t.Parallel()

	assembler, sink, _, _ := assemblerReturning(`[{"type":"title","title":"Cut`)
	_, err := assembler.Assemble(context.Background(), "T", "M", sampleResearch)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidResponse))
	assert.Equal(t, []string{"presentation_generation"}, sink.contexts())
}

func TestAssembleContinuesPastValidationFailure(t *testing.T) {
	t.Parallel()

	assembler, sink, observer, _ := assemblerReturning(`{"slides":[
	  {"type":"title","title":"Intro"},
	  {"type":"bullet","title":"Broken","content":{}},
	  {"type":"text","title":"Body","content":{"text":"ok"}}
	]}`)

	assembly, err := assembler.Assemble(context.Background(), "T", "M", sampleResearch)
	require.NoError(t, err)
	require.Len(t, assembly.Slides, 3)
	require.Len(t, assembly.Warnings, 1)
	assert.Contains(t, assembly.Warnings[0], "slide 1")
	assert.Equal(t, []string{"validation_failed"}, sink.contexts())
	assert.Contains(t, observer.messages(PhaseGenerating), "Validation failed but continuing with unvalidated data...")
}

func TestAssembleToleratesFailingDebugSink(t *testing.T) {
	t.Parallel()

	completer := &scriptedCompleter{respond: func(int, llm.Request) (*llm.Completion, error) {
		return text(`[{"type":"image","title":"No url"}]`, 1, 1), nil
	}}
	sink := &memorySink{err: eris.New("disk full")}

	assembly, err := NewAssembler(completer, AssemblerOptions{Debug: sink}).Assemble(context.Background(), "T", "M", nil)
	require.NoError(t, err)
	assert.Len(t, assembly.Slides, 1)
}

func TestUnwrapSlides(t *testing.T) {
	t.Parallel()

	single := map[string]any{"type": "title", "title": "x"}
	slides, err := unwrapSlides(single)
	require.NoError(t, err)
	assert.Equal(t, []any{single}, slides)

	slides, err = unwrapSlides(map[string]any{"deck": []any{single}})
	require.NoError(t, err)
	assert.Len(t, slides, 1)

	_, err = unwrapSlides(map[string]any{"a": 1, "b": 2})
	assert.Error(t, err)

	_, err = unwrapSlides("text")
	assert.Error(t, err)
}
