package segment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightfield-ai/scout/internal/model"
)

func TestNewValidation(t *testing.T) {
	_, err := New(0, 0)
	assert.Error(t, err)

	_, err = New(100, 100)
	assert.Error(t, err)

	_, err = New(100, -1)
	assert.Error(t, err)

	s, err := New(100, 10)
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestSplitEmptySectionYieldsNothing(t *testing.T) {
	s, err := New(100, 10)
	require.NoError(t, err)

	segs := s.Split([]model.Section{
		{Title: "Empty", Text: "", SourceID: "doc1", Role: model.RoleTranscript},
	})
	assert.Empty(t, segs)
}

func TestSplitShortSectionSingleSegment(t *testing.T) {
	s, err := New(100, 10)
	require.NoError(t, err)

	segs := s.Split([]model.Section{
		{Title: "Intro", Text: "Short text.", SourceID: "doc1", Role: model.RoleTranscript},
	})
	require.Len(t, segs, 1)
	assert.Equal(t, "Short text.", segs[0].Text)
	assert.Equal(t, "Intro", segs[0].SourceTitle)
	assert.Equal(t, "doc1", segs[0].SourceDoc)
	assert.Equal(t, model.RoleTranscript, segs[0].Role)
}

func TestSplitRespectsSizeBound(t *testing.T) {
	s, err := New(50, 10)
	require.NoError(t, err)

	text := strings.Repeat("alpha beta gamma delta. ", 30)
	segs := s.Split([]model.Section{
		{Title: "T", Text: text, SourceID: "d", Role: model.RoleTranscript},
	})
	require.NotEmpty(t, segs)
	for i, seg := range segs {
		assert.LessOrEqual(t, len(seg.Text), 50, "segment %d exceeds size bound", i)
		assert.NotEmpty(t, seg.Text, "segment %d is empty", i)
	}
}

// Concatenating the chunks with each chunk's overlap prefix stripped must
// reproduce the section text exactly.
func TestSplitRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		overlap int
		text    string
	}{
		{"paragraphs", 60, 10, "First paragraph with some words.\n\nSecond paragraph here.\n\nThird one is a little bit longer than the other two."},
		{"sentences", 40, 8, "One sentence. Two sentences. Three sentences? Four! Five sentences to finish it all off neatly."},
		{"no separators", 20, 5, strings.Repeat("x", 137)},
		{"zero overlap", 30, 0, "Plain words separated by spaces repeated a number of times over and over again."},
		{"mixed", 50, 12, "Line one\nLine two\n\nA much longer paragraph follows. It has sentences. And words without end until the cut."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := New(tc.size, tc.overlap)
			require.NoError(t, err)

			chunks := s.splitText(tc.text)
			require.NotEmpty(t, chunks)

			// Recover each base chunk by stripping the overlap prefix,
			// which is an exact suffix of the previous base chunk.
			var b strings.Builder
			prevBase := ""
			for i, c := range chunks {
				if i == 0 {
					b.WriteString(c)
					prevBase = c
					continue
				}
				ov := tc.overlap
				if len(prevBase) < ov {
					ov = len(prevBase)
				}
				require.GreaterOrEqual(t, len(c), ov)
				assert.Equal(t, prevBase[len(prevBase)-ov:], c[:ov], "chunk %d does not start with predecessor suffix", i)
				base := c[ov:]
				b.WriteString(base)
				prevBase = base
			}
			assert.Equal(t, tc.text, b.String())
		})
	}
}

func TestSplitHardCutWithoutSeparators(t *testing.T) {
	s, err := New(10, 0)
	require.NoError(t, err)

	text := strings.Repeat("a", 25)
	chunks := s.splitText(text)
	assert.Equal(t, []string{"aaaaaaaaaa", "aaaaaaaaaa", "aaaaa"}, chunks)
}

func TestSplitPrefersParagraphBreaks(t *testing.T) {
	s, err := New(40, 0)
	require.NoError(t, err)

	text := "Para one is a bit longer here.\n\nPara two is also a bit longer."
	chunks := s.splitText(text)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Para one is a bit longer here.\n\n", chunks[0])
	assert.Equal(t, "Para two is also a bit longer.", chunks[1])
}

func TestSplitNeverCrossesSectionBoundary(t *testing.T) {
	s, err := New(200, 20)
	require.NoError(t, err)

	segs := s.Split([]model.Section{
		{Title: "A", Text: "First section text.", SourceID: "d", Role: model.RoleTranscript},
		{Title: "B", Text: "Second section text.", SourceID: "d", Role: model.RoleAgentReference},
	})
	require.Len(t, segs, 2)
	assert.Equal(t, "First section text.", segs[0].Text)
	assert.Equal(t, "A", segs[0].SourceTitle)
	assert.Equal(t, "Second section text.", segs[1].Text)
	assert.Equal(t, "B", segs[1].SourceTitle)
	assert.Equal(t, model.RoleAgentReference, segs[1].Role)
}
