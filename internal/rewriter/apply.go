package rewriter

import (
	"fmt"
	"sort"
)

// Apply splices edits into content and returns the rewritten bytes.
// Edits must not overlap; spans refer to offsets in the original content.
func Apply(content []byte, edits []Edit) ([]byte, error) {
	if len(edits) == 0 {
		return content, nil
	}

	ordered := make([]Edit, len(edits))
	copy(ordered, edits)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Span.Start != ordered[j].Span.Start {
			return ordered[i].Span.Start < ordered[j].Span.Start
		}
		return ordered[i].Span.End < ordered[j].Span.End
	})

	out := make([]byte, 0, len(content)+len(content)/4)
	cursor := uint32(0)
	for _, e := range ordered {
		if e.Span.Start < cursor || int(e.Span.End) > len(content) {
			return nil, fmt.Errorf("overlapping or out-of-range edit at %d..%d", e.Span.Start, e.Span.End)
		}
		out = append(out, content[cursor:e.Span.Start]...)
		out = append(out, e.Text...)
		cursor = e.Span.End
	}
	out = append(out, content[cursor:]...)
	return out, nil
}
