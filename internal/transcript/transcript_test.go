package transcript

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nordshop/nsbot/internal/platform"
)

// pagedFetcher serves a fixed history, newest first, in before-cursor pages.
type pagedFetcher struct {
	history []platform.Message // newest first
	fail    bool
	calls   int
}

func (f *pagedFetcher) Messages(channelID string, limit int, beforeID string) ([]platform.Message, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("history unavailable")
	}
	start := 0
	if beforeID != "" {
		for i, m := range f.history {
			if m.ID == beforeID {
				start = i + 1
				break
			}
		}
	}
	end := min(start+limit, len(f.history))
	return f.history[start:end], nil
}

func makeHistory(n int) []platform.Message {
	msgs := make([]platform.Message, n)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range msgs {
		// Index 0 is the newest message.
		seq := n - i
		msgs[i] = platform.Message{
			ID:         fmt.Sprintf("m-%04d", seq),
			AuthorID:   "user-a",
			AuthorName: "Alex",
			Content:    fmt.Sprintf("message %d", seq),
			Timestamp:  base.Add(time.Duration(seq) * time.Minute),
		}
	}
	return msgs
}

func TestCollectChronologicalComplete(t *testing.T) {
	const n = 250 // forces three pages
	f := &pagedFetcher{history: makeHistory(n)}

	msgs, err := Collect(f, "chan-1")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(msgs) != n {
		t.Fatalf("expected %d messages, got %d", n, len(msgs))
	}
	for i, m := range msgs {
		want := fmt.Sprintf("message %d", i+1)
		if m.Content != want {
			t.Fatalf("message %d out of order: got %q, want %q", i, m.Content, want)
		}
	}
	if f.calls != 3 {
		t.Errorf("expected 3 pages, got %d", f.calls)
	}
}

func TestCollectStopsAtMax(t *testing.T) {
	f := &pagedFetcher{history: makeHistory(MaxMessages + 300)}
	msgs, err := Collect(f, "chan-1")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(msgs) != MaxMessages {
		t.Errorf("expected cap at %d, got %d", MaxMessages, len(msgs))
	}
}

func TestCollectPropagatesFetchError(t *testing.T) {
	f := &pagedFetcher{fail: true}
	if _, err := Collect(f, "chan-1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestRenderDocumentContainsAllRecords(t *testing.T) {
	history := makeHistory(40)
	msgs, _ := Collect(&pagedFetcher{history: history}, "chan-1")

	parts := RenderDocument("ticket-general-alex", msgs)
	if len(parts) != 1 {
		t.Fatalf("expected a single part, got %d", len(parts))
	}
	doc := string(parts[0].Data)
	if got := strings.Count(doc, `<div class="msg">`); got != 40 {
		t.Errorf("expected 40 records, got %d", got)
	}
	// Chronological order inside the document.
	if strings.Index(doc, "message 1<") > strings.Index(doc, "message 40<") {
		t.Error("records not in chronological order")
	}
}

func TestRenderDocumentEscapesContent(t *testing.T) {
	msgs := []platform.Message{{
		AuthorName: "Alex<script>",
		Content:    `<img src=x onerror=alert(1)>`,
		Timestamp:  time.Now(),
	}}
	doc := string(RenderDocument("chan", msgs)[0].Data)
	if strings.Contains(doc, "<img") || strings.Contains(doc, "Alex<script>") {
		t.Error("content not entity-escaped")
	}
}

func TestRenderDocumentAttachmentsAndEmbeds(t *testing.T) {
	msgs := []platform.Message{{
		AuthorName: "Alex",
		Content:    "here you go",
		Timestamp:  time.Now(),
		Attachments: []platform.Attachment{
			{Name: "final.png", URL: "https://cdn.example/final.png"},
		},
		EmbedCount: 2,
	}}
	doc := string(RenderDocument("chan", msgs)[0].Data)
	if !strings.Contains(doc, "final.png") || !strings.Contains(doc, "https://cdn.example/final.png") {
		t.Error("attachment summary missing")
	}
	if !strings.Contains(doc, "[2 embeds]") {
		t.Error("embed indicator missing")
	}
}

func TestPackRecordsSplitsAtRecordBoundaries(t *testing.T) {
	header, footer := "<H>", "<F>"
	rec := strings.Repeat("r", 94) // overhead 6 + 94 = 100 per single-record part
	records := []string{rec, rec, rec, rec}
	budget := 200 // fits two records plus overhead (194), not three

	parts := packRecords(header, footer, records, budget)
	if len(parts) != 2 {
		t.Fatalf("expected ceil(4*94/194)=2 parts, got %d", len(parts))
	}
	var recombined strings.Builder
	for _, p := range parts {
		if len(p) > budget {
			t.Errorf("part over budget: %d > %d", len(p), budget)
		}
		body := strings.TrimSuffix(strings.TrimPrefix(string(p), header), footer)
		recombined.WriteString(body)
	}
	if recombined.String() != strings.Repeat(rec, 4) {
		t.Error("concatenated records do not reproduce the original sequence")
	}
}

func TestPackRecordsNeverSplitsARecord(t *testing.T) {
	big := strings.Repeat("x", 500)
	parts := packRecords("", "", []string{big}, 100)
	if len(parts) != 1 || string(parts[0]) != big {
		t.Error("an oversized record must go out whole, not split")
	}
}

func TestPackLines(t *testing.T) {
	lines := []string{
		strings.Repeat("a", 40),
		strings.Repeat("b", 40),
		strings.Repeat("c", 40),
	}
	chunks := packLines(lines, 90)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c) > 90 {
			t.Errorf("chunk over budget: %d", len(c))
		}
	}
	joined := strings.ReplaceAll(strings.Join(chunks, "\n"), "\n", "")
	if joined != strings.Repeat("a", 40)+strings.Repeat("b", 40)+strings.Repeat("c", 40) {
		t.Error("chunk content does not reproduce the original lines")
	}
}

func TestPackLinesSplitsOversizedLineMidLine(t *testing.T) {
	long := strings.Repeat("z", 250)
	chunks := packLines([]string{long}, 100)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks for a 250-char line at budget 100, got %d", len(chunks))
	}
	if strings.Join(chunks, "") != long {
		t.Error("mid-line split lost content")
	}
}

func TestFailedOutputsAreMinimalButValid(t *testing.T) {
	parts := FailedDocument("chan")
	if len(parts) != 1 || !strings.Contains(string(parts[0].Data), "transcript generation failed") {
		t.Error("failed document missing failure marker")
	}
	chunks := FailedChunks()
	if len(chunks) != 1 || !strings.Contains(chunks[0], "failed") {
		t.Error("failed chunks missing failure marker")
	}
}

func TestRenderChunksOrderFlow(t *testing.T) {
	history := makeHistory(5)
	msgs, _ := Collect(&pagedFetcher{history: history}, "chan-1")
	chunks := RenderChunks(msgs)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0], "Alex: message 1") || !strings.Contains(chunks[0], "Alex: message 5") {
		t.Error("chunk missing expected records")
	}
}
