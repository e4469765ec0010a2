// Package transcript exports a channel's message history as either a styled
// HTML document (ticket flow) or plain chunked text (order flow). Oversized
// output is split: documents at whole-record boundaries, text at line
// boundaries. Generation failure degrades to a placeholder; closing a ticket
// is never blocked by a transcript error.
package transcript

import (
	"fmt"
	"html"
	"strings"

	"github.com/google/uuid"

	"github.com/nordshop/nsbot/internal/platform"
)

const (
	// PageSize is the history page size requested per fetch.
	PageSize = 100
	// MaxMessages caps how much history one transcript covers.
	MaxMessages = 1000
	// DocPartBudget is the byte budget for one HTML part.
	DocPartBudget = 256 * 1024
	// ChunkBudget is the character budget for one plain-text chunk, sized
	// to fit a single platform message with code-fence wrapping to spare.
	ChunkBudget = 1900
)

// Fetcher is the slice of platform.Client the generator needs.
type Fetcher interface {
	Messages(channelID string, limit int, beforeID string) ([]platform.Message, error)
}

// Part is one file of a (possibly multi-part) document transcript.
type Part struct {
	Name string
	Data []byte
}

// Collect retrieves a channel's history, oldest first. It pages backwards
// with a before-cursor until a short page signals the start of history or
// MaxMessages is reached.
func Collect(f Fetcher, channelID string) ([]platform.Message, error) {
	var collected []platform.Message
	beforeID := ""
	for len(collected) < MaxMessages {
		page, err := f.Messages(channelID, PageSize, beforeID)
		if err != nil {
			return nil, fmt.Errorf("transcript: fetch page: %w", err)
		}
		if len(page) == 0 {
			break
		}
		collected = append(collected, page...)
		if len(page) < PageSize {
			break
		}
		beforeID = page[len(page)-1].ID
	}
	if len(collected) > MaxMessages {
		collected = collected[:MaxMessages]
	}
	// Pages arrive newest first; flip to chronological order.
	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}
	return collected, nil
}

// RenderDocument renders messages into one or more HTML parts, each under
// DocPartBudget. Records are never split across parts.
func RenderDocument(channelName string, msgs []platform.Message) []Part {
	records := make([]string, len(msgs))
	for i, m := range msgs {
		records[i] = renderRecord(m)
	}
	header := docHeader(channelName)
	bodies := packRecords(header, docFooter, records, DocPartBudget)

	run := uuid.NewString()[:8]
	parts := make([]Part, len(bodies))
	for i, body := range bodies {
		parts[i] = Part{
			Name: fmt.Sprintf("transcript-%s-part%dof%d-%s.html", channelName, i+1, len(bodies), run),
			Data: body,
		}
	}
	return parts
}

// FailedDocument is the placeholder returned when history retrieval fails.
func FailedDocument(channelName string) []Part {
	body := docHeader(channelName) +
		`<div class="msg failed">transcript generation failed: message history could not be retrieved</div>` +
		docFooter
	return []Part{{
		Name: fmt.Sprintf("transcript-%s-failed-%s.html", channelName, uuid.NewString()[:8]),
		Data: []byte(body),
	}}
}

// RenderChunks renders messages as plain monospace text split into chunks
// each at most ChunkBudget characters. Splits happen at line boundaries,
// mid-line only when a single line alone exceeds the budget.
func RenderChunks(msgs []platform.Message) []string {
	var lines []string
	for _, m := range msgs {
		lines = append(lines, renderLines(m)...)
	}
	return packLines(lines, ChunkBudget)
}

// FailedChunks is the placeholder returned when history retrieval fails.
func FailedChunks() []string {
	return []string{"transcript generation failed: message history could not be retrieved"}
}

// --- document rendering ---

func docHeader(channelName string) string {
	return `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Transcript: ` + html.EscapeString(channelName) + `</title>
<style>
body { font-family: sans-serif; background: #2b2d31; color: #dcddde; margin: 1.5em; }
.msg { padding: .4em 0; border-bottom: 1px solid #3a3c42; }
.meta { color: #949ba4; font-size: .85em; }
.author { color: #f2f3f5; font-weight: bold; }
.att a { color: #00a8fc; }
.embeds { color: #949ba4; font-style: italic; }
.failed { color: #f23f42; }
</style></head><body>
<h2>Transcript: ` + html.EscapeString(channelName) + `</h2>
`
}

const docFooter = "</body></html>\n"

func renderRecord(m platform.Message) string {
	var b strings.Builder
	b.WriteString(`<div class="msg"><span class="meta">`)
	b.WriteString(m.Timestamp.UTC().Format("2006-01-02 15:04:05"))
	b.WriteString(`</span> <span class="author">`)
	b.WriteString(html.EscapeString(m.AuthorName))
	b.WriteString("</span><br>")
	b.WriteString(html.EscapeString(m.Content))
	for _, a := range m.Attachments {
		fmt.Fprintf(&b, `<div class="att">[attachment] <a href="%s">%s</a></div>`,
			html.EscapeString(a.URL), html.EscapeString(a.Name))
	}
	if m.EmbedCount > 0 {
		fmt.Fprintf(&b, `<div class="embeds">[%d embeds]</div>`, m.EmbedCount)
	}
	b.WriteString("</div>\n")
	return b.String()
}

// packRecords packs records greedily into part bodies, flushing before a
// record would push the part over budget. A lone record larger than the
// budget still goes out whole.
func packRecords(header, footer string, records []string, budget int) [][]byte {
	overhead := len(header) + len(footer)
	var parts [][]byte
	var cur strings.Builder
	flush := func() {
		parts = append(parts, []byte(header+cur.String()+footer))
		cur.Reset()
	}
	for _, rec := range records {
		if cur.Len() > 0 && overhead+cur.Len()+len(rec) > budget {
			flush()
		}
		cur.WriteString(rec)
	}
	if cur.Len() > 0 || len(parts) == 0 {
		flush()
	}
	return parts
}

// --- chunked text rendering ---

func renderLines(m platform.Message) []string {
	lines := []string{fmt.Sprintf("[%s] %s: %s",
		m.Timestamp.UTC().Format("2006-01-02 15:04"), m.AuthorName, m.Content)}
	for _, a := range m.Attachments {
		lines = append(lines, fmt.Sprintf("    [attachment] %s %s", a.Name, a.URL))
	}
	if m.EmbedCount > 0 {
		lines = append(lines, fmt.Sprintf("    [%d embeds]", m.EmbedCount))
	}
	return lines
}

func packLines(lines []string, budget int) []string {
	var chunks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
	}
	for _, line := range lines {
		// A single line over budget is split mid-line.
		for len(line) > budget {
			flush()
			chunks = append(chunks, line[:budget])
			line = line[budget:]
		}
		need := len(line)
		if cur.Len() > 0 {
			need++ // joining newline
		}
		if cur.Len()+need > budget {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}
	flush()
	return chunks
}
