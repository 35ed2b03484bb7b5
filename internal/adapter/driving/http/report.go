package httphandler

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/mgrist/acm-roster/internal/domain/model"
)

var (
	mdRenderer    goldmark.Markdown
	htmlSanitizer *bluemonday.Policy
)

func init() {
	mdRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	htmlSanitizer = bluemonday.UGCPolicy()
}

const reportPage = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Chapter roster</title></head>
<body>
%s
</body>
</html>
`

// Report renders a roster summary as an HTML page.
func (h *Handler) Report(w http.ResponseWriter, _ *http.Request) {
	stats, err := h.stats()
	if err != nil {
		h.writeQueryError(w, err)
		return
	}
	members, err := h.chapter.AllMembers()
	if err != nil {
		h.writeQueryError(w, err)
		return
	}
	expired, err := h.chapter.ExpiredMembers()
	if err != nil {
		h.writeQueryError(w, err)
		return
	}

	body := RenderMarkdown(buildReport(stats, members, expired, time.Now()))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, reportPage, body)
}

// RenderMarkdown converts a markdown string to sanitized HTML.
// Returns empty string for empty input.
func RenderMarkdown(src string) string {
	if src == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		return htmlSanitizer.Sanitize(src)
	}

	return htmlSanitizer.Sanitize(buf.String())
}

// buildReport writes the summary as GitHub-flavored Markdown: counts, the
// officer table and the expired members.
func buildReport(stats StatsResponse, members, expired []model.Member, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Chapter roster\n\n")
	fmt.Fprintf(&b, "Generated %s.\n\n", now.Format("January 2, 2006 15:04"))

	b.WriteString("| Members | ACM subscribers | Current | Expired |\n")
	b.WriteString("|---:|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d |\n\n", stats.ChapterSize, stats.ACMSubscribers, stats.Active, stats.Inactive)

	b.WriteString("## Officers\n\n")
	var officers int
	for _, m := range members {
		if !m.IsOfficer() {
			continue
		}
		if officers == 0 {
			b.WriteString("| Role | Name | Email |\n|---|---|---|\n")
		}
		officers++
		fmt.Fprintf(&b, "| %s | %s | %s |\n", cell(string(m.Type)), cell(m.FullName()), cell(m.Email))
	}
	if officers == 0 {
		b.WriteString("_No officers on the roster._\n")
	}
	b.WriteString("\n")

	b.WriteString("## Expired memberships\n\n")
	if len(expired) == 0 {
		b.WriteString("_None._\n")
		return b.String()
	}
	b.WriteString("| Member | Name | Expired |\n|---|---|---|\n")
	for _, m := range expired {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", cell(m.MemberNumber), cell(m.FullName()), formatDate(m.ExpireDate))
	}
	return b.String()
}

// cellEscaper neutralizes markup in panel-supplied text and the characters
// that would break a Markdown table cell.
var cellEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"|", `\|`,
	"\n", " ",
)

func cell(s string) string {
	return cellEscaper.Replace(s)
}
