package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"go.trai.ch/mediacache/internal/app"
	"go.trai.ch/mediacache/internal/core/domain"
	"go.trai.ch/mediacache/internal/ui/output"
	"go.trai.ch/mediacache/internal/ui/style"
)

// printer writes styled command output.
type printer struct {
	w     io.Writer
	ok    lipgloss.Style
	bad   lipgloss.Style
	muted lipgloss.Style
	bold  lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	r := output.Renderer(w)
	return &printer{
		w:     w,
		ok:    r.NewStyle().Foreground(style.Green),
		bad:   r.NewStyle().Foreground(style.Red),
		muted: r.NewStyle().Foreground(style.Slate),
		bold:  r.NewStyle().Bold(true),
	}
}

func (p *printer) line(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) inspection(snap domain.Inspection) {
	if !snap.Loaded {
		p.line("%s  %s", p.bold.Render(snap.Cache), p.bad.Render(style.Cross+" failed to load"))
		return
	}

	p.line("%s  %d complete, %d partial  %s",
		p.bold.Render(snap.Cache), len(snap.Complete), len(snap.Partial), bytesOf(snap.TotalBytes))
	for _, ie := range snap.Complete {
		p.entry(style.Dot, ie)
	}
	for _, ie := range snap.Partial {
		p.entry(style.Circle, ie)
	}
}

func (p *printer) entry(icon string, ie domain.InspectedEntry) {
	fields := []string{
		ie.Identifier,
		fmt.Sprintf("%gx%g", ie.Dimensions.Width, ie.Dimensions.Height),
		bytesOf(ie.Bytes),
	}
	if ie.Placeholder {
		fields = append(fields, "placeholder")
	}
	if ie.Animated {
		fields = append(fields, "animated")
	}

	details := []string{"ttl " + ie.TTL.String()}
	if !ie.LastAccess.IsZero() {
		details = append(details, "accessed "+ie.LastAccess.UTC().Format(time.RFC3339))
	}
	if ie.Checksum != "" {
		details = append(details, "xxh64 "+ie.Checksum)
	}

	p.line("  %s %s  %s", p.ok.Render(icon), strings.Join(fields, "  "), p.muted.Render(strings.Join(details, ", ")))
}

func (p *printer) stats(s app.Stats) {
	p.line("%s  %s of %s, %d of %s entries",
		p.bold.Render("total"), bytesOf(s.Bytes), limit(s.Budget.MaxBytes, bytesOf), s.Count,
		limit(s.Budget.MaxCount, func(n int64) string { return fmt.Sprint(n) }))

	for _, cs := range s.Caches {
		if !cs.Loaded {
			p.line("%s %s  %s", p.bad.Render(style.Cross), cs.Name, p.muted.Render(cs.Dir))
			continue
		}
		p.line("%s %s  %s in %d entries  %s", p.ok.Render(style.Check), cs.Name, bytesOf(cs.Bytes), cs.Count, p.muted.Render(cs.Dir))
	}
}

func bytesOf(n int64) string {
	return humanize.IBytes(uint64(max(n, 0)))
}

func limit(n int64, format func(int64) string) string {
	if n <= 0 {
		return "unlimited"
	}
	return format(n)
}
