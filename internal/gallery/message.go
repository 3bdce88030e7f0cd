package gallery

import (
	"fmt"
	"strings"
)

// CommitSummary gathers what one publish produced so the commit message can
// enumerate it: a human-readable first line, then artifact counts and total
// cost in the body.
type CommitSummary struct {
	Action     string
	Title      string
	Category   string
	AssetID    int64
	Variants   int
	Lessons    int
	LessonPDFs int
	Workbooks  int
	Keywords   int
	Standards  int
	Cost       float64
}

// Message renders the commit message.
func (s CommitSummary) Message() string {
	action := strings.TrimSpace(s.Action)
	if action == "" {
		action = "Update"
	}
	title := strings.TrimSpace(s.Title)
	if title == "" {
		title = "asset"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s #%d)", action, title, s.Category, s.AssetID)

	counts := []struct {
		label string
		n     int
	}{
		{"Variants", s.Variants},
		{"Lessons", s.Lessons},
		{"Lesson PDFs", s.LessonPDFs},
		{"Workbooks", s.Workbooks},
		{"Keywords", s.Keywords},
		{"Standards", s.Standards},
	}
	body := make([]string, 0, len(counts)+1)
	for _, c := range counts {
		if c.n > 0 {
			body = append(body, fmt.Sprintf("%s: %d", c.label, c.n))
		}
	}
	if s.Cost > 0 {
		body = append(body, fmt.Sprintf("Total cost: $%.4f", s.Cost))
	}
	if len(body) > 0 {
		b.WriteString("\n\n")
		b.WriteString(strings.Join(body, "\n"))
	}
	return b.String()
}
