package workbook

import (
	"fmt"
	"strings"

	"fieldpress/internal/standards"
)

// WorkbookSystemPrompt instructs the content service to return one activity
// workbook as a JSON document matching the embedded schema.
const WorkbookSystemPrompt = `You are an experienced science curriculum writer creating printable student
activity workbooks. You will be given the published lesson text for one
photograph-based science lesson. Respond with a single JSON object and
nothing else, matching exactly this shape:

{
  "title": "workbook title",
  "introduction": "one short paragraph addressed to the student",
  "activities": [
    {
      "name": "activity name",
      "materials": ["item", "item"],
      "instructions": ["step one", "step two"],
      "reflection_questions": ["question", "question"]
    }
  ]
}

Provide two to four activities that extend the lesson with independent or
small-group work appropriate for the grade band. Instructions must be
numbered-step ready: one imperative sentence per entry. Do not include
markdown, code fences, or any text outside the JSON object.`

var bandAudiences = map[string]string{
	standards.GradeBandK2: "kindergarten through second grade (ages 5-8)",
	standards.GradeBand35: "third through fifth grade (ages 8-11)",
	standards.GradeBand68: "middle school, sixth through eighth grade (ages 11-14)",
}

// lessonExcerptLimit caps how much published lesson text rides along in the
// user prompt.
const lessonExcerptLimit = 4000

func workbookUserPrompt(title, band, lessonText string) string {
	audience := bandAudiences[band]
	if audience == "" {
		audience = fmt.Sprintf("grades %s", band)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Create the activity workbook for the lesson %q, written for %s.\n", title, audience)
	lessonText = strings.TrimSpace(lessonText)
	if lessonText != "" {
		if len(lessonText) > lessonExcerptLimit {
			lessonText = lessonText[:lessonExcerptLimit]
		}
		b.WriteString("\nPublished lesson text:\n\n")
		b.WriteString(lessonText)
		b.WriteString("\n")
	}
	return b.String()
}
