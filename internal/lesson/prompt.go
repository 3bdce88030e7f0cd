package lesson

import (
	"fmt"
	"strings"

	"fieldpress/internal/standards"
)

// LessonSystemPrompt instructs the content service to write one complete
// grade-banded science lesson from a photograph. The NGSS Alignment section
// is required because standards extraction regex-matches codes out of the
// returned markdown.
const LessonSystemPrompt = `You are an experienced elementary and middle school science curriculum writer.
You will be shown one nature photograph. Write a complete, classroom-ready
science lesson built around what the photograph actually shows.

Respond in plain Markdown with exactly these sections, in order:

## Overview
Two or three sentences describing the lesson and what students will learn.

## Background for Educators
The science behind the photograph, written for the teacher. Be accurate and
specific to the organisms, materials, or phenomena visible in the image.

## Discussion Questions
Five open-ended questions that start from observing the photograph.

## Activities
Two or three hands-on activities appropriate for the grade band, each with a
short materials list and step-by-step instructions.

## NGSS Alignment
A bulleted list of the Next Generation Science Standards performance
expectations this lesson supports. Cite each code exactly, for example
2-LS4-1 or MS-ESS2-4. Only cite codes from the requested grade band and
science domain.

Do not include a top-level title heading; the pipeline adds one. Do not
mention that you are describing a photograph you were shown.`

// KeywordSystemPrompt instructs the content service to produce search
// keywords as a bare JSON object.
const KeywordSystemPrompt = `You generate search keywords for a library of educational nature photographs.
You will be shown one photograph and told what lessons were written about it.
Respond with a JSON object of the form {"keywords": ["...", "..."]} and
nothing else. Provide between five and twelve lowercase keywords or short
phrases that a teacher searching the library might type. Name the visible
subjects specifically. Do not repeat the photograph title verbatim.`

var bandAudiences = map[string]string{
	standards.GradeBandK2: "kindergarten through second grade (ages 5-8)",
	standards.GradeBand35: "third through fifth grade (ages 8-11)",
	standards.GradeBand68: "middle school, sixth through eighth grade (ages 11-14)",
}

var categorySubjects = map[string]string{
	standards.CategoryLifeScience:     "life science",
	standards.CategoryEarthSpace:      "earth and space science",
	standards.CategoryPhysicalScience: "physical science",
	standards.CategoryEngineering:     "engineering and design",
}

func lessonUserPrompt(title, category, band string) string {
	subject := categorySubjects[category]
	if subject == "" {
		subject = strings.ReplaceAll(category, "-", " ")
	}
	audience := bandAudiences[band]
	if audience == "" {
		audience = fmt.Sprintf("grades %s", band)
	}
	domain, _ := standards.DomainPrefix(category)
	return fmt.Sprintf(
		"The photograph is titled %q. Write a %s lesson for %s. "+
			"Align the lesson to NGSS performance expectations for grades %s in the %s domain.",
		title, subject, audience, band, domain,
	)
}

func keywordUserPrompt(title, category string) string {
	subject := categorySubjects[category]
	if subject == "" {
		subject = strings.ReplaceAll(category, "-", " ")
	}
	return fmt.Sprintf(
		"The photograph is titled %q and is filed under %s. "+
			"Generate the keyword list for it.",
		title, subject,
	)
}
