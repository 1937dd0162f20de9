package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
)

const answerFormatInstruction = `Answer the questions below using only the document context.
Reply with exactly one JSON object and nothing else: no markdown, no commentary.
Use every question verbatim as a key and put its answer, as a string, as the value:
{"<question>": "<answer>"}`

const strictFormatInstruction = `Your previous reply could not be parsed.
Output must start with "{" and end with "}". Every value must be a plain string.
Do not add keys that are not listed questions and do not omit any question.`

func buildExtractionPrompt(
	passages []domain.Passage,
	history []domain.ConversationTurn,
	questions domain.QuestionSet,
	strict bool,
) string {
	var b strings.Builder

	b.WriteString(answerFormatInstruction)
	b.WriteString("\n")
	if strict {
		b.WriteString(strictFormatInstruction)
		b.WriteString("\n")
	}

	b.WriteString("\nContext:\n")
	if len(passages) == 0 {
		b.WriteString("(no passages retrieved)\n")
	}
	for idx, p := range passages {
		fmt.Fprintf(&b, "[%d]", idx+1)
		if p.Page > 0 {
			fmt.Fprintf(&b, " page=%d", p.Page)
		}
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(p.Text))
		b.WriteString("\n\n")
	}

	if len(history) > 0 {
		b.WriteString("Previous conversation:\n")
		for _, turn := range history {
			b.WriteString("User: ")
			b.WriteString(turn.Question)
			b.WriteString("\nAssistant: ")
			b.WriteString(turn.Answer)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Questions:\n")
	b.WriteString(renderQuestionSet(questions))
	return b.String()
}

// renderQuestionSet is also what gets recorded as the question of a turn.
func renderQuestionSet(questions domain.QuestionSet) string {
	var b strings.Builder
	for idx, q := range questions {
		fmt.Fprintf(&b, "%d. %s\n", idx+1, q)
	}
	return b.String()
}
