package types

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
)

// Formatter renders one question kind to text for a host surface. Formatters
// are pure: no network calls, no navigation, no buffer mutation.
type Formatter func(q Question, selected []Selection) string

var formatters = map[QuestionType]Formatter{
	QuestionTypeDropdown: formatChoices,
	QuestionTypeRadio:    formatChoices,
	QuestionTypeQuad:     formatQuad,
	QuestionTypeCheckbox: formatCheckbox,
	QuestionTypeText:     formatText,
	QuestionTypeDate:     formatDate,
}

// FormatQuestion dispatches on the question type. The set of types is closed;
// an unknown type is an error rather than a fallback rendering.
func FormatQuestion(q Question, selected []Selection) (string, error) {
	render, ok := formatters[q.Type]
	if !ok {
		return "", fmt.Errorf("no formatter for question type %q", q.Type)
	}
	return render(q, selected), nil
}

// FormatConfirmationPrompt renders an interstitial confirmation screen.
func FormatConfirmationPrompt(p ConfirmationPrompt) string {
	var buf strings.Builder
	buf.WriteString("# " + p.Title + "\n")
	if p.Body != "" {
		buf.WriteString("\n" + p.Body + "\n")
	}
	buf.WriteString("\n[" + p.ActionText + "]\n")
	return buf.String()
}

func isSelected(selected []Selection, answerID string) bool {
	for _, s := range selected {
		if s.AnswerID == answerID {
			return true
		}
	}
	return false
}

func selectionText(selected []Selection, answerID string) string {
	for _, s := range selected {
		if s.AnswerID == answerID {
			return s.Text
		}
	}
	return ""
}

func header(q Question) string {
	var buf strings.Builder
	if q.IntroText != "" {
		buf.WriteString(q.IntroText + "\n\n")
	}
	buf.WriteString("# " + q.QuestionText + "\n\n")
	return buf.String()
}

func footer(q Question) string {
	if q.FooterText == "" {
		return ""
	}
	return "\n" + q.FooterText + "\n"
}

func optionTable(q Question, selected []Selection, mark func(selected bool) string) string {
	var buf strings.Builder
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("#", "", "Answer")
	for i, opt := range q.AnswerOptions {
		_ = table.Append(fmt.Sprintf("%d", i+1), mark(isSelected(selected, opt.AnswerID)), opt.Text)
	}
	_ = table.Render()
	return buf.String()
}

func formatChoices(q Question, selected []Selection) string {
	body := optionTable(q, selected, func(sel bool) string {
		if sel {
			return "(x)"
		}
		return "( )"
	})
	return header(q) + body + footer(q)
}

func formatCheckbox(q Question, selected []Selection) string {
	body := optionTable(q, selected, func(sel bool) string {
		if sel {
			return "[x]"
		}
		return "[ ]"
	})
	return header(q) + body + footer(q)
}

func formatQuad(q Question, selected []Selection) string {
	var buf strings.Builder
	buf.WriteString(header(q))
	for i, opt := range q.AnswerOptions {
		buf.WriteString(fmt.Sprintf("  %d) %s\n", i+1, opt.Text))
	}
	buf.WriteString(footer(q))
	return buf.String()
}

func formatText(q Question, selected []Selection) string {
	var buf strings.Builder
	buf.WriteString(header(q))
	for _, opt := range q.AnswerOptions {
		label := opt.Text
		if label == "" {
			label = "Your answer"
		}
		buf.WriteString(fmt.Sprintf("%s: %s\n", label, selectionText(selected, opt.AnswerID)))
	}
	buf.WriteString(footer(q))
	return buf.String()
}

func formatDate(q Question, selected []Selection) string {
	var buf strings.Builder
	buf.WriteString(header(q))
	for _, opt := range q.AnswerOptions {
		label := opt.Text
		if label == "" {
			label = "Date"
		}
		value := selectionText(selected, opt.AnswerID)
		if value == "" {
			value = "YYYY-MM-DD"
		}
		buf.WriteString(fmt.Sprintf("%s: %s\n", label, value))
	}
	buf.WriteString(footer(q))
	return buf.String()
}
