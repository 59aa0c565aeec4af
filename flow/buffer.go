package flow

import (
	"time"

	"github.com/cobaltplatform/screeningflow/types"
)

// AnswerBuffer holds the in-progress selections for the question currently
// displayed. It is always a list, even for single-answer kinds, so the
// submission payload shape stays uniform. The buffer is owned by exactly one
// Controller and is not safe for use from multiple goroutines on its own.
type AnswerBuffer struct {
	selections []types.Selection
}

// Selections returns a copy of the buffer contents.
func (b *AnswerBuffer) Selections() []types.Selection {
	out := make([]types.Selection, len(b.selections))
	copy(out, b.selections)
	return out
}

func (b *AnswerBuffer) Len() int {
	return len(b.selections)
}

// Selected reports whether the option is currently in the buffer.
func (b *AnswerBuffer) Selected(answerID string) bool {
	for _, s := range b.selections {
		if s.AnswerID == answerID {
			return true
		}
	}
	return false
}

// Select replaces the buffer with exactly one selection. Used by the
// single-select kinds (dropdown, radio, quad).
func (b *AnswerBuffer) Select(answerID string) {
	b.selections = []types.Selection{{AnswerID: answerID}}
}

// Toggle adds the option if absent and removes it if present, preserving the
// rest of the buffer. Used by checkbox groups.
func (b *AnswerBuffer) Toggle(answerID string) {
	for i, s := range b.selections {
		if s.AnswerID == answerID {
			b.selections = append(b.selections[:i], b.selections[i+1:]...)
			return
		}
	}
	b.selections = append(b.selections, types.Selection{AnswerID: answerID})
}

// SetText upserts the free-text value for one option, keyed by option id so
// multi-part text questions keep independent values. An empty value removes
// the entry so it no longer counts toward the minimum.
func (b *AnswerBuffer) SetText(answerID, text string) {
	for i, s := range b.selections {
		if s.AnswerID == answerID {
			if text == "" {
				b.selections = append(b.selections[:i], b.selections[i+1:]...)
				return
			}
			b.selections[i].Text = text
			return
		}
	}
	if text == "" {
		return
	}
	b.selections = append(b.selections, types.Selection{AnswerID: answerID, Text: text})
}

// SetDate stores the day as a normalized ISO YYYY-MM-DD string. A zero time
// clears the value.
func (b *AnswerBuffer) SetDate(answerID string, day time.Time) {
	if day.IsZero() {
		b.SetText(answerID, "")
		return
	}
	b.SetText(answerID, day.Format("2006-01-02"))
}

// Replace swaps in a full selection set, e.g. seeding from previously
// submitted answers on a revisit.
func (b *AnswerBuffer) Replace(selections []types.Selection) {
	b.selections = make([]types.Selection, len(selections))
	copy(b.selections, selections)
}

func (b *AnswerBuffer) Clear() {
	b.selections = nil
}

// CanSubmit reports whether the buffer meets the question's minimum required
// answer count. This is a UX gate; the server is still authoritative.
func (b *AnswerBuffer) CanSubmit(minimum int) bool {
	return len(b.selections) >= minimum
}
