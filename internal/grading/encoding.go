package grading

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"edupanel/internal/models"
)

// Wire characters of a true/false answer, one per statement.
const (
	TrueMark  = 'V'
	FalseMark = 'F'
)

// ErrUnansweredOption is returned when a true/false answer leaves a statement blank.
// Skipping it would shift every later statement out of position.
var ErrUnansweredOption = errors.New("every statement must be answered")

// OptionKey identifies a true/false statement in a selection map.
// Statements without a backend id are keyed by their position, prefixed
// so the key cannot collide with the id of another statement.
func OptionKey(i int, opt models.TrueFalseOption) string {
	if opt.ID != "" {
		return opt.ID
	}
	return "#" + strconv.Itoa(i)
}

// EncodeTrueFalse converts per-statement selections into the wire string.
func EncodeTrueFalse(options []models.TrueFalseOption, selections map[string]bool) (string, error) {
	var b strings.Builder
	var missing []string
	for i, opt := range options {
		key := OptionKey(i, opt)
		value, ok := selections[key]
		if !ok {
			missing = append(missing, strconv.Itoa(i+1))
			continue
		}
		if value {
			b.WriteByte(TrueMark)
		} else {
			b.WriteByte(FalseMark)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w (statements %s)", ErrUnansweredOption, strings.Join(missing, ", "))
	}
	return b.String(), nil
}

// DecodeTrueFalse maps a wire string back onto the statements by position.
// Positions beyond the end of wire are left out of the result.
func DecodeTrueFalse(wire string, options []models.TrueFalseOption) map[string]bool {
	selections := make(map[string]bool, len(options))
	for i, opt := range options {
		if i >= len(wire) {
			break
		}
		selections[OptionKey(i, opt)] = wire[i] == TrueMark
	}
	return selections
}

// EncodeMultipleChoice converts the chosen option index into the wire string.
func EncodeMultipleChoice(selectedIndex int) string {
	return strconv.Itoa(selectedIndex)
}

// AnswerKey builds the stored answer for an exercise authored by a teacher.
// For true/false exercises the key is derived from each statement's answer;
// otherwise the exercise's own Answer is used.
func AnswerKey(ex models.Exercise) string {
	switch ex.Type {
	case models.ExerciseTrueFalse:
		var b strings.Builder
		for _, opt := range ex.TrueFalse {
			if opt.Answer {
				b.WriteByte(TrueMark)
			} else {
				b.WriteByte(FalseMark)
			}
		}
		return b.String()
	case models.ExerciseMultipleChoice, models.ExerciseOpen:
		return ex.Answer
	}
	return ""
}

// FormatGrade renders a grade with a comma decimal separator ("7.5" -> "7,5").
func FormatGrade(v float64) string {
	return strings.Replace(strconv.FormatFloat(v, 'f', -1, 64), ".", ",", 1)
}

// normalizeGrade swaps the first comma for a period, as typed by the user.
func normalizeGrade(s string) string {
	return strings.Replace(strings.TrimSpace(s), ",", ".", 1)
}

func parseStrict(s string) (float64, bool) {
	v, err := strconv.ParseFloat(normalizeGrade(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ParseGrade converts a comma or period decimal string to a number.
// Malformed input yields 0 and never an error.
func ParseGrade(s string) float64 {
	v, _ := parseStrict(s)
	return v
}

// Mark describes how an option is rendered after correction.
type Mark int

const (
	MarkNone           Mark = iota
	MarkCorrect             // the right answer
	MarkWrongSelection      // picked by the student but wrong
)

// IsCorrectChoice reports whether a multiple-choice answer matches the key exactly.
func IsCorrectChoice(ex models.Exercise, studentAnswer string) bool {
	return ex.Type == models.ExerciseMultipleChoice && studentAnswer == ex.Answer
}

// ChoiceMarks returns one mark per option of a multiple-choice exercise.
// The correct option is always marked; a wrong selection is marked separately.
func ChoiceMarks(ex models.Exercise, studentAnswer string) []Mark {
	marks := make([]Mark, len(ex.Choices))
	for i := range ex.Choices {
		key := EncodeMultipleChoice(i)
		switch {
		case key == ex.Answer:
			marks[i] = MarkCorrect
		case key == studentAnswer:
			marks[i] = MarkWrongSelection
		}
	}
	return marks
}

// TrueFalseMarks compares each statement of a student's wire answer with the key.
// A statement is MarkCorrect when answered like the key, MarkWrongSelection otherwise.
func TrueFalseMarks(ex models.Exercise, studentAnswer string) []Mark {
	key := AnswerKey(ex)
	marks := make([]Mark, len(ex.TrueFalse))
	for i := range ex.TrueFalse {
		if i >= len(studentAnswer) || i >= len(key) {
			continue
		}
		if studentAnswer[i] == key[i] {
			marks[i] = MarkCorrect
		} else {
			marks[i] = MarkWrongSelection
		}
	}
	return marks
}
