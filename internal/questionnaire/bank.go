/*
Package questionnaire holds the onboarding question bank and the answers users give to it.

Answers are persisted positionally (question id to answer) because that is what the mobile
client submits. Everything on the server reads them through the bank's stable string keys, so
a reordered or extended bank never silently changes what a profile means.
*/
package questionnaire

import (
	_ "embed"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Stable keys read by the profile extractor.
const (
	KeyHasAllergies           = "hasAllergies"
	KeyAllergyList            = "allergyList"
	KeyDietaryRestrictions    = "dietaryRestrictions"
	KeyDigestiveConditions    = "digestiveConditions"
	KeyFoodIntolerances       = "foodIntolerances"
	KeyDiabetesStatus         = "diabetesStatus"
	KeyHypertension           = "hypertension"
	KeyTakesMedications       = "takesMedications"
	KeyMedicationList         = "medicationList"
	KeyMetabolicDisorders     = "metabolicDisorders"
	KeyBloatingFrequency      = "bloatingFrequency"
	KeyCalorieIntake          = "calorieIntake"
	KeySaltIntake             = "saltIntake"
	KeySugarIntake            = "sugarIntake"
	KeyProcessedFoodFrequency = "processedFoodFrequency"
	KeyExerciseFrequency      = "exerciseFrequency"
	KeyActivityLevel          = "activityLevel"
	KeyMealsPerDay            = "mealsPerDay"
	KeyTakesSupplements       = "takesSupplements"
	KeySupplementList         = "supplementList"
	KeyWaterIntake            = "waterIntake"
)

// NoneOption is the exclusive "none of these" choice in multi-select questions.
const NoneOption = "None"

type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	FreeText       QuestionType = "text"
)

type Question struct {
	ID         int          `yaml:"id" json:"id"`
	Key        string       `yaml:"key" json:"key"`
	Type       QuestionType `yaml:"type" json:"type"`
	Question   string       `yaml:"question" json:"question"`
	Options    []string     `yaml:"options" json:"options,omitempty"`
	Dependency int          `yaml:"dependency,omitempty" json:"dependency,omitempty"`
}

// Bank is an immutable, versioned set of questions.
type Bank struct {
	Version   int        `yaml:"version" json:"version"`
	Questions []Question `yaml:"questions" json:"questions"`

	byID  map[int]Question
	byKey map[string]Question
}

//go:embed questionbank.yaml
var defaultBankYAML []byte

var (
	defaultBank     *Bank
	defaultBankOnce sync.Once
)

// Default returns the bank compiled into the binary.
func Default() *Bank {
	defaultBankOnce.Do(func() {
		b, err := Load(defaultBankYAML)
		if err != nil {
			panic(fmt.Sprintf("questionnaire: embedded question bank is invalid: %v", err))
		}
		defaultBank = b
	})
	return defaultBank
}

// Load parses and indexes a YAML question bank.
func Load(data []byte) (*Bank, error) {
	var b Bank
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse question bank: %w", err)
	}
	if b.Version <= 0 {
		return nil, fmt.Errorf("question bank has no version")
	}

	b.byID = make(map[int]Question, len(b.Questions))
	b.byKey = make(map[string]Question, len(b.Questions))
	for _, q := range b.Questions {
		if q.ID <= 0 || q.Key == "" {
			return nil, fmt.Errorf("question %d: id and key are required", q.ID)
		}
		if _, dup := b.byID[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %d", q.ID)
		}
		if _, dup := b.byKey[q.Key]; dup {
			return nil, fmt.Errorf("duplicate question key %q", q.Key)
		}
		switch q.Type {
		case SingleChoice, MultipleChoice:
			if len(q.Options) == 0 {
				return nil, fmt.Errorf("question %d (%s) has no options", q.ID, q.Key)
			}
		case FreeText:
		default:
			return nil, fmt.Errorf("question %d (%s) has unknown type %q", q.ID, q.Key, q.Type)
		}
		b.byID[q.ID] = q
		b.byKey[q.Key] = q
	}

	for _, q := range b.Questions {
		if q.Dependency == 0 {
			continue
		}
		if _, ok := b.byID[q.Dependency]; !ok {
			return nil, fmt.Errorf("question %d depends on unknown question %d", q.ID, q.Dependency)
		}
	}

	return &b, nil
}

// ByKey looks a question up by its stable key.
func (b *Bank) ByKey(key string) (Question, bool) {
	q, ok := b.byKey[key]
	return q, ok
}

// Named converts positional answers to key-addressed answers. Ids unknown to the bank are
// dropped.
func (b *Bank) Named(answers Answers) NamedAnswers {
	named := make(NamedAnswers, len(answers))
	for id, a := range answers {
		q, ok := b.byID[id]
		if !ok {
			continue
		}
		named[q.Key] = a
	}
	return named
}

// Set returns a copy of answers with the question identified by key replaced.
func (b *Bank) Set(answers Answers, key string, a Answer) (Answers, error) {
	q, ok := b.byKey[key]
	if !ok {
		return nil, fmt.Errorf("unknown question key %q", key)
	}
	out := make(Answers, len(answers)+1)
	for id, v := range answers {
		out[id] = v
	}
	out[q.ID] = a
	return out, nil
}

// Canonical returns a copy of answers with choice values respelled as the bank's options,
// matched case-insensitively. Values that match no option are left for Validate to reject.
func (b *Bank) Canonical(answers Answers) Answers {
	out := make(Answers, len(answers))
	for id, a := range answers {
		q, ok := b.byID[id]
		if ok && (q.Type == SingleChoice || q.Type == MultipleChoice) {
			if a.IsList {
				values := make([]string, len(a.Values))
				for i, v := range a.Values {
					values[i] = q.option(v)
				}
				a.Values = values
			} else {
				a.Value = q.option(a.Value)
			}
		}
		out[id] = a
	}
	return out
}

func (q Question) option(v string) string {
	for _, o := range q.Options {
		if strings.EqualFold(o, strings.TrimSpace(v)) {
			return o
		}
	}
	return v
}

// FieldProblem describes one rejected answer.
type FieldProblem struct {
	QuestionID int    `json:"question_id"`
	Key        string `json:"key,omitempty"`
	Message    string `json:"message"`
}

// ValidationError lists every answer the bank rejected.
type ValidationError struct {
	Problems []FieldProblem `json:"problems"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, fmt.Sprintf("question %d: %s", p.QuestionID, p.Message))
	}
	return "invalid questionnaire answers: " + strings.Join(parts, "; ")
}

// Validate checks answers against the bank at the authoring boundary. Answers to dependent
// questions whose gate is not "Yes" are tolerated; the extractor ignores them.
func (b *Bank) Validate(answers Answers) error {
	ids := make([]int, 0, len(answers))
	for id := range answers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var problems []FieldProblem
	add := func(q Question, id int, msg string) {
		problems = append(problems, FieldProblem{QuestionID: id, Key: q.Key, Message: msg})
	}

	for _, id := range ids {
		a := answers[id]
		q, ok := b.byID[id]
		if !ok {
			add(q, id, "unknown question")
			continue
		}

		switch q.Type {
		case SingleChoice:
			if a.IsList {
				add(q, id, "expects a single choice")
				continue
			}
			if a.Value != "" && !slices.Contains(q.Options, a.Value) {
				add(q, id, fmt.Sprintf("%q is not an option", a.Value))
			}
		case MultipleChoice:
			if !a.IsList {
				add(q, id, "expects a list of choices")
				continue
			}
			for _, v := range a.Values {
				if !slices.Contains(q.Options, v) {
					add(q, id, fmt.Sprintf("%q is not an option", v))
				}
			}
			if len(a.Values) > 1 && slices.Contains(a.Values, NoneOption) {
				add(q, id, `"None" cannot be combined with other choices`)
			}
		case FreeText:
			if a.IsList {
				add(q, id, "expects text")
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
