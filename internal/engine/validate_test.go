package engine

import "testing"

func singleSelect(correct string, options ...string) *Question {
	q := &Question{ID: "q1", Type: QuestionSingleSelect, ObjectiveID: "obj"}
	for _, id := range options {
		q.Options = append(q.Options, Option{ID: id, Correct: id == correct})
	}
	return q
}

func multiSelect(correct map[string]bool, options ...string) *Question {
	q := &Question{ID: "q1", Type: QuestionMultiSelect, ObjectiveID: "obj"}
	for _, id := range options {
		q.Options = append(q.Options, Option{ID: id, Correct: correct[id]})
	}
	return q
}

func TestValidate_SingleSelectCorrect(t *testing.T) {
	q := singleSelect("b", "a", "b", "c", "d")
	if !Validate(q, []string{"b"}) {
		t.Error("expected correct for exact match")
	}
}

func TestValidate_SingleSelectWrongOption(t *testing.T) {
	q := singleSelect("b", "a", "b", "c", "d")
	if Validate(q, []string{"a"}) {
		t.Error("expected incorrect for wrong option")
	}
}

func TestValidate_SingleSelectMultipleSubmitted(t *testing.T) {
	q := singleSelect("b", "a", "b", "c")
	if Validate(q, []string{"a", "b"}) {
		t.Error("expected incorrect when more than one option submitted")
	}
}

func TestValidate_MultiSelectExactMatch(t *testing.T) {
	q := multiSelect(map[string]bool{"a": true, "c": true}, "a", "b", "c", "d")
	if !Validate(q, []string{"c", "a"}) {
		t.Error("expected correct for set-equal submission, order independent")
	}
}

func TestValidate_MultiSelectStrictSubsetIsIncorrect(t *testing.T) {
	// All-or-nothing scoring: a strict subset earns no partial credit.
	q := multiSelect(map[string]bool{"a": true, "c": true}, "a", "b", "c", "d")
	if Validate(q, []string{"a"}) {
		t.Error("expected incorrect for strict subset")
	}
}

func TestValidate_MultiSelectSupersetIsIncorrect(t *testing.T) {
	q := multiSelect(map[string]bool{"a": true, "c": true}, "a", "b", "c", "d")
	if Validate(q, []string{"a", "c", "d"}) {
		t.Error("expected incorrect for superset")
	}
}

func TestValidate_MultiSelectDuplicatesDoNotInflate(t *testing.T) {
	q := multiSelect(map[string]bool{"a": true, "c": true}, "a", "b", "c")
	if Validate(q, []string{"a", "a"}) {
		t.Error("expected incorrect when duplicates pad the submission")
	}
}
