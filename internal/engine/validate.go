package engine

// Validate reports whether the submitted option ids answer the question
// correctly. Pure function, no side effects.
//
// Single-select: correct iff the submission is exactly the one correct option.
// Multi-select: correct iff the submitted set equals the correct-option set.
// Partial overlap is never partially correct; scoring is all-or-nothing.
func Validate(q *Question, submittedOptionIDs []string) bool {
	correct := q.CorrectOptionIDs()

	if q.Type == QuestionSingleSelect {
		return len(submittedOptionIDs) == 1 &&
			len(correct) == 1 &&
			submittedOptionIDs[0] == correct[0]
	}

	if len(submittedOptionIDs) != len(correct) {
		return false
	}

	want := make(map[string]struct{}, len(correct))
	for _, id := range correct {
		want[id] = struct{}{}
	}
	for _, id := range submittedOptionIDs {
		if _, ok := want[id]; !ok {
			return false
		}
		// Guard against duplicate ids in the submission inflating the match.
		delete(want, id)
	}
	return len(want) == 0
}
