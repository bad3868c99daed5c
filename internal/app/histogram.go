package app

import (
	"fmt"

	"github.com/dhsingh07/ensureu-sub002/internal/domain"
)

// BuildComparison aligns the user's question outcomes with the reference
// (top scorer) outcomes and produces the per-question comparison list plus
// the per-section rollup. Alignment is by question id, not position; a user
// question with no reference counterpart is an input error so that a paper
// whose structure changed between attempts fails loudly instead of pairing
// unrelated questions.
//
// When the user is themself the top scorer the caller passes the same list
// twice and every delta comes out zero.
func BuildComparison(userOutcomes, referenceOutcomes []domain.QuestionOutcome) ([]domain.QuestionComparison, []domain.SectionHistogram, error) {
	if len(userOutcomes) != len(referenceOutcomes) {
		return nil, nil, fmt.Errorf("%w: outcome lists differ in length (%d vs %d)",
			domain.ErrInvalidInput, len(userOutcomes), len(referenceOutcomes))
	}

	refByID := make(map[string]domain.QuestionOutcome, len(referenceOutcomes))
	for _, ref := range referenceOutcomes {
		refByID[ref.QuestionID] = ref
	}

	comparisons := make([]domain.QuestionComparison, 0, len(userOutcomes))
	sections := make(map[string]*domain.SectionHistogram)
	var sectionOrder []string

	for _, user := range userOutcomes {
		ref, ok := refByID[user.QuestionID]
		if !ok {
			return nil, nil, fmt.Errorf("%w: question %s missing from reference outcomes",
				domain.ErrInvalidInput, user.QuestionID)
		}

		comp := domain.QuestionComparison{
			QuestionID:         user.QuestionID,
			QuestionNumber:     user.QuestionNumber,
			Section:            user.Section,
			SubSection:         user.SubSection,
			Type:               user.Type,
			UserTimeTaken:      user.TimeTaken,
			ReferenceTimeTaken: ref.TimeTaken,
			UserMarks:          user.Marks,
			ReferenceMarks:     ref.Marks,
		}
		comparisons = append(comparisons, comp)

		hist, ok := sections[user.Section]
		if !ok {
			hist = &domain.SectionHistogram{Section: user.Section}
			sections[user.Section] = hist
			sectionOrder = append(sectionOrder, user.Section)
		}
		hist.TotalMarks += user.Marks
		hist.TotalQuestions++
		switch classify(user) {
		case domain.OutcomeCorrect:
			hist.TotalRightQuestions++
		case domain.OutcomeWrong:
			hist.TotalWrongQuestions++
		default:
			hist.TotalSkipped++
		}
		hist.Questions = append(hist.Questions, comp)
	}

	rollup := make([]domain.SectionHistogram, 0, len(sectionOrder))
	for _, title := range sectionOrder {
		rollup = append(rollup, *sections[title])
	}
	return comparisons, rollup, nil
}

// classify buckets an outcome for the section counts. The attempted status
// wins when present; older records without one fall back to the sign of the
// awarded marks (positive right, negative wrong, zero skipped).
func classify(outcome domain.QuestionOutcome) domain.OutcomeStatus {
	switch outcome.Status {
	case domain.OutcomeCorrect, domain.OutcomeWrong, domain.OutcomeSkipped:
		return outcome.Status
	}
	switch {
	case outcome.Marks > 0:
		return domain.OutcomeCorrect
	case outcome.Marks < 0:
		return domain.OutcomeWrong
	default:
		return domain.OutcomeSkipped
	}
}
