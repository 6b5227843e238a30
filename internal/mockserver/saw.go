package mockserver

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/luthfiadilal/front-end-CBT-sub000/internal/model"
)

// Default SAW weights: C1 accuracy, C2 difficulty, C3 consistency, C4 time.
// Overridable through the kriteria CRUD.
const (
	defaultWeightC1 = 0.35
	defaultWeightC2 = 0.25
	defaultWeightC3 = 0.20
	defaultWeightC4 = 0.20
)

type sawWeights struct {
	C1, C2, C3, C4 float64
}

// sawInput is everything the scoring of one attempt depends on.
type sawInput struct {
	Questions []storedQuestion
	// Answers maps question id to the selected option id.
	Answers  map[uuid.UUID]string
	Duration time.Duration
	Started  time.Time
	Finished time.Time
}

// computeSAW applies the Simple Additive Weighting model to one attempt:
// four normalized criteria, a weighted preference score, and the converted
// 0-100 final score with its status label.
func computeSAW(in sawInput, w sawWeights) (model.CriteriaScores, float64, float64, string, []model.AnswerReview, int, int, int) {
	var (
		reviews    []model.AnswerReview
		correct    int
		wrong      int
		unanswered int

		diffTotal   float64
		diffCorrect float64
	)

	correctness := make(map[uuid.UUID]bool, len(in.Questions))

	for _, q := range in.Questions {
		diffTotal += float64(q.Difficulty)

		selected, answered := in.Answers[q.ID]
		if !answered {
			unanswered++
			continue
		}
		ok := selected == q.Correct
		correctness[q.ID] = ok
		if ok {
			correct++
			diffCorrect += float64(q.Difficulty)
		} else {
			wrong++
		}
		reviews = append(reviews, model.AnswerReview{
			QuestionID: q.ID,
			OptionID:   selected,
			Correct:    ok,
		})
	}

	total := len(in.Questions)

	// C1 — accuracy: fraction of questions answered correctly.
	var c1 float64
	if total > 0 {
		c1 = float64(correct) / float64(total)
	}

	// C2 — difficulty-weighted correctness.
	var c2 float64
	if diffTotal > 0 {
		c2 = diffCorrect / diffTotal
	}

	// C3 — consistency across pair groups.
	c3 := consistency(in.Questions, in.Answers, correctness, c1)

	// C4 — time utilization: finishing with time to spare scores higher.
	var c4 float64
	if in.Duration > 0 {
		used := in.Finished.Sub(in.Started)
		c4 = 1 - used.Seconds()/in.Duration.Seconds()
		if c4 < 0 {
			c4 = 0
		}
		if c4 > 1 {
			c4 = 1
		}
	}

	criteria := model.CriteriaScores{C1: c1, C2: c2, C3: c3, C4: c4}
	preference := w.C1*c1 + w.C2*c2 + w.C3*c3 + w.C4*c4
	final := math.Round(preference*100*100) / 100

	return criteria, preference, final, statusLabel(final), reviews, correct, wrong, unanswered
}

// consistency measures whether questions sharing a pair group were answered
// with the same outcome. Each group contributes the fraction of its majority
// outcome; the result is the mean over groups. Exams without pair groups
// fall back to the accuracy criterion.
func consistency(questions []storedQuestion, answers map[uuid.UUID]string, correctness map[uuid.UUID]bool, fallback float64) float64 {
	groups := make(map[string][]uuid.UUID)
	for _, q := range questions {
		if q.PairGroup == "" {
			continue
		}
		groups[q.PairGroup] = append(groups[q.PairGroup], q.ID)
	}

	var sum float64
	var counted int
	for _, ids := range groups {
		if len(ids) < 2 {
			continue
		}
		var right, wrong int
		for _, id := range ids {
			if _, answered := answers[id]; !answered {
				wrong++ // an unanswered member breaks the group's consistency
				continue
			}
			if correctness[id] {
				right++
			} else {
				wrong++
			}
		}
		majority := right
		if wrong > majority {
			majority = wrong
		}
		sum += float64(majority) / float64(len(ids))
		counted++
	}

	if counted == 0 {
		return fallback
	}
	return sum / float64(counted)
}

// statusLabel classifies a 0-100 score.
func statusLabel(final float64) string {
	switch {
	case final >= 85:
		return "Sangat Baik"
	case final >= 70:
		return "Baik"
	case final >= 55:
		return "Cukup"
	default:
		return "Kurang"
	}
}
