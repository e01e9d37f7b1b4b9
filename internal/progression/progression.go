// Package progression holds the pure experience/level/streak math applied when
// a quiz session completes. Nothing here touches storage or the clock.
package progression

import (
	"time"

	"prepquiz-service/internal/domain"
)

const (
	baseXP         = 50
	xpPerCorrect   = 10
	perfectBonusXP = 100
	maxLevel       = 50
)

// levelThresholds[i] is the highest XP that still maps to level i+1.
var levelThresholds = []int{100, 250, 500, 1000, 1750, 2750, 4000, 5500, 7500}

// ExperienceGained is the XP awarded for one completed session: a completion
// base, a per-correct-answer bonus, and a perfect-score bonus.
func ExperienceGained(correctAnswers, totalQuestions int) int {
	gained := baseXP + xpPerCorrect*correctAnswers
	if totalQuestions > 0 && correctAnswers == totalQuestions {
		gained += perfectBonusXP
	}
	return gained
}

// LevelForXP maps accumulated experience points to a level using the fixed
// threshold table, clamped to maxLevel. Monotonic non-decreasing in xp.
func LevelForXP(xp int) int {
	for i, limit := range levelThresholds {
		if xp <= limit {
			return i + 1
		}
	}
	level := 10 + (xp-levelThresholds[len(levelThresholds)-1])/2000
	if level > maxLevel {
		return maxLevel
	}
	return level
}

// NextStreak evaluates the daily streak rule for a completion happening on
// today: unchanged if a quiz was already completed today, incremented if the
// last one was yesterday, otherwise reset to 1.
func NextStreak(current int, lastQuizDate, today time.Time) int {
	if sameDay(lastQuizDate, today) {
		return current
	}
	if sameDay(lastQuizDate.AddDate(0, 0, 1), today) {
		return current + 1
	}
	return 1
}

// Apply folds one completed session into a user's progression. Level never
// decreases; last_quiz_date moves to today only on the first completion of the
// day. The returned levelUp flag reports whether the level was raised.
func Apply(p domain.Progression, correctAnswers, totalQuestions int, today time.Time) (domain.Progression, int, bool) {
	gained := ExperienceGained(correctAnswers, totalQuestions)
	p.ExperiencePoints += gained

	levelUp := false
	if next := LevelForXP(p.ExperiencePoints); next > p.Level {
		p.Level = next
		levelUp = true
	}

	if !sameDay(p.LastQuizDate, today) {
		p.DailyStreak = NextStreak(p.DailyStreak, p.LastQuizDate, today)
		p.LastQuizDate = dateOnly(today)
	}
	return p, gained, levelUp
}

func sameDay(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return a.IsZero() && b.IsZero()
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
