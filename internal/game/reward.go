package game

import (
	"math"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

// EXP curve constants. Base EXP grows logistically with the size of the song
// pool and levels off near expCurveMax.
const (
	expCurveMax      = 1000.0
	expCurveSteept   = 0.0015
	expCurveMidpoint = 1500.0

	expJitter = 0.05

	streakBonusStep = 0.05
	streakBonusCap  = 1.5

	fastGuessWindow = 3 * time.Second
	fastGuessBonus  = 1.1

	weekendBonus    = 2.0
	powerHourBonus  = 2.0
	voteBonus       = 2.0
	firstGameBonus  = 1.5
	groupBonusScale = 0.5
)

// RewardInput is everything the reward calculator looks at for one correct
// guesser. The function is pure given an input and an rng.
type RewardInput struct {
	PoolSize     int
	Streak       int
	TimeToGuess  time.Duration
	Participants int
	GuessIndex   int // 0 for the first correct guesser
	HintUsed     bool
	Weekend      bool
	PowerHour    bool
	VoteBonus    bool
	FirstGameDay bool
}

// BaseExp returns the pool-size-driven base EXP, before modifiers and jitter.
// Monotonically non-decreasing in poolSize, asymptotically capped.
func BaseExp(poolSize int) float64 {
	if poolSize <= 0 {
		return 0
	}
	return expCurveMax / (1 + math.Exp(-expCurveSteept*(float64(poolSize)-expCurveMidpoint)))
}

// ComputeExp converts one correct guess into an EXP value: logistic base,
// multiplied by streak, position, group-size and time-window bonuses, with a
// symmetric ±5% jitter drawn from rng.
func ComputeExp(in RewardInput, rng *rand.Rand) float64 {
	exp := BaseExp(in.PoolSize)

	exp *= streakModifier(in.Streak)
	exp *= positionModifier(in.GuessIndex)
	exp *= groupModifier(in.Participants)

	if in.TimeToGuess > 0 && in.TimeToGuess <= fastGuessWindow {
		exp *= fastGuessBonus
	}
	if in.HintUsed {
		exp *= 0.5
	}
	if in.Weekend {
		exp *= weekendBonus
	}
	if in.PowerHour {
		exp *= powerHourBonus
	}
	if in.VoteBonus {
		exp *= voteBonus
	}
	if in.FirstGameDay {
		exp *= firstGameBonus
	}

	jitter := 1 + (rng.Float64()*2-1)*expJitter
	return exp * jitter
}

// GuessPoints returns the score value of a correct guess: full credit for the
// first getter, half for each later simultaneous getter, scaled down when a
// hint was used.
func GuessPoints(guessIndex int, hintUsed bool, hintPenalty float64) decimal.Decimal {
	points := decimal.NewFromInt(1)
	if guessIndex > 0 {
		points = decimal.NewFromFloat(0.5)
	}
	if hintUsed {
		if hintPenalty <= 0 || hintPenalty > 1 {
			hintPenalty = 0.5
		}
		points = points.Mul(decimal.NewFromFloat(hintPenalty))
	}
	return points
}

func streakModifier(streak int) float64 {
	if streak < 2 {
		return 1
	}
	return math.Min(1+float64(streak)*streakBonusStep, streakBonusCap)
}

func positionModifier(index int) float64 {
	if index <= 0 {
		return 1
	}
	return 0.5
}

// groupModifier rewards small groups: the fewer concurrent participants the
// higher the per-capita bonus.
func groupModifier(participants int) float64 {
	if participants < 1 {
		participants = 1
	}
	return 1 + groupBonusScale/float64(participants)
}

// LevelForExp maps cumulative EXP to a level via a quadratic threshold curve:
// reaching level n requires 100*n^2 total EXP.
func LevelForExp(exp float64) int {
	if exp <= 0 {
		return 0
	}
	return int(math.Sqrt(exp / 100))
}

// IsWeekend reports whether t falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsPowerHour reports whether t is inside the configured bonus hour.
// startHour < 0 disables the window.
func IsPowerHour(t time.Time, startHour int) bool {
	return startHour >= 0 && t.Hour() == startHour
}
