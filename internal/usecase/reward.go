package usecase

import "github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"

// rewardSteps maps a goal ceiling in minutes to XP. Ordered ascending.
var rewardSteps = []struct {
	maxMinutes int
	xp         int
}{
	{15, 3},
	{30, 5},
	{45, 8},
	{60, 10},
	{90, 15},
}

const longSessionXP = 25

// RewardFor returns the payout for completing a session of goalMinutes.
// Coins mirror XP.
func RewardFor(goalMinutes int) domain.Reward {
	xp := longSessionXP
	for _, step := range rewardSteps {
		if goalMinutes <= step.maxMinutes {
			xp = step.xp
			break
		}
	}
	return domain.Reward{XP: xp, Coins: xp}
}
