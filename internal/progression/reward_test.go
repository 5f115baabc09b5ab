package progression

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levelupsolo.app/server/internal/common"
	"levelupsolo.app/server/internal/model"
)

func TestResolve_TablesBySource(t *testing.T) {
	r := NewResolver(DefaultRewardConfig())

	cases := []struct {
		source model.TaskSource
		diff   model.Difficulty
		want   int
	}{
		{model.SourceManual, model.DifficultyTrivial, 1},
		{model.SourceManual, model.DifficultyHard, 4},
		{model.SourceAI, model.DifficultyEasy, 10},
		{model.SourceAI, model.DifficultyMedium, 20},
		{model.SourceAI, model.DifficultyHard, 35},
	}
	for _, tc := range cases {
		got, err := r.Resolve(RewardRequest{Category: model.CategoryTodo, Difficulty: tc.diff, Source: tc.source})
		require.NoError(t, err)
		assert.Equal(t, tc.want, got.Exp, "%s/%s", tc.source, tc.diff)
	}
}

func TestResolve_Overrides(t *testing.T) {
	r := NewResolver(DefaultRewardConfig())
	exp, energy := 50, 0
	got, err := r.Resolve(RewardRequest{
		Category:         model.CategoryDaily,
		Difficulty:       model.DifficultyEasy,
		EstimatedMinutes: 120,
		ExpOverride:      &exp,
		EnergyOverride:   &energy,
	})
	require.NoError(t, err)
	assert.Equal(t, Reward{Exp: 50, EnergyCost: 0}, got)
}

func TestResolve_Invalid(t *testing.T) {
	r := NewResolver(DefaultRewardConfig())

	_, err := r.Resolve(RewardRequest{Difficulty: "legendary"})
	assert.True(t, common.IsInvalidInput(err))

	neg := -1
	_, err = r.Resolve(RewardRequest{ExpOverride: &neg})
	assert.True(t, common.IsInvalidInput(err))
}

func TestEnergyCost(t *testing.T) {
	r := NewResolver(DefaultRewardConfig())
	cases := map[int]int{0: 1, -5: 1, 1: 1, 15: 1, 16: 2, 30: 2, 31: 3, 60: 4, 90: 6}
	for minutes, want := range cases {
		assert.Equal(t, want, r.EnergyCost(minutes), "minutes=%d", minutes)
	}
}

func TestRewardConfigValidate(t *testing.T) {
	require.NoError(t, DefaultRewardConfig().Validate())

	broken := DefaultRewardConfig()
	delete(broken.Tables[model.SourceAI], model.DifficultyHard)
	assert.Error(t, broken.Validate())
}

func TestResolve_Limits(t *testing.T) {
	r := NewResolver(DefaultRewardConfig())
	intPtr := func(v int) *int { return &v }

	cases := []struct {
		name string
		req  RewardRequest
	}{
		{"exp above cap", RewardRequest{ExpOverride: intPtr(MaxTaskExpReward + 1)}},
		{"exp max int", RewardRequest{ExpOverride: intPtr(math.MaxInt)}},
		{"energy above max", RewardRequest{EnergyOverride: intPtr(19), MaxEnergy: 18}},
		{"minutes above a day", RewardRequest{EstimatedMinutes: MaxEstimatedMinutes + 1}},
		{"minutes max int", RewardRequest{EstimatedMinutes: math.MaxInt}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Resolve(tc.req)
			assert.True(t, common.IsInvalidInput(err), "err=%v", err)
		})
	}

	got, err := r.Resolve(RewardRequest{ExpOverride: intPtr(MaxTaskExpReward), EnergyOverride: intPtr(18), MaxEnergy: 18})
	require.NoError(t, err)
	assert.Equal(t, Reward{Exp: MaxTaskExpReward, EnergyCost: 18}, got)
}

func TestResolve_LongTaskCostsAtMostMaxEnergy(t *testing.T) {
	r := NewResolver(DefaultRewardConfig())

	got, err := r.Resolve(RewardRequest{EstimatedMinutes: 300, MaxEnergy: 18})
	require.NoError(t, err)
	assert.Equal(t, 18, got.EnergyCost)

	// Без потолка — чистая формула
	got, err = r.Resolve(RewardRequest{EstimatedMinutes: 300})
	require.NoError(t, err)
	assert.Equal(t, 20, got.EnergyCost)
}
