package progression

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpToNextLevel(t *testing.T) {
	cases := []struct {
		level int
		want  int
	}{
		{0, 100},
		{1, 100},
		{2, 115},
		{3, 132},
		{4, 152},
		{5, 174},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExpToNextLevel(tc.level), "level %d", tc.level)
	}
}

func TestApplyExperience_LevelUpAtThreshold(t *testing.T) {
	level, exp, next := ApplyExperience(1, 0, 100)
	assert.Equal(t, 2, level)
	assert.Equal(t, 0, exp)
	assert.Equal(t, 115, next)
}

func TestApplyExperience_ZeroDeltaIsNoop(t *testing.T) {
	level, exp, next := ApplyExperience(3, 40, 0)
	assert.Equal(t, 3, level)
	assert.Equal(t, 40, exp)
	assert.Equal(t, ExpToNextLevel(3), next)
}

func TestApplyExperience_MultipleLevels(t *testing.T) {
	// 100 + 115 + 132 = 347 → уровень 4 и 3 опыта сверху
	level, exp, next := ApplyExperience(1, 0, 350)
	assert.Equal(t, 4, level)
	assert.Equal(t, 3, exp)
	assert.Equal(t, 152, next)
}

func TestApplyExperience_NegativeDeltaIgnored(t *testing.T) {
	level, exp, _ := ApplyExperience(2, 10, -50)
	assert.Equal(t, 2, level)
	assert.Equal(t, 10, exp)
}

func TestApplyExperience_NormalizationInvariant(t *testing.T) {
	for level := 1; level <= 30; level++ {
		for _, delta := range []int{0, 1, 7, 99, 100, 101, 500, 12345, 1_000_000} {
			l, e, n := ApplyExperience(level, 0, delta)
			require.GreaterOrEqual(t, l, level)
			require.Less(t, e, n, "level=%d delta=%d", level, delta)
			require.Equal(t, ExpToNextLevel(l), n)
		}
	}
}

func TestApplyExperience_ConservesTotal(t *testing.T) {
	l, e, _ := ApplyExperience(1, 0, 5000)
	assert.Equal(t, 5000, TotalExpForLevel(l)+e)
}

func TestExpToNextLevel_CappedAtHighLevels(t *testing.T) {
	assert.Equal(t, MaxExperience, ExpToNextLevel(1000))
	assert.Equal(t, MaxExperience, ExpToNextLevel(math.MaxInt32))
}

func TestApplyExperience_HugeDeltaSaturates(t *testing.T) {
	level, exp, next := 1, 0, ExpToNextLevel(1)
	for i := 0; i < 3; i++ {
		level, exp, next = ApplyExperience(level, exp, math.MaxInt)
		require.GreaterOrEqual(t, exp, 0, "round %d", i)
		require.Less(t, exp, next, "round %d", i)
		require.Greater(t, level, 1)
	}

	// Опыт у самого потолка не переворачивается в минус
	_, exp, next = ApplyExperience(1, math.MaxInt, math.MaxInt)
	assert.GreaterOrEqual(t, exp, 0)
	assert.Less(t, exp, next)
}
