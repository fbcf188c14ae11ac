package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return LaunchDate.AddDate(0, 0, n)
}

func TestParseCompact(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"153.8K", 153800, false},
		{"0.7M", 700000, false},
		{"10M", 10000000, false},
		{"60", 60, false},
		{" 250K ", 250000, false},
		{"4.758m", 4758000, false},
		{"320K.9", 0, true}, // 序列里真实存在的脏数据
		{"", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCompact(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestDayIndex(t *testing.T) {
	assert.Equal(t, 0, DayIndex(LaunchDate))
	assert.Equal(t, 0, DayIndex(LaunchDate.Add(23*time.Hour)))
	assert.Equal(t, 1, DayIndex(day(1)))
	assert.Equal(t, -1, DayIndex(LaunchDate.Add(-time.Hour)), "上线前一小时算第 -1 天")
	assert.Equal(t, 49, DayIndex(day(49)))
}

func TestSeries(t *testing.T) {
	v, ok := TotalInvestments(day(0))
	require.True(t, ok)
	assert.Equal(t, "153.8K", v)

	v, ok = TotalTradings(day(49))
	require.True(t, ok)
	assert.Equal(t, "10M", v)

	n, ok := TotalUsers(day(0))
	require.True(t, ok)
	assert.Equal(t, 60, n)

	n, ok = TotalUsers(day(49))
	require.True(t, ok)
	assert.Equal(t, 7500, n)

	// 窗口外
	_, ok = TotalInvestments(day(-1))
	assert.False(t, ok)
	_, ok = TotalProfits(day(50))
	assert.False(t, ok)
}

func TestChangeRatios(t *testing.T) {
	// 第 1 天定投: (168.5K - 153.8K) / 153.8K
	r, ok := InvestmentChangeRatio(day(1))
	require.True(t, ok)
	assert.InDelta(t, (168500.0-153800.0)/153800.0, r, 1e-9)

	// 第 0 天没有前一天
	_, ok = InvestmentChangeRatio(day(0))
	assert.False(t, ok)

	// 用户数: (184 - 60) / 60
	r, ok = UsersChangeRatio(day(1))
	require.True(t, ok)
	assert.InDelta(t, 124.0/60.0, r, 1e-9)

	// 组合口径 = 定投 + 跟单合并后的变化率
	r, ok = PortfolioChangeRatio(day(1))
	require.True(t, ok)
	prev := 153800.0 + 100000.0
	curr := 168500.0 + 118600.0
	assert.InDelta(t, (curr-prev)/prev, r, 1e-9)

	// 脏数据 "320K.9" 落在第 7 天，第 7/8 天的定投变化率算不出来
	_, ok = InvestmentChangeRatio(day(7))
	assert.False(t, ok)
	_, ok = InvestmentChangeRatio(day(8))
	assert.False(t, ok)
}

func TestSnapshot(t *testing.T) {
	snap := At(day(1))
	require.True(t, snap.InRange)
	assert.Equal(t, 1, snap.DayIndex)
	assert.Equal(t, "2026-02-25", snap.Date)
	assert.Equal(t, "168.5K", snap.TotalInvestment)
	assert.Equal(t, "118.6K", snap.TotalTrading)
	assert.Equal(t, "11.5K", snap.TotalProfit)
	assert.Equal(t, "92K", snap.TotalTokenBalance)
	assert.Equal(t, 184, snap.TotalUsers)
	require.NotNil(t, snap.ChangeRatios.Users)
	assert.InDelta(t, 124.0/60.0, *snap.ChangeRatios.Users, 1e-9)

	// 上线前
	before := At(day(-3))
	assert.False(t, before.InRange)
	assert.Nil(t, before.ChangeRatios.Investment)

	// 第 0 天有数据但没有变化率
	first := At(day(0))
	require.True(t, first.InRange)
	assert.Equal(t, "153.8K", first.TotalInvestment)
	assert.Nil(t, first.ChangeRatios.Investment)
}
