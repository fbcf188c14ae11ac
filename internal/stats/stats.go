package stats

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// 平台上线日，日指标序列都从这天开始按天索引
var LaunchDate = time.Date(2026, time.February, 24, 0, 0, 0, 0, time.UTC)

// 运营日报的展示序列 (50 天)，紧凑记法："153.8K" = 153800，"0.7M" = 700000
var (
	totalInvestments = []string{"153.8K", "168.5K", "187.7K", "205.4K", "230.2K", "255.7K", "285.5K", "320K.9", "360.2K", "400.1K", "430K", "470.6K", "530K", "610K", "0.7M", "0.82M", "0.9M", "1.02M", "1.12M", "1.2M", "1.3M", "1.45M", "1.6M", "1.8M", "1.95M", "2.1M", "2.25M", "2.4M", "2.48M", "2.5M", "2.65M", "2.8M", "3M", "3.2M", "3.4M", "3.65M", "3.9M", "4.1M", "4.4M", "4.5M", "4.95M", "5.1M", "5.7M", "5.75M", "6.55M", "6.65M", "7.15M", "7.35M", "7.6M", "8M"}

	totalTradings = []string{"100K", "118.6K", "135.3K", "158.7K", "185K", "215.5K", "252.8K", "295K", "340.2K", "395.3K", "455.9K", "520K", "600K", "690.4K", "780K", "880.8K", "1M", "1.15M", "1.3M", "1.45M", "1.65M", "1.85M", "2.1M", "2.35M", "2.6M", "2.9M", "3.25M", "3.54M", "3.81M", "4.14M", "4.43M", "4.758M", "5.17M", "5.5M", "5.9M", "6.33M", "6.72M", "7.1M", "7.54M", "7.96M", "8.39M", "8.6M", "8.95M", "9.25M", "9.5M", "9.7M", "9.85M", "9.92M", "9.96M", "10M"}

	totalProfits = []string{"10K", "11.5K", "13K", "15.9K", "17.5K", "20K", "23K", "26.6K", "29.8K", "33.1K", "37.3K", "42.3K", "47.6K", "52.4K", "58.9K", "64K", "71.2K", "78K", "86.6K", "94K", "103K", "112.7K", "122K", "132K", "142K", "153K", "164K", "175K", "186K", "197K", "208K", "218K", "228K", "238K", "242K", "245K", "247K", "248K", "248.5K", "249K", "249.2K", "249.5K", "249.6K", "249.8K", "249.9K", "249.95K", "250K", "250K", "250K", "250K"}

	totalTokenBalances = []string{"80K", "92K", "108K", "125K", "145K", "168K", "195K", "225K", "258K", "295K", "335K", "380K", "430K", "485K", "545K", "610K", "680K", "755K", "835K", "920K", "1.01M", "1.1M", "1.2M", "1.3M", "1.4M", "1.5M", "1.58M", "1.66M", "1.74M", "1.82M", "1.9M", "1.97M", "2.04M", "2.1M", "2.16M", "2.22M", "2.28M", "2.34M", "2.39M", "2.44M", "2.49M", "2.53M", "2.57M", "2.61M", "2.64M", "2.67M", "2.69M", "2.71M", "2.72M", "2.73M"}

	totalUsers = []int{60, 184, 334, 510, 712, 940, 1041, 1168, 1321, 1500, 1705, 1783, 1887, 2017, 2173, 2355, 2563, 2644, 2751, 2884, 3043, 3228, 3439, 3523, 3633, 3769, 3931, 4119, 4333, 4420, 4533, 4672, 4837, 5028, 5245, 5335, 5451, 5593, 5761, 5955, 6175, 6268, 6387, 6532, 6703, 6900, 7123, 7219, 7341, 7500}
)

var compactRe = regexp.MustCompile(`^([\d.]+)\s*([KkMm])?$`)

// ParseCompact 解析紧凑记法："153.8K" -> 153800，"0.7M" -> 700000
func ParseCompact(s string) (float64, error) {
	m := compactRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("bad compact number: %q", s)
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("bad compact number: %q", s)
	}
	switch m[2] {
	case "K", "k":
		n *= 1e3
	case "M", "m":
		n *= 1e6
	}
	return n, nil
}

// DayIndex 距上线日第几天 (上线日为 0，之前为负)
func DayIndex(date time.Time) int {
	return int(math.Floor(date.Sub(LaunchDate).Hours() / 24))
}

func seriesAt(series []string, date time.Time) (string, bool) {
	i := DayIndex(date)
	if i < 0 || i >= len(series) {
		return "", false
	}
	return series[i], true
}

func TotalInvestments(date time.Time) (string, bool) { return seriesAt(totalInvestments, date) }
func TotalTradings(date time.Time) (string, bool)    { return seriesAt(totalTradings, date) }
func TotalProfits(date time.Time) (string, bool)     { return seriesAt(totalProfits, date) }
func TotalTokenBalance(date time.Time) (string, bool) {
	return seriesAt(totalTokenBalances, date)
}

func TotalUsers(date time.Time) (int, bool) {
	i := DayIndex(date)
	if i < 0 || i >= len(totalUsers) {
		return 0, false
	}
	return totalUsers[i], true
}

// changeRatio 相对前一天的变化率 (0.1 = 涨 10%)。第 0 天没有前一天
func changeRatio(series []string, dayIndex int) (float64, bool) {
	if dayIndex <= 0 || dayIndex >= len(series) {
		return 0, false
	}
	prev, err1 := ParseCompact(series[dayIndex-1])
	curr, err2 := ParseCompact(series[dayIndex])
	if err1 != nil || err2 != nil || prev == 0 {
		return 0, false
	}
	return (curr - prev) / prev, true
}

func InvestmentChangeRatio(date time.Time) (float64, bool) {
	return changeRatio(totalInvestments, DayIndex(date))
}

func TradingChangeRatio(date time.Time) (float64, bool) {
	return changeRatio(totalTradings, DayIndex(date))
}

func ProfitChangeRatio(date time.Time) (float64, bool) {
	return changeRatio(totalProfits, DayIndex(date))
}

func TokenBalanceChangeRatio(date time.Time) (float64, bool) {
	return changeRatio(totalTokenBalances, DayIndex(date))
}

// PortfolioChangeRatio 投资+跟单合计的日变化率
func PortfolioChangeRatio(date time.Time) (float64, bool) {
	i := DayIndex(date)
	if i <= 0 || i >= len(totalInvestments) || i >= len(totalTradings) {
		return 0, false
	}
	prevInv, e1 := ParseCompact(totalInvestments[i-1])
	prevTrd, e2 := ParseCompact(totalTradings[i-1])
	currInv, e3 := ParseCompact(totalInvestments[i])
	currTrd, e4 := ParseCompact(totalTradings[i])
	if e1 != nil || e2 != nil || e3 != nil || e4 != nil {
		return 0, false
	}
	prev, curr := prevInv+prevTrd, currInv+currTrd
	if prev == 0 {
		return 0, false
	}
	return (curr - prev) / prev, true
}

func UsersChangeRatio(date time.Time) (float64, bool) {
	i := DayIndex(date)
	if i <= 0 || i >= len(totalUsers) {
		return 0, false
	}
	prev := totalUsers[i-1]
	if prev == 0 {
		return 0, false
	}
	return float64(totalUsers[i]-prev) / float64(prev), true
}

// ChangeRatios 各序列相对前一天的变化率，nil 表示该天算不出 (窗口外/第 0 天)
type ChangeRatios struct {
	Investment   *float64
	Trading      *float64
	Profit       *float64
	TokenBalance *float64
	Users        *float64
	Portfolio    *float64
}

// Snapshot 某一天的全量运营指标。InRange=false 时其余字段为零值
type Snapshot struct {
	Date              string // YYYY-MM-DD
	DayIndex          int
	InRange           bool
	TotalInvestment   string
	TotalTrading      string
	TotalProfit       string
	TotalTokenBalance string
	TotalUsers        int
	ChangeRatios      ChangeRatios
}

// At 取某天的运营指标快照
func At(date time.Time) Snapshot {
	snap := Snapshot{
		Date:     date.UTC().Format("2006-01-02"),
		DayIndex: DayIndex(date),
	}
	if snap.DayIndex < 0 || snap.DayIndex >= len(totalInvestments) {
		return snap
	}
	snap.InRange = true
	snap.TotalInvestment, _ = TotalInvestments(date)
	snap.TotalTrading, _ = TotalTradings(date)
	snap.TotalProfit, _ = TotalProfits(date)
	snap.TotalTokenBalance, _ = TotalTokenBalance(date)
	snap.TotalUsers, _ = TotalUsers(date)

	if v, ok := InvestmentChangeRatio(date); ok {
		snap.ChangeRatios.Investment = &v
	}
	if v, ok := TradingChangeRatio(date); ok {
		snap.ChangeRatios.Trading = &v
	}
	if v, ok := ProfitChangeRatio(date); ok {
		snap.ChangeRatios.Profit = &v
	}
	if v, ok := TokenBalanceChangeRatio(date); ok {
		snap.ChangeRatios.TokenBalance = &v
	}
	if v, ok := UsersChangeRatio(date); ok {
		snap.ChangeRatios.Users = &v
	}
	if v, ok := PortfolioChangeRatio(date); ok {
		snap.ChangeRatios.Portfolio = &v
	}
	return snap
}
