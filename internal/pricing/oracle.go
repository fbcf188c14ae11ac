package pricing

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"qynx.com/pkg/metrics"
)

// 缓存保鲜时间
const cacheTTL = 60 * time.Second

// 稳定币恒等于 1 USD，不走缓存也不走价格源
var stablecoins = map[string]bool{
	"USDT": true,
	"USDC": true,
	"DAI":  true,
	"BUSD": true,
}

// 价格源完全不可用时的静态兜底价
var fallbackUSD = map[string]float64{
	"BTC": 65000,
	"ETH": 2500,
	"BNB": 550,
	"SOL": 150,
	"POL": 0.5,
}

// symbol -> 价格源资产 id (CoinGecko 命名)，可被配置覆盖
var defaultAssetIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"BNB":  "binancecoin",
	"SOL":  "solana",
	"POL":  "polygon-ecosystem-token",
	"USDT": "tether",
	"USDC": "usd-coin",
	"DAI":  "dai",
	"BUSD": "binance-usd",
}

// Fetcher 批量拉取 USD 报价 (key: 价格源资产 id)
type Fetcher interface {
	FetchUSD(ctx context.Context, ids []string) (map[string]float64, error)
}

// Oracle 进程级共享的价格缓存。刷新失败时退化顺序：
// 旧缓存 -> 静态兜底价 -> 0，PriceUSD 永远不返回错误
type Oracle struct {
	fetcher  Fetcher
	assetIDs map[string]string

	mu        sync.RWMutex
	prices    map[string]float64
	fetchedAt time.Time

	ttl time.Duration
	now func() time.Time // 测试注入时钟

	// 防止同一时刻多个请求重复打价格源 (并发重复刷新也不影响正确性，缓存只是读优化)
	sf singleflight.Group
}

func New(fetcher Fetcher, assetIDs map[string]string) *Oracle {
	ids := make(map[string]string, len(defaultAssetIDs))
	for k, v := range defaultAssetIDs {
		ids[k] = v
	}
	for k, v := range assetIDs {
		ids[strings.ToUpper(k)] = v
	}
	return &Oracle{
		fetcher:  fetcher,
		assetIDs: ids,
		ttl:      cacheTTL,
		now:      time.Now,
	}
}

// PriceUSD 查询币价。稳定币恒为 1；查无此币且全部兜底失败返回 0
func (o *Oracle) PriceUSD(ctx context.Context, symbol string) float64 {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if stablecoins[sym] {
		return 1
	}

	o.mu.RLock()
	fresh := o.prices != nil && o.now().Sub(o.fetchedAt) < o.ttl
	p, has := o.prices[sym]
	o.mu.RUnlock()
	if fresh && has {
		return p
	}

	_, err, _ := o.sf.Do("refresh", func() (interface{}, error) {
		return nil, o.refresh(ctx)
	})
	if err == nil {
		o.mu.RLock()
		p, has = o.prices[sym]
		o.mu.RUnlock()
		if has {
			return p
		}
		return 0 // 刷新成功但不认识这个币
	}

	// 刷新失败：旧缓存还能用就用旧的
	o.mu.RLock()
	p, has = o.prices[sym]
	o.mu.RUnlock()
	if has {
		return p
	}
	if f, ok := fallbackUSD[sym]; ok {
		return f
	}
	return 0
}

// AmountToUSD 金额折算 USD。非正数/非法金额返回 0
func (o *Oracle) AmountToUSD(ctx context.Context, amount decimal.Decimal, symbol string) float64 {
	f, _ := amount.Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	return f * o.PriceUSD(ctx, symbol)
}

// refresh 整体替换缓存：拉到报价用报价，稳定币没报上补 1，
// 已知波动币没报上补静态兜底价
func (o *Oracle) refresh(ctx context.Context) error {
	ids := make([]string, 0, len(o.assetIDs))
	for _, id := range o.assetIDs {
		ids = append(ids, id)
	}

	quotes, err := o.fetcher.FetchUSD(ctx, ids)
	if err != nil {
		metrics.PriceRefreshFailTotal.Inc()
		return err
	}

	prices := make(map[string]float64, len(o.assetIDs))
	for sym, id := range o.assetIDs {
		switch {
		case quotes[id] > 0:
			prices[sym] = quotes[id]
		case stablecoins[sym]:
			prices[sym] = 1
		case fallbackUSD[sym] > 0:
			prices[sym] = fallbackUSD[sym]
		}
	}

	o.mu.Lock()
	o.prices = prices
	o.fetchedAt = o.now()
	o.mu.Unlock()
	return nil
}
