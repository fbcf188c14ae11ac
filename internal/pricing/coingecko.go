package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

// CoinGecko 批量报价客户端，GET {base}/simple/price?ids=...&vs_currencies=usd
// 返回 {"bitcoin":{"usd":65000}, ...}
type CoinGecko struct {
	baseURL string
	client  *http.Client
	// 价格源挂掉时快速失败，别让每个请求都吊死在超时上
	breaker *gobreaker.CircuitBreaker[map[string]float64]
}

func NewCoinGecko(baseURL string, timeout time.Duration) *CoinGecko {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CoinGecko{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[map[string]float64](gobreaker.Settings{
			Name:    "price-feed",
			Timeout: 30 * time.Second, // 熔断后多久放探针
		}),
	}
}

func (c *CoinGecko) FetchUSD(ctx context.Context, ids []string) (map[string]float64, error) {
	return c.breaker.Execute(func() (map[string]float64, error) {
		return c.fetch(ctx, ids)
	})
}

func (c *CoinGecko) fetch(ctx context.Context, ids []string) (map[string]float64, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price feed status %d", resp.StatusCode)
	}

	var raw map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("price feed decode failed: %w", err)
	}

	out := make(map[string]float64, len(raw))
	for id, v := range raw {
		out[id] = v.USD
	}
	return out, nil
}
