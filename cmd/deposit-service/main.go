package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	svcconf "qynx.com/config"
	"qynx.com/internal/core/service"
	"qynx.com/internal/domain"
	"qynx.com/internal/extract"
	"qynx.com/internal/infra/ethereum"
	"qynx.com/internal/infra/persistence"
	"qynx.com/internal/pricing"
	"qynx.com/pkg/config"
	"qynx.com/pkg/logger"
	"qynx.com/pkg/metrics"
	"qynx.com/pkg/orm"
	"qynx.com/pkg/safe"
	"qynx.com/pkg/xredis"
)

var configName = flag.String("c", "deposit", "config name, resolves config/{name}.yaml")

// engine 是进程级句柄：确认入口由宿主 API 进程以库形态调用，
// 这里只负责装配好挂上来
var engine *service.DepositService

func main() {
	flag.Parse()

	// 1. 加载配置 (支持热更新 + DEPOSIT_ 环境变量覆盖)
	var c svcconf.Config
	if _, err := config.LoadAndWatch(*configName, &c); err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	c.FillDefaults()

	// 2. 初始化基础设施
	logger.Init(c.Name, "info")
	defer logger.Sync()
	metrics.MustRegister()

	db := orm.NewMySQL(&orm.Config{
		DSN:         c.Mysql.DataSource,
		MaxIdle:     c.Mysql.MaxIdle,
		MaxOpen:     c.Mysql.MaxOpen,
		MaxLifetime: c.Mysql.MaxLifetime,
	})

	rdb := xredis.NewRedis(&xredis.Config{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info(ctx, "✅ Infrastructure initialized")

	// 3. 初始化组件 (依赖注入)

	// A. 链读取器 (按配置连接各链 RPC)
	reader, err := ethereum.NewReader(c.Chains)
	if err != nil {
		log.Fatalf("chain reader init failed: %v", err)
	}
	defer reader.Close()

	// B. Mint 适配器 (可选，未配置则只做内部入账)
	var minter *ethereum.Minter
	if c.Minter.Contract != "" && c.Minter.PrivateKey != "" {
		chain, ok := c.Chains[c.Minter.Network]
		if !ok {
			log.Fatalf("minter network %q not in chains config", c.Minter.Network)
		}
		minter, err = ethereum.NewMinter(c.Minter, chain.RpcUrl)
		if err != nil {
			log.Fatalf("minter init failed: %v", err)
		}
	}

	// C. 价格预言机 (CoinGecko + 熔断)
	oracle := pricing.New(
		pricing.NewCoinGecko(c.PriceFeed.BaseUrl, time.Duration(c.PriceFeed.TimeoutSec)*time.Second),
		c.PriceFeed.AssetIds,
	)

	// D. Repo (数据持久化)
	repo := persistence.New(db)

	// E. 业务服务
	verifySvc := service.NewVerifyService(reader, extract.New(*c.AcceptLoneTransferLog))
	creditSvc := service.NewCreditService(oracle, repo, toMinter(minter), c.CreditRatePerUsd)
	engine = service.NewDepositService(verifySvc, creditSvc, repo, rdb, c.AllowedRecipients)

	// Prometheus 拉取端点
	if c.MetricsAddr != "" {
		safe.Go(func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(c.MetricsAddr, mux); err != nil {
				logger.Error(ctx, "metrics 端口退出", zap.Error(err))
			}
		})
	}

	// 价格缓存预热，首笔确认不用现拉价格源
	safe.GoCtx(ctx, func(ctx context.Context) {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			oracle.PriceUSD(ctx, "ETH")
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	})

	logger.Info(ctx, "✅ Deposit service ready")

	// 4. 优雅退出
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info(ctx, "Shutdown signal received...")
	cancel()
	time.Sleep(1 * time.Second)
}

// 避免把 nil 指针塞进非 nil 接口
func toMinter(m *ethereum.Minter) domain.TokenMinter {
	if m == nil {
		return nil
	}
	return m
}
