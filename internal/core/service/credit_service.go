package service

import (
	"context"
	"math"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"qynx.com/internal/domain"
	"qynx.com/internal/pricing"
	"qynx.com/pkg/logger"
	"qynx.com/pkg/metrics"
	"qynx.com/pkg/xerr"
)

// CreditService 按 USD 价值给用户发 QYNX：内部账先入，链上 Mint 尽力而为。
// Mint 失败不回滚内部账，两边允许暂时不一致，MintStatus 留给对账任务补发
type CreditService struct {
	oracle     *pricing.Oracle
	users      domain.UserRepo
	minter     domain.TokenMinter // 未配置时为 nil
	ratePerUsd float64            // 每 1 USD 折算的 QYNX 数量
}

func NewCreditService(oracle *pricing.Oracle, users domain.UserRepo,
	minter domain.TokenMinter, ratePerUsd float64) *CreditService {
	return &CreditService{
		oracle:     oracle,
		users:      users,
		minter:     minter,
		ratePerUsd: ratePerUsd,
	}
}

type CreditResult struct {
	Units      int64   // 本次发放的 QYNX 额度 (0 表示未入账)
	UsdValue   float64 // 充值折算的 USD 价值
	MintDone   bool
	MintTxHash string
	MintError  string // Mint 失败原因，成功为空
}

// Quote 折算充值金额对应的 QYNX 额度，不产生任何副作用
func (s *CreditService) Quote(ctx context.Context, amount decimal.Decimal, symbol string) (usd float64, units int64) {
	usd = s.oracle.AmountToUSD(ctx, amount, symbol)
	units = int64(math.Floor(usd * s.ratePerUsd))
	return usd, units
}

// Credit 折算并入内部账。units <= 0 时不动余额。
// 要和占用 hash 放进同一个事务 ctx 里调用：入账失败整体回滚，hash 不会被白占
func (s *CreditService) Credit(ctx context.Context, userID string,
	amount decimal.Decimal, symbol string) (*CreditResult, error) {

	usd, units := s.Quote(ctx, amount, symbol)
	res := &CreditResult{Units: units, UsdValue: usd}
	if units <= 0 {
		return res, nil
	}

	// 入账必须成功，这是用户资产
	if err := s.users.AddTokenBalance(ctx, userID, units); err != nil {
		return nil, err
	}
	metrics.CreditIssuedTotal.Inc()
	metrics.CreditUnitsTotal.Add(float64(units))

	logger.Info(ctx, "QYNX 入账完成",
		zap.String("user_id", userID),
		zap.Int64("units", units),
		zap.Float64("usd", usd))
	return res, nil
}

// TryMint 链上 Mint 尽力而为，结果写回 res，永不报错。
// 入账事务提交之后再调，Mint 失败不影响已提交的内部账
func (s *CreditService) TryMint(ctx context.Context, recipient string, res *CreditResult) {
	if res.Units <= 0 {
		return
	}

	if s.minter == nil {
		res.MintError = xerr.MapErrMsg(xerr.MintNotConfigured)
		metrics.MintFailTotal.Inc()
		logger.Warn(ctx, "Mint 未配置，跳过链上发放")
		return
	}

	txHash, err := s.minter.Mint(ctx, recipient, res.Units)
	if err != nil {
		res.MintError = err.Error()
		metrics.MintFailTotal.Inc()
		logger.Error(ctx, "Mint 失败，内部入账保留，等待对账补发",
			zap.Int64("units", res.Units),
			zap.Error(err))
		return
	}

	res.MintDone = true
	res.MintTxHash = txHash
}
