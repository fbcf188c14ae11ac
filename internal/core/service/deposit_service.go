package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"qynx.com/internal/domain"
	"qynx.com/pkg/logger"
	"qynx.com/pkg/metrics"
	"qynx.com/pkg/xerr"
	"qynx.com/pkg/xredis"
)

func newConfirmLock(rdb *redis.Client, hash string) *xredis.DistLock {
	return xredis.NewDistLock(rdb, "deposit:confirm:"+hash, confirmLockTTL)
}

// 确认流程的分布式锁时长，覆盖一次核验+入账
const confirmLockTTL = 30 * time.Second

// DepositService 对外的确认入口：核验链上充值 -> 占用 hash -> 建仓 -> 发 QYNX。
// 同一个 hash 的并发确认用 redis 锁收窄竞态，deposit_claims 唯一索引兜底
type DepositService struct {
	verify *VerifyService
	credit *CreditService
	repo   domain.PositionRepo
	rdb    *redis.Client // 可为 nil (单机部署/测试)，只靠唯一索引
	// 平台归集地址，作为充值收款的额外许可地址
	allowedRecipients []string
}

func NewDepositService(verify *VerifyService, credit *CreditService,
	repo domain.PositionRepo, rdb *redis.Client, allowedRecipients []string) *DepositService {
	return &DepositService{
		verify:            verify,
		credit:            credit,
		repo:              repo,
		rdb:               rdb,
		allowedRecipients: allowedRecipients,
	}
}

type ConfirmRequest struct {
	UserID        string
	WalletAddress string // 用户登记的充值地址，同时是 Mint 收款地址
	Token         string
	TxHash        string
	Network       string
	Period        int // 定投期限 (天)，ConfirmInvestment 用
	Type          int // 跟单类型 (TradingPeriods 下标)，ConfirmTrading 用
	// 可选：要求交易必须由该地址发出
	ExpectedSender string
}

// ConfirmInvestment 确认充值并创建定投仓位。
// 金额一律取链上实际到账值，不信客户端上报
func (d *DepositService) ConfirmInvestment(ctx context.Context, req ConfirmRequest) (*domain.Investment, *CreditResult, error) {
	if err := d.validate(req); err != nil {
		return nil, nil, err
	}
	if req.Period <= 0 {
		return nil, nil, xerr.New(xerr.RequestParamsError, "period is required")
	}

	vres, err := d.verifyDeposit(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	unlock, err := d.lockHash(ctx, vres.Hash)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	if err := d.replayGuard(ctx, vres.Hash); err != nil {
		return nil, nil, err
	}

	now := time.Now()
	inv := &domain.Investment{
		ID:            uuid.NewString(),
		UserID:        req.UserID,
		WalletAddress: req.WalletAddress,
		Token:         strings.ToUpper(req.Token),
		Amount:        vres.Amount,
		Period:        req.Period,
		Status:        domain.PositionActive,
		EndDate:       now.Add(time.Duration(req.Period) * 24 * time.Hour),
		DepositTxHash: vres.Hash,
	}

	// 占用 hash、建仓、入账在同一个事务里：任何一步失败整体回滚，
	// hash 不会被一笔没入账的充值永久烧掉
	var credit *CreditResult
	err = d.repo.Transaction(ctx, func(txCtx context.Context) error {
		if err := d.repo.ClaimDepositHash(txCtx, &domain.DepositClaim{
			TxHash: vres.Hash, UserID: req.UserID, Kind: "investment",
		}); err != nil {
			return err
		}
		if err := d.repo.CreateInvestment(txCtx, inv); err != nil {
			return err
		}
		var cerr error
		credit, cerr = d.credit.Credit(txCtx, req.UserID, vres.Amount, req.Token)
		return cerr
	})
	if err != nil {
		d.countReject(err)
		return nil, nil, err
	}

	d.credit.TryMint(ctx, req.WalletAddress, credit)
	d.recordMint(ctx, "investment", inv.ID, credit)
	inv.MintStatus, inv.MintTxHash = mintStatus(credit), credit.MintTxHash

	return inv, credit, nil
}

// ConfirmTrading 确认充值并创建跟单仓位，期限由类型查表
func (d *DepositService) ConfirmTrading(ctx context.Context, req ConfirmRequest) (*domain.Trading, *CreditResult, error) {
	if err := d.validate(req); err != nil {
		return nil, nil, err
	}
	if req.Type < 0 || req.Type >= len(domain.TradingPeriods) {
		return nil, nil, xerr.New(xerr.RequestParamsError,
			fmt.Sprintf("trading type must be in [0,%d)", len(domain.TradingPeriods)))
	}
	period := domain.TradingPeriods[req.Type]

	vres, err := d.verifyDeposit(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	unlock, err := d.lockHash(ctx, vres.Hash)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	if err := d.replayGuard(ctx, vres.Hash); err != nil {
		return nil, nil, err
	}

	now := time.Now()
	tr := &domain.Trading{
		ID:            uuid.NewString(),
		UserID:        req.UserID,
		WalletAddress: req.WalletAddress,
		Token:         strings.ToUpper(req.Token),
		Amount:        vres.Amount,
		Type:          req.Type,
		Status:        domain.PositionActive,
		EndDate:       now.Add(time.Duration(period) * 24 * time.Hour),
		DepositTxHash: vres.Hash,
	}

	var credit *CreditResult
	err = d.repo.Transaction(ctx, func(txCtx context.Context) error {
		if err := d.repo.ClaimDepositHash(txCtx, &domain.DepositClaim{
			TxHash: vres.Hash, UserID: req.UserID, Kind: "trading",
		}); err != nil {
			return err
		}
		if err := d.repo.CreateTrading(txCtx, tr); err != nil {
			return err
		}
		var cerr error
		credit, cerr = d.credit.Credit(txCtx, req.UserID, vres.Amount, req.Token)
		return cerr
	})
	if err != nil {
		d.countReject(err)
		return nil, nil, err
	}

	d.credit.TryMint(ctx, req.WalletAddress, credit)
	d.recordMint(ctx, "trading", tr.ID, credit)
	tr.MintStatus, tr.MintTxHash = mintStatus(credit), credit.MintTxHash

	return tr, credit, nil
}

// VerifyAndCreditPurchase 核验充值并直接发 QYNX，不建仓。
// 折算额度为 0 的充值按参数错误拒绝，hash 不占用
func (d *DepositService) VerifyAndCreditPurchase(ctx context.Context, req ConfirmRequest) (*CreditResult, error) {
	if err := d.validate(req); err != nil {
		return nil, err
	}

	vres, err := d.verifyDeposit(ctx, req)
	if err != nil {
		return nil, err
	}

	if _, units := d.credit.Quote(ctx, vres.Amount, req.Token); units <= 0 {
		return nil, xerr.New(xerr.RequestParamsError, "deposit value too small to credit")
	}

	unlock, err := d.lockHash(ctx, vres.Hash)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := d.replayGuard(ctx, vres.Hash); err != nil {
		return nil, err
	}

	// 占用 hash 和入账同一个事务：入账失败回滚占用，hash 留给合法重试
	var credit *CreditResult
	err = d.repo.Transaction(ctx, func(txCtx context.Context) error {
		if err := d.repo.ClaimDepositHash(txCtx, &domain.DepositClaim{
			TxHash: vres.Hash, UserID: req.UserID, Kind: "purchase",
		}); err != nil {
			return err
		}
		var cerr error
		credit, cerr = d.credit.Credit(txCtx, req.UserID, vres.Amount, req.Token)
		return cerr
	})
	if err != nil {
		d.countReject(err)
		return nil, err
	}

	d.credit.TryMint(ctx, req.WalletAddress, credit)
	return credit, nil
}

func (d *DepositService) validate(req ConfirmRequest) error {
	if req.UserID == "" || req.WalletAddress == "" || req.Token == "" {
		return xerr.New(xerr.RequestParamsError, "user_id, wallet_address and token are required")
	}
	return nil
}

func (d *DepositService) verifyDeposit(ctx context.Context, req ConfirmRequest) (*VerifyResult, error) {
	vres, err := d.verify.Verify(ctx, VerifyRequest{
		TxHash:            req.TxHash,
		Network:           req.Network,
		DepositAddress:    req.WalletAddress,
		Symbol:            req.Token,
		AllowedRecipients: d.allowedRecipients,
		ExpectedSender:    req.ExpectedSender,
	})
	if err != nil {
		metrics.DepositVerifyTotal.WithLabelValues(req.Network, "rejected").Inc()
		d.countReject(err)
		return nil, err
	}
	metrics.DepositVerifyTotal.WithLabelValues(req.Network, "ok").Inc()
	return vres, nil
}

// replayGuard 应用层预检：两张仓位表里已经有这个 hash 就直接拒。
// 真正的防线是 deposit_claims 的唯一索引，这里只是提前给出明确错误
func (d *DepositService) replayGuard(ctx context.Context, hash string) error {
	used, err := d.repo.DepositHashUsed(ctx, hash)
	if err != nil {
		return err
	}
	if used {
		d.countReject(xerr.NewErrCode(xerr.DuplicateDeposit))
		return xerr.NewErrCode(xerr.DuplicateDeposit)
	}
	return nil
}

// lockHash 对归一化 hash 加 redis 锁。redis 故障不阻断流程，
// 退化成只靠唯一索引
func (d *DepositService) lockHash(ctx context.Context, hash string) (func(), error) {
	if d.rdb == nil {
		return func() {}, nil
	}
	lock := newConfirmLock(d.rdb, hash)
	ok, err := lock.TryLock(ctx)
	if err != nil {
		logger.Warn(ctx, "redis 锁不可用，退化为唯一索引防重",
			zap.String("hash", hash), zap.Error(err))
		return func() {}, nil
	}
	if !ok {
		// 同一个 hash 正在被其他请求确认
		return nil, xerr.NewErrCode(xerr.DuplicateDeposit)
	}
	return func() { _, _ = lock.Unlock(context.WithoutCancel(ctx)) }, nil
}

func (d *DepositService) recordMint(ctx context.Context, kind, id string, credit *CreditResult) {
	if err := d.repo.UpdateMintResult(ctx, kind, id, mintStatus(credit), credit.MintTxHash); err != nil {
		logger.Error(ctx, "记录 Mint 状态失败", zap.String("id", id), zap.Error(err))
	}
}

func mintStatus(credit *CreditResult) domain.MintStatus {
	switch {
	case credit.Units <= 0:
		return domain.MintNone
	case credit.MintDone:
		return domain.MintDone
	default:
		return domain.MintPending
	}
}

func (d *DepositService) countReject(err error) {
	var reason string
	switch xerr.Code(err) {
	case xerr.TxNotFound:
		reason = "not_found"
	case xerr.RecipientMismatch, xerr.SenderMismatch:
		reason = "mismatch"
	case xerr.DuplicateDeposit:
		reason = "duplicate"
	case xerr.AmountIndetermined:
		reason = "amount"
	case xerr.RequestParamsError:
		reason = "params"
	default:
		reason = "other"
	}
	metrics.DepositRejectTotal.WithLabelValues(reason).Inc()
}
