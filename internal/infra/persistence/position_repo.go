package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"qynx.com/internal/domain"
	"qynx.com/pkg/xerr"
	"gorm.io/gorm"
)

// ClaimDepositHash 占用交易 hash。唯一索引兜底：并发抢同一个 hash 时
// 只有一个事务能插进来，输家拿到 DuplicateDeposit
func (r *Repo) ClaimDepositHash(ctx context.Context, claim *domain.DepositClaim) error {
	err := r.conn(ctx).WithContext(ctx).Create(claim).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return xerr.NewErrCode(xerr.DuplicateDeposit)
		}
		return xerr.New(xerr.DbError, fmt.Sprintf("claim deposit hash failed: %v", err))
	}
	return nil
}

// DepositHashUsed 扫描两张仓位表，看 hash 有没有被任何记录引用过。
// 兼容历史数据：大小写不敏感，带不带 0x 前缀都算同一个 hash
func (r *Repo) DepositHashUsed(ctx context.Context, normalizedHash string) (bool, error) {
	variants := []string{normalizedHash, strings.TrimPrefix(normalizedHash, "0x")}

	db := r.conn(ctx)

	var count int64
	err := db.WithContext(ctx).Model(&domain.Investment{}).
		Where("LOWER(deposit_tx_hash) IN ?", variants).
		Count(&count).Error
	if err != nil {
		return false, xerr.New(xerr.DbError, fmt.Sprintf("scan investments failed: %v", err))
	}
	if count > 0 {
		return true, nil
	}

	err = db.WithContext(ctx).Model(&domain.Trading{}).
		Where("LOWER(deposit_tx_hash) IN ?", variants).
		Count(&count).Error
	if err != nil {
		return false, xerr.New(xerr.DbError, fmt.Sprintf("scan tradings failed: %v", err))
	}
	return count > 0, nil
}

func (r *Repo) CreateInvestment(ctx context.Context, inv *domain.Investment) error {
	if err := r.conn(ctx).WithContext(ctx).Create(inv).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return xerr.NewErrCode(xerr.DuplicateDeposit)
		}
		return xerr.New(xerr.DbError, fmt.Sprintf("create investment failed: %v", err))
	}
	return nil
}

func (r *Repo) CreateTrading(ctx context.Context, tr *domain.Trading) error {
	if err := r.conn(ctx).WithContext(ctx).Create(tr).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return xerr.NewErrCode(xerr.DuplicateDeposit)
		}
		return xerr.New(xerr.DbError, fmt.Sprintf("create trading failed: %v", err))
	}
	return nil
}

// UpdateMintResult 记录 Mint 结果，供对账任务补发失败的 Mint
func (r *Repo) UpdateMintResult(ctx context.Context, kind, id string, status domain.MintStatus, mintTxHash string) error {
	updates := map[string]interface{}{
		"mint_status":  status,
		"mint_tx_hash": mintTxHash,
	}

	db := r.conn(ctx).WithContext(ctx)
	var res *gorm.DB
	switch kind {
	case "investment":
		res = db.Model(&domain.Investment{}).Where("id = ?", id).Updates(updates)
	case "trading":
		res = db.Model(&domain.Trading{}).Where("id = ?", id).Updates(updates)
	default:
		return xerr.New(xerr.RequestParamsError, "unknown position kind: "+kind)
	}

	if res.Error != nil {
		return xerr.New(xerr.DbError, fmt.Sprintf("update mint result failed: %v", res.Error))
	}
	return nil
}
