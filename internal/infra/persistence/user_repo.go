package persistence

import (
	"context"
	"errors"
	"fmt"

	"qynx.com/internal/domain"
	"qynx.com/pkg/xerr"
	"gorm.io/gorm"
)

func (r *Repo) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := r.conn(ctx).WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.NewErrCode(xerr.RecordNotFound)
		}
		return nil, xerr.New(xerr.DbError, fmt.Sprintf("get user failed: %v", err))
	}
	return &user, nil
}

// AddTokenBalance 原子累加 QYNX 余额。入账和链上 Mint 相互独立，
// 这里只动内部账
func (r *Repo) AddTokenBalance(ctx context.Context, userID string, units int64) error {
	res := r.conn(ctx).WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", userID).
		UpdateColumn("token_amount", gorm.Expr("token_amount + ?", units))

	if res.Error != nil {
		return xerr.New(xerr.DbError, fmt.Sprintf("add token balance failed: %v", res.Error))
	}
	if res.RowsAffected == 0 {
		return xerr.NewErrCode(xerr.RecordNotFound)
	}
	return nil
}
