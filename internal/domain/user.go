package domain

import (
	"context"
	"time"
)

// User 只建模核验/入账依赖的字段，其余用户资料由账号服务维护
type User struct {
	ID          string `gorm:"primaryKey;size:36"`
	Email       string `gorm:"size:128;uniqueIndex"`
	Active      bool   `gorm:"default:true"`
	TokenAmount int64  `gorm:"default:0"` // QYNX 内部余额，只增不减 (本服务视角)
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserRepo 用户仓储接口
type UserRepo interface {
	GetUser(ctx context.Context, id string) (*User, error)
	// AddTokenBalance 原子累加 QYNX 余额
	AddTokenBalance(ctx context.Context, userID string, units int64) error
}
