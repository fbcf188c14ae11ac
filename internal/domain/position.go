package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type PositionStatus int8

// 仓位状态枚举 (和老系统的数值保持一致，不能调顺序)
const (
	PositionActive  PositionStatus = 0
	PositionPending PositionStatus = 1
	PositionExpired PositionStatus = 2
	PositionEnded   PositionStatus = 3
)

type MintStatus int8

// Mint 结果枚举。入账和链上 Mint 是两步，Mint 失败不回滚入账，
// 留状态给对账任务重试
const (
	MintNone    MintStatus = 0 // 未尝试 (额度为 0 或未配置)
	MintDone    MintStatus = 1
	MintPending MintStatus = 2 // 已入账，链上 Mint 失败待补
)

// TradingPeriods 跟单类型对应的期限 (天)，下标即 type
var TradingPeriods = []int{30, 90, 180}

// Investment 定投仓位
type Investment struct {
	ID            string          `gorm:"primaryKey;size:36"`
	UserID        string          `gorm:"size:36;index"`
	WalletAddress string          `gorm:"size:64"`
	Token         string          `gorm:"size:20"`
	Amount        decimal.Decimal `gorm:"type:decimal(36,18);default:0"`
	Period        int             // 期限 (天)
	Status        PositionStatus
	EndDate       time.Time
	DepositTxHash string `gorm:"size:80;uniqueIndex"`
	MintStatus    MintStatus
	MintTxHash    string `gorm:"size:80"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Trading 跟单仓位
type Trading struct {
	ID            string          `gorm:"primaryKey;size:36"`
	UserID        string          `gorm:"size:36;index"`
	WalletAddress string          `gorm:"size:64"`
	Token         string          `gorm:"size:20"`
	Amount        decimal.Decimal `gorm:"type:decimal(36,18);default:0"`
	Type          int             // 跟单类型 (TradingPeriods 下标)
	Status        PositionStatus
	EndDate       time.Time
	DepositTxHash string `gorm:"size:80;uniqueIndex"`
	MintStatus    MintStatus
	MintTxHash    string `gorm:"size:80"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DepositClaim 交易 hash 的占用表。investments/tradings 两张表共用这一个
// 唯一性域，靠唯一索引把"查询后插入"的竞态收敛成单写者胜出
type DepositClaim struct {
	ID        int64  `gorm:"primaryKey"`
	TxHash    string `gorm:"size:80;uniqueIndex"` // 归一化后的 hash (小写，带 0x)
	UserID    string `gorm:"size:36"`
	Kind      string `gorm:"size:16"` // investment/trading/purchase
	CreatedAt time.Time
}

// PositionRepo 仓位仓储接口
type PositionRepo interface {
	// Transaction 事务传播 (tx 注入 context)
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error

	// ClaimDepositHash 占用交易 hash，重复占用返回 DuplicateDeposit
	ClaimDepositHash(ctx context.Context, claim *DepositClaim) error

	// DepositHashUsed 扫描两张仓位表，hash 比较忽略大小写和 0x 前缀
	DepositHashUsed(ctx context.Context, normalizedHash string) (bool, error)

	CreateInvestment(ctx context.Context, inv *Investment) error
	CreateTrading(ctx context.Context, tr *Trading) error

	// UpdateMintResult 记录 Mint 结果，kind: investment/trading
	UpdateMintResult(ctx context.Context, kind, id string, status MintStatus, mintTxHash string) error
}
