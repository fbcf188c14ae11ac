package persistence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"qynx.com/internal/domain"
	"qynx.com/pkg/xerr"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// TranslateError 必须开，唯一索引冲突要翻译成 gorm.ErrDuplicatedKey
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.User{},
		&domain.Investment{},
		&domain.Trading{},
		&domain.DepositClaim{},
	))
	return db
}

func TestClaimDepositHash(t *testing.T) {
	db := newTestDB(t)
	repo := New(db)
	ctx := context.Background()

	const hash = "0xcccc000000000000000000000000000000000000000000000000000000000001"

	err := repo.ClaimDepositHash(ctx, &domain.DepositClaim{TxHash: hash, UserID: "u1", Kind: "investment"})
	require.NoError(t, err)

	// 第二次占用同一个 hash，哪怕换了用户和用途也得拒
	err = repo.ClaimDepositHash(ctx, &domain.DepositClaim{TxHash: hash, UserID: "u2", Kind: "purchase"})
	assert.True(t, xerr.IsCode(err, xerr.DuplicateDeposit), "实际错误: %v", err)

	var count int64
	require.NoError(t, db.Model(&domain.DepositClaim{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDepositHashUsed(t *testing.T) {
	db := newTestDB(t)
	repo := New(db)
	ctx := context.Background()

	// 历史数据可能是大写、不带 0x 的形态
	require.NoError(t, db.Create(&domain.Investment{
		ID: "inv-1", UserID: "u1", Token: "USDT",
		Amount:        decimal.NewFromInt(100),
		DepositTxHash: "DDDD000000000000000000000000000000000000000000000000000000000001",
	}).Error)
	require.NoError(t, db.Create(&domain.Trading{
		ID: "trd-1", UserID: "u1", Token: "USDT",
		Amount:        decimal.NewFromInt(50),
		DepositTxHash: "0xDddd000000000000000000000000000000000000000000000000000000000002",
	}).Error)

	tests := []struct {
		name string
		hash string // 归一化后的输入 (小写带 0x)
		want bool
	}{
		{"定投表里的老格式 hash", "0xdddd000000000000000000000000000000000000000000000000000000000001", true},
		{"跟单表里的混合大小写 hash", "0xdddd000000000000000000000000000000000000000000000000000000000002", true},
		{"没出现过的 hash", "0xdddd00000000000000000000000000000000000000000000000000000000ffff", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			used, err := repo.DepositHashUsed(ctx, tt.hash)
			require.NoError(t, err)
			assert.Equal(t, tt.want, used)
		})
	}
}

func TestCreatePosition_DuplicateHash(t *testing.T) {
	db := newTestDB(t)
	repo := New(db)
	ctx := context.Background()

	const hash = "0xcccc000000000000000000000000000000000000000000000000000000000003"

	require.NoError(t, repo.CreateInvestment(ctx, &domain.Investment{
		ID: "inv-1", UserID: "u1", Token: "USDT",
		Amount: decimal.NewFromInt(1), DepositTxHash: hash,
	}))

	// 仓位表自己的唯一索引也兜一层
	err := repo.CreateInvestment(ctx, &domain.Investment{
		ID: "inv-2", UserID: "u2", Token: "USDT",
		Amount: decimal.NewFromInt(1), DepositTxHash: hash,
	})
	assert.True(t, xerr.IsCode(err, xerr.DuplicateDeposit), "实际错误: %v", err)
}

func TestAddTokenBalance(t *testing.T) {
	db := newTestDB(t)
	repo := New(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&domain.User{ID: "u1", Email: "u1@test.dev"}).Error)

	require.NoError(t, repo.AddTokenBalance(ctx, "u1", 1000))
	require.NoError(t, repo.AddTokenBalance(ctx, "u1", 500))

	u, err := repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), u.TokenAmount, "余额应该累加")

	// 用户不存在
	err = repo.AddTokenBalance(ctx, "nobody", 100)
	assert.True(t, xerr.IsCode(err, xerr.RecordNotFound), "实际错误: %v", err)

	_, err = repo.GetUser(ctx, "nobody")
	assert.True(t, xerr.IsCode(err, xerr.RecordNotFound))
}

func TestUpdateMintResult(t *testing.T) {
	db := newTestDB(t)
	repo := New(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateInvestment(ctx, &domain.Investment{
		ID: "inv-1", UserID: "u1", Token: "USDT",
		Amount:        decimal.NewFromInt(1),
		DepositTxHash: "0xcccc000000000000000000000000000000000000000000000000000000000004",
		MintStatus:    domain.MintPending,
	}))

	require.NoError(t, repo.UpdateMintResult(ctx, "investment", "inv-1", domain.MintDone, "0xminthash"))

	var inv domain.Investment
	require.NoError(t, db.Where("id = ?", "inv-1").First(&inv).Error)
	assert.Equal(t, domain.MintDone, inv.MintStatus)
	assert.Equal(t, "0xminthash", inv.MintTxHash)

	err := repo.UpdateMintResult(ctx, "unknown-kind", "inv-1", domain.MintDone, "")
	assert.True(t, xerr.IsCode(err, xerr.RequestParamsError))
}

func TestTransaction_Rollback(t *testing.T) {
	db := newTestDB(t)
	repo := New(db)
	ctx := context.Background()

	const hash = "0xcccc000000000000000000000000000000000000000000000000000000000005"

	boom := errors.New("boom")
	err := repo.Transaction(ctx, func(txCtx context.Context) error {
		if err := repo.ClaimDepositHash(txCtx, &domain.DepositClaim{
			TxHash: hash, UserID: "u1", Kind: "investment",
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// 占用随事务一起回滚
	var count int64
	require.NoError(t, db.Model(&domain.DepositClaim{}).Where("tx_hash = ?", hash).Count(&count).Error)
	assert.Zero(t, count, "事务回滚后不应该留下占用记录")
}

func TestClaimDepositHash_Concurrent(t *testing.T) {
	// 并发抢同一个 hash：唯一索引保证只有一个赢家。
	// 内存库并发不稳，用文件库
	dbPath := "/tmp/test_claim_concurrent.db"
	os.Remove(dbPath)

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	defer os.Remove(dbPath)
	db.Exec("PRAGMA busy_timeout = 5000")

	require.NoError(t, db.AutoMigrate(&domain.DepositClaim{}))
	repo := New(db)

	const hash = "0xcccc000000000000000000000000000000000000000000000000000000000006"
	const numGoroutines = 10

	results := make(chan error, numGoroutines)
	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results <- repo.ClaimDepositHash(context.Background(), &domain.DepositClaim{
				TxHash: hash, UserID: fmt.Sprintf("u%d", n), Kind: "purchase",
			})
		}(i)
	}
	wg.Wait()
	close(results)

	success, duplicate := 0, 0
	for err := range results {
		switch {
		case err == nil:
			success++
		case xerr.IsCode(err, xerr.DuplicateDeposit):
			duplicate++
		default:
			t.Logf("意外错误: %v", err)
		}
	}
	assert.Equal(t, 1, success, "只能有一个 goroutine 抢到 hash")
	assert.Equal(t, numGoroutines-1, duplicate)

	var count int64
	require.NoError(t, db.Model(&domain.DepositClaim{}).Where("tx_hash = ?", hash).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
