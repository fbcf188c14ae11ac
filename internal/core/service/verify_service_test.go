package service

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"qynx.com/internal/domain"
	"qynx.com/internal/extract"
	"qynx.com/pkg/logger"
	"qynx.com/pkg/xerr"
)

const (
	testDepositAddr = "0x52908400098527886E0F7030069857D2E4169EE7"
	testVaultAddr   = "0x8617E340B3D01FA5F11F306F4090FD50E238070D"
	testSenderAddr  = "0xde709f2102306220921060314715629080e2fb77"
	testOtherAddr   = "0x27b1fdb04752bbc536007a920d24acb045561c26"
)

// fakeReader 内存版链读取器，key 是归一化后的 hash
type fakeReader struct {
	native     string
	txs        map[string]*domain.ChainTransaction
	receipts   map[string]*domain.ChainReceipt
	receiptErr error
}

func (f *fakeReader) FetchTransaction(ctx context.Context, network, hash string) (*domain.ChainTransaction, error) {
	tx, ok := f.txs[hash]
	if !ok {
		return nil, domain.ErrTxNotFound
	}
	return tx, nil
}

func (f *fakeReader) FetchReceipt(ctx context.Context, network, hash string) (*domain.ChainReceipt, error) {
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	return f.receipts[hash], nil
}

func (f *fakeReader) NativeSymbol(network string) (string, bool) {
	if f.native == "" {
		return "", false
	}
	return f.native, true
}

// 补零到 32 字节的 topic 形式
func paddedTopic(addr string) string {
	return "0x000000000000000000000000" + addr[2:]
}

func usdtTransferLog(to string, units int64) domain.ChainLog {
	data := make([]byte, 32)
	big.NewInt(units).FillBytes(data)
	return domain.ChainLog{
		Topics: []string{extract.TransferEventTopic, paddedTopic(testSenderAddr), paddedTopic(to)},
		Data:   data,
	}
}

func TestNormalizeTxHash(t *testing.T) {
	assert.Equal(t, "0xabc123", NormalizeTxHash("  0xABC123  "))
	assert.Equal(t, "0xabc123", NormalizeTxHash("ABC123"))
	assert.Equal(t, "0xabc123", NormalizeTxHash("0Xabc123"[2:]), "不带前缀补 0x")
	assert.Equal(t, "", NormalizeTxHash("   "))
}

func TestVerify(t *testing.T) {
	logger.Init("test", "info")

	const hash = "0xaaaa000000000000000000000000000000000000000000000000000000000001"

	newService := func(reader *fakeReader) *VerifyService {
		return NewVerifyService(reader, extract.New(true))
	}

	t.Run("原生币充值：hash 大小写和前缀都归一化", func(t *testing.T) {
		reader := &fakeReader{
			native: "ETH",
			txs: map[string]*domain.ChainTransaction{
				hash: {Hash: hash, From: testSenderAddr, To: testDepositAddr, Value: big.NewInt(5e18)},
			},
		}
		// 上报的 hash 带空白、大写、没有 0x
		res, err := newService(reader).Verify(context.Background(), VerifyRequest{
			TxHash:         "  AAAA000000000000000000000000000000000000000000000000000000000001  ",
			Network:        "ethereum",
			DepositAddress: testDepositAddr,
			Symbol:         "ETH",
		})
		require.NoError(t, err)
		assert.Equal(t, hash, res.Hash)
		assert.True(t, res.Amount.Equal(decimal.NewFromInt(5)))
		assert.Equal(t, testSenderAddr, res.From)
	})

	t.Run("交易不存在", func(t *testing.T) {
		reader := &fakeReader{native: "ETH", txs: map[string]*domain.ChainTransaction{}}
		_, err := newService(reader).Verify(context.Background(), VerifyRequest{
			TxHash: hash, Network: "ethereum", DepositAddress: testDepositAddr, Symbol: "ETH",
		})
		assert.True(t, xerr.IsCode(err, xerr.TxNotFound), "实际错误: %v", err)
	})

	t.Run("hash 为空", func(t *testing.T) {
		reader := &fakeReader{native: "ETH"}
		_, err := newService(reader).Verify(context.Background(), VerifyRequest{
			TxHash: "   ", Network: "ethereum", DepositAddress: testDepositAddr, Symbol: "ETH",
		})
		assert.True(t, xerr.IsCode(err, xerr.RequestParamsError))
	})

	t.Run("原生币打错收款地址", func(t *testing.T) {
		reader := &fakeReader{
			native: "ETH",
			txs: map[string]*domain.ChainTransaction{
				hash: {From: testSenderAddr, To: testOtherAddr, Value: big.NewInt(1e18)},
			},
		}
		_, err := newService(reader).Verify(context.Background(), VerifyRequest{
			TxHash: hash, Network: "ethereum", DepositAddress: testDepositAddr, Symbol: "ETH",
		})
		assert.True(t, xerr.IsCode(err, xerr.RecipientMismatch), "实际错误: %v", err)
	})

	t.Run("原生币打到平台归集地址也放行", func(t *testing.T) {
		reader := &fakeReader{
			native: "ETH",
			txs: map[string]*domain.ChainTransaction{
				hash: {From: testSenderAddr, To: testVaultAddr, Value: big.NewInt(2e18)},
			},
		}
		res, err := newService(reader).Verify(context.Background(), VerifyRequest{
			TxHash:            hash,
			Network:           "ethereum",
			DepositAddress:    testDepositAddr,
			Symbol:            "ETH",
			AllowedRecipients: []string{testVaultAddr},
		})
		require.NoError(t, err)
		assert.True(t, res.Amount.Equal(decimal.NewFromInt(2)))
	})

	t.Run("发送方校验", func(t *testing.T) {
		reader := &fakeReader{
			native: "ETH",
			txs: map[string]*domain.ChainTransaction{
				hash: {From: testOtherAddr, To: testDepositAddr, Value: big.NewInt(1e18)},
			},
		}
		_, err := newService(reader).Verify(context.Background(), VerifyRequest{
			TxHash:         hash,
			Network:        "ethereum",
			DepositAddress: testDepositAddr,
			Symbol:         "ETH",
			ExpectedSender: testSenderAddr,
		})
		assert.True(t, xerr.IsCode(err, xerr.SenderMismatch), "实际错误: %v", err)
	})

	t.Run("代币充值走 Transfer 日志", func(t *testing.T) {
		reader := &fakeReader{
			native: "ETH",
			txs: map[string]*domain.ChainTransaction{
				hash: {From: testSenderAddr, To: "0xTokenContract"},
			},
			receipts: map[string]*domain.ChainReceipt{
				hash: {Logs: []domain.ChainLog{usdtTransferLog(testDepositAddr, 100_000_000)}},
			},
		}
		res, err := newService(reader).Verify(context.Background(), VerifyRequest{
			TxHash: hash, Network: "ethereum", DepositAddress: testDepositAddr, Symbol: "USDT",
		})
		require.NoError(t, err)
		assert.True(t, res.Amount.Equal(decimal.NewFromInt(100)), "实际 %s", res.Amount.String())
	})

	t.Run("代币充值打给归集地址：充值地址解不出再试许可地址", func(t *testing.T) {
		reader := &fakeReader{
			native: "ETH",
			txs: map[string]*domain.ChainTransaction{
				hash: {From: testSenderAddr, To: "0xTokenContract"},
			},
			receipts: map[string]*domain.ChainReceipt{
				hash: {Logs: []domain.ChainLog{
					usdtTransferLog(testVaultAddr, 30_000_000),
					usdtTransferLog(testOtherAddr, 1), // 多条日志，关掉孤条规则的干扰
				}},
			},
		}
		svc := NewVerifyService(reader, extract.New(false))
		res, err := svc.Verify(context.Background(), VerifyRequest{
			TxHash:            hash,
			Network:           "ethereum",
			DepositAddress:    testDepositAddr,
			Symbol:            "USDT",
			AllowedRecipients: []string{testVaultAddr},
		})
		require.NoError(t, err)
		assert.True(t, res.Amount.Equal(decimal.NewFromInt(30)))
	})

	t.Run("收据拉取失败不致命", func(t *testing.T) {
		reader := &fakeReader{
			native: "ETH",
			txs: map[string]*domain.ChainTransaction{
				hash: {From: testSenderAddr, To: testDepositAddr, Value: big.NewInt(3e18)},
			},
			receiptErr: errors.New("rpc timeout"),
		}
		res, err := newService(reader).Verify(context.Background(), VerifyRequest{
			TxHash: hash, Network: "ethereum", DepositAddress: testDepositAddr, Symbol: "ETH",
		})
		require.NoError(t, err, "原生币充值不依赖收据")
		assert.True(t, res.Amount.Equal(decimal.NewFromInt(3)))
	})

	t.Run("金额解不出来", func(t *testing.T) {
		reader := &fakeReader{
			native: "ETH",
			txs: map[string]*domain.ChainTransaction{
				hash: {From: testSenderAddr, To: "0xTokenContract"},
			},
		}
		svc := NewVerifyService(reader, extract.New(false))
		_, err := svc.Verify(context.Background(), VerifyRequest{
			TxHash: hash, Network: "ethereum", DepositAddress: testDepositAddr, Symbol: "USDT",
		})
		assert.True(t, xerr.IsCode(err, xerr.AmountIndetermined), "实际错误: %v", err)
	})
}
