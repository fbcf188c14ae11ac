package domain

import (
	"context"
	"errors"
	"math/big"
)

// ErrTxNotFound 交易不存在或还在 Pending (blockNumber 为空)。
// 和网络故障是两种结果：这个错误表示"可以稍后重试"，RPC 故障会带 ExternalService 错误码。
var ErrTxNotFound = errors.New("transaction not found or unconfirmed")

// ChainTransaction 链上交易的归一化视图，核验完即丢弃
type ChainTransaction struct {
	Hash  string
	From  string
	To    string   // 可能为空 (合约创建交易)
	Value *big.Int // 最小单位 (wei)
	Input []byte   // 原始 calldata
}

// ChainLog 收据里的一条事件日志
type ChainLog struct {
	Topics []string // 32 字节 topic 的 hex
	Data   []byte
}

// ChainReceipt 交易收据的归一化视图
type ChainReceipt struct {
	Logs []ChainLog
}

// ChainReader 按网络读取交易/收据
type ChainReader interface {
	FetchTransaction(ctx context.Context, network, hash string) (*ChainTransaction, error)
	FetchReceipt(ctx context.Context, network, hash string) (*ChainReceipt, error)
	// NativeSymbol 返回该网络的原生币符号，网络未配置时 ok=false
	NativeSymbol(network string) (symbol string, ok bool)
}

// TokenMinter 给指定地址 Mint QYNX
type TokenMinter interface {
	Mint(ctx context.Context, toAddress string, units int64) (txHash string, err error)
}
