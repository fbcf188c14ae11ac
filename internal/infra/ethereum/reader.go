package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"qynx.com/config"
	"qynx.com/internal/domain"
	"qynx.com/pkg/xerr"
)

type chainClient struct {
	client  *ethclient.Client
	chainID *big.Int
	native  string // 原生币符号
}

// Reader 按网络名路由到对应的 JSON-RPC 客户端
type Reader struct {
	chains map[string]*chainClient
}

// 确保实现接口
var _ domain.ChainReader = (*Reader)(nil)

func NewReader(chains map[string]config.ChainConfig) (*Reader, error) {
	r := &Reader{chains: make(map[string]*chainClient, len(chains))}
	for name, cfg := range chains {
		client, err := ethclient.Dial(cfg.RpcUrl)
		if err != nil {
			return nil, fmt.Errorf("dial %s failed: %w", name, err)
		}
		// 获取 ChainID (推导 From 地址要用)
		chainID, err := client.ChainID(context.Background())
		if err != nil {
			return nil, fmt.Errorf("chain id of %s failed: %w", name, err)
		}
		r.chains[strings.ToLower(name)] = &chainClient{
			client:  client,
			chainID: chainID,
			native:  strings.ToUpper(cfg.NativeSymbol),
		}
	}
	return r, nil
}

// Close 释放各链的 RPC 连接
func (r *Reader) Close() {
	for _, cc := range r.chains {
		cc.client.Close()
	}
}

func (r *Reader) NativeSymbol(network string) (string, bool) {
	cc, ok := r.chains[strings.ToLower(network)]
	if !ok {
		return "", false
	}
	return cc.native, true
}

// FetchTransaction 拉取交易并归一化。
// 三种结果要分清：查到了 / ErrTxNotFound (未上链，可重试) / ExternalService (RPC 挂了)
func (r *Reader) FetchTransaction(ctx context.Context, network, hash string) (*domain.ChainTransaction, error) {
	cc, ok := r.chains[strings.ToLower(network)]
	if !ok {
		return nil, xerr.NewErrCode(xerr.ChainNotConfigured)
	}

	txHash := common.HexToHash(hash)
	tx, isPending, err := cc.client.TransactionByHash(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, domain.ErrTxNotFound
	}
	if err != nil {
		return nil, xerr.New(xerr.ExternalService, fmt.Sprintf("eth_getTransactionByHash failed: %v", err))
	}
	// blockNumber 为空 (还在 mempool) 同样按未上链处理
	if isPending {
		return nil, domain.ErrTxNotFound
	}

	from := ""
	if sender, err := types.Sender(types.LatestSignerForChainID(cc.chainID), tx); err == nil {
		from = strings.ToLower(sender.Hex())
	}

	to := ""
	if tx.To() != nil {
		to = strings.ToLower(tx.To().Hex())
	}

	return &domain.ChainTransaction{
		Hash:  strings.ToLower(txHash.Hex()),
		From:  from,
		To:    to,
		Value: tx.Value(),
		Input: tx.Data(),
	}, nil
}

// FetchReceipt 拉取收据并归一化 Logs
func (r *Reader) FetchReceipt(ctx context.Context, network, hash string) (*domain.ChainReceipt, error) {
	cc, ok := r.chains[strings.ToLower(network)]
	if !ok {
		return nil, xerr.NewErrCode(xerr.ChainNotConfigured)
	}

	receipt, err := cc.client.TransactionReceipt(ctx, common.HexToHash(hash))
	if errors.Is(err, ethereum.NotFound) {
		return nil, domain.ErrTxNotFound
	}
	if err != nil {
		return nil, xerr.New(xerr.ExternalService, fmt.Sprintf("eth_getTransactionReceipt failed: %v", err))
	}

	out := &domain.ChainReceipt{Logs: make([]domain.ChainLog, 0, len(receipt.Logs))}
	for _, l := range receipt.Logs {
		topics := make([]string, 0, len(l.Topics))
		for _, t := range l.Topics {
			topics = append(topics, t.Hex())
		}
		out.Logs = append(out.Logs, domain.ChainLog{Topics: topics, Data: l.Data})
	}
	return out, nil
}
