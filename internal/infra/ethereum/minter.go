package ethereum

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"qynx.com/config"
	"qynx.com/internal/domain"
	"qynx.com/pkg/logger"
)

const mintABI = `[{"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"mint","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

// Minter 调 QYNX 合约的 mint(address,uint256)，用配置的运营私钥签名
type Minter struct {
	client     *ethclient.Client
	chainID    *big.Int
	privateKey *ecdsa.PrivateKey
	from       common.Address
	contract   common.Address
	decimals   int32
	abi        abi.ABI
}

var _ domain.TokenMinter = (*Minter)(nil)

func NewMinter(cfg config.MinterConfig, rpcUrl string) (*Minter, error) {
	client, err := ethclient.Dial(rpcUrl)
	if err != nil {
		return nil, fmt.Errorf("dial mint network failed: %w", err)
	}
	chainID, err := client.ChainID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("mint network chain id failed: %w", err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("bad minter private key: %w", err)
	}
	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("error casting public key to ECDSA")
	}

	parsed, err := abi.JSON(strings.NewReader(mintABI))
	if err != nil {
		return nil, err
	}

	decimals := cfg.TokenDecimals
	if decimals == 0 {
		decimals = 18
	}

	return &Minter{
		client:     client,
		chainID:    chainID,
		privateKey: privateKey,
		from:       crypto.PubkeyToAddress(*publicKey),
		contract:   common.HexToAddress(cfg.Contract),
		decimals:   decimals,
		abi:        parsed,
	}, nil
}

// Mint 发起 mint 交易并等待上链，返回交易 hash。
// units 是 QYNX 的整数额度，按合约精度放大后上链
func (m *Minter) Mint(ctx context.Context, toAddress string, units int64) (string, error) {
	amount := decimal.NewFromInt(units).Shift(m.decimals).BigInt()

	txData, err := m.abi.Pack("mint", common.HexToAddress(toAddress), amount)
	if err != nil {
		return "", fmt.Errorf("pack mint data failed: %w", err)
	}

	nonce, err := m.client.PendingNonceAt(ctx, m.from)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}

	// EIP-1559 费用估算
	gasTipCap, err := m.client.SuggestGasTipCap(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get gas tip: %w", err)
	}
	head, err := m.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get header: %w", err)
	}
	baseFee := head.BaseFee
	if baseFee == nil {
		// 兼容旧链
		baseFee = big.NewInt(0)
	}
	// MaxFeePerGas = (2 * BaseFee) + Tip，防止下一个块 BaseFee 暴涨导致交易被丢弃
	gasFeeCap := new(big.Int).Add(
		new(big.Int).Mul(baseFee, big.NewInt(2)),
		gasTipCap,
	)

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   m.chainID,
		Nonce:     nonce,
		GasTipCap: gasTipCap,
		GasFeeCap: gasFeeCap,
		Gas:       120000, // 合约调用，给个安全值
		To:        &m.contract,
		Value:     big.NewInt(0),
		Data:      txData,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(m.chainID), m.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign failed: %w", err)
	}

	if err := m.client.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("broadcast failed: %w", err)
	}

	logger.Info(ctx, "Mint 交易已广播",
		zap.Uint64("nonce", nonce),
		zap.Int64("units", units),
		zap.String("hash", signedTx.Hash().Hex()))

	// 等待上链，失败/回滚都算 Mint 失败
	receipt, err := bind.WaitMined(ctx, m.client, signedTx)
	if err != nil {
		return "", fmt.Errorf("wait mined failed: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", fmt.Errorf("mint tx reverted: %s", signedTx.Hash().Hex())
	}

	return signedTx.Hash().Hex(), nil
}
