package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"qynx.com/internal/domain"
	"qynx.com/internal/extract"
	"qynx.com/pkg/logger"
	"qynx.com/pkg/xerr"
)

// VerifyService 充值核验：拉交易 -> 校验收款/发送方 -> 解析到账金额
type VerifyService struct {
	reader    domain.ChainReader
	extractor *extract.Extractor
}

func NewVerifyService(reader domain.ChainReader, extractor *extract.Extractor) *VerifyService {
	return &VerifyService{reader: reader, extractor: extractor}
}

type VerifyRequest struct {
	TxHash         string
	Network        string
	DepositAddress string // 用户登记的收款地址
	Symbol         string
	// 平台归集地址等额外许可的收款地址
	AllowedRecipients []string
	// 非空时要求交易发送方必须是这个地址
	ExpectedSender string
}

type VerifyResult struct {
	Hash   string          // 归一化后的交易 hash
	Amount decimal.Decimal // 实际到账金额 (人类可读单位)
	From   string          // 交易发送方
}

// NormalizeTxHash 交易 hash 归一化：去空白、小写、补 0x 前缀
func NormalizeTxHash(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	if h == "" {
		return ""
	}
	if !strings.HasPrefix(h, "0x") {
		h = "0x" + h
	}
	return h
}

// Verify 核验一笔链上充值，返回归一化 hash + 到账金额。
// 防重放检查不在这里做，由入账流程在占用 hash 时完成
func (s *VerifyService) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	hash := NormalizeTxHash(req.TxHash)
	if hash == "" || hash == "0x" {
		return nil, xerr.New(xerr.RequestParamsError, "transaction hash required")
	}

	tx, err := s.reader.FetchTransaction(ctx, req.Network, hash)
	if err != nil {
		if errors.Is(err, domain.ErrTxNotFound) {
			return nil, xerr.NewErrCode(xerr.TxNotFound)
		}
		return nil, err
	}

	native, _ := s.reader.NativeSymbol(req.Network)

	// 原生币充值必须直打充值地址或许可地址；代币充值的收款方在日志/calldata 里校验
	if native != "" && strings.EqualFold(req.Symbol, native) {
		if !s.recipientAllowed(tx.To, req.DepositAddress, req.AllowedRecipients) {
			return nil, xerr.NewErrCode(xerr.RecipientMismatch)
		}
	}

	if req.ExpectedSender != "" && !extract.SameAddress(req.ExpectedSender, tx.From) {
		return nil, xerr.NewErrCode(xerr.SenderMismatch)
	}

	// 收据尽力拉取，拿不到不致命 (原生币转账本来就可能没日志)
	receipt, err := s.reader.FetchReceipt(ctx, req.Network, hash)
	if err != nil {
		logger.Warn(ctx, "收据拉取失败，按无日志继续",
			zap.String("hash", hash), zap.Error(err))
		receipt = nil
	}

	amount, ok := s.extractor.Amount(tx, receipt, native, req.Symbol, req.DepositAddress)
	if !ok {
		// 充值地址上解不出金额，再逐个试许可地址
		for _, alt := range req.AllowedRecipients {
			if amount, ok = s.extractor.Amount(tx, receipt, native, req.Symbol, alt); ok {
				break
			}
		}
	}
	if !ok || !amount.IsPositive() {
		return nil, xerr.NewErrCode(xerr.AmountIndetermined)
	}

	logger.Info(ctx, "充值核验通过",
		zap.String("hash", hash),
		zap.String("symbol", req.Symbol),
		zap.String("amount", amount.String()),
		zap.String("from", tx.From))

	return &VerifyResult{Hash: hash, Amount: amount, From: tx.From}, nil
}

func (s *VerifyService) recipientAllowed(to, depositAddress string, allowed []string) bool {
	if extract.SameAddress(to, depositAddress) {
		return true
	}
	for _, a := range allowed {
		if extract.SameAddress(to, a) {
			return true
		}
	}
	return false
}
