package extract

import (
	"bytes"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"qynx.com/internal/domain"
)

// ERC-20 Transfer 事件哈希: Keccak256("Transfer(address,address,uint256)")
const TransferEventTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

const erc20ABI = `[{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"payable":false,"stateMutability":"nonpayable","type":"function"}]`

var transferMethod abi.Method

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		panic("bad erc20 abi: " + err.Error())
	}
	transferMethod = parsed.Methods["transfer"]
}

// 各币种小数位，查不到按 18 处理
var tokenDecimals = map[string]int32{
	"USDT": 6,
	"USDC": 6,
	"WBTC": 8,
}

// Extractor 从交易+收据里解析实际转给目标地址的金额。
// 四条规则按顺序命中即返回：
//  1. 原生币转账 (tx.to == 目标地址)
//  2. Transfer 事件日志 (topic2 == 目标地址)
//  3. calldata 解码 transfer(address,uint256)
//  4. 收据里唯一一条 Transfer 日志 (宽松规则，可关)
type Extractor struct {
	// 规则 4 开关。老系统无条件接受孤条 Transfer 日志，这里单独拆出来方便禁用
	loneLogFallback bool
}

func New(loneLogFallback bool) *Extractor {
	return &Extractor{loneLogFallback: loneLogFallback}
}

// Decimals 币种小数位静态表
func Decimals(symbol string) int32 {
	if d, ok := tokenDecimals[strings.ToUpper(symbol)]; ok {
		return d
	}
	return 18
}

// Amount 解析转给 target 的金额 (人类可读单位)。ok=false 表示四条规则都没命中
func (e *Extractor) Amount(tx *domain.ChainTransaction, receipt *domain.ChainReceipt,
	nativeSymbol, symbol, target string) (decimal.Decimal, bool) {

	dec := Decimals(symbol)

	// 规则 1: 原生币转账
	if nativeSymbol != "" && strings.EqualFold(symbol, nativeSymbol) {
		if tx != nil && tx.Value != nil && tx.Value.Sign() > 0 && SameAddress(tx.To, target) {
			return toHuman(tx.Value, dec), true
		}
	}

	// 规则 2: 扫 Transfer 日志，收款方匹配的第一条生效
	if receipt != nil {
		for _, log := range receipt.Logs {
			if !transferShaped(log) {
				continue
			}
			if !SameAddress(log.Topics[2], target) {
				continue
			}
			amount := new(big.Int).SetBytes(log.Data)
			if amount.Sign() > 0 {
				return toHuman(amount, dec), true
			}
		}
	}

	// 规则 3: calldata 解码
	if tx != nil {
		if to, amount, ok := DecodeTransferInput(tx.Input); ok {
			if SameAddress(to, target) && amount.Sign() > 0 {
				return toHuman(amount, dec), true
			}
		}
	}

	// 规则 4: 孤条 Transfer 日志兜底，不校验收款方
	if e.loneLogFallback && receipt != nil {
		var lone *domain.ChainLog
		count := 0
		for i := range receipt.Logs {
			if transferShaped(receipt.Logs[i]) {
				count++
				lone = &receipt.Logs[i]
			}
		}
		if count == 1 {
			amount := new(big.Int).SetBytes(lone.Data)
			if amount.Sign() > 0 {
				return toHuman(amount, dec), true
			}
		}
	}

	return decimal.Zero, false
}

// DecodeTransferInput 解码 ERC-20 transfer(address,uint256) 的 calldata。
// 4 字节 selector 不匹配或参数解不开时 ok=false
func DecodeTransferInput(input []byte) (to string, amount *big.Int, ok bool) {
	if len(input) < 4 || !bytes.Equal(input[:4], transferMethod.ID) {
		return "", nil, false
	}
	vals, err := transferMethod.Inputs.Unpack(input[4:])
	if err != nil || len(vals) != 2 {
		return "", nil, false
	}
	addr, ok1 := vals[0].(common.Address)
	amt, ok2 := vals[1].(*big.Int)
	if !ok1 || !ok2 {
		return "", nil, false
	}
	return addr.Hex(), amt, true
}

// PackTransferInput 打包 transfer(address,uint256) calldata，和 Decode 互逆
func PackTransferInput(to string, amount *big.Int) ([]byte, error) {
	args, err := transferMethod.Inputs.Pack(common.HexToAddress(to), amount)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, transferMethod.ID...), args...), nil
}

// transferShaped 是否是标准 Transfer 事件 (from/to 都是 indexed，共 3 个 topic)
func transferShaped(log domain.ChainLog) bool {
	return len(log.Topics) == 3 && hexTail(log.Topics[0], 64) == hexTail(TransferEventTopic, 64)
}

// SameAddress 地址比较：忽略大小写，取末 20 字节，兼容 topic 里补零到 32 字节的形式
func SameAddress(a, b string) bool {
	ta, tb := hexTail(a, 40), hexTail(b, 40)
	return ta != "" && ta == tb
}

// hexTail 去 0x 前缀、转小写，取末 n 个 hex 字符；长度不足返回 ""
func hexTail(s string, n int) string {
	h := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if len(h) < n {
		return ""
	}
	return h[len(h)-n:]
}

// toHuman 最小单位 -> 人类可读 (wei / 10^decimals)
func toHuman(v *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(v, 0).Shift(-decimals)
}
