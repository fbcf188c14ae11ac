package xerr

import "fmt"

// 常用错误码定义
const (
	OK                 = 200
	ServerCommonError  = 500
	RequestParamsError = 400
	DbError            = 501
	RecordNotFound     = 404

	// 充值核验相关错误码
	TxNotFound         = 6001 // 交易未上链或不存在，调用方可稍后重试
	RecipientMismatch  = 6002 // 收款地址不匹配，不可重试
	SenderMismatch     = 6003 // 发送方地址不匹配，不可重试
	DuplicateDeposit   = 6004 // 交易 hash 已被使用，不可重试
	AmountIndetermined = 6005 // 无法解析到账金额，需人工审核
	ChainNotConfigured = 6006 // 链未配置 RPC 节点
	MintNotConfigured  = 6007 // Mint 未配置私钥/合约
	ExternalService    = 6008 // 外部服务 (RPC/价格源) 调用失败
)

type CodeError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("ErrCode:%d, Msg:%s", e.Code, e.Msg)
}

func New(code int, msg string) error {
	return &CodeError{Code: code, Msg: msg}
}

func NewErrCode(code int) error {
	return &CodeError{Code: code, Msg: MapErrMsg(code)}
}

// Code 提取错误码，非 CodeError 一律按 ServerCommonError 处理
func Code(err error) int {
	if err == nil {
		return OK
	}
	if ce, ok := err.(*CodeError); ok {
		return ce.Code
	}
	return ServerCommonError
}

// IsCode 判断错误是否携带指定错误码
func IsCode(err error, code int) bool {
	return Code(err) == code
}

func MapErrMsg(code int) string {
	switch code {
	case ServerCommonError:
		return "服务器开小差了"
	case RequestParamsError:
		return "参数错误"
	case DbError:
		return "数据库繁忙"
	case RecordNotFound:
		return "记录不存在"
	case TxNotFound:
		return "transaction not found or unconfirmed"
	case RecipientMismatch:
		return "recipient address mismatch"
	case SenderMismatch:
		return "sender address mismatch"
	case DuplicateDeposit:
		return "transaction already used"
	case AmountIndetermined:
		return "could not determine deposit amount"
	case ChainNotConfigured:
		return "network not configured"
	case MintNotConfigured:
		return "minting not configured"
	case ExternalService:
		return "external service error"
	default:
		return "未知错误"
	}
}
