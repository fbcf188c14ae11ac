package config

// ChainConfig 单条链的接入配置
type ChainConfig struct {
	RpcUrl       string // JSON-RPC 节点地址
	NativeSymbol string // 链原生币符号 (ETH/BNB/POL)
}

// MinterConfig QYNX 内部代币的链上 Mint 配置
type MinterConfig struct {
	Network       string // 在哪条链上 Mint
	Contract      string // 代币合约地址
	PrivateKey    string `json:"-"` // Mint 签名私钥 (hex，不带 0x 也可)
	TokenDecimals int32
}

// PriceFeedConfig 外部价格源 (CoinGecko 风格的批量报价接口)
type PriceFeedConfig struct {
	BaseUrl    string            // 例如 https://api.coingecko.com/api/v3
	TimeoutSec int               // 默认 10
	AssetIds   map[string]string // symbol -> provider asset id，覆盖内置表
}

// Config 对应 config/deposit.yaml 的内容
type Config struct {
	Name string

	// Prometheus 拉取端口，留空则不暴露
	MetricsAddr string

	// MySQL 配置
	Mysql struct {
		DataSource  string // DSN: "user:pass@tcp(ip:port)/db..."
		MaxIdle     int
		MaxOpen     int
		MaxLifetime int // 秒
	}

	// Redis 配置
	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	// 链接入配置 (key: 网络名，例如 ethereum/bsc/polygon)
	Chains map[string]ChainConfig

	// 平台归集地址，作为充值收款的额外许可地址
	AllowedRecipients []string

	// 每 1 USD 充值折算的 QYNX 数量
	CreditRatePerUsd float64

	// 宽松规则：收款地址对不上时，是否接受收据里唯一的一条 Transfer 日志。
	// yaml 里缺省按 true 处理，见 FillDefaults
	AcceptLoneTransferLog *bool

	PriceFeed PriceFeedConfig
	Minter    MinterConfig
}

// FillDefaults 给未配置的字段补默认值，LoadAndWatch 之后调用
func (c *Config) FillDefaults() {
	if c.Mysql.MaxIdle == 0 {
		c.Mysql.MaxIdle = 10
	}
	if c.Mysql.MaxOpen == 0 {
		c.Mysql.MaxOpen = 100
	}
	if c.Mysql.MaxLifetime == 0 {
		c.Mysql.MaxLifetime = 3600
	}
	if c.CreditRatePerUsd == 0 {
		c.CreditRatePerUsd = 10
	}
	if c.AcceptLoneTransferLog == nil {
		t := true
		c.AcceptLoneTransferLog = &t
	}
	if c.PriceFeed.TimeoutSec == 0 {
		c.PriceFeed.TimeoutSec = 10
	}
	if c.Minter.TokenDecimals == 0 {
		c.Minter.TokenDecimals = 18
	}
}
