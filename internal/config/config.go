package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config는 환경변수(.env)와 선택적 YAML 파일에서 읽는 전체 설정입니다.
// YAML 파일(CONFIG_FILE)에 적힌 값은 환경변수 값을 덮어씁니다. API 키는 환경변수로만 받습니다.
type Config struct {
	// 바이낸스 API 설정
	Binance struct {
		APIKey     string        `envconfig:"BINANCE_API_KEY" required:"true" yaml:"-"`
		SecretKey  string        `envconfig:"BINANCE_SECRET_KEY" required:"true" yaml:"-"`
		UseTestnet bool          `envconfig:"BINANCE_USE_TESTNET" default:"false" yaml:"use_testnet"`
		Timeout    time.Duration `envconfig:"BINANCE_TIMEOUT" default:"10s" yaml:"timeout"`
	} `yaml:"binance"`

	// 디스코드 웹훅 설정 (비어 있으면 해당 알림 생략)
	Discord struct {
		TradeWebhook       string `envconfig:"DISCORD_TRADE_WEBHOOK" yaml:"-"`
		ErrorWebhook       string `envconfig:"DISCORD_ERROR_WEBHOOK" yaml:"-"`
		InfoWebhook        string `envconfig:"DISCORD_INFO_WEBHOOK" yaml:"-"`
		OpportunityWebhook string `envconfig:"DISCORD_OPPORTUNITY_WEBHOOK" yaml:"-"`
	} `yaml:"-"`

	// 애플리케이션 설정
	App struct {
		ScanInterval time.Duration `envconfig:"SCAN_INTERVAL" default:"15m" yaml:"scan_interval"`
	} `yaml:"app"`

	// 거래 설정
	Trading struct {
		Leverage             int     `envconfig:"LEVERAGE" default:"3" yaml:"leverage"`
		TakerFeeRate         float64 `envconfig:"TAKER_FEE_RATE" default:"0.0004" yaml:"taker_fee_rate"`
		SlippageBps          float64 `envconfig:"SLIPPAGE_BPS" default:"10" yaml:"slippage_bps"`
		RoundUpToMinNotional bool    `envconfig:"ROUND_UP_TO_MIN_NOTIONAL" default:"true" yaml:"round_up_to_min_notional"`
		FeeBuffer            float64 `envconfig:"FEE_BUFFER" default:"0.001" yaml:"fee_buffer"`
		Tolerance            float64 `envconfig:"CAPITAL_TOLERANCE" default:"0.01" yaml:"tolerance"`
		RetainBuffer         float64 `envconfig:"RETAIN_BUFFER" default:"0" yaml:"retain_buffer"`
		MinConvertValue      float64 `envconfig:"MIN_CONVERT_VALUE" default:"5" yaml:"min_convert_value"`
		AutoConvert          bool    `envconfig:"AUTO_CONVERT" default:"false" yaml:"auto_convert"`
	} `yaml:"trading"`

	// 기회 필터 설정
	Opportunity struct {
		MinFundingRate  float64       `envconfig:"MIN_FUNDING_RATE" default:"0.0001" yaml:"min_funding_rate"`
		MinLiquidity    float64       `envconfig:"MIN_LIQUIDITY" default:"1000000" yaml:"min_liquidity"`
		RefreshInterval time.Duration `envconfig:"OPPORTUNITY_REFRESH" default:"5m" yaml:"refresh_interval"`
		MaxRetries      int           `envconfig:"OPPORTUNITY_MAX_RETRIES" default:"3" yaml:"max_retries"`
		RetryBaseDelay  time.Duration `envconfig:"OPPORTUNITY_RETRY_DELAY" default:"1s" yaml:"retry_base_delay"`
	} `yaml:"opportunity"`

	// 리밸런서 설정
	Rebalance struct {
		Enabled        bool          `envconfig:"REBALANCE_ENABLED" default:"false" yaml:"enabled"`
		Interval       time.Duration `envconfig:"REBALANCE_INTERVAL" default:"1h" yaml:"interval"`
		JumpMultiplier float64       `envconfig:"REBALANCE_JUMP_MULTIPLIER" default:"1.25" yaml:"jump_multiplier"`
		Cooldown       time.Duration `envconfig:"REBALANCE_COOLDOWN" default:"12h" yaml:"cooldown"`
	} `yaml:"rebalance"`

	// 거래소 규칙 캐시
	Rules struct {
		FiltersTTL time.Duration `envconfig:"RULES_FILTERS_TTL" default:"60s" yaml:"filters_ttl"`
		BracketTTL time.Duration `envconfig:"RULES_BRACKET_TTL" default:"5m" yaml:"bracket_ttl"`
	} `yaml:"rules"`

	// 이체/변환 속도 제한
	Transfer struct {
		StepDelay time.Duration `envconfig:"TRANSFER_STEP_DELAY" default:"1s" yaml:"step_delay"`
	} `yaml:"transfer"`

	Conversion struct {
		WindowSize  int           `envconfig:"CONVERSION_WINDOW" default:"3" yaml:"window_size"`
		WindowDelay time.Duration `envconfig:"CONVERSION_WINDOW_DELAY" default:"500ms" yaml:"window_delay"`
	} `yaml:"conversion"`

	// 로그 설정
	Log struct {
		Level      string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
		Format     string `envconfig:"LOG_FORMAT" default:"json" yaml:"format"`
		Output     string `envconfig:"LOG_OUTPUT" default:"stdout" yaml:"output"`
		MaxAgeDays int    `envconfig:"LOG_MAX_AGE_DAYS" default:"7" yaml:"max_age_days"`
	} `yaml:"log"`
}

// ValidateConfig는 설정이 유효한지 확인합니다.
func ValidateConfig(cfg *Config) error {
	if cfg.Trading.Leverage < 1 || cfg.Trading.Leverage > 125 {
		return fmt.Errorf("레버리지는 1 이상 125 이하이어야 합니다")
	}

	if cfg.App.ScanInterval < 1*time.Minute {
		return fmt.Errorf("SCAN_INTERVAL은 1분 이상이어야 합니다")
	}

	if cfg.Trading.TakerFeeRate < 0 || cfg.Trading.SlippageBps < 0 || cfg.Trading.FeeBuffer < 0 {
		return fmt.Errorf("수수료율, 슬리피지, 수수료 버퍼는 음수일 수 없습니다")
	}

	if cfg.Trading.Tolerance < 0 || cfg.Trading.Tolerance >= 1 {
		return fmt.Errorf("CAPITAL_TOLERANCE는 0 이상 1 미만이어야 합니다")
	}

	if cfg.Rebalance.Enabled {
		if cfg.Rebalance.JumpMultiplier <= 1 {
			return fmt.Errorf("REBALANCE_JUMP_MULTIPLIER는 1보다 커야 합니다")
		}
		if cfg.Rebalance.Interval < 1*time.Minute {
			return fmt.Errorf("REBALANCE_INTERVAL은 1분 이상이어야 합니다")
		}
	}

	if cfg.Opportunity.MaxRetries < 0 {
		return fmt.Errorf("OPPORTUNITY_MAX_RETRIES는 음수일 수 없습니다")
	}

	if cfg.Conversion.WindowSize < 1 {
		return fmt.Errorf("CONVERSION_WINDOW는 1 이상이어야 합니다")
	}

	return nil
}

// LoadConfig는 .env 파일과 환경변수, CONFIG_FILE YAML에서 설정을 로드합니다.
func LoadConfig() (*Config, error) {
	// .env 파일은 선택 사항
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".env 파일 로드 실패: %w", err)
	}
	return FromEnv()
}

// FromEnv는 현재 환경변수와 CONFIG_FILE에서 설정을 만듭니다
func FromEnv() (*Config, error) {
	var cfg Config
	// 환경변수를 구조체로 파싱
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("환경변수 처리 실패: %w", err)
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyYAML(&cfg, path); err != nil {
			return nil, err
		}
	}

	// 설정값 검증
	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("설정값 검증 실패: %w", err)
	}

	return &cfg, nil
}

// applyYAML은 YAML 파일에 적힌 키만 cfg에 덮어씁니다
func applyYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("설정 파일 읽기 실패: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("설정 파일 파싱 실패: %w", err)
	}
	return nil
}
