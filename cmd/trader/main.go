package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	osSignal "os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/assist-by/fundbot/internal/app"
	"github.com/assist-by/fundbot/internal/config"
	"github.com/assist-by/fundbot/internal/domain"
	eBinance "github.com/assist-by/fundbot/internal/exchange/binance"
	"github.com/assist-by/fundbot/internal/logger"
	"github.com/assist-by/fundbot/internal/notification/discord"
)

func main() {
	// 명령줄 플래그 정의
	scanFlag := flag.Bool("scan", false, "펀딩비 기회를 점수순으로 출력 후 종료")
	preflightFlag := flag.Bool("preflight", false, "dry run 진입 사전 검증 결과 출력 후 종료")
	launchFlag := flag.Bool("launch", false, "사전 검증 후 실제 포지션 진입")
	symbol := flag.String("symbol", "", "대상 심볼 (예: ETHUSDT)")
	strategyFlag := flag.String("strategy", "", "short-funding-capture 또는 long-funding-capture (비우면 펀딩비 부호로 결정)")
	investment := flag.Float64("investment", 0, "총 투자금 (USDT)")
	leverage := flag.Int("leverage", 0, "레버리지 (0이면 설정값)")

	// 플래그 파싱
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 설정 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "설정 로드 실패: %v\n", err)
		os.Exit(1)
	}

	logrusLogger, err := logger.New(logger.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "로거 생성 실패: %v\n", err)
		os.Exit(1)
	}
	log := logger.WithComponent(logrusLogger, "main")
	log.Info("펀딩비 차익 봇 시작...")

	// Discord 클라이언트 생성
	discordClient := discord.NewClient(
		cfg.Discord.TradeWebhook,
		cfg.Discord.ErrorWebhook,
		cfg.Discord.InfoWebhook,
		cfg.Discord.OpportunityWebhook,
		discord.WithTimeout(10*time.Second),
	)

	// 바이낸스 클라이언트 생성
	binanceClient := eBinance.NewClient(
		cfg.Binance.APIKey,
		cfg.Binance.SecretKey,
		eBinance.WithTimeout(cfg.Binance.Timeout),
		eBinance.WithTestnet(cfg.Binance.UseTestnet),
	)
	// 바이낸스 서버와 시간 동기화
	if err := binanceClient.SyncTime(ctx); err != nil {
		log.WithError(err).Error("바이낸스 서버 시간 동기화 실패")
		if err := discordClient.SendError(fmt.Errorf("바이낸스 서버 시간 동기화 실패: %w", err)); err != nil {
			log.WithError(err).Warn("에러 알림 전송 실패")
		}
		os.Exit(1)
	}

	state := app.New(cfg, logrusLogger, binanceClient, discordClient)
	defer state.Close()

	if *scanFlag || *preflightFlag || *launchFlag {
		code := runOneShot(ctx, state, log, oneShot{
			scan:       *scanFlag,
			symbol:     *symbol,
			strategy:   *strategyFlag,
			investment: *investment,
			leverage:   *leverage,
			dryRun:     !*launchFlag,
		})
		// os.Exit는 defer를 실행하지 않습니다
		cancel()
		os.Exit(code)
	}

	if !cfg.Rebalance.Enabled {
		log.Warn("리밸런서가 비활성화되어 있습니다 (REBALANCE_ENABLED=false)")
	}

	mode := "메인넷"
	if cfg.Binance.UseTestnet {
		mode = "테스트넷"
	}
	if err := discordClient.SendInfo(fmt.Sprintf("🚀 펀딩비 차익 봇이 %s 모드로 시작되었습니다.", mode)); err != nil {
		log.WithError(err).Warn("시작 알림 전송 실패")
	}

	// 시그널 처리
	sigChan := make(chan os.Signal, 1)
	osSignal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// 리밸런서 시작
	go func() {
		if err := state.RunRebalancer(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("리밸런서 실행 중 에러 발생")
			if err := discordClient.SendError(err); err != nil {
				log.WithError(err).Warn("에러 알림 전송 실패")
			}
		}
	}()

	// 시그널 대기
	sig := <-sigChan
	log.WithField("signal", sig.String()).Info("시스템 종료 신호 수신")

	state.Close()

	// 종료 알림 전송
	if err := discordClient.SendInfo("👋 펀딩비 차익 봇이 정상적으로 종료되었습니다."); err != nil {
		log.WithError(err).Warn("종료 알림 전송 실패")
	}
	log.Info("프로그램을 종료합니다.")
}

// oneShot은 한 번 실행하고 끝나는 모드의 인자입니다
type oneShot struct {
	scan       bool
	symbol     string
	strategy   string
	investment float64
	leverage   int
	dryRun     bool
}

// runOneShot은 스캔 또는 진입을 한 번 실행하고 애플리케이션 상태를 닫은 뒤 종료 코드를 반환합니다
func runOneShot(ctx context.Context, state *app.State, log *logrus.Entry, o oneShot) int {
	defer state.Close()
	if o.scan {
		return runScan(ctx, state, log)
	}
	return runLaunch(ctx, state, log, o.symbol, o.strategy, o.investment, o.leverage, o.dryRun)
}

func runScan(ctx context.Context, state *app.State, log *logrus.Entry) int {
	opps, err := state.Feed.Opportunities(ctx)
	if err != nil {
		log.WithError(err).Error("기회 조회 실패")
		return 1
	}
	if err := state.Notifier.SendOpportunities(opps); err != nil {
		log.WithError(err).Warn("기회 알림 전송 실패")
	}
	return printJSON(opps)
}

func runLaunch(ctx context.Context, state *app.State, log *logrus.Entry, symbol, strategy string, investment float64, leverage int, dryRun bool) int {
	if symbol == "" || investment <= 0 {
		log.Error("-symbol과 -investment는 필수입니다")
		return 2
	}

	st := domain.StrategyType(strategy)
	if strategy == "" {
		rate, ok, err := state.Feed.FundingRate(ctx, symbol)
		if err != nil || !ok {
			log.WithError(err).Error("전략을 결정할 펀딩비를 찾을 수 없습니다")
			return 1
		}
		st = domain.DirectionForFundingRate(rate)
	}

	req := state.LaunchRequest(symbol, st, investment, leverage)
	req.DryRun = dryRun
	if !dryRun {
		req.AutoConvert = true
	}

	res, err := state.Launcher.Launch(ctx, req)
	if err != nil {
		log.WithError(err).Error("포지션 진입 실패")
		return 1
	}
	if code := printJSON(res); code != 0 {
		return code
	}
	if !res.OK() {
		return 1
	}
	return 0
}

func printJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "결과 출력 실패: %v\n", err)
		return 1
	}
	return 0
}
