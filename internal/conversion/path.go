// Package conversion은 보유 자산을 기준 통화로 바꾸는 경로 탐색과 배치 실행을 담당합니다.
package conversion

import (
	"fmt"

	"github.com/assist-by/fundbot/internal/domain"
)

// SlippagePerHop은 홉당 예상 슬리피지입니다 (0.1%)
const SlippagePerHop = 0.001

// Hop은 변환 경로의 단일 시장가 매도 구간입니다
type Hop struct {
	Symbol string
	Side   domain.OrderSide
	From   string
	To     string
	Price  float64
}

// Path는 원천 자산에서 기준 통화까지의 변환 경로입니다.
// Hops가 비어 있으면 유효한 경로가 없다는 뜻입니다.
type Path struct {
	Source            string
	Quote             string
	Hops              []Hop
	EstimatedSlippage float64
	Priority          int
	Reason            string
}

// Viable은 실행 가능한 경로인지 반환합니다
func (p Path) Viable() bool {
	return len(p.Hops) > 0
}

// EstimateValue는 amount를 경로대로 변환했을 때의 예상 기준 통화 수량을 반환합니다
func (p Path) EstimateValue(amount float64) float64 {
	if !p.Viable() {
		return 0
	}
	v := amount
	for _, h := range p.Hops {
		v *= h.Price
	}
	return v * (1 - p.EstimatedSlippage)
}

// route는 우선순위 목록의 한 항목입니다. via가 비어 있으면 직접 경로입니다.
type route struct {
	via  string
	name string
}

// defaultRoutes는 경로 탐색 우선순위입니다
var defaultRoutes = []route{
	{via: "", name: "direct"},
	{via: "FDUSD", name: "via FDUSD"},
	{via: "USDC", name: "via USDC"},
	{via: "BTC", name: "via BTC"},
	{via: "BNB", name: "via BNB"},
}

// Resolver는 가격표와 거래 가능 심볼 목록으로 변환 경로를 찾습니다
type Resolver struct {
	quote  string
	routes []route
}

// NewResolver는 기준 통화 quote에 대한 경로 탐색기를 생성합니다
func NewResolver(quote string) *Resolver {
	if quote == "" {
		quote = domain.QuoteAsset
	}
	return &Resolver{quote: quote, routes: defaultRoutes}
}

// Quote는 기준 통화를 반환합니다
func (r *Resolver) Quote() string {
	return r.quote
}

// Resolve는 우선순위 순서대로 첫 번째로 유효한 경로를 반환합니다.
// 가격이 0보다 크고 거래 가능 목록에 있는 심볼만 홉으로 사용합니다.
func (r *Resolver) Resolve(source string, prices map[string]float64, tradable map[string]bool) Path {
	path := Path{Source: source, Quote: r.quote}
	if source == r.quote {
		path.Reason = "already quote"
		return path
	}

	hop := func(from, to string) (Hop, bool) {
		symbol := from + to
		price := prices[symbol]
		if price <= 0 || !tradable[symbol] {
			return Hop{}, false
		}
		return Hop{Symbol: symbol, Side: domain.Sell, From: from, To: to, Price: price}, true
	}

	for i, rt := range r.routes {
		var hops []Hop
		if rt.via == "" {
			h, ok := hop(source, r.quote)
			if !ok {
				continue
			}
			hops = []Hop{h}
		} else {
			if rt.via == source || rt.via == r.quote {
				continue
			}
			first, ok := hop(source, rt.via)
			if !ok {
				continue
			}
			second, ok := hop(rt.via, r.quote)
			if !ok {
				continue
			}
			hops = []Hop{first, second}
		}

		path.Hops = hops
		path.Priority = i + 1
		path.EstimatedSlippage = SlippagePerHop * float64(len(hops))
		path.Reason = rt.name
		return path
	}

	path.Reason = fmt.Sprintf("no path: %s에서 %s로 가는 거래 가능한 페어가 없습니다", source, r.quote)
	return path
}
