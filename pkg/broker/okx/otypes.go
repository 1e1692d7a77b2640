// File: pkg/broker/okx/otypes.go
package okx

// okxResponse is the envelope every OKX v5 endpoint returns.
// Data is endpoint-specific and decoded by the caller.
type okxResponse[T any] struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []T    `json:"data"`
}

// Instrument models an entry from /api/v5/public/instruments.
type Instrument struct {
	InstID   string `json:"instId"`
	InstType string `json:"instType"`
	BaseCcy  string `json:"baseCcy"`
	QuoteCcy string `json:"quoteCcy"`
	LotSz    string `json:"lotSz"`
	MinSz    string `json:"minSz"`
	TickSz   string `json:"tickSz"`
	State    string `json:"state"`
}

// TickerInfo models an entry from /api/v5/market/ticker(s).
type TickerInfo struct {
	InstID    string `json:"instId"`
	Last      string `json:"last"`
	BidPx     string `json:"bidPx"`
	AskPx     string `json:"askPx"`
	Open24h   string `json:"open24h"`
	High24h   string `json:"high24h"`
	Low24h    string `json:"low24h"`
	Vol24h    string `json:"vol24h"`    // base currency
	VolCcy24h string `json:"volCcy24h"` // quote currency
	TS        string `json:"ts"`
}

// BalanceDetail models one currency inside /api/v5/account/balance.
type BalanceDetail struct {
	Ccy       string `json:"ccy"`
	CashBal   string `json:"cashBal"`
	AvailBal  string `json:"availBal"`
	FrozenBal string `json:"frozenBal"`
	Eq        string `json:"eq"`
}

// AccountBalance models an entry from /api/v5/account/balance.
type AccountBalance struct {
	TotalEq string          `json:"totalEq"`
	Details []BalanceDetail `json:"details"`
}

// OrderResult models the acknowledgement from /api/v5/trade/order.
type OrderResult struct {
	OrdID   string `json:"ordId"`
	ClOrdID string `json:"clOrdId"`
	SCode   string `json:"sCode"`
	SMsg    string `json:"sMsg"`
}

// OrderDetail models an entry from /api/v5/trade/order and /api/v5/trade/orders-history.
type OrderDetail struct {
	InstID   string `json:"instId"`
	OrdID    string `json:"ordId"`
	ClOrdID  string `json:"clOrdId"`
	Px       string `json:"px"`
	Sz       string `json:"sz"`
	OrdType  string `json:"ordType"`
	Side     string `json:"side"`
	FillSz   string `json:"accFillSz"`
	AvgPx    string `json:"avgPx"`
	State    string `json:"state"`
	CTime    string `json:"cTime"`
	FillTime string `json:"fillTime"`
}
