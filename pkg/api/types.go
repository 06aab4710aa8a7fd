package api

// API response types for REST endpoints and WebSocket messages.
// Raw amounts are decimal strings of base units; *Display fields are the
// same amount scaled by the token's decimals.

// ==============================
// REST Response Types
// ==============================

// ConfigInfo is the engine's current configuration
type ConfigInfo struct {
	Admin           string   `json:"admin"`
	Custody         string   `json:"custody"`
	FeeRate         uint32   `json:"feeRate"`    // basis points
	FeePercent      string   `json:"feePercent"` // e.g. "0.3%"
	FeeRecipient    string   `json:"feeRecipient"`
	SlippageBps     uint32   `json:"slippageBps"`
	SlippagePercent string   `json:"slippagePercent"`
	Paused          bool     `json:"paused"`
	AllowedTokens   []string `json:"allowedTokens"`
	OrderCount      uint64   `json:"orderCount"`
}

// TokenInfo describes a registered token
type TokenInfo struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Allowed  bool   `json:"allowed"`
}

// BalanceInfo is one account's holding of one token
type BalanceInfo struct {
	Token   string `json:"token"`
	Address string `json:"address"`
	Balance string `json:"balance"`
	Display string `json:"display"`
}

// OrderInfo represents an order (open or historical)
type OrderInfo struct {
	ID                   uint32 `json:"id"`
	Maker                string `json:"maker"`
	SendToken            string `json:"sendToken"`
	RecvToken            string `json:"recvToken"`
	SendAmount           string `json:"sendAmount"`    // still locked in custody
	RecvAmount           string `json:"recvAmount"`    // still owed by takers
	MinRecvAmount        string `json:"minRecvAmount"` // smallest accepted fill
	SendAmountDisplay    string `json:"sendAmountDisplay"`
	RecvAmountDisplay    string `json:"recvAmountDisplay"`
	MinRecvAmountDisplay string `json:"minRecvAmountDisplay"`
	Rate                 string `json:"rate"` // recv per send, in display units
	Status               string `json:"status"`
	CreatedAt            int64  `json:"createdAt"` // Unix milliseconds
	UpdatedAt            int64  `json:"updatedAt"`
}

// FillInfo represents one partial or full fill
type FillInfo struct {
	ID        string `json:"id"`
	OrderID   uint32 `json:"orderId"`
	Maker     string `json:"maker"`
	Taker     string `json:"taker"`
	SendToken string `json:"sendToken"`
	RecvToken string `json:"recvToken"`
	Amount    string `json:"amount"`  // paid by the taker, in RecvToken
	SendOut   string `json:"sendOut"` // released to the taker, in SendToken
	Fee       string `json:"fee"`
	Remaining string `json:"remaining,omitempty"`
	Status    string `json:"status,omitempty"`
	Timestamp int64  `json:"timestamp"` // Unix milliseconds
}

// SwapInfo represents one routed AMM swap
type SwapInfo struct {
	ID        string `json:"id"`
	Customer  string `json:"customer"`
	Recipient string `json:"recipient"`
	TokenIn   string `json:"tokenIn"`
	TokenOut  string `json:"tokenOut"`
	Pair      string `json:"pair"`
	AmountIn  string `json:"amountIn"`
	AmountOut string `json:"amountOut"`
	MinOut    string `json:"minOut"`
	Timestamp int64  `json:"timestamp"`
}

// QuoteInfo is the response of GET /quote
type QuoteInfo struct {
	TokenIn            string   `json:"tokenIn"`
	TokenOut           string   `json:"tokenOut"`
	Pair               string   `json:"pair"`
	Path               []string `json:"path"`
	AmountIn           string   `json:"amountIn"`
	ExpectedOut        string   `json:"expectedOut"`
	MinOut             string   `json:"minOut"`
	ExpectedOutDisplay string   `json:"expectedOutDisplay"`
	MinOutDisplay      string   `json:"minOutDisplay"`
	SlippageBps        uint32   `json:"slippageBps"`
	SlippagePercent    string   `json:"slippagePercent"`
	// Pool reserves at quote time
	ReserveIn  string `json:"reserveIn"`
	ReserveOut string `json:"reserveOut"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["orders", "fills", "account:0x..."]
}

// WSMessage is the envelope of every broadcast
type WSMessage struct {
	Type    string      `json:"type"` // event type, e.g. "order_filled"
	Channel string      `json:"channel"`
	Data    interface{} `json:"data"`
}

// ==============================
// REST Request/Response Types
// ==============================

// Write endpoints take a transaction.SignedRequest body.

// SubmitResponse is the response from a signed write
type SubmitResponse struct {
	Status string      `json:"status"` // "ok"
	Result interface{} `json:"result,omitempty"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}
