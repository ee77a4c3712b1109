package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"token-auction-house/internal/auction"
	"token-auction-house/internal/domain"
	"token-auction-house/internal/events"
	"token-auction-house/internal/identity"
	"token-auction-house/internal/ledger"
	"token-auction-house/internal/observability"
	"token-auction-house/internal/registry"
	"token-auction-house/internal/storage"
	"token-auction-house/internal/verification"
)

// api wires the auction core to HTTP handlers.
type api struct {
	table        *auction.Table
	ledger       *ledger.Ledger
	registry     *registry.Registry
	auctionStore storage.AuctionStore
	balanceStore storage.BalanceStore
	hub          *events.Hub
	logger       *log.Logger
	upgrader     websocket.Upgrader
}

func newAPI(
	table *auction.Table,
	ldg *ledger.Ledger,
	reg *registry.Registry,
	auctionStore storage.AuctionStore,
	balanceStore storage.BalanceStore,
	hub *events.Hub,
	logger *log.Logger,
) *api {
	return &api{
		table:        table,
		ledger:       ldg,
		registry:     reg,
		auctionStore: auctionStore,
		balanceStore: balanceStore,
		hub:          hub,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (a *api) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/api/mint", a.handleMint)
	mux.HandleFunc("/api/owner", a.handleOwner)
	mux.HandleFunc("/api/approve", a.handleApprove)
	mux.HandleFunc("/api/list", a.handleList)
	mux.HandleFunc("/api/bid", a.handleBid)
	mux.HandleFunc("/api/settle", a.handleSettle)
	mux.HandleFunc("/api/withdraw", a.handleWithdraw)
	mux.HandleFunc("/api/balance", a.handleBalance)
	mux.HandleFunc("/api/auction", a.handleAuction)
	mux.HandleFunc("/api/auctions", a.handleAuctions)
	mux.HandleFunc("/api/audit", a.handleAudit)
	mux.HandleFunc("/ws/events", a.handleEvents)

	return mux
}

// errorResponse is the JSON body for all error replies.
type errorResponse struct {
	Error string `json:"error"`
}

func (a *api) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Printf("Write response: %v", err)
	}
}

func (a *api) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrNothingToWithdraw):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientBid),
		errors.Is(err, domain.ErrSelfBidRejected),
		errors.Is(err, domain.ErrArithmeticOverflow):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrTransferFailed):
		status = http.StatusBadGateway
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidInput):
		status = http.StatusBadRequest
	}
	a.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (a *api) badRequest(w http.ResponseWriter, msg string) {
	a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func (a *api) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		a.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "POST required"})
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.badRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// parseIdentity validates a base58 ed25519 address from a request field.
func (a *api) parseIdentity(w http.ResponseWriter, field, value string) (domain.Identity, bool) {
	id, err := identity.Parse(value)
	if err != nil {
		a.badRequest(w, field+": "+err.Error())
		return "", false
	}
	return id, true
}

func (a *api) queryTokenID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := r.URL.Query().Get("token_id")
	tokenID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		a.badRequest(w, "token_id: invalid unsigned integer")
		return 0, false
	}
	return tokenID, true
}

func (a *api) handleMint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Owner string `json:"owner"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	owner, ok := a.parseIdentity(w, "owner", req.Owner)
	if !ok {
		return
	}

	tokenID, err := a.registry.Mint(r.Context(), owner)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]uint64{"token_id": tokenID})
}

func (a *api) handleOwner(w http.ResponseWriter, r *http.Request) {
	tokenID, ok := a.queryTokenID(w, r)
	if !ok {
		return
	}

	owner, err := a.registry.OwnerOf(r.Context(), tokenID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"owner": string(owner)})
}

func (a *api) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller   string `json:"caller"`
		Delegate string `json:"delegate"`
		TokenID  uint64 `json:"token_id"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	caller, ok := a.parseIdentity(w, "caller", req.Caller)
	if !ok {
		return
	}
	// An empty delegate clears the approval.
	var delegate domain.Identity
	if req.Delegate != "" {
		if delegate, ok = a.parseIdentity(w, "delegate", req.Delegate); !ok {
			return
		}
	}

	if err := a.registry.Approve(r.Context(), caller, delegate, req.TokenID); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *api) handleList(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller   string `json:"caller"`
		TokenID  uint64 `json:"token_id"`
		MinPrice uint64 `json:"min_price"`
		EndTime  uint64 `json:"end_time"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	caller, ok := a.parseIdentity(w, "caller", req.Caller)
	if !ok {
		return
	}

	if err := a.table.List(r.Context(), caller, req.TokenID, domain.Amount(req.MinPrice), req.EndTime); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *api) handleBid(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller  string `json:"caller"`
		TokenID uint64 `json:"token_id"`
		Amount  uint64 `json:"amount"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	caller, ok := a.parseIdentity(w, "caller", req.Caller)
	if !ok {
		return
	}

	if err := a.table.PlaceBid(r.Context(), caller, req.TokenID, domain.Amount(req.Amount)); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *api) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller  string `json:"caller"`
		TokenID uint64 `json:"token_id"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	caller, ok := a.parseIdentity(w, "caller", req.Caller)
	if !ok {
		return
	}

	if err := a.table.Settle(r.Context(), caller, req.TokenID); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *api) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	caller, ok := a.parseIdentity(w, "caller", req.Caller)
	if !ok {
		return
	}

	amount, err := a.ledger.Withdraw(r.Context(), caller)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]uint64{"amount": uint64(amount)})
}

func (a *api) handleBalance(w http.ResponseWriter, r *http.Request) {
	account, ok := a.parseIdentity(w, "account", r.URL.Query().Get("account"))
	if !ok {
		return
	}

	balance, err := a.ledger.BalanceOf(r.Context(), account)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]uint64{"balance": uint64(balance)})
}

// auctionView is the JSON shape of a token's auction state.
type auctionView struct {
	TokenID    uint64 `json:"token_id"`
	OnSale     bool   `json:"on_sale"`
	Seller     string `json:"seller,omitempty"`
	Bidder     string `json:"bidder,omitempty"`
	CurrentBid uint64 `json:"current_bid"`
	MinPrice   uint64 `json:"min_price"`
	EndTime    uint64 `json:"end_time"`
	Status     string `json:"status"`
}

func viewFromStatus(info *auction.StatusInfo) auctionView {
	return auctionView{
		TokenID:    info.TokenID,
		OnSale:     info.OnSale,
		Seller:     string(info.Seller),
		Bidder:     string(info.Bidder),
		CurrentBid: uint64(info.CurrentBid),
		MinPrice:   uint64(info.MinPrice),
		EndTime:    info.EndTime,
		Status:     string(info.Status),
	}
}

func (a *api) handleAuction(w http.ResponseWriter, r *http.Request) {
	tokenID, ok := a.queryTokenID(w, r)
	if !ok {
		return
	}

	info, err := a.table.Status(r.Context(), tokenID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, viewFromStatus(info))
}

func (a *api) handleAuctions(w http.ResponseWriter, r *http.Request) {
	records, err := a.table.OpenAuctions(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}

	views := make([]auctionView, 0, len(records))
	for _, rec := range records {
		views = append(views, auctionView{
			TokenID:    rec.TokenID,
			OnSale:     true,
			Seller:     string(rec.Seller),
			Bidder:     string(rec.Bidder),
			CurrentBid: uint64(rec.CurrentBid),
			MinPrice:   uint64(rec.MinPrice),
			EndTime:    rec.EndTime,
			Status:     string(rec.Status),
		})
	}
	a.writeJSON(w, http.StatusOK, views)
}

// auditView is the JSON shape of a conservation report.
type auditView struct {
	LedgerTotal  uint64 `json:"ledger_total"`
	EscrowedLive uint64 `json:"escrowed_live"`
	EscrowedIn   uint64 `json:"escrowed_in"`
	Withdrawn    uint64 `json:"withdrawn"`
	Balanced     bool   `json:"balanced"`
	OpenAuctions int    `json:"open_auctions"`
	LiveAccounts int    `json:"live_accounts"`
}

func (a *api) handleAudit(w http.ResponseWriter, r *http.Request) {
	report, err := verification.Check(r.Context(), a.auctionStore, a.balanceStore,
		a.table.TotalEscrowedIn(), a.ledger.TotalWithdrawn())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, auditView{
		LedgerTotal:  uint64(report.LedgerTotal),
		EscrowedLive: uint64(report.EscrowedLive),
		EscrowedIn:   uint64(report.EscrowedIn),
		Withdrawn:    uint64(report.Withdrawn),
		Balanced:     report.Balanced,
		OpenAuctions: report.OpenAuctions,
		LiveAccounts: report.LiveAccounts,
	})
}

// eventView is the JSON shape of a streamed observation.
type eventView struct {
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	TokenID   uint64 `json:"token_id"`
	Actor     string `json:"actor"`
	Amount    uint64 `json:"amount"`
	EndTime   uint64 `json:"end_time,omitempty"`
	EmittedAt uint64 `json:"emitted_at"`
}

// handleEvents streams observations over a WebSocket. A subscriber that
// cannot keep up is dropped rather than allowed to stall the hub.
func (a *api) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Printf("WebSocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	ch, unsubscribe := a.hub.Subscribe()
	defer unsubscribe()

	// Drain reads so close frames are processed.
	readClosed := make(chan struct{})
	go func() {
		defer close(readClosed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-readClosed:
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			view := eventView{
				EventID:   e.EventID,
				Type:      string(e.Type),
				TokenID:   e.TokenID,
				Actor:     string(e.Actor),
				Amount:    uint64(e.Amount),
				EndTime:   e.EndTime,
				EmittedAt: e.EmittedAt,
			}
			if err := conn.WriteJSON(view); err != nil {
				return
			}
		}
	}
}
