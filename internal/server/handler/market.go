package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/owenbrady/predictduel/internal/domain"
	"github.com/owenbrady/predictduel/internal/engine"
)

// MarketService defines the methods that the market handler requires from
// the service layer. It is declared locally so the handler package does not
// depend on the concrete service implementation.
type MarketService interface {
	CreateMarket(ctx context.Context, spec engine.CreateSpec) (domain.Market, error)
	PlaceStake(ctx context.Context, market domain.Address, side domain.Side, amount uint64) (domain.Participant, error)
	ResolveMarket(ctx context.Context, market domain.Address, outcome domain.Outcome) error
	ClaimWinnings(ctx context.Context, market domain.Address) (uint64, error)
	CancelMarket(ctx context.Context, market domain.Address) error
	RefundStake(ctx context.Context, market domain.Address) (uint64, error)
	GetMarket(ctx context.Context, addr domain.Address) (domain.Market, error)
	GetParticipant(ctx context.Context, market domain.Address, bettor domain.AccountID) (domain.Participant, error)
	ListMarkets(ctx context.Context, status domain.Status, limit int) ([]domain.Market, error)
	ListParticipants(ctx context.Context, market domain.Address) ([]domain.Participant, error)
}

// MarketHandler serves market-related HTTP endpoints. Write endpoints submit
// operations signed by the server's own identity; this is the operator API,
// not a multi-tenant wallet service.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logger,
	}
}

// listMarketsResponse wraps the list endpoint output with metadata.
type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
	Status  string          `json:"status"`
	Limit   int             `json:"limit"`
}

// ListMarkets returns markets filtered by lifecycle state.
// GET /api/markets?status=active&limit=50
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	status := domain.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.StatusActive
	}
	limit := parseLimit(r)

	markets, err := h.markets.ListMarkets(r.Context(), status, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		Status:  string(status),
		Limit:   limit,
	})
}

// GetMarket returns a single market by its derived address.
// GET /api/markets/{address}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market address")
		return
	}

	market, err := h.markets.GetMarket(r.Context(), addr)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// ListParticipants returns a market's participants from the read model.
// GET /api/markets/{address}/participants
func (h *MarketHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market address")
		return
	}

	participants, err := h.markets.ListParticipants(r.Context(), addr)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market":       addr,
		"participants": participants,
	})
}

// GetParticipant returns one bettor's stake in a market, read from the
// ledger rather than the read model.
// GET /api/markets/{address}/participants/{bettor}
func (h *MarketHandler) GetParticipant(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market address")
		return
	}
	bettor, err := domain.ParseAccountID(r.PathValue("bettor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bettor account")
		return
	}

	p, err := h.markets.GetParticipant(r.Context(), addr, bettor)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// createMarketRequest is the JSON body for market creation.
type createMarketRequest struct {
	Question   string `json:"question"`
	Category   string `json:"category"`
	MarketType string `json:"market_type"`
	StakeUnit  uint64 `json:"stake_unit"`
	Deadline   int64  `json:"deadline"`
}

// CreateMarket creates a market at the server identity's next free index.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	market, err := h.markets.CreateMarket(r.Context(), engine.CreateSpec{
		Question:   req.Question,
		Category:   domain.Category(req.Category),
		MarketType: domain.MarketType(req.MarketType),
		StakeUnit:  req.StakeUnit,
		Deadline:   req.Deadline,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, market)
}

// placeStakeRequest is the JSON body for staking.
type placeStakeRequest struct {
	Side   string `json:"side"`
	Amount uint64 `json:"amount"`
}

// PlaceStake commits a stake on one side of a market.
// POST /api/markets/{address}/stake
func (h *MarketHandler) PlaceStake(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market address")
		return
	}

	var req placeStakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	participant, err := h.markets.PlaceStake(r.Context(), addr, domain.Side(req.Side), req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, participant)
}

// resolveRequest is the JSON body for market resolution.
type resolveRequest struct {
	Outcome string `json:"outcome"`
}

// ResolveMarket declares the market outcome.
// POST /api/markets/{address}/resolve
func (h *MarketHandler) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market address")
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.markets.ResolveMarket(r.Context(), addr, domain.Outcome(req.Outcome)); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"market":  addr.String(),
		"outcome": req.Outcome,
	})
}

// ClaimWinnings claims the server identity's payout from a resolved market.
// POST /api/markets/{address}/claim
func (h *MarketHandler) ClaimWinnings(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market address")
		return
	}

	payout, err := h.markets.ClaimWinnings(r.Context(), addr)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market": addr.String(),
		"payout": payout,
	})
}

// CancelMarket retires a market nobody has joined.
// POST /api/markets/{address}/cancel
func (h *MarketHandler) CancelMarket(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market address")
		return
	}

	if err := h.markets.CancelMarket(r.Context(), addr); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"market": addr.String(),
		"status": string(domain.StatusCancelled),
	})
}

// RefundStake recovers the server identity's stake from a cancelled market.
// POST /api/markets/{address}/refund
func (h *MarketHandler) RefundStake(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market address")
		return
	}

	amount, err := h.markets.RefundStake(r.Context(), addr)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market":   addr.String(),
		"refunded": amount,
	})
}
