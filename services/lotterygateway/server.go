package lotterygateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"blocklotto/config"
	"blocklotto/native/lottery"
)

// Backend is the engine surface the gateway exposes to players.
type Backend interface {
	BuyTickets(asset string, player [20]byte, count uint32) (*lottery.Round, error)
	ClaimPrize(asset string, roundID uint64, caller [20]byte) error
	Registry() (*lottery.RegistryView, error)
	RoundInfo(asset string, roundID uint64) (*lottery.RoundView, error)
	PlayerTickets(asset string, roundID uint64, player [20]byte) (*lottery.PlayerTicketsView, error)
	TicketPrice(asset string) (*big.Int, error)
}

// ScopePlay is required for purchases and claims.
const ScopePlay = "lottery.play"

const idempotencyTTL = 24 * time.Hour

// Server is the public HTTP gateway in front of the lottery engine.
type Server struct {
	backend Backend
	store   *Store
	auth    *Authenticator
	limiter *RateLimiter
	logger  *slog.Logger
}

// NewServer constructs the gateway server.
func NewServer(backend Backend, store *Store, auth *Authenticator, limiter *RateLimiter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{backend: backend, store: store, auth: auth, limiter: limiter, logger: logger}
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1/lottery", func(v1 chi.Router) {
		v1.Group(func(public chi.Router) {
			public.Use(s.limiter.Middleware("query"))
			public.With(Observe("registry")).Get("/registry", s.handleRegistry)
			public.With(Observe("price")).Get("/{asset}/price", s.handlePrice)
			public.With(Observe("round")).Get("/{asset}/rounds/{round}", s.handleRound)
		})

		v1.Group(func(private chi.Router) {
			private.Use(s.limiter.Middleware("play"))
			private.Use(s.auth.Middleware(ScopePlay))
			private.With(Observe("purchase")).Post("/{asset}/tickets", s.handlePurchase)
			private.With(Observe("claim")).Post("/{asset}/rounds/{round}/claim", s.handleClaim)
			private.With(Observe("tickets")).Get("/{asset}/rounds/{round}/tickets", s.handleTickets)
			private.With(Observe("receipt")).Get("/receipts/{id}", s.handleReceipt)
		})
	})

	return r
}

func (s *Server) handleRegistry(w http.ResponseWriter, r *http.Request) {
	view, err := s.backend.Registry()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	price, err := s.backend.TicketPrice(chi.URLParam(r, "asset"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"asset": chi.URLParam(r, "asset"),
		"price": price.String(),
	})
}

func (s *Server) handleRound(w http.ResponseWriter, r *http.Request) {
	roundID, err := parseRoundID(chi.URLParam(r, "round"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	view, err := s.backend.RoundInfo(chi.URLParam(r, "asset"), roundID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleTickets(w http.ResponseWriter, r *http.Request) {
	roundID, err := parseRoundID(chi.URLParam(r, "round"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	player, err := config.ParseAddress(Subject(r.Context()))
	if err != nil {
		http.Error(w, "invalid subject address", http.StatusUnauthorized)
		return
	}
	view, err := s.backend.PlayerTickets(chi.URLParam(r, "asset"), roundID, player)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type purchaseRequest struct {
	Count uint32 `json:"count"`
}

type purchaseResponse struct {
	ReceiptID string `json:"receiptId"`
	Asset     string `json:"asset"`
	RoundID   uint64 `json:"roundId"`
	Tickets   uint32 `json:"tickets"`
	EndTime   int64  `json:"endTime"`
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	player, err := config.ParseAddress(Subject(r.Context()))
	if err != nil {
		http.Error(w, "invalid subject address", http.StatusUnauthorized)
		return
	}
	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" {
		if cached, err := s.store.Idempotency(idemKey); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(cached.StatusCode)
			_, _ = w.Write(cached.Body)
			return
		}
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	asset := chi.URLParam(r, "asset")
	round, err := s.backend.BuyTickets(asset, player, req.Count)
	if err != nil {
		writeError(w, err)
		return
	}

	receipt := &Receipt{
		ID:        uuid.NewString(),
		Asset:     round.Asset,
		RoundID:   round.ID,
		Player:    Subject(r.Context()),
		Count:     req.Count,
		CreatedAt: time.Now().UTC(),
	}
	if len(round.Tickets) > 0 {
		receipt.UnitPrice = round.Tickets[len(round.Tickets)-1].Price.String()
	}
	if err := s.store.PutReceipt(receipt); err != nil {
		s.logger.Error("store receipt", "error", err)
	}

	resp := purchaseResponse{
		ReceiptID: receipt.ID,
		Asset:     round.Asset,
		RoundID:   round.ID,
		Tickets:   uint32(len(round.Tickets)),
		EndTime:   round.EndTime,
	}
	body, _ := json.Marshal(resp)
	if idemKey != "" {
		if err := s.store.PutIdempotency(idemKey, http.StatusCreated, body, idempotencyTTL); err != nil {
			s.logger.Error("store idempotency", "error", err)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	roundID, err := parseRoundID(chi.URLParam(r, "round"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	caller, err := config.ParseAddress(Subject(r.Context()))
	if err != nil {
		http.Error(w, "invalid subject address", http.StatusUnauthorized)
		return
	}
	if err := s.backend.ClaimPrize(chi.URLParam(r, "asset"), roundID, caller); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.store.Receipt(chi.URLParam(r, "id"))
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "receipt not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if receipt.Player != Subject(r.Context()) {
		http.Error(w, "receipt not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func parseRoundID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.New("invalid round id")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, lottery.ErrAssetNotSupported),
		errors.Is(err, lottery.ErrRoundNotFound),
		errors.Is(err, lottery.ErrNoActiveRound):
		status = http.StatusNotFound
	case errors.Is(err, lottery.ErrPrizeClaimed),
		errors.Is(err, lottery.ErrRandomnessConsumed):
		status = http.StatusConflict
	case errors.Is(err, lottery.ErrNotWinner),
		errors.Is(err, lottery.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, lottery.ErrLotteryPaused):
		status = http.StatusServiceUnavailable
	case errors.Is(err, lottery.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	}
	http.Error(w, err.Error(), status)
}
