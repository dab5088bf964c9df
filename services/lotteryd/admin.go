package lotteryd

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"blocklotto/config"
	"blocklotto/native/lottery"
)

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

// Authenticator validates incoming admin requests with a bearer token.
type Authenticator struct {
	bearerToken string
}

// NewAuthenticator constructs an Authenticator from configuration.
func NewAuthenticator(cfg AdminConfig) (*Authenticator, error) {
	token := strings.TrimSpace(cfg.BearerToken)
	if token == "" {
		return nil, fmt.Errorf("bearer token must be configured")
	}
	return &Authenticator{bearerToken: token}, nil
}

// Middleware enforces authentication for admin handlers.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a == nil {
			http.Error(w, "authentication unavailable", http.StatusInternalServerError)
			return
		}
		if parseBearerToken(r.Header.Get("Authorization")) == a.bearerToken {
			next.ServeHTTP(w, r)
			return
		}
		http.Error(w, "authentication required", http.StatusUnauthorized)
	})
}

func parseBearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

// AdminServer exposes HTTP endpoints for operator controls. All mutating
// calls act with the configured authority identity.
type AdminServer struct {
	service   *Service
	authority [20]byte
	mux       *http.ServeMux
}

// NewAdminServer constructs a server wrapping the provided service.
func NewAdminServer(service *Service, authority [20]byte) *AdminServer {
	mux := http.NewServeMux()
	server := &AdminServer{service: service, authority: authority, mux: mux}
	mux.HandleFunc("/pause", server.handlePause)
	mux.HandleFunc("/resume", server.handleResume)
	mux.HandleFunc("/fee", server.handleFee)
	mux.HandleFunc("/beneficiary", server.handleBeneficiary)
	mux.HandleFunc("/assets", server.handleAssets)
	mux.HandleFunc("/withdraw", server.handleWithdraw)
	mux.HandleFunc("/resolve", server.handleResolve)
	mux.HandleFunc("/fulfill", server.handleFulfill)
	mux.HandleFunc("/status", server.handleStatus)
	return server
}

// ServeHTTP implements http.Handler.
func (s *AdminServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *AdminServer) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.service.Pause(s.authority); err != nil {
		writeAdminError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *AdminServer) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.service.Resume(s.authority); err != nil {
		writeAdminError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type feeRequest struct {
	Percentage uint8 `json:"percentage"`
}

func (s *AdminServer) handleFee(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req feeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := s.service.UpdateFee(s.authority, req.Percentage); err != nil {
		writeAdminError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type beneficiaryRequest struct {
	Address string `json:"address"`
}

func (s *AdminServer) handleBeneficiary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req beneficiaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	addr, err := config.ParseAddress(req.Address)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.service.UpdateBeneficiary(s.authority, addr); err != nil {
		writeAdminError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assetRequest struct {
	Symbol    string `json:"symbol"`
	PriceFeed string `json:"price_feed"`
	Decimals  uint8  `json:"decimals"`
}

func (s *AdminServer) handleAssets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req assetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	asset := lottery.SupportedAsset{
		Symbol:    req.Symbol,
		PriceFeed: strings.TrimSpace(req.PriceFeed),
		Decimals:  req.Decimals,
	}
	if err := s.service.AddAsset(s.authority, asset); err != nil {
		writeAdminError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type withdrawRequest struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

func (s *AdminServer) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.service.WithdrawCommission(s.authority, req.Asset, amount); err != nil {
		writeAdminError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resolveRequest struct {
	Asset      string `json:"asset"`
	RoundID    uint64 `json:"round_id"`
	Randomness uint64 `json:"randomness"`
}

func (s *AdminServer) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	round, err := s.service.ResolveRound(s.authority, req.Asset, req.RoundID, req.Randomness)
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, round)
}

type fulfillRequest struct {
	Handle     string `json:"handle"`
	Randomness uint64 `json:"randomness"`
}

func (s *AdminServer) handleFulfill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req fulfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	round, err := s.service.FulfillRandomness(req.Handle, req.Randomness)
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, round)
}

func (s *AdminServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	view, err := s.service.Registry()
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"paused":   s.service.Paused(),
		"registry": view,
	})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeAdminError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, lottery.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, lottery.ErrRandomnessNotRequested),
		errors.Is(err, lottery.ErrRoundNotFound),
		errors.Is(err, lottery.ErrNoActiveRound):
		status = http.StatusNotFound
	case errors.Is(err, lottery.ErrRandomnessConsumed),
		errors.Is(err, lottery.ErrPrizeClaimed):
		status = http.StatusConflict
	}
	http.Error(w, err.Error(), status)
}
