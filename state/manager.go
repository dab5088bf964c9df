package state

import (
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"blocklotto/native/lottery"
	"blocklotto/storage"
)

// Manager persists the lottery ledger into a key-value Database and exposes
// the narrow state surface the engine operates against. All records are RLP
// encoded; signed timestamps are stored as unsigned seconds.
type Manager struct {
	db storage.Database
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Close releases the underlying database.
func (m *Manager) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

func (m *Manager) get(key []byte, out interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

func (m *Manager) put(key []byte, value interface{}) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return m.db.Put(key, raw)
}

type storedAsset struct {
	Symbol    string
	PriceFeed string
	Decimals  uint8
}

type storedRegistry struct {
	FeePercentage uint8
	Beneficiary   [20]byte
	Assets        []storedAsset
	LastRotation  uint64
	Active        bool
	Paused        bool
}

// RegistryGet loads the registry snapshot.
func (m *Manager) RegistryGet() (*lottery.Registry, bool) {
	var stored storedRegistry
	ok, err := m.get([]byte(keyRegistry), &stored)
	if err != nil || !ok {
		return nil, false
	}
	reg := &lottery.Registry{
		FeePercentage: stored.FeePercentage,
		Beneficiary:   stored.Beneficiary,
		LastRotation:  int64(stored.LastRotation),
		Active:        stored.Active,
		Paused:        stored.Paused,
	}
	for _, asset := range stored.Assets {
		reg.Assets = append(reg.Assets, lottery.SupportedAsset(asset))
	}
	return reg, true
}

// RegistryPut stores the registry.
func (m *Manager) RegistryPut(reg *lottery.Registry) error {
	if reg == nil {
		return fmt.Errorf("state: nil registry")
	}
	stored := storedRegistry{
		FeePercentage: reg.FeePercentage,
		Beneficiary:   reg.Beneficiary,
		LastRotation:  uint64(reg.LastRotation),
		Active:        reg.Active,
		Paused:        reg.Paused,
	}
	for _, asset := range reg.Assets {
		stored.Assets = append(stored.Assets, storedAsset(asset))
	}
	return m.put([]byte(keyRegistry), stored)
}

type storedTicket struct {
	Owner       [20]byte
	Price       *big.Int
	PurchasedAt uint64
	IsBonus     bool
}

type storedRound struct {
	ID                 uint64
	Asset              string
	Status             uint8
	StartTime          uint64
	EndTime            uint64
	PoolBalance        *big.Int
	CommissionBalance  *big.Int
	Tickets            []storedTicket
	WinnerSet          bool
	WinnerAddress      [20]byte
	WinnerTicketIndex  uint32
	PrizeClaimed       bool
	CommissionReleased bool
}

// RoundGet loads one round of an asset pool.
func (m *Manager) RoundGet(asset string, id uint64) (*lottery.Round, bool) {
	var stored storedRound
	ok, err := m.get(roundKey(asset, id), &stored)
	if err != nil || !ok {
		return nil, false
	}
	round := &lottery.Round{
		ID:                 stored.ID,
		Asset:              stored.Asset,
		Status:             lottery.RoundStatus(stored.Status),
		StartTime:          int64(stored.StartTime),
		EndTime:            int64(stored.EndTime),
		PoolBalance:        stored.PoolBalance,
		CommissionBalance:  stored.CommissionBalance,
		WinnerSet:          stored.WinnerSet,
		WinnerAddress:      stored.WinnerAddress,
		WinnerTicketIndex:  stored.WinnerTicketIndex,
		PrizeClaimed:       stored.PrizeClaimed,
		CommissionReleased: stored.CommissionReleased,
	}
	if round.PoolBalance == nil {
		round.PoolBalance = big.NewInt(0)
	}
	if round.CommissionBalance == nil {
		round.CommissionBalance = big.NewInt(0)
	}
	for _, ticket := range stored.Tickets {
		price := ticket.Price
		if price == nil {
			price = big.NewInt(0)
		}
		round.Tickets = append(round.Tickets, &lottery.Ticket{
			Owner:       ticket.Owner,
			Price:       price,
			PurchasedAt: int64(ticket.PurchasedAt),
			IsBonus:     ticket.IsBonus,
		})
	}
	return round, true
}

// RoundPut sanitizes and stores a round, bumping the pool's round counter
// when the round extends the pool.
func (m *Manager) RoundPut(round *lottery.Round) error {
	sanitized, err := lottery.SanitizeRound(round)
	if err != nil {
		return err
	}
	count, err := m.RoundCount(sanitized.Asset)
	if err != nil {
		return err
	}
	if sanitized.ID > count {
		return fmt.Errorf("state: round id gap: %d after %d rounds", sanitized.ID, count)
	}
	stored := storedRound{
		ID:                 sanitized.ID,
		Asset:              sanitized.Asset,
		Status:             uint8(sanitized.Status),
		StartTime:          uint64(sanitized.StartTime),
		EndTime:            uint64(sanitized.EndTime),
		PoolBalance:        sanitized.PoolBalance,
		CommissionBalance:  sanitized.CommissionBalance,
		WinnerSet:          sanitized.WinnerSet,
		WinnerAddress:      sanitized.WinnerAddress,
		WinnerTicketIndex:  sanitized.WinnerTicketIndex,
		PrizeClaimed:       sanitized.PrizeClaimed,
		CommissionReleased: sanitized.CommissionReleased,
	}
	for _, ticket := range sanitized.Tickets {
		stored.Tickets = append(stored.Tickets, storedTicket{
			Owner:       ticket.Owner,
			Price:       ticket.Price,
			PurchasedAt: uint64(ticket.PurchasedAt),
			IsBonus:     ticket.IsBonus,
		})
	}
	if err := m.put(roundKey(sanitized.Asset, sanitized.ID), stored); err != nil {
		return err
	}
	if sanitized.ID == count {
		return m.put(roundCountKey(sanitized.Asset), count+1)
	}
	return nil
}

// RoundCount returns the number of rounds appended to the pool.
func (m *Manager) RoundCount(asset string) (uint64, error) {
	var count uint64
	ok, err := m.get(roundCountKey(asset), &count)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return count, nil
}

type storedPlayer struct {
	Player         [20]byte
	Asset          string
	TicketsCount   uint32
	HasBonusTicket bool
}

// PlayerGet loads a player aggregate for one asset pool.
func (m *Manager) PlayerGet(player [20]byte, asset string) (*lottery.PlayerAccount, bool) {
	var stored storedPlayer
	ok, err := m.get(playerKey(asset, player), &stored)
	if err != nil || !ok {
		return nil, false
	}
	return &lottery.PlayerAccount{
		Player:         stored.Player,
		Asset:          stored.Asset,
		TicketsCount:   stored.TicketsCount,
		HasBonusTicket: stored.HasBonusTicket,
	}, true
}

// PlayerPut stores a player aggregate.
func (m *Manager) PlayerPut(acct *lottery.PlayerAccount) error {
	if acct == nil {
		return fmt.Errorf("state: nil player account")
	}
	return m.put(playerKey(acct.Asset, acct.Player), storedPlayer{
		Player:         acct.Player,
		Asset:          acct.Asset,
		TicketsCount:   acct.TicketsCount,
		HasBonusTicket: acct.HasBonusTicket,
	})
}

type storedRequest struct {
	ID          string
	Asset       string
	RoundID     uint64
	RequestedAt uint64
	Fulfilled   bool
	Randomness  uint64
}

func requestFromStored(stored storedRequest) *lottery.RandomnessRequest {
	return &lottery.RandomnessRequest{
		ID:          stored.ID,
		Asset:       stored.Asset,
		RoundID:     stored.RoundID,
		RequestedAt: int64(stored.RequestedAt),
		Fulfilled:   stored.Fulfilled,
		Randomness:  stored.Randomness,
	}
}

// RequestGet loads a randomness request by handle.
func (m *Manager) RequestGet(id string) (*lottery.RandomnessRequest, bool) {
	var stored storedRequest
	ok, err := m.get(requestKey(id), &stored)
	if err != nil || !ok {
		return nil, false
	}
	return requestFromStored(stored), true
}

// RequestForRound loads the request bound to a round, if any.
func (m *Manager) RequestForRound(asset string, roundID uint64) (*lottery.RandomnessRequest, bool) {
	var handle string
	ok, err := m.get(requestRoundKey(asset, roundID), &handle)
	if err != nil || !ok {
		return nil, false
	}
	return m.RequestGet(handle)
}

// RequestPut stores a request under both its handle and its round binding.
func (m *Manager) RequestPut(req *lottery.RandomnessRequest) error {
	if req == nil {
		return fmt.Errorf("state: nil randomness request")
	}
	stored := storedRequest{
		ID:          req.ID,
		Asset:       req.Asset,
		RoundID:     req.RoundID,
		RequestedAt: uint64(req.RequestedAt),
		Fulfilled:   req.Fulfilled,
		Randomness:  req.Randomness,
	}
	if err := m.put(requestKey(req.ID), stored); err != nil {
		return err
	}
	return m.put(requestRoundKey(req.Asset, req.RoundID), req.ID)
}

// VaultAddress derives the deterministic custody address for an asset pool.
func (m *Manager) VaultAddress(asset string) ([20]byte, error) {
	if asset == "" {
		return [20]byte{}, fmt.Errorf("state: empty asset")
	}
	digest := ethcrypto.Keccak256([]byte("blocklotto/vault/"), []byte(asset))
	var addr [20]byte
	copy(addr[:], digest[12:])
	return addr, nil
}

// VaultBalance returns the aggregate custody balance for an asset.
func (m *Manager) VaultBalance(asset string) (*big.Int, error) {
	balance := new(big.Int)
	ok, err := m.get(vaultKey(asset), balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// VaultCredit adds to the custody balance.
func (m *Manager) VaultCredit(asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: invalid credit amount")
	}
	balance, err := m.VaultBalance(asset)
	if err != nil {
		return err
	}
	return m.put(vaultKey(asset), new(big.Int).Add(balance, amount))
}

// VaultDebit removes from the custody balance, rejecting overdrafts.
func (m *Manager) VaultDebit(asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: invalid debit amount")
	}
	balance, err := m.VaultBalance(asset)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return lottery.ErrInsufficientFunds
	}
	return m.put(vaultKey(asset), new(big.Int).Sub(balance, amount))
}
