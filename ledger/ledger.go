package ledger

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/hashicorp/go-hclog"

	"lzbridge/types"
)

type Config struct {
	Name     string `yaml:"name"`
	Symbol   string `yaml:"symbol"`
	Decimals uint8  `yaml:"decimals"`
	// restricted ledgers only move tokens between verified senders
	Restricted bool `yaml:"restricted"`
}

// Ledger is a DFG token: plain fungible balances plus an owner managed
// verified sender list and minter set
type Ledger struct {
	mu sync.RWMutex

	cfg         Config
	owner       common.Address
	totalSupply *big.Int
	balances    map[common.Address]*big.Int
	allowances  map[common.Address]map[common.Address]*big.Int
	verified    map[common.Address]common.Hash
	minters     map[common.Address]struct{}

	logger hclog.Logger
}

func New(cfg Config, owner common.Address, logger hclog.Logger) *Ledger {
	return &Ledger{
		cfg:         cfg,
		owner:       owner,
		totalSupply: new(big.Int),
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[common.Address]map[common.Address]*big.Int),
		verified:    make(map[common.Address]common.Hash),
		minters:     map[common.Address]struct{}{owner: {}},
		logger:      logger.Named(cfg.Symbol),
	}
}

func (l *Ledger) Name() string          { return l.cfg.Name }
func (l *Ledger) Symbol() string        { return l.cfg.Symbol }
func (l *Ledger) Decimals() uint8       { return l.cfg.Decimals }
func (l *Ledger) Restricted() bool      { return l.cfg.Restricted }
func (l *Ledger) Owner() common.Address { return l.owner }

func (l *Ledger) TotalSupply() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return new(big.Int).Set(l.totalSupply)
}

func (l *Ledger) BalanceOf(addr common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return new(big.Int).Set(l.balanceOf(addr))
}

func (l *Ledger) Allowance(owner, spender common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return new(big.Int).Set(l.allowance(owner, spender))
}

func (l *Ledger) IsVerified(addr common.Address) (common.Hash, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	label, ok := l.verified[addr]
	return label, ok
}

func (l *Ledger) IsMinter(addr common.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.minters[addr]
	return ok
}

func (l *Ledger) AddVerified(caller, addr common.Address, label common.Hash) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.onlyOwner(caller, "addVerified"); err != nil {
		return err
	}
	l.verified[addr] = label
	l.logger.Debug("verified sender added", "address", addr, "label", labelString(label))
	return nil
}

func (l *Ledger) RemoveVerified(caller, addr common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.onlyOwner(caller, "removeVerified"); err != nil {
		return err
	}
	delete(l.verified, addr)
	l.logger.Debug("verified sender removed", "address", addr)
	return nil
}

func (l *Ledger) AddMinter(caller, addr common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.onlyOwner(caller, "addMinter"); err != nil {
		return err
	}
	l.minters[addr] = struct{}{}
	l.logger.Debug("minter added", "address", addr)
	return nil
}

func (l *Ledger) RemoveMinter(caller, addr common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.onlyOwner(caller, "removeMinter"); err != nil {
		return err
	}
	delete(l.minters, addr)
	l.logger.Debug("minter removed", "address", addr)
	return nil
}

func (l *Ledger) Approve(owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: approve %v", types.ErrInvalidAmount, amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.setAllowance(owner, spender, new(big.Int).Set(amount))
	return nil
}

func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkTransfer(from, to, amount); err != nil {
		return err
	}
	l.move(from, to, amount)
	return nil
}

func (l *Ledger) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkTransfer(from, to, amount); err != nil {
		return err
	}
	allowed := l.allowance(from, spender)
	if allowed.Cmp(amount) < 0 {
		return fmt.Errorf("%w: allowance %s of %s for %s, need %s",
			types.ErrInsufficientBalanceOrAllowance, allowed, from, spender, amount)
	}

	l.setAllowance(from, spender, new(big.Int).Sub(allowed, amount))
	l.move(from, to, amount)
	return nil
}

func (l *Ledger) Mint(caller, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.minters[caller]; !ok {
		return fmt.Errorf("%w: %s is not a minter of %s", types.ErrUnauthorized, caller, l.cfg.Symbol)
	}
	// balances never exceed the supply, so capping it covers every balance
	if supply := new(big.Int).Add(l.totalSupply, amount); supply.Cmp(math.MaxBig256) > 0 {
		return fmt.Errorf("%w: minting %s would take %s supply above uint256", types.ErrInvalidAmount, amount, l.cfg.Symbol)
	}
	l.credit(to, amount)
	l.totalSupply.Add(l.totalSupply, amount)
	l.logger.Debug("minted", "to", to, "amount", amount)
	return nil
}

// Burn destroys amount held by from. Only minters can burn.
func (l *Ledger) Burn(caller, from common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.minters[caller]; !ok {
		return fmt.Errorf("%w: %s is not a minter of %s", types.ErrUnauthorized, caller, l.cfg.Symbol)
	}
	if bal := l.balanceOf(from); bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: balance %s of %s, need %s", types.ErrInsufficientBalanceOrAllowance, bal, from, amount)
	}
	l.debit(from, amount)
	l.totalSupply.Sub(l.totalSupply, amount)
	l.logger.Debug("burned", "from", from, "amount", amount)
	return nil
}

// Journal starts a unit of work over this ledger
func (l *Ledger) Journal() *Journal {
	return &Journal{ledger: l}
}

func (l *Ledger) onlyOwner(caller common.Address, op string) error {
	if caller != l.owner {
		return fmt.Errorf("%w: %s is not the owner of %s (%s)", types.ErrUnauthorized, caller, l.cfg.Symbol, op)
	}
	return nil
}

func (l *Ledger) checkTransfer(from, to common.Address, amount *big.Int) error {
	if l.cfg.Restricted {
		if _, ok := l.verified[from]; !ok {
			return fmt.Errorf("%w: sender %s is not verified on %s", types.ErrUnauthorized, from, l.cfg.Symbol)
		}
		if _, ok := l.verified[to]; !ok {
			return fmt.Errorf("%w: recipient %s is not verified on %s", types.ErrUnauthorized, to, l.cfg.Symbol)
		}
	}
	if bal := l.balanceOf(from); bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: balance %s of %s, need %s", types.ErrInsufficientBalanceOrAllowance, bal, from, amount)
	}
	return nil
}

func (l *Ledger) balanceOf(addr common.Address) *big.Int {
	if bal, ok := l.balances[addr]; ok {
		return bal
	}
	return new(big.Int)
}

func (l *Ledger) allowance(owner, spender common.Address) *big.Int {
	if a, ok := l.allowances[owner][spender]; ok {
		return a
	}
	return new(big.Int)
}

func (l *Ledger) setAllowance(owner, spender common.Address, amount *big.Int) {
	if _, ok := l.allowances[owner]; !ok {
		l.allowances[owner] = make(map[common.Address]*big.Int)
	}
	l.allowances[owner][spender] = amount
}

func (l *Ledger) move(from, to common.Address, amount *big.Int) {
	l.debit(from, amount)
	l.credit(to, amount)
}

func (l *Ledger) credit(addr common.Address, amount *big.Int) {
	l.balances[addr] = new(big.Int).Add(l.balanceOf(addr), amount)
}

func (l *Ledger) debit(addr common.Address, amount *big.Int) {
	l.balances[addr] = new(big.Int).Sub(l.balanceOf(addr), amount)
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: %v", types.ErrInvalidAmount, amount)
	}
	return nil
}

func labelString(label common.Hash) string {
	b := label.Bytes()
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
