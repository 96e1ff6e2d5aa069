package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Journal records mutations made through it so they can be undone.
// Undo applies inverse balance deltas, which commute with whatever other
// callers did to the ledger in the meantime.
type Journal struct {
	ledger *Ledger
	undo   []func(l *Ledger)
}

func (j *Journal) Transfer(from, to common.Address, amount *big.Int) error {
	if err := j.ledger.Transfer(from, to, amount); err != nil {
		return err
	}
	amt := new(big.Int).Set(amount)
	j.undo = append(j.undo, func(l *Ledger) {
		l.move(to, from, amt)
	})
	return nil
}

func (j *Journal) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	if err := j.ledger.TransferFrom(spender, from, to, amount); err != nil {
		return err
	}
	amt := new(big.Int).Set(amount)
	j.undo = append(j.undo, func(l *Ledger) {
		l.move(to, from, amt)
		l.setAllowance(from, spender, new(big.Int).Add(l.allowance(from, spender), amt))
	})
	return nil
}

func (j *Journal) Mint(caller, to common.Address, amount *big.Int) error {
	if err := j.ledger.Mint(caller, to, amount); err != nil {
		return err
	}
	amt := new(big.Int).Set(amount)
	j.undo = append(j.undo, func(l *Ledger) {
		l.debit(to, amt)
		l.totalSupply.Sub(l.totalSupply, amt)
	})
	return nil
}

func (j *Journal) Burn(caller, from common.Address, amount *big.Int) error {
	if err := j.ledger.Burn(caller, from, amount); err != nil {
		return err
	}
	amt := new(big.Int).Set(amount)
	j.undo = append(j.undo, func(l *Ledger) {
		l.credit(from, amt)
		l.totalSupply.Add(l.totalSupply, amt)
	})
	return nil
}

// Revert undoes every recorded mutation, newest first
func (j *Journal) Revert() {
	if len(j.undo) == 0 {
		return
	}

	j.ledger.mu.Lock()
	defer j.ledger.mu.Unlock()

	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i](j.ledger)
	}
	j.ledger.logger.Debug("journal reverted", "entries", len(j.undo))
	j.undo = nil
}

// Commit forgets the recorded mutations
func (j *Journal) Commit() {
	j.undo = nil
}
