package vault

import (
	"go.uber.org/zap"

	"github.com/Checker-Finance/bondvault/pkg/model"
)

// SetContractStopped sets the product's stop flag. Stopping blocks new
// deposits but never blocks withdrawal: redemption rights survive a pause.
func (v *Vault) SetContractStopped(caller model.Account, id uint64, stopped bool) error {
	if err := v.lock(); err != nil {
		return err
	}
	defer v.mu.Unlock()

	p, err := v.product(id)
	if err != nil {
		return err
	}
	if caller != p.Admin {
		return ErrNotAdmin
	}

	p.Stopped = stopped

	v.logger.Info("vault.stopped_changed",
		zap.Uint64("product_id", id),
		zap.Bool("stopped", stopped))

	v.emit(model.LedgerEvent{
		Type:      model.EventStoppedChanged,
		ProductID: id,
		Actor:     caller,
		Stopped:   stopped,
	}, p)
	return nil
}

// SetTreasury changes the account that receives deposited assets.
func (v *Vault) SetTreasury(caller model.Account, id uint64, treasury model.Account) error {
	if err := v.lock(); err != nil {
		return err
	}
	defer v.mu.Unlock()

	p, err := v.product(id)
	if err != nil {
		return err
	}
	if caller != p.Admin {
		return ErrNotAdmin
	}
	if treasury == "" {
		return ErrInvalidParams
	}

	p.Treasury = treasury

	v.logger.Info("vault.treasury_changed",
		zap.Uint64("product_id", id),
		zap.String("treasury", string(treasury)))

	v.emit(model.LedgerEvent{
		Type:      model.EventTreasuryChanged,
		ProductID: id,
		Actor:     caller,
		Account:   treasury,
	}, p)
	return nil
}

// SetAdmin transfers product administration to a new identity.
func (v *Vault) SetAdmin(caller model.Account, id uint64, admin model.Account) error {
	if err := v.lock(); err != nil {
		return err
	}
	defer v.mu.Unlock()

	p, err := v.product(id)
	if err != nil {
		return err
	}
	if caller != p.Admin {
		return ErrNotAdmin
	}
	if admin == "" {
		return ErrInvalidParams
	}

	p.Admin = admin

	v.logger.Info("vault.admin_changed",
		zap.Uint64("product_id", id),
		zap.String("admin", string(admin)))

	v.emit(model.LedgerEvent{
		Type:      model.EventAdminChanged,
		ProductID: id,
		Actor:     caller,
		Account:   admin,
	}, p)
	return nil
}
