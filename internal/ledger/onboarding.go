package ledger

import (
	"context"
	"errors"
	"fmt"

	"walletledger/internal/domain"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Onboard inserts a new user together with their wallet
func (s *Service) Onboard(ctx context.Context, user *domain.User) (*domain.Wallet, error) {
	var wallet *domain.Wallet
	err := s.store.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		w, err := s.store.CreateWallet(tx, user.ID)
		if err != nil {
			return fmt.Errorf("create wallet: %w", err)
		}
		wallet = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":       user.ID,
		"wallet_number": wallet.WalletNumber,
	}).Info("User onboarded")
	return wallet, nil
}

// EnsureWallet returns the user's wallet, creating it when the user predates wallets
func (s *Service) EnsureWallet(ctx context.Context, user *domain.User) (*domain.Wallet, error) {
	w, err := s.store.WalletByUser(ctx, user.ID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, ErrWalletNotFound) {
		return nil, err
	}
	w, err = s.store.CreateWallet(s.store.DB(ctx), user.ID)
	if err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	logrus.WithField("user_id", user.ID).Info("Wallet created for existing user")
	return w, nil
}
