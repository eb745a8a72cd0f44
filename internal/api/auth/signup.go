package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sprynt-api/internal/domain/accounts"
	"sprynt-api/internal/domain/credits"

	"gorm.io/gorm"
)

// findOrCreateAccount resolves the login to an account: by provider subject,
// then by email (linking the subject), else a new account funded with the
// signup grant in the same transaction.
func findOrCreateAccount(ctx context.Context, db *gorm.DB, ledger *credits.Ledger, claims *Claims, signupCredits int64) (*accounts.Account, bool, error) {
	var acct accounts.Account
	created := false

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("oidc_subject = ?", claims.Subject).Take(&acct).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("find by subject: %w", err)
		}

		email := strings.ToLower(strings.TrimSpace(claims.Email))
		err = tx.Where("email = ?", email).Take(&acct).Error
		if err == nil {
			if acct.OIDCSubject == nil {
				sub := claims.Subject
				acct.OIDCSubject = &sub
				if err := tx.Model(&acct).UpdateColumn("oidc_subject", sub).Error; err != nil {
					return fmt.Errorf("link subject: %w", err)
				}
			}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("find by email: %w", err)
		}

		sub := claims.Subject
		acct = accounts.Account{
			Email:       email,
			DisplayName: firstNonEmpty(claims.Name, strings.Split(email, "@")[0]),
			AvatarURL:   claims.Picture,
			OIDCSubject: &sub,
			Role:        accounts.RoleUser,
		}
		if err := tx.Create(&acct).Error; err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		created = true

		if signupCredits > 0 {
			if _, err := ledger.WithTx(tx).Credit(ctx, acct.ID, signupCredits, credits.SourceSignupBonus, ""); err != nil {
				return fmt.Errorf("signup grant: %w", err)
			}
			acct.Credits = signupCredits
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &acct, created, nil
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}
