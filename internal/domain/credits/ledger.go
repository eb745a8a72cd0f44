package credits

import (
	"context"
	"errors"
	"fmt"

	"sprynt-api/internal/domain/accounts"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Observer receives the outcome of every ledger mutation.
type Observer interface {
	LedgerOp(op, result string)
}

type nopObserver struct{}

func (nopObserver) LedgerOp(string, string) {}

// Ledger owns the credit_transactions log and the denormalized Account.Credits
// balance. Every balance change writes both in one database transaction, so the
// sum of an account's transactions always equals its balance.
type Ledger struct {
	db  *gorm.DB
	log *logrus.Entry
	obs Observer
}

func NewLedger(db *gorm.DB, log *logrus.Entry, obs Observer) *Ledger {
	if obs == nil {
		obs = nopObserver{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Ledger{db: db, log: log.WithField("component", "credit_ledger"), obs: obs}
}

// WithTx returns a ledger bound to an outer transaction. Mutations run in a
// savepoint so a rejected operation leaves the outer transaction usable.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	return &Ledger{db: tx, log: l.log, obs: l.obs}
}

// Debit removes cost credits from the account if and only if the balance
// covers it. The check and the decrement are one conditional UPDATE.
func (l *Ledger) Debit(ctx context.Context, accountID string, cost int64, feature string) (string, error) {
	if cost <= 0 {
		return "", ErrInvalidAmount
	}

	var rec Transaction
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&accounts.Account{}).
			Where("id = ? AND credits >= ?", accountID, cost).
			UpdateColumn("credits", gorm.Expr("credits - ?", cost))
		if res.Error != nil {
			return fmt.Errorf("debit balance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			available, err := balanceOf(tx, accountID)
			if err != nil {
				return err
			}
			return &InsufficientCreditsError{Required: cost, Available: available}
		}

		after, err := balanceOf(tx, accountID)
		if err != nil {
			return err
		}
		rec = Transaction{
			AccountID:    accountID,
			Amount:       -cost,
			Kind:         KindDebit,
			Feature:      strPtr(feature),
			BalanceAfter: after,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("append debit: %w", err)
		}
		return nil
	})
	if err != nil {
		l.obs.LedgerOp("debit", resultOf(err))
		if _, ok := AsInsufficient(err); !ok {
			l.log.WithError(err).WithFields(logrus.Fields{"account_id": accountID, "cost": cost}).Warn("debit failed")
		}
		return "", err
	}

	l.obs.LedgerOp("debit", "ok")
	l.log.WithFields(logrus.Fields{
		"account_id": accountID,
		"cost":       cost,
		"feature":    feature,
		"balance":    rec.BalanceAfter,
	}).Debug("credits debited")
	return rec.ID, nil
}

// Credit adds amount to the account. A non-empty externalPaymentID makes the
// call idempotent: a second credit with the same id returns ErrDuplicatePayment
// and leaves the balance untouched.
func (l *Ledger) Credit(ctx context.Context, accountID string, amount int64, source, externalPaymentID string) (string, error) {
	if amount <= 0 {
		return "", ErrInvalidAmount
	}

	var rec Transaction
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&accounts.Account{}).
			Where("id = ?", accountID).
			UpdateColumn("credits", gorm.Expr("credits + ?", amount))
		if res.Error != nil {
			return fmt.Errorf("credit balance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAccountNotFound
		}

		after, err := balanceOf(tx, accountID)
		if err != nil {
			return err
		}
		rec = Transaction{
			AccountID:         accountID,
			Amount:            amount,
			Kind:              KindCredit,
			Source:            strPtr(source),
			ExternalPaymentID: strPtr(externalPaymentID),
			BalanceAfter:      after,
		}

		ins := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
		if ins.Error != nil {
			return fmt.Errorf("append credit: %w", ins.Error)
		}
		if ins.RowsAffected == 0 {
			// rollback undoes the increment above
			return ErrDuplicatePayment
		}
		return nil
	})
	if err != nil {
		l.obs.LedgerOp("credit", resultOf(err))
		if errors.Is(err, ErrDuplicatePayment) {
			l.log.WithFields(logrus.Fields{"account_id": accountID, "external_payment_id": externalPaymentID}).Info("duplicate payment ignored")
		} else {
			l.log.WithError(err).WithField("account_id", accountID).Warn("credit failed")
		}
		return "", err
	}

	l.obs.LedgerOp("credit", "ok")
	l.log.WithFields(logrus.Fields{
		"account_id": accountID,
		"amount":     amount,
		"source":     source,
		"balance":    rec.BalanceAfter,
	}).Info("credits added")
	return rec.ID, nil
}

func (l *Ledger) BalanceOf(ctx context.Context, accountID string) (int64, error) {
	return balanceOf(l.db.WithContext(ctx), accountID)
}

// History returns one page of the account's transactions, newest first.
func (l *Ledger) History(ctx context.Context, accountID string, page, limit int) ([]Transaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	var (
		rows  []Transaction
		total int64
	)
	q := l.db.WithContext(ctx).Model(&Transaction{}).Where("account_id = ?", accountID).Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}
	err := q.Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	return rows, total, nil
}

type Reconciliation struct {
	AccountID  string `json:"accountId"`
	Balance    int64  `json:"balance"`
	LedgerSum  int64  `json:"ledgerSum"`
	Consistent bool   `json:"consistent"`
}

// Reconcile compares the denormalized balance with the ledger sum.
func (l *Ledger) Reconcile(ctx context.Context, accountID string) (Reconciliation, error) {
	var out Reconciliation
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bal, err := balanceOf(tx, accountID)
		if err != nil {
			return err
		}
		var sum int64
		err = tx.Model(&Transaction{}).
			Where("account_id = ?", accountID).
			Select("COALESCE(SUM(amount), 0)").
			Scan(&sum).Error
		if err != nil {
			return fmt.Errorf("sum ledger: %w", err)
		}
		out = Reconciliation{AccountID: accountID, Balance: bal, LedgerSum: sum, Consistent: bal == sum}
		return nil
	})
	if err != nil {
		return Reconciliation{}, err
	}
	if !out.Consistent {
		l.log.WithFields(logrus.Fields{
			"account_id": accountID,
			"balance":    out.Balance,
			"ledger_sum": out.LedgerSum,
		}).Error("ledger out of balance")
	}
	return out, nil
}

func balanceOf(db *gorm.DB, accountID string) (int64, error) {
	var acct accounts.Account
	err := db.Select("credits").Where("id = ?", accountID).Take(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return acct.Credits, nil
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDuplicatePayment):
		return "duplicate"
	case errors.Is(err, ErrAccountNotFound):
		return "not_found"
	}
	if _, ok := AsInsufficient(err); ok {
		return "insufficient"
	}
	return "error"
}
