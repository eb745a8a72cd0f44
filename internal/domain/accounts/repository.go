package accounts

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("account not found")

type Repository interface {
	Get(ctx context.Context, id string) (*Account, error)
	FindByOIDCSubject(ctx context.Context, subject string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	List(ctx context.Context, offset, limit int) ([]Account, int64, error)
	SetPaymentCustomer(ctx context.Context, id, customerID string) error
	SetConnectAccount(ctx context.Context, id, connectID string) error
}

type repositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Get(ctx context.Context, id string) (*Account, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repositoryImpl) FindByOIDCSubject(ctx context.Context, subject string) (*Account, error) {
	return r.first(ctx, "oidc_subject = ?", subject)
}

func (r *repositoryImpl) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *repositoryImpl) first(ctx context.Context, query string, arg any) (*Account, error) {
	var acct Account
	err := r.db.WithContext(ctx).Where(query, arg).Take(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	return &acct, nil
}

func (r *repositoryImpl) List(ctx context.Context, offset, limit int) ([]Account, int64, error) {
	var (
		rows  []Account
		total int64
	)
	q := r.db.WithContext(ctx).Model(&Account{}).Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}
	return rows, total, nil
}

func (r *repositoryImpl) SetPaymentCustomer(ctx context.Context, id, customerID string) error {
	return r.update(ctx, id, "payment_customer_id", customerID)
}

func (r *repositoryImpl) SetConnectAccount(ctx context.Context, id, connectID string) error {
	return r.update(ctx, id, "payment_connect_id", connectID)
}

func (r *repositoryImpl) update(ctx context.Context, id, column, value string) error {
	res := r.db.WithContext(ctx).Model(&Account{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return fmt.Errorf("update %s: %w", column, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
