package database

import (
	"context"
	"database/sql"
	"time"

	"gorm.io/gorm"

	"campus/profile"
)

type transactionOptions struct {
	timeout   time.Duration
	txOptions *sql.TxOptions
}

type TransactionOption func(*transactionOptions)

// WithTransactionTimeout 設置單一交易的逾時時間，0 表示不限制
func WithTransactionTimeout(d time.Duration) TransactionOption {
	return func(o *transactionOptions) {
		o.timeout = d
	}
}

// WithTxOptions 設置交易的隔離等級等選項
func WithTxOptions(opts *sql.TxOptions) TransactionOption {
	return func(o *transactionOptions) {
		o.txOptions = opts
	}
}

// TransactionCoordinator 實現了 profile.ITransactionCoordinator
type TransactionCoordinator struct {
	db      *gorm.DB
	options transactionOptions
}

func NewTransactionCoordinator(db *gorm.DB, opts ...TransactionOption) *TransactionCoordinator {
	options := transactionOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return &TransactionCoordinator{db: db, options: options}
}

// Execute 在交易中執行 fn，fn 回傳錯誤或 panic 時回滾，否則提交
// fn 收到的 ctx 帶有交易的逾時，逾時與取消會中斷執行中的語句並讓交易回滾
func (c *TransactionCoordinator) Execute(ctx context.Context, fn func(ctx context.Context, stores profile.IStores) error) error {
	if c.options.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.options.timeout)
		defer cancel()
	}
	txFunc := func(tx *gorm.DB) error {
		return fn(ctx, NewStores(tx))
	}
	if c.options.txOptions != nil {
		return c.db.WithContext(ctx).Transaction(txFunc, c.options.txOptions)
	}
	return c.db.WithContext(ctx).Transaction(txFunc)
}

// Stores 將所有儲存介面綁定在同一個 *gorm.DB(通常是交易)上
type Stores struct {
	db *gorm.DB
}

func NewStores(db *gorm.DB) *Stores {
	return &Stores{db: db}
}

func (s *Stores) Identities() profile.IIdentityStore {
	return NewIdentityStore(s.db)
}

func (s *Stores) Profiles() profile.IProfileRepository {
	return NewProfileRepository(s.db)
}

