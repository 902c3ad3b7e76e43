// Package postgres is the production store: accounts with compare-and-swap
// balances, the append-only transaction trail and the blacklist registry.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/boddenberg/grambank-ledger-go/internal/domain"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

// Store implements port.AccountStore, port.TransactionStore and
// port.BlacklistRegistry on a pgx pool.
type Store struct {
	Db *pgxpool.Pool
}

// NewStore connects and pings the database.
func NewStore(ctx context.Context, connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{Db: pool}, nil
}

// Migrate creates the tables and loads the static blacklist. It is
// idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.Db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.Db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Db.Ping(ctx)
}

// ============================================================
// Accounts
// ============================================================

const accountColumns = `id, name, account_number, COALESCE(upi_id, ''), phone_number,
	balance::float8, transactions_count, status, created_at`

func scanAccount(row pgx.Row, key string) (*domain.Account, error) {
	var a domain.Account
	var status string
	err := row.Scan(&a.ID, &a.Name, &a.AccountNumber, &a.UPIID, &a.PhoneNumber,
		&a.Balance, &a.TransactionsCount, &status, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "account", ID: key}
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.Status = domain.AccountStatus(status)
	return &a, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return scanAccount(s.Db.QueryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = $1", id), id)
}

func (s *Store) GetAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	return scanAccount(s.Db.QueryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE account_number = $1", accountNumber), accountNumber)
}

func (s *Store) GetAccountByUPI(ctx context.Context, upiID string) (*domain.Account, error) {
	return scanAccount(s.Db.QueryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE upi_id = $1", upiID), upiID)
}

// InsertAccount provisions an account unless its id already exists, in
// which case nothing is written and false is returned. Existing balances
// are owned by the ledger and never reset here. It stands in for the
// identity collaborator and is used by seeding and tests.
func (s *Store) InsertAccount(ctx context.Context, a *domain.Account) (bool, error) {
	status := a.Status
	if status == "" {
		status = domain.AccountActive
	}
	var upi any
	if a.UPIID != "" {
		upi = a.UPIID
	}
	tag, err := s.Db.Exec(ctx, `
		INSERT INTO accounts (id, name, account_number, upi_id, phone_number, balance, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		a.ID, a.Name, a.AccountNumber, upi, a.PhoneNumber, a.Balance, string(status))
	if err != nil {
		return false, fmt.Errorf("insert account: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CompareAndSwapBalance is a single conditional UPDATE; the row lock taken
// by the UPDATE serialises concurrent writers on the same account.
func (s *Store) CompareAndSwapBalance(ctx context.Context, id string, expected, next float64) (bool, error) {
	tag, err := s.Db.Exec(ctx, `
		UPDATE accounts
		SET balance = $3, transactions_count = transactions_count + 1
		WHERE id = $1 AND balance = $2::numeric`,
		id, expected, next)
	if err != nil {
		return false, fmt.Errorf("update balance: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := s.Db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)", id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check account: %w", err)
	}
	if !exists {
		return false, &domain.ErrNotFound{Resource: "account", ID: id}
	}
	return false, nil
}

func (s *Store) SetAccountStatus(ctx context.Context, id string, status domain.AccountStatus) (*domain.Account, error) {
	row := s.Db.QueryRow(ctx, "UPDATE accounts SET status = $2 WHERE id = $1 RETURNING "+accountColumns, id, string(status))
	return scanAccount(row, id)
}

func (s *Store) CountAccountsByStatus(ctx context.Context, status domain.AccountStatus) (int, error) {
	var n int
	err := s.Db.QueryRow(ctx, "SELECT count(*) FROM accounts WHERE status = $1", string(status)).Scan(&n)
	return n, err
}

// ============================================================
// Transactions
// ============================================================

const insertTxn = `
	INSERT INTO transactions (
		txn_id, user_id, type, to_account, to_upi, from_account, ifsc, beneficiary_name,
		receiver_account_id, amount, balance_before, balance_after, hour, day,
		txns_last_24h, avg_amount_7d, location_delta_km, is_foreign_device,
		is_fraud, fraud_reason, txn_blocked, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`

const txnColumns = `txn_id, user_id, type, to_account, to_upi, from_account, ifsc, beneficiary_name,
	receiver_account_id, amount::float8, balance_before::float8, balance_after::float8, hour, day,
	txns_last_24h, avg_amount_7d, location_delta_km, is_foreign_device,
	is_fraud, fraud_reason, txn_blocked, created_at`

func txnArgs(r *domain.TransactionRecord) []any {
	return []any{
		r.TxnID, r.AccountID, string(r.Type), r.ToAccount, r.ToUPI, r.FromAccount, r.IFSC, r.BeneficiaryName,
		r.ReceiverAccountID, r.Amount, r.BalanceBefore, r.BalanceAfter, r.Hour, r.Day,
		r.TxnsLast24h, r.AvgAmount7d, r.LocationDeltaKm, r.IsForeignDevice,
		r.IsFraud, r.FraudReason, r.TxnBlocked, r.CreatedAt,
	}
}

func insertError(txnID string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("duplicate transaction id %s: %w", txnID, err)
	}
	return fmt.Errorf("insert transaction %s: %w", txnID, err)
}

func (s *Store) InsertTransaction(ctx context.Context, rec *domain.TransactionRecord) error {
	if _, err := s.Db.Exec(ctx, insertTxn, txnArgs(rec)...); err != nil {
		return insertError(rec.TxnID, err)
	}
	return nil
}

// InsertTransactions writes the batch atomically.
func (s *Store) InsertTransactions(ctx context.Context, recs []domain.TransactionRecord) error {
	return pgx.BeginFunc(ctx, s.Db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for i := range recs {
			batch.Queue(insertTxn, txnArgs(&recs[i])...)
		}
		br := tx.SendBatch(ctx, batch)
		for i := range recs {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return insertError(recs[i].TxnID, err)
			}
		}
		return br.Close()
	})
}

func scanTxns(rows pgx.Rows) ([]domain.TransactionRecord, error) {
	defer rows.Close()

	var out []domain.TransactionRecord
	for rows.Next() {
		var r domain.TransactionRecord
		var typ string
		var hour, day, foreign int16
		if err := rows.Scan(&r.TxnID, &r.AccountID, &typ, &r.ToAccount, &r.ToUPI, &r.FromAccount, &r.IFSC,
			&r.BeneficiaryName, &r.ReceiverAccountID, &r.Amount, &r.BalanceBefore, &r.BalanceAfter,
			&hour, &day, &r.TxnsLast24h, &r.AvgAmount7d, &r.LocationDeltaKm, &foreign,
			&r.IsFraud, &r.FraudReason, &r.TxnBlocked, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		r.Type = domain.TxnType(typ)
		r.Hour, r.Day, r.IsForeignDevice = int(hour), int(day), int(foreign)
		out = append(out, r)
	}
	return out, rows.Err()
}

func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}

func (s *Store) ListTransactions(ctx context.Context, accountID string, fraudOnly bool, limit int) ([]domain.TransactionRecord, error) {
	q := "SELECT " + txnColumns + " FROM transactions WHERE user_id = $1"
	if fraudOnly {
		q += " AND is_fraud"
	}
	q += " ORDER BY created_at DESC" + limitClause(limit)

	rows, err := s.Db.Query(ctx, q, accountID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return scanTxns(rows)
}

func (s *Store) ListFraudTransactions(ctx context.Context, limit int) ([]domain.TransactionRecord, error) {
	rows, err := s.Db.Query(ctx, "SELECT "+txnColumns+" FROM transactions WHERE is_fraud ORDER BY created_at DESC"+limitClause(limit))
	if err != nil {
		return nil, fmt.Errorf("list fraud transactions: %w", err)
	}
	return scanTxns(rows)
}

func (s *Store) CountFraudTransactions(ctx context.Context) (int, error) {
	var n int
	err := s.Db.QueryRow(ctx, "SELECT count(*) FROM transactions WHERE is_fraud").Scan(&n)
	return n, err
}

func (s *Store) CountFlaggedAccounts(ctx context.Context) (int, error) {
	var n int
	err := s.Db.QueryRow(ctx, "SELECT count(DISTINCT user_id) FROM transactions WHERE is_fraud").Scan(&n)
	return n, err
}

func (s *Store) ListUnpairedDebits(ctx context.Context, since time.Time) ([]domain.UnpairedDebit, int, error) {
	rows, err := s.Db.Query(ctx, `
		SELECT d.txn_id, d.user_id, d.receiver_account_id, d.amount::float8, d.created_at, c.txn_id IS NULL
		FROM transactions d
		LEFT JOIN transactions c ON c.txn_id = d.txn_id || '-CREDIT'
		WHERE d.type = 'DEBIT' AND d.receiver_account_id <> '' AND d.created_at >= $1
		ORDER BY d.created_at`, since)
	if err != nil {
		return nil, 0, fmt.Errorf("list unpaired debits: %w", err)
	}
	defer rows.Close()

	var out []domain.UnpairedDebit
	scanned := 0
	for rows.Next() {
		var u domain.UnpairedDebit
		var unpaired bool
		if err := rows.Scan(&u.TxnID, &u.AccountID, &u.ReceiverAccountID, &u.Amount, &u.CreatedAt, &unpaired); err != nil {
			return nil, 0, fmt.Errorf("scan debit: %w", err)
		}
		scanned++
		if unpaired {
			out = append(out, u)
		}
	}
	return out, scanned, rows.Err()
}

// ============================================================
// Blacklist
// ============================================================

func (s *Store) FindBlacklisted(ctx context.Context, accountNumber string) (*domain.BlacklistEntry, error) {
	var e domain.BlacklistEntry
	err := s.Db.QueryRow(ctx,
		"SELECT account_number, ifsc, reason, reported_by, created_at FROM blacklist WHERE account_number = $1",
		accountNumber).Scan(&e.AccountNumber, &e.IFSC, &e.Reason, &e.ReportedBy, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find blacklisted: %w", err)
	}
	return &e, nil
}

func (s *Store) AddBlacklisted(ctx context.Context, e *domain.BlacklistEntry) (bool, error) {
	tag, err := s.Db.Exec(ctx, `
		INSERT INTO blacklist (account_number, ifsc, reason, reported_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_number) DO NOTHING`,
		e.AccountNumber, e.IFSC, e.Reason, e.ReportedBy, e.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("add blacklisted: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ListBlacklisted(ctx context.Context) ([]domain.BlacklistEntry, error) {
	rows, err := s.Db.Query(ctx,
		"SELECT account_number, ifsc, reason, reported_by, created_at FROM blacklist ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list blacklisted: %w", err)
	}
	defer rows.Close()

	var out []domain.BlacklistEntry
	for rows.Next() {
		var e domain.BlacklistEntry
		if err := rows.Scan(&e.AccountNumber, &e.IFSC, &e.Reason, &e.ReportedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan blacklisted: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CountBlacklisted(ctx context.Context) (int, error) {
	var n int
	err := s.Db.QueryRow(ctx, "SELECT count(*) FROM blacklist").Scan(&n)
	return n, err
}
