package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/guildmint/backend/internal/ledger"
	"github.com/guildmint/backend/internal/models"
)

const accountColumns = "user_id, currency_id, wallet, bank"

// AccountService is the account ledger: lazy account creation and every
// balance mutation. Mutations are relative updates executed in single
// statements (wallet = wallet + delta), never read-modify-write round trips,
// and multi-row operations run inside one transaction.
type AccountService struct {
	db      *sql.DB
	configs *GuildConfigService
}

func NewAccountService(db *sql.DB, configs *GuildConfigService) *AccountService {
	return &AccountService{db: db, configs: configs}
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	if err := row.Scan(&a.UserID, &a.CurrencyID, &a.Wallet, &a.Bank); err != nil {
		return nil, err
	}
	return &a, nil
}

// Get fetches the account for a (user, currency) pair, creating it with zero
// balances on first access. Creation is an upsert so two concurrent first
// reads still end with exactly one row.
func (s *AccountService) Get(ctx context.Context, userID, currencyID int64) (*models.Account, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 AND currency_id = $2`,
		userID, currencyID))
	if err == sql.ErrNoRows {
		account, err = scanAccount(s.db.QueryRowContext(ctx, `
			INSERT INTO accounts (user_id, currency_id) VALUES ($1, $2)
			ON CONFLICT (user_id, currency_id) DO UPDATE SET wallet = accounts.wallet
			RETURNING `+accountColumns,
			userID, currencyID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account %d/%d: %w", userID, currencyID, err)
	}
	return account, nil
}

// GetAll returns the user's account under every currency enabled in the
// scope, keyed by currency id, creating missing accounts along the way.
func (s *AccountService) GetAll(ctx context.Context, userID int64, scope models.Scope) (map[int64]*models.Account, error) {
	currencies, err := s.configs.GetCurrencies(ctx, scope)
	if err != nil {
		return nil, err
	}
	if len(currencies) == 0 {
		return nil, ledger.ErrNoCurrencies
	}

	accounts := make(map[int64]*models.Account, len(currencies))
	for _, c := range currencies {
		account, err := s.Get(ctx, userID, c.ID)
		if err != nil {
			return nil, err
		}
		accounts[c.ID] = account
	}
	return accounts, nil
}

// AddMoney applies a signed delta to the wallet or bank side of an account
// and logs it. Negative deltas are debits; no floor is enforced here, spend
// flows must pre-check funds themselves.
func (s *AccountService) AddMoney(ctx context.Context, userID int64, currency *models.Currency, amount int64, toWallet bool, reason string) (*models.Account, error) {
	if amount == 0 {
		return nil, ledger.ErrBadAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := ensureAccount(ctx, tx, userID, currency.ID); err != nil {
		return nil, err
	}

	column := "bank"
	if toWallet {
		column = "wallet"
	}
	account, err := scanAccount(tx.QueryRowContext(ctx, fmt.Sprintf(`
		UPDATE accounts SET %s = %s + $1
		WHERE user_id = $2 AND currency_id = $3
		RETURNING `+accountColumns, column, column),
		amount, userID, currency.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to update balance for %d/%d: %w", userID, currency.ID, err)
	}

	if err := logTransaction(ctx, tx, uuid.NewString(), userID, currency.ID, amount, toWallet, reason); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit balance update: %w", err)
	}

	log.Printf("[ACCOUNT] Applied %+d to %s of %d/%d (%s)", amount, column, userID, currency.ID, reason)
	return account, nil
}

// Transfer moves money. With a target user differing from the source this is
// a wallet-to-wallet payment: the source wallet is debited only if it holds
// enough, the target wallet credited, both inside one transaction. Without a
// target (or targeting oneself) it is an internal wallet<->bank move, with
// toWallet naming the credited side. Depositing into another user's bank is
// always denied.
func (s *AccountService) Transfer(ctx context.Context, userID int64, currency *models.Currency, amount int64, targetUserID int64, toWallet bool, reason string) (*models.Account, error) {
	if amount <= 0 {
		return nil, ledger.ErrBadAmount
	}

	if targetUserID != 0 && targetUserID != userID {
		if !toWallet {
			return nil, &ledger.MissingPermissionError{Permission: "deposit_to_bank"}
		}
		return s.transferToUser(ctx, userID, currency, amount, targetUserID, reason)
	}
	return s.moveInternal(ctx, userID, currency, amount, toWallet, reason)
}

func (s *AccountService) transferToUser(ctx context.Context, userID int64, currency *models.Currency, amount, targetUserID int64, reason string) (*models.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transfer: %w", err)
	}
	defer tx.Rollback()

	if err := ensureAccount(ctx, tx, userID, currency.ID); err != nil {
		return nil, err
	}
	if err := ensureAccount(ctx, tx, targetUserID, currency.ID); err != nil {
		return nil, err
	}

	// The debit condition keeps the check and the mutation in one statement.
	source, err := scanAccount(tx.QueryRowContext(ctx, `
		UPDATE accounts SET wallet = wallet - $1
		WHERE user_id = $2 AND currency_id = $3 AND wallet >= $1
		RETURNING `+accountColumns,
		amount, userID, currency.ID))
	if err == sql.ErrNoRows {
		return nil, s.deficitError(ctx, tx, userID, currency, amount, "wallet")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to debit %d/%d: %w", userID, currency.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE accounts SET wallet = wallet + $1
		WHERE user_id = $2 AND currency_id = $3`,
		amount, targetUserID, currency.ID); err != nil {
		return nil, fmt.Errorf("failed to credit %d/%d: %w", targetUserID, currency.ID, err)
	}

	ref := uuid.NewString()
	if err := logTransaction(ctx, tx, ref, userID, currency.ID, -amount, true, reason); err != nil {
		return nil, err
	}
	if err := logTransaction(ctx, tx, ref, targetUserID, currency.ID, amount, true, reason); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transfer: %w", err)
	}

	log.Printf("[ACCOUNT] Transferred %d %s from %d to %d", amount, currency.Icon, userID, targetUserID)
	return source, nil
}

func (s *AccountService) moveInternal(ctx context.Context, userID int64, currency *models.Currency, amount int64, toWallet bool, reason string) (*models.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transfer: %w", err)
	}
	defer tx.Rollback()

	if err := ensureAccount(ctx, tx, userID, currency.ID); err != nil {
		return nil, err
	}

	// Both sides move in a single statement, debiting the side opposite
	// the credited one.
	query := `
		UPDATE accounts SET wallet = wallet - $1, bank = bank + $1
		WHERE user_id = $2 AND currency_id = $3 AND wallet >= $1
		RETURNING ` + accountColumns
	debited := "wallet"
	if toWallet {
		query = `
		UPDATE accounts SET bank = bank - $1, wallet = wallet + $1
		WHERE user_id = $2 AND currency_id = $3 AND bank >= $1
		RETURNING ` + accountColumns
		debited = "bank"
	}

	account, err := scanAccount(tx.QueryRowContext(ctx, query, amount, userID, currency.ID))
	if err == sql.ErrNoRows {
		return nil, s.deficitError(ctx, tx, userID, currency, amount, debited)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to move funds for %d/%d: %w", userID, currency.ID, err)
	}

	if err := logTransaction(ctx, tx, uuid.NewString(), userID, currency.ID, amount, toWallet, reason); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transfer: %w", err)
	}

	log.Printf("[ACCOUNT] Moved %d %s within account %d/%d (to_wallet=%t)", amount, currency.Icon, userID, currency.ID, toWallet)
	return account, nil
}

// RecentTransactions returns the caller's latest log rows, newest first.
func (s *AccountService) RecentTransactions(ctx context.Context, userID int64, limit int) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reference, user_id, currency_id, amount, to_wallet, reason, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions for %d: %w", userID, err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.Reference, &t.UserID, &t.CurrencyID, &t.Amount, &t.ToWallet, &t.Reason, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

func (s *AccountService) deficitError(ctx context.Context, tx *sql.Tx, userID int64, currency *models.Currency, amount int64, side string) error {
	var balance int64
	err := tx.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT %s FROM accounts WHERE user_id = $1 AND currency_id = $2`, side),
		userID, currency.ID).Scan(&balance)
	if err != nil {
		return fmt.Errorf("failed to read %s balance for %d/%d: %w", side, userID, currency.ID, err)
	}
	return &ledger.NotEnoughMoneyError{Deficit: amount - balance, Icon: currency.Icon}
}

func ensureAccount(ctx context.Context, tx *sql.Tx, userID, currencyID int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (user_id, currency_id) VALUES ($1, $2)
		ON CONFLICT (user_id, currency_id) DO NOTHING`,
		userID, currencyID)
	if err != nil {
		return fmt.Errorf("failed to ensure account %d/%d: %w", userID, currencyID, err)
	}
	return nil
}

func logTransaction(ctx context.Context, tx *sql.Tx, reference string, userID, currencyID, amount int64, toWallet bool, reason string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (reference, user_id, currency_id, amount, to_wallet, reason)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		reference, userID, currencyID, amount, toWallet, reason)
	if err != nil {
		return fmt.Errorf("failed to log transaction: %w", err)
	}
	return nil
}
