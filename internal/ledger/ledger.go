// Package ledger tracks, per account, which statement files and which
// individual transactions have already been absorbed so that repeated or
// overlapping imports never double count.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/Veraticus/the-budget-must-balance/internal/service"
	"github.com/shopspring/decimal"
)

// Ledger is the in-memory view of every account's import history backed by a
// persistent AccountStore. Reads may run concurrently; commits to the same
// account are serialized. Accounts in the map are never mutated after they
// are stored: writers stage a clone and swap it in.
type Ledger struct {
	store    service.AccountStore
	accounts map[string]*model.Account
	locks    *keyedMutex
	now      func() time.Time
	retry    service.RetryOptions
	mu       sync.RWMutex
	// writes is held shared by every per-account writer and exclusively by
	// ClearAllAccounts.
	writes sync.RWMutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithRetryOptions overrides the backoff used for store writes.
func WithRetryOptions(opts service.RetryOptions) Option {
	return func(l *Ledger) { l.retry = opts }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates an empty ledger. Call LoadAccounts to pull persisted state.
func New(store service.AccountStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		accounts: make(map[string]*model.Account),
		locks:    newKeyedMutex(),
		now:      time.Now,
		retry:    service.DefaultRetryOptions(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FileDigest returns the hex sha256 of everything read from r.
func FileDigest(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// BytesDigest is FileDigest for content already in memory.
func BytesDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// LoadAccounts replaces the in-memory state with what the store holds.
func (l *Ledger) LoadAccounts(ctx context.Context) error {
	accounts, err := l.store.LoadAccounts(ctx)
	if err != nil {
		return common.NewStorageError("load accounts", err)
	}

	byName := make(map[string]*model.Account, len(accounts))
	for _, a := range accounts {
		if a.Digests == nil {
			a.Digests = make(map[string]struct{})
		}
		byName[a.Name] = a
	}

	l.mu.Lock()
	l.accounts = byName
	l.mu.Unlock()

	slog.Debug("Loaded ledger state", "accounts", len(byName))
	return nil
}

// SaveAccounts writes every in-memory account back to the store.
func (l *Ledger) SaveAccounts(ctx context.Context) error {
	for _, acct := range l.snapshot() {
		unlock := l.lockAccount(acct.Name)
		err := l.persist(ctx, "save account", func() error {
			return l.store.SaveAccount(ctx, acct)
		})
		unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

// EnsureAccount resolves the account for filename and creates it if needed.
func (l *Ledger) EnsureAccount(ctx context.Context, filename string) (string, error) {
	name := ResolveAccount(filename)
	if name == "" {
		return "", common.NewValidationError("filename", "cannot derive an account from %q", filename)
	}

	unlock := l.lockAccount(name)
	defer unlock()

	if l.get(name) != nil {
		return name, nil
	}

	acct := model.NewAccount(name)
	acct.Number = AccountNumber(filename)
	if err := l.persist(ctx, "create account", func() error {
		return l.store.SaveAccount(ctx, acct)
	}); err != nil {
		return "", err
	}

	l.put(acct)
	slog.Info("Created account", "account", name, "from", filename)
	return name, nil
}

// Account returns a copy of the named account.
func (l *Ledger) Account(name string) (*model.Account, bool) {
	acct := l.get(name)
	if acct == nil {
		return nil, false
	}
	return acct, true
}

// Accounts returns copies of every account sorted by name.
func (l *Ledger) Accounts() []*model.Account {
	return l.snapshot()
}

// IsFileImported reports whether the file digest is already in the account's
// history. Unknown accounts have imported nothing.
func (l *Ledger) IsFileImported(account, digest string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acct, ok := l.accounts[account]
	return ok && acct.HasFile(digest)
}

// FilterNewTransactions keeps the transactions whose digest the account has
// not yet absorbed, in input order. Repeats inside txns collapse to the first
// occurrence. The second return value counts everything dropped.
func (l *Ledger) FilterNewTransactions(account string, txns []model.Transaction) ([]model.Transaction, int) {
	l.mu.RLock()
	acct := l.accounts[account]
	l.mu.RUnlock()

	seen := make(map[string]struct{}, len(txns))
	kept := make([]model.Transaction, 0, len(txns))
	for _, txn := range txns {
		d := txn.Digest()
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}

		if acct != nil && acct.HasDigest(d) {
			continue
		}
		kept = append(kept, txn)
	}
	return kept, len(txns) - len(kept)
}

// Commit atomically records a file and the digests of its new transactions.
// Digests absorbed by a concurrent commit are skipped, and a file already in
// the history is a no-op. It returns how many digests were newly recorded.
// On failure neither memory nor the store changes.
func (l *Ledger) Commit(ctx context.Context, account string, record model.FileRecord, digests []string) (int, error) {
	if strings.TrimSpace(account) == "" {
		return 0, common.NewValidationError("account", "must not be empty")
	}
	if record.Digest == "" {
		return 0, common.NewValidationError("file digest", "must not be empty")
	}

	unlock := l.lockAccount(account)
	defer unlock()

	staged := l.get(account)
	if staged == nil {
		staged = model.NewAccount(account)
	}
	if staged.HasFile(record.Digest) {
		slog.Debug("File already committed", "account", account, "file", record.Filename)
		return 0, nil
	}

	fresh := make([]string, 0, len(digests))
	for _, d := range digests {
		if staged.HasDigest(d) {
			continue
		}
		staged.Digests[d] = struct{}{}
		fresh = append(fresh, d)
	}

	if record.ImportedAt.IsZero() {
		record.ImportedAt = l.now()
	}
	if err := l.persist(ctx, "commit import", func() error {
		return l.store.CommitImport(ctx, account, record, fresh)
	}); err != nil {
		return 0, err
	}

	staged.Files = append(staged.Files, record)
	importedAt := record.ImportedAt
	staged.LastImport = &importedAt
	l.put(staged)

	slog.Info("Committed import",
		"account", account,
		"file", record.Filename,
		"new_digests", len(fresh))
	return len(fresh), nil
}

// DeleteFileRecord drops every history entry for filename. Absorbed digests
// stay, so re-importing the same rows still reports them as duplicates.
func (l *Ledger) DeleteFileRecord(ctx context.Context, account, filename string) (bool, error) {
	unlock := l.lockAccount(account)
	defer unlock()

	staged := l.get(account)
	if staged == nil {
		return false, nil
	}

	files := staged.Files[:0]
	for _, f := range staged.Files {
		if f.Filename != filename {
			files = append(files, f)
		}
	}
	if len(files) == len(staged.Files) {
		return false, nil
	}
	staged.Files = files

	if err := l.persist(ctx, "delete file record", func() error {
		return ignoreNotFound(l.store.DeleteFileRecord(ctx, account, filename))
	}); err != nil {
		return false, err
	}

	l.put(staged)
	slog.Info("Deleted file record", "account", account, "file", filename)
	return true, nil
}

// DeleteAccount removes one account's ledger state.
func (l *Ledger) DeleteAccount(ctx context.Context, account string) (bool, error) {
	unlock := l.lockAccount(account)
	defer unlock()

	if l.get(account) == nil {
		return false, nil
	}

	if err := l.persist(ctx, "delete account", func() error {
		return ignoreNotFound(l.store.DeleteAccount(ctx, account))
	}); err != nil {
		return false, err
	}

	l.mu.Lock()
	delete(l.accounts, account)
	l.mu.Unlock()

	slog.Info("Deleted account", "account", account)
	return true, nil
}

// ClearAllAccounts removes every account and returns how many there were.
// It waits for in-flight writers and holds off new ones until it is done.
func (l *Ledger) ClearAllAccounts(ctx context.Context) (int, error) {
	l.writes.Lock()
	defer l.writes.Unlock()
	l.mu.Lock()
	defer l.mu.Unlock()

	var stored int
	err := common.WithRetry(ctx, func() error {
		var err error
		stored, err = l.store.ClearAccounts(ctx)
		return err
	}, l.retry)
	if err != nil {
		return 0, common.NewStorageError("clear accounts", err)
	}

	count := len(l.accounts)
	if stored > count {
		count = stored
	}
	l.accounts = make(map[string]*model.Account)

	slog.Info("Cleared ledger", "accounts", count)
	return count, nil
}

// UpdateBalance records a known balance for an account.
func (l *Ledger) UpdateBalance(ctx context.Context, account string, balance decimal.Decimal, asOf time.Time) error {
	unlock := l.lockAccount(account)
	defer unlock()

	staged := l.get(account)
	if staged == nil {
		return fmt.Errorf("account %q: %w", account, common.ErrNotFound)
	}
	staged.Balance = &balance
	staged.BalanceDate = &asOf

	if err := l.persist(ctx, "update balance", func() error {
		return l.store.SaveAccount(ctx, staged)
	}); err != nil {
		return err
	}

	l.put(staged)
	return nil
}

// Summary is a one-line-per-account overview for display.
type Summary struct {
	LastImport   *time.Time
	Balance      *decimal.Decimal
	Account      string
	Files        int
	Transactions int
}

// Summaries returns one Summary per account sorted by name.
func (l *Ledger) Summaries() []Summary {
	accounts := l.snapshot()
	out := make([]Summary, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, Summary{
			Account:      a.Name,
			Files:        len(a.Files),
			Transactions: len(a.Digests),
			LastImport:   a.LastImport,
			Balance:      a.Balance,
		})
	}
	return out
}

func (l *Ledger) lockAccount(name string) func() {
	l.writes.RLock()
	unlock := l.locks.Lock(name)
	return func() {
		unlock()
		l.writes.RUnlock()
	}
}

func (l *Ledger) persist(ctx context.Context, op string, fn func() error) error {
	if err := common.WithRetry(ctx, fn, l.retry); err != nil {
		return common.NewStorageError(op, err)
	}
	return nil
}

// get returns a private copy of the account or nil.
func (l *Ledger) get(name string) *model.Account {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acct, ok := l.accounts[name]
	if !ok {
		return nil
	}
	return acct.Clone()
}

func (l *Ledger) put(acct *model.Account) {
	l.mu.Lock()
	l.accounts[acct.Name] = acct
	l.mu.Unlock()
}

func (l *Ledger) snapshot() []*model.Account {
	l.mu.RLock()
	out := make([]*model.Account, 0, len(l.accounts))
	for _, a := range l.accounts {
		out = append(out, a.Clone())
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func ignoreNotFound(err error) error {
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	return err
}
