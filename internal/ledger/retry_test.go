package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/Veraticus/the-budget-must-balance/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAccountStore is a scriptable service.AccountStore.
type MockAccountStore struct {
	mock.Mock
}

func (m *MockAccountStore) LoadAccounts(ctx context.Context) ([]*model.Account, error) {
	args := m.Called(ctx)
	accounts, _ := args.Get(0).([]*model.Account)
	return accounts, args.Error(1)
}

func (m *MockAccountStore) SaveAccount(ctx context.Context, account *model.Account) error {
	return m.Called(ctx, account).Error(0)
}

func (m *MockAccountStore) CommitImport(ctx context.Context, account string, record model.FileRecord, digests []string) error {
	return m.Called(ctx, account, record, digests).Error(0)
}

func (m *MockAccountStore) DeleteFileRecord(ctx context.Context, account, filename string) error {
	return m.Called(ctx, account, filename).Error(0)
}

func (m *MockAccountStore) DeleteAccount(ctx context.Context, account string) error {
	return m.Called(ctx, account).Error(0)
}

func (m *MockAccountStore) ClearAccounts(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

var fastRetry = service.RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

func TestLedger_CommitRetriesBusyStore(t *testing.T) {
	store := new(MockAccountStore)
	busy := errors.New("database is locked")
	store.On("CommitImport", mock.Anything, "Lönekonto", mock.Anything, []string{"d1"}).Return(busy).Once()
	store.On("CommitImport", mock.Anything, "Lönekonto", mock.Anything, []string{"d1"}).Return(nil).Once()

	l := New(store, WithRetryOptions(fastRetry))
	added, err := l.Commit(context.Background(), "Lönekonto", model.FileRecord{Filename: "nov.csv", Digest: "f1"}, []string{"d1"})

	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.True(t, l.IsFileImported("Lönekonto", "f1"))
	store.AssertExpectations(t)
	store.AssertNumberOfCalls(t, "CommitImport", 2)
}

func TestLedger_CommitGivesUpAfterMaxAttempts(t *testing.T) {
	store := new(MockAccountStore)
	store.On("CommitImport", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("SQLITE_BUSY"))

	l := New(store, WithRetryOptions(fastRetry))
	_, err := l.Commit(context.Background(), "Lönekonto", model.FileRecord{Filename: "nov.csv", Digest: "f1"}, []string{"d1"})

	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrStorage)
	assert.ErrorIs(t, err, common.ErrMaxRetries)
	assert.False(t, l.IsFileImported("Lönekonto", "f1"))
	store.AssertNumberOfCalls(t, "CommitImport", 3)
}

func TestLedger_PermanentErrorsAreNotRetried(t *testing.T) {
	store := new(MockAccountStore)
	store.On("DeleteAccount", mock.Anything, "Lönekonto").Return(errors.New("constraint failed")).Once()
	store.On("LoadAccounts", mock.Anything).Return([]*model.Account{model.NewAccount("Lönekonto")}, nil)

	l := New(store, WithRetryOptions(fastRetry))
	require.NoError(t, l.LoadAccounts(context.Background()))

	_, err := l.DeleteAccount(context.Background(), "Lönekonto")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrStorage)
	_, ok := l.Account("Lönekonto")
	assert.True(t, ok, "account must survive a failed delete")
	store.AssertExpectations(t)
}
