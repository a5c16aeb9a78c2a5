package store

import (
	"database/sql"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yolodolo42/greeter/internal/testutil"
)

func memStore(t *testing.T) *ReceiptStore {
	t.Helper()
	s, err := OpenReceiptStoreDSN(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func receipt(hash string, block int64) *types.Receipt {
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      common.HexToHash(hash),
		GasUsed:     42000,
		BlockNumber: big.NewInt(block),
	}
}

func TestOpenReceiptStore_CreatesFile(t *testing.T) {
	dir := testutil.TempDir(t)
	s, err := OpenReceiptStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = os.Stat(filepath.Join(dir, "receipts.db"))
	assert.NoError(t, err)
}

func TestReceiptStore_UpsertAndGet(t *testing.T) {
	s := memStore(t)
	r := receipt("0x01", 10)

	require.NoError(t, s.Upsert("intuition", "gm", r))

	got, err := s.Get("intuition", r.TxHash.Hex())
	require.NoError(t, err)
	assert.Equal(t, "intuition", got.Chain)
	assert.Equal(t, r.TxHash.Hex(), got.TxHash)
	assert.Equal(t, uint64(1), got.Status)
	assert.Equal(t, uint64(42000), got.GasUsed)
	assert.Equal(t, uint64(10), got.BlockNumber)
	assert.Equal(t, "gm", got.Greeting)
	assert.NotEmpty(t, got.RawJSON)

	t.Run("upsert updates status", func(t *testing.T) {
		r.Status = types.ReceiptStatusFailed
		require.NoError(t, s.Upsert("intuition", "gm", r))

		got, err := s.Get("intuition", r.TxHash.Hex())
		require.NoError(t, err)
		assert.Equal(t, uint64(0), got.Status)
	})

	t.Run("missing receipt", func(t *testing.T) {
		_, err := s.Get("intuition", common.HexToHash("0xff").Hex())
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})
}

func TestReceiptStore_Validation(t *testing.T) {
	s := memStore(t)

	assert.Error(t, s.Upsert("", "gm", receipt("0x01", 1)))
	assert.Error(t, s.Upsert("intuition", "gm", nil))

	_, err := s.Get("", "")
	assert.Error(t, err)

	var nilStore *ReceiptStore
	assert.NoError(t, nilStore.Close())
	assert.Error(t, nilStore.Upsert("intuition", "gm", receipt("0x01", 1)))
}

func TestReceiptStore_List(t *testing.T) {
	s := memStore(t)
	base := time.Unix(1700000000, 0)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	require.NoError(t, s.Upsert("intuition", "first", receipt("0x01", 1)))
	require.NoError(t, s.Upsert("intuition", "second", receipt("0x02", 2)))
	require.NoError(t, s.Upsert("intuition-testnet", "other", receipt("0x03", 3)))

	list, err := s.List("intuition", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Greeting)
	assert.Equal(t, "first", list[1].Greeting)
	assert.Equal(t, base.Add(2*time.Second).UTC(), list[0].CreatedAt)

	limited, err := s.List("intuition", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
