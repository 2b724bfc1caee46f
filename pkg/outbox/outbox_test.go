package outbox

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execDB struct {
	err  error
	sqls []string
	args [][]any
}

func (d *execDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.sqls = append(d.sqls, sql)
	d.args = append(d.args, args)
	return pgconn.CommandTag{}, d.err
}

func (d *execDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func TestInsertMarshalsPayload(t *testing.T) {
	db := &execDB{}
	require.NoError(t, NewStore(db).Insert(context.Background(), "e-1", "shopctl.runs", "run-1", map[string]any{"a": 1}))

	require.Len(t, db.args, 1)
	assert.Equal(t, "e-1", db.args[0][0])
	assert.JSONEq(t, `{"a":1}`, string(db.args[0][3].([]byte)))
}

func TestInsertIgnoresDuplicateEvent(t *testing.T) {
	db := &execDB{err: &pgconn.PgError{Code: "23505"}}
	assert.NoError(t, NewStore(db).Insert(context.Background(), "e-1", "t", "k", map[string]any{}))

	db.err = errors.New("disk full")
	assert.Error(t, NewStore(db).Insert(context.Background(), "e-1", "t", "k", map[string]any{}))
}

func TestEnsureSchema(t *testing.T) {
	db := &execDB{}
	require.NoError(t, NewStore(db).EnsureSchema(context.Background()))
	assert.Contains(t, db.sqls[0], "shopctl_outbox")
}

type memPending struct {
	recs []Record
	sent map[int64]bool
}

func (m *memPending) FetchPending(_ context.Context, limit int) ([]Record, error) {
	var out []Record
	for _, r := range m.recs {
		if !m.sent[r.ID] && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memPending) MarkSent(_ context.Context, id int64) error {
	m.sent[id] = true
	return nil
}

func TestRelayDrainsInBatches(t *testing.T) {
	store := &memPending{sent: map[int64]bool{}}
	for i := int64(1); i <= 5; i++ {
		store.recs = append(store.recs, Record{ID: i, EventID: "e"})
	}
	var order []int64
	n, err := Relay(context.Background(), store, 2, func(_ context.Context, r Record) error {
		order = append(order, r.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, order)
}

func TestRelayStopsOnPublishFailure(t *testing.T) {
	store := &memPending{sent: map[int64]bool{}, recs: []Record{{ID: 1}, {ID: 2}, {ID: 3}}}
	n, err := Relay(context.Background(), store, 10, func(_ context.Context, r Record) error {
		if r.ID == 2 {
			return errors.New("broker down")
		}
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, store.sent[1])
	assert.False(t, store.sent[2])
}
