// Package woasspanner is a strongly-consistent remote WOAS backend
// (spec.md §4.1, §6) backed by Cloud Spanner. A cell's primary key is
// (space_id, address); Spanner's Insert mutation fails with
// codes.AlreadyExists when that key already exists, which is exactly the
// "claim once" semantics spec.md §4.1 asks for — no separate conditional
// expression needed. Grounded on internal/reputation/spanner.go's
// ReadRow/ReadWriteTransaction idiom from the teacher repo.
//
// Expected schema:
//
//	CREATE TABLE WoasCells (
//	    SpaceID STRING(MAX) NOT NULL,
//	    Address INT64 NOT NULL,
//	    Val     BYTES(MAX) NOT NULL,
//	) PRIMARY KEY (SpaceID, Address);
package woasspanner

import (
	"context"
	"fmt"

	"cloud.google.com/go/spanner"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"

	"github.com/ocx/agentbus/internal/woas"
)

const table = "WoasCells"

// Store is a Spanner-backed WOAS implementation.
type Store struct {
	client *spanner.Client
}

// New wraps an existing Spanner client pointed at a database containing
// the WoasCells table described above.
func New(client *spanner.Client) *Store {
	return &Store{client: client}
}

// Open creates a Spanner client for projects/<project>/instances/<instance>/databases/<db>.
func Open(ctx context.Context, project, instance, db string) (*Store, error) {
	dbPath := fmt.Sprintf("projects/%s/instances/%s/databases/%s", project, instance, db)
	client, err := spanner.NewClient(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("woasspanner: spanner.NewClient: %w", err)
	}
	return New(client), nil
}

func (s *Store) Write(ctx context.Context, space string, addr uint64, value []byte) error {
	mutation := spanner.Insert(table,
		[]string{"SpaceID", "Address", "Val"},
		[]any{space, int64(addr), value},
	)
	_, err := s.client.Apply(ctx, []*spanner.Mutation{mutation})
	if err == nil {
		return nil
	}
	if spanner.ErrCode(err) == codes.AlreadyExists {
		return &woas.ErrAddressAlreadyExists{Addr: addr}
	}
	return &woas.ErrBackendUnavailable{Msg: "spanner Insert", Err: err}
}

func (s *Store) Read(ctx context.Context, space string, addr uint64) ([]byte, bool, error) {
	txn := s.client.Single()
	defer txn.Close()

	row, err := txn.ReadRow(ctx, table, spanner.Key{space, int64(addr)}, []string{"Val"})
	if err != nil {
		if spanner.ErrCode(err) == codes.NotFound {
			return nil, false, nil
		}
		return nil, false, &woas.ErrBackendUnavailable{Msg: "spanner ReadRow", Err: err}
	}
	var val []byte
	if err := row.Columns(&val); err != nil {
		return nil, false, &woas.ErrBackendUnavailable{Msg: "spanner decode row", Err: err}
	}
	return val, true, nil
}

// Tail scans for the maximum claimed address in space and returns one
// past it, under a bounded staleness read for throughput; it is
// best-effort, consistent with spec.md §4.1's non-linearizable contract.
func (s *Store) Tail(ctx context.Context, space string) (uint64, error) {
	txn := s.client.Single().WithTimestampBound(spanner.MaxStaleness(0))
	defer txn.Close()

	stmt := spanner.Statement{
		SQL:    "SELECT MAX(Address) AS MaxAddr FROM " + table + " WHERE SpaceID = @space",
		Params: map[string]any{"space": space},
	}
	iter := txn.Query(ctx, stmt)
	defer iter.Stop()

	row, err := iter.Next()
	if err == iterator.Done {
		return 0, nil
	}
	if err != nil {
		return 0, &woas.ErrBackendUnavailable{Msg: "spanner Query", Err: err}
	}
	var maxAddr spanner.NullInt64
	if err := row.Columns(&maxAddr); err != nil {
		return 0, &woas.ErrBackendUnavailable{Msg: "spanner decode tail", Err: err}
	}
	if !maxAddr.Valid {
		return 0, nil
	}
	return uint64(maxAddr.Int64) + 1, nil
}
