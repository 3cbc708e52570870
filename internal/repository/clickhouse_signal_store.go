package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"CourtArb/internal/domain/models"
	domrepo "CourtArb/internal/domain/repository"
	pkgch "CourtArb/pkg/clickhouse"
	applogger "CourtArb/pkg/logger"
)

const (
	DefaultSignalTable = "signal_history"
	// an unchanged signal is written again after this long.
	seenRetention = 30 * time.Minute
	insertChunk   = 1000
)

// SignalHistorySchema returns the DDL for the history table.
func SignalHistorySchema(table string) []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            id          String,
            event_id    String,
            side        LowCardinality(String),
            direction   LowCardinality(String),
            confidence  Float64,
            edge        Float64,
            reason      String,
            computed_at DateTime64(3, 'UTC'),
            inserted_at DateTime64(3, 'UTC') DEFAULT now64(3)
        ) ENGINE = ReplacingMergeTree
        PARTITION BY toYYYYMMDD(computed_at)
        ORDER BY (event_id, computed_at, id)
    `, table)}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	PingContext(ctx context.Context) error
}

// ClickHouseSignalStore appends emitted signals to a history table. It also
// acts as a snapshot hook so the aggregation loop feeds it directly.
type ClickHouseSignalStore struct {
	db    execer
	table string
	l     *applogger.Logger
	now   func() time.Time

	mu   sync.Mutex
	seen map[string]written
}

// written is the last row stored for one event, side and direction.
type written struct {
	fingerprint string
	at          time.Time
}

func signalKey(sig models.Signal) string {
	return sig.EventID + "|" + string(sig.Side) + "|" + string(sig.Direction)
}

// fingerprint changes only when the signal's substance does. Ids are not
// used since they change with every update of the event.
func fingerprint(sig models.Signal) string {
	return fmt.Sprintf("%.4f|%.4f", sig.Edge, sig.Confidence)
}

var (
	_ domrepo.SignalStorage = (*ClickHouseSignalStore)(nil)
	_ domrepo.SnapshotHook  = (*ClickHouseSignalStore)(nil)
)

func NewClickHouseSignalStore(ch *pkgch.Client, table string, l *applogger.Logger) *ClickHouseSignalStore {
	return newSignalStore(ch.DB(), table, l)
}

func newSignalStore(db execer, table string, l *applogger.Logger) *ClickHouseSignalStore {
	if table == "" {
		table = DefaultSignalTable
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &ClickHouseSignalStore{
		db:    db,
		table: table,
		l:     l,
		now:   time.Now,
		seen:  make(map[string]written),
	}
}

func (s *ClickHouseSignalStore) Name() string { return "clickhouse" }

func (s *ClickHouseSignalStore) OnSnapshot(ctx context.Context, events []models.UnifiedEvent) error {
	var all []models.Signal
	for _, ev := range events {
		all = append(all, ev.Signals...)
	}
	return s.StoreSignals(ctx, all)
}

// StoreSignals inserts signals that are new for their event, side and
// direction, or whose edge or confidence moved since the last row.
func (s *ClickHouseSignalStore) StoreSignals(ctx context.Context, signals []models.Signal) error {
	fresh := s.unseen(signals)
	if len(fresh) == 0 {
		return nil
	}

	for start := 0; start < len(fresh); start += insertChunk {
		end := min(start+insertChunk, len(fresh))
		chunk := fresh[start:end]

		values := make([]string, 0, len(chunk))
		args := make([]interface{}, 0, len(chunk)*8)
		for _, sig := range chunk {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				sig.ID,
				sig.EventID,
				string(sig.Side),
				string(sig.Direction),
				sig.Confidence,
				sig.Edge,
				sig.Reason,
				sig.ComputedAt.UTC(),
			)
		}
		q := fmt.Sprintf("INSERT INTO %s (id, event_id, side, direction, confidence, edge, reason, computed_at) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.forget(fresh[start:])
			s.l.Error("clickhouse insert signals error",
				applogger.String("table", s.table),
				applogger.Int("rows", len(chunk)),
				applogger.Error(err),
			)
			return fmt.Errorf("insert signals: %w", err)
		}
	}
	return nil
}

// unseen filters out signals matching the last stored row and marks the
// rest as stored.
func (s *ClickHouseSignalStore) unseen(signals []models.Signal) []models.Signal {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, w := range s.seen {
		if now.Sub(w.at) > seenRetention {
			delete(s.seen, key)
		}
	}
	out := make([]models.Signal, 0, len(signals))
	for _, sig := range signals {
		if sig.ID == "" || sig.EventID == "" {
			continue
		}
		key, fp := signalKey(sig), fingerprint(sig)
		if w, ok := s.seen[key]; ok && w.fingerprint == fp {
			continue
		}
		s.seen[key] = written{fingerprint: fp, at: now}
		out = append(out, sig)
	}
	return out
}

func (s *ClickHouseSignalStore) forget(signals []models.Signal) {
	s.mu.Lock()
	for _, sig := range signals {
		delete(s.seen, signalKey(sig))
	}
	s.mu.Unlock()
}

func (s *ClickHouseSignalStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the connection pool belongs to pkg/clickhouse.
func (s *ClickHouseSignalStore) Close() error {
	return nil
}
