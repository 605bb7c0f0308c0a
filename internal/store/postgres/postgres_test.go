package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/alfredjeanlab/graphsync/internal/model"
	"github.com/alfredjeanlab/graphsync/internal/store"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

var entityRowColumns = []string{"key", "type", "class", "properties", "hash"}

var relationshipRowColumns = []string{"key", "type", "class", "from_key", "to_key", "properties", "hash"}

func TestPropertiesHelpers(t *testing.T) {
	if b, err := propertiesBytes(nil); err != nil || b != nil {
		t.Errorf("propertiesBytes(nil) = %v, %v", b, err)
	}
	b, err := propertiesBytes(map[string]any{"name": "x"})
	if err != nil || string(b) != `{"name":"x"}` {
		t.Errorf("propertiesBytes = %s, %v", b, err)
	}

	var props map[string]any
	if err := decodeProperties(nil, &props); err != nil || props != nil {
		t.Errorf("decodeProperties(nil) = %v, %v", props, err)
	}
	if err := decodeProperties([]byte(`{"a":1}`), &props); err != nil || props["a"] != float64(1) {
		t.Errorf("decodeProperties = %v, %v", props, err)
	}

	if nullString("").Valid {
		t.Error("nullString(\"\") should be invalid")
	}
	if ns := nullString("c1"); !ns.Valid || ns.String != "c1" {
		t.Errorf("nullString(\"c1\") = %v", ns)
	}
}

func TestQueryUpsertEntity(t *testing.T) {
	db, mock := newMockDB(t)
	e := &model.Entity{Key: "jira_issue:1", Type: model.EntityTypeIssue, Class: model.ClassIssue, Properties: map[string]any{"name": "AAA-1"}}

	mock.ExpectExec("INSERT INTO graph_entities").
		WithArgs("jira_issue:1", "jira_issue", "Record", []byte(`{"name":"AAA-1"}`), e.Hash()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryUpsertEntity(context.Background(), db, e); err != nil {
		t.Fatalf("queryUpsertEntity: %v", err)
	}
}

func TestQueryGetEntity(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("SELECT .+ FROM graph_entities WHERE key = \\$1").WithArgs("jira_issue:1").
		WillReturnRows(sqlmock.NewRows(entityRowColumns).
			AddRow("jira_issue:1", "jira_issue", "Record", []byte(`{"name":"AAA-1"}`), "h1"))

	e, hash, err := queryGetEntity(context.Background(), db, "jira_issue:1")
	if err != nil {
		t.Fatalf("queryGetEntity: %v", err)
	}
	if e.Key != "jira_issue:1" || e.Properties["name"] != "AAA-1" || hash != "h1" {
		t.Errorf("got %+v hash=%q", e, hash)
	}
}

func TestQueryGetEntity_NotFound(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("SELECT .+ FROM graph_entities WHERE key = \\$1").WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(entityRowColumns))

	_, _, err := queryGetEntity(context.Background(), db, "missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestQueryDeleteEntity_RemovesEdges(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("DELETE FROM graph_relationships WHERE from_key = \\$1 OR to_key = \\$1").
		WithArgs("jira_issue:1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM graph_entities WHERE key = \\$1").
		WithArgs("jira_issue:1").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := queryDeleteEntity(context.Background(), db, "jira_issue:1"); err != nil {
		t.Fatalf("queryDeleteEntity on missing key should succeed: %v", err)
	}
}

func TestQueryListEntities(t *testing.T) {
	for _, tc := range []struct {
		name       string
		entityType string
		query      string
	}{
		{"All", "", "SELECT .+ FROM graph_entities ORDER BY key"},
		{"ByType", "jira_issue", "SELECT .+ FROM graph_entities WHERE type = \\$1 ORDER BY key"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			rows := sqlmock.NewRows(entityRowColumns).
				AddRow("jira_issue:1", "jira_issue", "Record", nil, "h1").
				AddRow("jira_issue:2", "jira_issue", "Record", []byte(`{"a":true}`), "h2")
			q := mock.ExpectQuery(tc.query)
			if tc.entityType != "" {
				q = q.WithArgs(tc.entityType)
			}
			q.WillReturnRows(rows)

			got, err := queryListEntities(context.Background(), db, tc.entityType)
			if err != nil {
				t.Fatalf("queryListEntities: %v", err)
			}
			if len(got) != 2 || got[0].Properties != nil || got[1].Properties["a"] != true {
				t.Errorf("unexpected entities: %+v", got)
			}
		})
	}
}

func TestQueryUpsertAndListRelationships(t *testing.T) {
	db, mock := newMockDB(t)
	r := &model.Relationship{
		Key: "p|HAS|i", Type: "jira_project_has_jira_issue", Class: model.RelHas,
		FromKey: "p", ToKey: "i",
	}

	mock.ExpectExec("INSERT INTO graph_relationships").
		WithArgs("p|HAS|i", "jira_project_has_jira_issue", "HAS", "p", "i", sqlmock.AnyArg(), r.Hash()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT .+ FROM graph_relationships WHERE type = \\$1").
		WithArgs("jira_project_has_jira_issue").
		WillReturnRows(sqlmock.NewRows(relationshipRowColumns).
			AddRow("p|HAS|i", "jira_project_has_jira_issue", "HAS", "p", "i", nil, r.Hash()))

	ctx := context.Background()
	if err := queryUpsertRelationship(ctx, db, r); err != nil {
		t.Fatalf("queryUpsertRelationship: %v", err)
	}
	got, err := queryListRelationships(ctx, db, "jira_project_has_jira_issue")
	if err != nil {
		t.Fatalf("queryListRelationships: %v", err)
	}
	if len(got) != 1 || got[0].FromKey != "p" || got[0].ToKey != "i" {
		t.Errorf("unexpected relationships: %+v", got)
	}
}

func TestRunInTransaction(t *testing.T) {
	t.Run("Commit", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewWithDB(db)

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM graph_relationships WHERE key = \\$1").WithArgs("r1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
			return tx.DeleteRelationship(context.Background(), "r1")
		})
		if err != nil {
			t.Fatalf("RunInTransaction: %v", err)
		}
	})

	t.Run("Rollback", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewWithDB(db)

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
	})
}

func TestCacheGetState(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT state, updated_at FROM cache_states WHERE collection = \\$1").WithArgs("issues").
		WillReturnRows(sqlmock.NewRows([]string{"state", "updated_at"}).AddRow("completed", now))
	mock.ExpectQuery("SELECT state, updated_at FROM cache_states WHERE collection = \\$1").WithArgs("teams").
		WillReturnRows(sqlmock.NewRows([]string{"state", "updated_at"}))

	st, err := s.GetState(context.Background(), "issues")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if !st.ResourceFetchCompleted() || st.Collection != "issues" {
		t.Errorf("unexpected state: %+v", st)
	}

	st, err = s.GetState(context.Background(), "teams")
	if err != nil {
		t.Fatalf("GetState(teams): %v", err)
	}
	if st != nil {
		t.Errorf("expected nil state for unknown collection, got %+v", st)
	}
}

func TestCacheSetState(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)

	mock.ExpectExec("INSERT INTO cache_states").WithArgs("issues", "fetching").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.SetState(context.Background(), "issues", model.FetchFetching); err != nil {
		t.Fatalf("SetState: %v", err)
	}
}

func TestCachePut(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO cache_entries").
		WithArgs("issues", "1", []byte(`{"id":"1"}`), now, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO cache_entries").
		WithArgs("issues", "2", []byte(`{"id":"2"}`), now, sqlmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.Put(context.Background(), "issues",
		model.CacheEntry{Key: "1", Data: json.RawMessage(`{"id":"1"}`), FetchedAt: now},
		model.CacheEntry{Key: "2", Data: json.RawMessage(`{"id":"2"}`), FetchedAt: now, Cursor: "50"},
	)
	if err == nil {
		t.Fatal("expected error from failed insert")
	}

	// Empty put does not touch the database.
	if err := s.Put(context.Background(), "issues"); err != nil {
		t.Fatalf("empty Put: %v", err)
	}
}

func TestCacheForEach(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT key, data, fetched_at, cursor FROM cache_entries WHERE collection = \\$1 ORDER BY id").
		WithArgs("issues").
		WillReturnRows(sqlmock.NewRows([]string{"key", "data", "fetched_at", "cursor"}).
			AddRow("1", []byte(`{"id":"1"}`), now, nil).
			AddRow("2", []byte(`{"id":"2"}`), now, "50"))

	var keys []string
	err := s.ForEach(context.Background(), "issues", func(e model.CacheEntry) error {
		keys = append(keys, e.Key)
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	if len(keys) != 2 || keys[0] != "1" || keys[1] != "2" {
		t.Errorf("visited %v, want [1 2]", keys)
	}
}

func TestCacheForEach_VisitorErrorStops(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT key, data, fetched_at, cursor FROM cache_entries").
		WithArgs("issues").
		WillReturnRows(sqlmock.NewRows([]string{"key", "data", "fetched_at", "cursor"}).
			AddRow("1", []byte(`{}`), now, nil).
			AddRow("2", []byte(`{}`), now, nil))

	stop := errors.New("stop")
	calls := 0
	err := s.ForEach(context.Background(), "issues", func(model.CacheEntry) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected stop error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("visitor called %d times, want 1", calls)
	}
}

func TestCacheClear(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM cache_entries WHERE collection = \\$1").WithArgs("issues").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM cache_states WHERE collection = \\$1").WithArgs("issues").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := s.Clear(context.Background(), "issues"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
}

func TestPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	s := NewWithDB(db)

	mock.ExpectPing()
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
