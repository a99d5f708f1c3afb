// Snapshot store: an sqlite cache of named snapshots so repeated what-if
// runs don't refetch from a node.

package input

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/staketools/offline-election-go/core"
	"github.com/staketools/offline-election-go/core/election"
)

func dbGetVersion(db *sql.DB) (int, error) {
	row := db.QueryRow("SELECT version FROM electiond_version ORDER BY version DESC LIMIT 1")
	if err := row.Err(); err != nil {
		return -1, fmt.Errorf("error checking database version: %s", err)
	}

	databaseVersion := -1
	row.Scan(&databaseVersion)

	return databaseVersion, nil
}

func dbMigrate(db *sql.DB, migrationIndex int, migrateFn func(tx *sql.Tx) error) error {
	logger := core.NewLogger("snapshot-store", "db")

	version, err := dbGetVersion(db)
	if err != nil {
		return err
	}

	// Skip migration if the database is already at the target version.
	if migrationIndex <= version {
		return nil
	}

	logger.Printf("Running migration: %d\n", migrationIndex)
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := migrateFn(tx); err != nil {
		tx.Rollback()
		return err
	}

	_, err = tx.Exec("insert into electiond_version (version) values (?)", migrationIndex)
	if err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

type SnapshotStore struct {
	db *sql.DB
}

// OpenSnapshotStore opens (and migrates) the snapshot database at dbPath.
// Use ":memory:" for an ephemeral store.
func OpenSnapshotStore(dbPath string) (*SnapshotStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec("create table if not exists electiond_version (version int)")
	if err != nil {
		return nil, fmt.Errorf("error checking database version: %s", err)
	}

	err = dbMigrate(db, 0, func(tx *sql.Tx) error {
		_, err := tx.Exec(`create table snapshots (
			name TEXT PRIMARY KEY,
			block INTEGER,
			created_at INTEGER,
			body TEXT
		)`)
		if err != nil {
			return fmt.Errorf("error creating 'snapshots' table: %s", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &SnapshotStore{db: db}, nil
}

func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// Save inserts or replaces a named snapshot. block may be nil when the
// snapshot has no chain reference point.
func (s *SnapshotStore) Save(name string, block *uint64, data *election.ElectionData) error {
	body, err := json.Marshal(SnapshotDocument(data))
	if err != nil {
		return err
	}

	var blockVal interface{}
	if block != nil {
		blockVal = int64(*block)
	}
	_, err = s.db.Exec(
		"insert or replace into snapshots (name, block, created_at, body) values (?, ?, ?, ?)",
		name, blockVal, time.Now().Unix(), string(body),
	)
	return err
}

func (s *SnapshotStore) Load(name string) (*election.ElectionData, error) {
	row := s.db.QueryRow("select body from snapshots where name = ?", name)

	var body string
	if err := row.Scan(&body); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no snapshot named %q", name)
		}
		return nil, err
	}
	return ParseSnapshot([]byte(body))
}

type SnapshotInfo struct {
	Name      string
	Block     *uint64
	CreatedAt time.Time
}

func (s *SnapshotStore) List() ([]SnapshotInfo, error) {
	rows, err := s.db.Query("select name, block, created_at from snapshots order by name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		var block sql.NullInt64
		var createdAt int64
		if err := rows.Scan(&info.Name, &block, &createdAt); err != nil {
			return nil, err
		}
		if block.Valid {
			b := uint64(block.Int64)
			info.Block = &b
		}
		info.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, info)
	}
	return out, rows.Err()
}
