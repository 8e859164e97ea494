// Package recording stores sweep results in a SQLite database.
package recording

import (
	"database/sql"
	"fmt"
	"os"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/cachesim/benchmarks"
	"github.com/sarchlab/cachesim/cache"
)

// SQLiteRecorder buffers results and writes them to a SQLite database in
// batches. Every row carries the ID of the recorder's run.
type SQLiteRecorder struct {
	*sql.DB
	statement *sql.Stmt

	runID     string
	dbName    string
	pending   []benchmarks.Result
	batchSize int
}

// NewSQLiteRecorder creates the database file path+".sqlite3". An empty
// path picks a name from the run ID. The file must not exist yet. Pending
// results are flushed when the program exits through atexit.
func NewSQLiteRecorder(path string) (*SQLiteRecorder, error) {
	r := &SQLiteRecorder{
		runID:     xid.New().String(),
		dbName:    path,
		batchSize: 1000,
	}

	if err := r.createDatabase(); err != nil {
		return nil, err
	}

	if err := r.createTable(); err != nil {
		return nil, err
	}

	if err := r.prepareStatement(); err != nil {
		return nil, err
	}

	atexit.Register(func() { _ = r.Flush() })

	return r, nil
}

// RunID returns the ID attached to every row this recorder writes.
func (r *SQLiteRecorder) RunID() string {
	return r.runID
}

// FileName returns the database file.
func (r *SQLiteRecorder) FileName() string {
	return r.dbName + ".sqlite3"
}

// Record buffers a result, writing the batch when it is full.
func (r *SQLiteRecorder) Record(result benchmarks.Result) error {
	r.pending = append(r.pending, result)
	if len(r.pending) >= r.batchSize {
		return r.Flush()
	}

	return nil
}

// Flush writes all buffered results in one transaction.
func (r *SQLiteRecorder) Flush() error {
	if len(r.pending) == 0 {
		return nil
	}

	tx, err := r.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt := tx.Stmt(r.statement)
	for _, res := range r.pending {
		c := res.Config
		_, err := stmt.Exec(
			r.runID,
			res.Workload,
			res.Variant,
			c.Split,
			c.UnifiedSize,
			c.InstructionSize,
			c.DataSize,
			c.Associativity,
			c.BlockSize,
			c.WriteBack,
			c.WriteAllocate,
			res.Events,
			res.Stats.Instruction.Accesses,
			res.Stats.Instruction.Misses,
			res.Stats.Instruction.Replacements,
			res.Stats.Instruction.DemandFetches,
			res.Stats.Instruction.CopiesBack,
			res.Stats.Data.Accesses,
			res.Stats.Data.Misses,
			res.Stats.Data.Replacements,
			res.Stats.Data.DemandFetches,
			res.Stats.Data.CopiesBack,
			res.WallTime.Nanoseconds(),
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert result %s/%s: %w",
				res.Workload, res.Variant, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}

	r.pending = nil

	return nil
}

// Close flushes pending results and closes the database.
func (r *SQLiteRecorder) Close() error {
	if err := r.Flush(); err != nil {
		return err
	}

	return r.DB.Close()
}

func (r *SQLiteRecorder) createDatabase() error {
	if r.dbName == "" {
		r.dbName = "cachesim_" + r.runID
	}

	filename := r.FileName()
	if _, err := os.Stat(filename); err == nil {
		return fmt.Errorf("file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filename, err)
	}

	r.DB = db

	return nil
}

func (r *SQLiteRecorder) createTable() error {
	_, err := r.Exec(`
		create table result
		(
			run_id          varchar(20)  not null,
			workload        varchar(100) not null,
			variant         varchar(100) not null,
			split           boolean      not null,
			unified_size    integer      not null,
			instruction_size integer     not null,
			data_size       integer      not null,
			associativity   integer      not null,
			block_size      integer      not null,
			write_back      boolean      not null,
			write_allocate  boolean      not null,
			events          integer      not null,
			i_accesses      integer      not null,
			i_misses        integer      not null,
			i_replacements  integer      not null,
			i_demand_fetch  integer      not null,
			i_copies_back   integer      not null,
			d_accesses      integer      not null,
			d_misses        integer      not null,
			d_replacements  integer      not null,
			d_demand_fetch  integer      not null,
			d_copies_back   integer      not null,
			wall_time_ns    integer      not null
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create result table: %w", err)
	}

	_, err = r.Exec(`create index result_workload_index on result (workload);`)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

func (r *SQLiteRecorder) prepareStatement() error {
	stmt, err := r.Prepare(`INSERT INTO result VALUES
		(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}

	r.statement = stmt

	return nil
}

// Row is one recorded result as read back from the database.
type Row struct {
	RunID    string
	Workload string
	Variant  string
	Config   cache.Config
	Events   int
	Stats    cache.Report
}

// SQLiteReader reads results written by a SQLiteRecorder.
type SQLiteReader struct {
	*sql.DB
}

// OpenSQLite opens an existing result database.
func OpenSQLite(filename string) (*SQLiteReader, error) {
	if _, err := os.Stat(filename); err != nil {
		return nil, fmt.Errorf("failed to open result database: %w", err)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open result database: %w", err)
	}

	return &SQLiteReader{DB: db}, nil
}

// ListResults returns the rows of one workload, or of every workload if
// workload is empty, in insertion order.
func (r *SQLiteReader) ListResults(workload string) ([]Row, error) {
	query := `SELECT run_id, workload, variant, split, unified_size,
		instruction_size, data_size, associativity, block_size, write_back,
		write_allocate, events,
		i_accesses, i_misses, i_replacements, i_demand_fetch, i_copies_back,
		d_accesses, d_misses, d_replacements, d_demand_fetch, d_copies_back
		FROM result`

	var args []interface{}
	if workload != "" {
		query += ` WHERE workload = ?`
		args = append(args, workload)
	}

	query += ` ORDER BY rowid`

	rows, err := r.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Row
	for rows.Next() {
		var row Row

		err := rows.Scan(
			&row.RunID,
			&row.Workload,
			&row.Variant,
			&row.Config.Split,
			&row.Config.UnifiedSize,
			&row.Config.InstructionSize,
			&row.Config.DataSize,
			&row.Config.Associativity,
			&row.Config.BlockSize,
			&row.Config.WriteBack,
			&row.Config.WriteAllocate,
			&row.Events,
			&row.Stats.Instruction.Accesses,
			&row.Stats.Instruction.Misses,
			&row.Stats.Instruction.Replacements,
			&row.Stats.Instruction.DemandFetches,
			&row.Stats.Instruction.CopiesBack,
			&row.Stats.Data.Accesses,
			&row.Stats.Data.Misses,
			&row.Stats.Data.Replacements,
			&row.Stats.Data.DemandFetches,
			&row.Stats.Data.CopiesBack,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}

		out = append(out, row)
	}

	return out, rows.Err()
}
