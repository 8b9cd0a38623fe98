// Package sqlite implements store.MusicStore on SQLite using the pure Go
// modernc.org/sqlite driver, so binaries stay CGO-free.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hupe1980/tunedesk/store"
	_ "modernc.org/sqlite"
)

// catalogLimit caps every catalog lookup.
const catalogLimit = 5

// Store is a SQLite-backed music store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path. Foreign key enforcement is
// switched on for every pooled connection via the DSN.
func Open(path string) (*Store, error) {
	dsn := path
	if !strings.Contains(dsn, "_pragma") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	return &Store{db: db}, nil
}

// OpenInMemory opens a private in-memory database, pinned to a single
// connection so the pool cannot silently hand out a second, empty database.
func OpenInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open in-memory: %w", err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying handle for migrations and tests.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Bootstrap creates the schema if it does not exist yet. Table and column
// names follow the classic Chinook layout so ad-hoc reporting queries written
// against that dataset keep working.
func (s *Store) Bootstrap(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS Artist (
		ArtistId INTEGER PRIMARY KEY,
		Name     TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS Album (
		AlbumId  INTEGER PRIMARY KEY,
		Title    TEXT NOT NULL,
		ArtistId INTEGER NOT NULL REFERENCES Artist(ArtistId)
	);

	CREATE TABLE IF NOT EXISTS Genre (
		GenreId INTEGER PRIMARY KEY,
		Name    TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS Track (
		TrackId   INTEGER PRIMARY KEY,
		Name      TEXT NOT NULL,
		AlbumId   INTEGER REFERENCES Album(AlbumId),
		GenreId   INTEGER REFERENCES Genre(GenreId),
		UnitPrice REAL NOT NULL DEFAULT 0.99
	);
	CREATE INDEX IF NOT EXISTS IX_Track_GenreId ON Track(GenreId);

	CREATE TABLE IF NOT EXISTS Customer (
		CustomerId INTEGER PRIMARY KEY,
		FirstName  TEXT NOT NULL,
		LastName   TEXT NOT NULL,
		Country    TEXT,
		Email      TEXT
	);

	CREATE TABLE IF NOT EXISTS Invoice (
		InvoiceId   INTEGER PRIMARY KEY AUTOINCREMENT,
		CustomerId  INTEGER NOT NULL REFERENCES Customer(CustomerId),
		InvoiceDate DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		Total       REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS IX_Invoice_CustomerId ON Invoice(CustomerId);

	CREATE TABLE IF NOT EXISTS InvoiceLine (
		InvoiceLineId INTEGER PRIMARY KEY AUTOINCREMENT,
		InvoiceId     INTEGER NOT NULL REFERENCES Invoice(InvoiceId),
		TrackId       INTEGER NOT NULL REFERENCES Track(TrackId),
		UnitPrice     REAL NOT NULL,
		Quantity      INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS IX_InvoiceLine_InvoiceId ON InvoiceLine(InvoiceId);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite: bootstrap schema: %w", err)
	}

	return nil
}

// TracksByGenre returns up to catalogLimit tracks for the genre, ordered by
// track ID. Unknown genres yield an empty slice.
func (s *Store) TracksByGenre(ctx context.Context, genre string) ([]store.Track, error) {
	const q = `
		SELECT t.TrackId, t.Name
		FROM Track AS t
		JOIN Genre AS g ON t.GenreId = g.GenreId
		WHERE g.Name = ?
		ORDER BY t.TrackId
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, q, genre, catalogLimit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: tracks by genre: %w", err)
	}
	defer rows.Close()

	tracks := []store.Track{}
	for rows.Next() {
		var t store.Track
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("sqlite: scan track: %w", err)
		}
		tracks = append(tracks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: tracks by genre: %w", err)
	}

	return tracks, nil
}

// Query runs the statement as-is and collects the full result set with
// JSON-friendly values. Restricting the statement to read-only SQL is the
// caller's responsibility.
func (s *Store) Query(ctx context.Context, statement string) (*store.ResultSet, error) {
	rows, err := s.db.QueryContext(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sqlite: columns: %w", err)
	}

	rs := &store.ResultSet{Columns: columns, Rows: [][]any{}}

	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sqlite: scan row: %w", err)
		}

		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}

		rs.Rows = append(rs.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}

	return rs, nil
}

// CreateOrder validates the cart, then writes the invoice and its line items
// in one transaction.
func (s *Store) CreateOrder(ctx context.Context, customerID int, cart []store.LineItem) (*store.Order, error) {
	if err := store.ValidateCart(cart); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM Customer WHERE CustomerId = ?", customerID).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("customer %d: %w", customerID, store.ErrCustomerNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: check customer: %w", err)
	}

	total := store.CartTotal(cart)

	res, err := tx.ExecContext(ctx, "INSERT INTO Invoice (CustomerId, Total) VALUES (?, ?)", customerID, total)
	if err != nil {
		return nil, fmt.Errorf("sqlite: insert invoice: %w", err)
	}

	invoiceID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("sqlite: invoice id: %w", err)
	}

	for _, line := range cart {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO InvoiceLine (InvoiceId, TrackId, UnitPrice, Quantity) VALUES (?, ?, ?, ?)",
			invoiceID, line.TrackID, line.UnitPrice, line.Quantity,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite: insert invoice line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: commit order: %w", err)
	}

	return &store.Order{
		InvoiceID:  invoiceID,
		CustomerID: customerID,
		Total:      total,
		Lines:      cart,
	}, nil
}

var _ store.MusicStore = (*Store)(nil)
