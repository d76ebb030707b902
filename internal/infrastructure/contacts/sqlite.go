package contacts

import (
	"context"
	"database/sql"
	"fmt"

	// SQLite driver, registered as "sqlite3".
	_ "github.com/mattn/go-sqlite3"

	"github.com/mshogin/assistant/internal/domain/models"
)

// SQLiteStore is the local contact cache. It implements the
// ContactSource boundary and is the write target of the synchronizer,
// so lookups keep working when the remote source is unreachable.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (and if needed initializes) the cache database.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open contacts database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS contacts (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		name         TEXT NOT NULL,
		email        TEXT,
		phone        TEXT,
		organization TEXT,
		address      TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_contacts_name ON contacts (name COLLATE NOCASE);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize contacts schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// FindByName returns the best match for a name: an exact
// case-insensitive match first, then a substring match.
func (s *SQLiteStore) FindByName(ctx context.Context, name string) (*models.ContactRef, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, email, phone, organization, address
		FROM contacts WHERE name = ? COLLATE NOCASE LIMIT 1`, name)

	contact, err := scanContact(row)
	if err == nil {
		return contact, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	row = s.db.QueryRowContext(ctx, `
		SELECT name, email, phone, organization, address
		FROM contacts WHERE name LIKE ? COLLATE NOCASE
		ORDER BY name LIMIT 1`, "%"+name+"%")

	contact, err = scanContact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return contact, nil
}

// Search returns every contact whose name contains the query.
func (s *SQLiteStore) Search(ctx context.Context, query string) ([]models.ContactRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, email, phone, organization, address
		FROM contacts WHERE name LIKE ? COLLATE NOCASE
		ORDER BY name LIMIT 25`, "%"+query+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []models.ContactRef
	for rows.Next() {
		var c models.ContactRef
		var email, phone, organization, address sql.NullString
		if err := rows.Scan(&c.Name, &email, &phone, &organization, &address); err != nil {
			return nil, err
		}
		c.Email = email.String
		c.Phone = phone.String
		c.Organization = organization.String
		c.Address = address.String
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// Replace atomically swaps the cache contents for the given set.
func (s *SQLiteStore) Replace(ctx context.Context, contacts []models.ContactRef) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM contacts`); err != nil {
		return err
	}
	for _, c := range contacts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO contacts (name, email, phone, organization, address)
			VALUES (?, ?, ?, ?, ?)`,
			c.Name, c.Email, c.Phone, c.Organization, c.Address); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Upsert inserts contacts, replacing rows with the same name.
func (s *SQLiteStore) Upsert(ctx context.Context, contacts []models.ContactRef) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range contacts {
		if _, err := tx.ExecContext(ctx, `DELETE FROM contacts WHERE name = ? COLLATE NOCASE`, c.Name); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO contacts (name, email, phone, organization, address)
			VALUES (?, ?, ?, ?, ?)`,
			c.Name, c.Email, c.Phone, c.Organization, c.Address); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Count returns the number of cached contacts.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanContact(row rowScanner) (*models.ContactRef, error) {
	var c models.ContactRef
	var email, phone, organization, address sql.NullString
	if err := row.Scan(&c.Name, &email, &phone, &organization, &address); err != nil {
		return nil, err
	}
	c.Email = email.String
	c.Phone = phone.String
	c.Organization = organization.String
	c.Address = address.String
	return &c, nil
}
