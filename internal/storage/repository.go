package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"saldo/internal/core"
	"saldo/internal/ledger"
)

// SQLite caps bound variables per statement; keep IN lists well below it.
const maxInListSize = 500

var _ ledger.Store = (*Repository)(nil)

// Repository persists categories and transactions in a relational database.
type Repository struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	repo, err := open(DialectSQLite, dsn)
	if err != nil {
		return nil, err
	}
	// Writers serialize on the file lock anyway; one connection avoids SQLITE_BUSY.
	repo.db.SetMaxOpenConns(1)
	return repo, nil
}

func NewPostgresRepository(databaseURL string) (*Repository, error) {
	return open(DialectPostgres, databaseURL)
}

func open(d Dialect, dsn string) (*Repository, error) {
	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(d, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, dialect: d}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) FindCategoryByTitle(ctx context.Context, title string) (core.Category, bool, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx,
		r.dialect.rebind(`SELECT id, title, created_at FROM categories WHERE title = ?`), title).
		Scan(&c.ID, &c.Title, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, false, nil
	}
	if err != nil {
		return core.Category{}, false, fmt.Errorf("find category by title: %w", err)
	}
	return c, true, nil
}

func (r *Repository) FindCategoriesByTitles(ctx context.Context, titles []string) ([]core.Category, error) {
	titles = distinct(titles)
	var out []core.Category
	for start := 0; start < len(titles); start += maxInListSize {
		end := min(start+maxInListSize, len(titles))
		chunk := titles[start:end]

		args := make([]any, len(chunk))
		for i, t := range chunk {
			args[i] = t
		}
		query := r.dialect.rebind(`SELECT id, title, created_at FROM categories WHERE title IN (` + placeholders(len(chunk)) + `)`)

		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("find categories by titles: %w", err)
		}
		for rows.Next() {
			var c core.Category
			if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan category: %w", err)
			}
			out = append(out, c)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterate categories: %w", err)
		}
		rows.Close()
	}
	return out, nil
}

func (r *Repository) CreateCategory(ctx context.Context, title string) (core.Category, error) {
	cats, err := r.CreateCategories(ctx, []string{title})
	if err != nil {
		return core.Category{}, err
	}
	return cats[0], nil
}

// CreateCategories inserts every title inside a single database transaction.
func (r *Repository) CreateCategories(ctx context.Context, titles []string) ([]core.Category, error) {
	out := make([]core.Category, 0, len(titles))
	for _, t := range titles {
		c := core.Category{ID: uuid.NewString(), Title: t, CreatedAt: time.Now().UTC()}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		out = append(out, c)
	}

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			r.dialect.rebind(`INSERT INTO categories (id, title, created_at) VALUES (?, ?, ?)`))
		if err != nil {
			return fmt.Errorf("prepare insert category: %w", err)
		}
		defer stmt.Close()

		for _, c := range out {
			if _, err := stmt.ExecContext(ctx, c.ID, c.Title, c.CreatedAt); err != nil {
				if r.dialect.isUniqueViolation(err) {
					return fmt.Errorf("%w: %q", core.ErrCategoryExists, c.Title)
				}
				return fmt.Errorf("insert category %q: %w", c.Title, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Categories saved", "count", len(out), "dialect", r.dialect)
	return out, nil
}

func (r *Repository) InsertTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	out, err := r.InsertTransactions(ctx, []core.Transaction{tx})
	if err != nil {
		return core.Transaction{}, err
	}
	return out[0], nil
}

// InsertTransactions inserts every record inside a single database transaction.
func (r *Repository) InsertTransactions(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	out := make([]core.Transaction, len(txs))
	now := time.Now().UTC()
	for i, t := range txs {
		if err := t.Type.Validate(); err != nil {
			return nil, err
		}
		if err := t.Value.Validate(); err != nil {
			return nil, err
		}
		t.ID = uuid.NewString()
		t.CreatedAt = now
		out[i] = t
	}

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, r.dialect.rebind(
			`INSERT INTO transactions (id, title, value_cents, type, category_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`))
		if err != nil {
			return fmt.Errorf("prepare insert transaction: %w", err)
		}
		defer stmt.Close()

		for _, t := range out {
			if _, err := stmt.ExecContext(ctx, t.ID, t.Title, t.Value.Cents, string(t.Type), t.CategoryID, t.CreatedAt); err != nil {
				if r.dialect.isForeignKeyViolation(err) {
					return fmt.Errorf("%w: unknown category id %q", core.ErrCategoryResolution, t.CategoryID)
				}
				return fmt.Errorf("insert transaction %q: %w", t.Title, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Transactions saved", "count", len(out), "dialect", r.dialect)
	return out, nil
}

const selectTransactions = `SELECT t.id, t.title, t.value_cents, t.type, t.category_id, t.created_at, c.title, c.created_at
FROM transactions t
JOIN categories c ON c.id = t.category_id`

func (r *Repository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, selectTransactions+` ORDER BY t.seq`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *Repository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.rebind(selectTransactions+` WHERE t.id = ?`), id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrTransactionNotFound
	}
	return t, err
}

func (r *Repository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.dialect.rebind(`DELETE FROM transactions WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrTransactionNotFound
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		t   core.Transaction
		c   core.Category
		typ string
	)
	if err := s.Scan(&t.ID, &t.Title, &t.Value.Cents, &typ, &t.CategoryID, &t.CreatedAt, &c.Title, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, err
		}
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	t.Type = core.TransactionType(typ)
	c.ID = t.CategoryID
	t.Category = &c
	return t, nil
}

func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func distinct(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
