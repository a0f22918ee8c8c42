package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"saldo/internal/core"
	"saldo/internal/ledger"
)

var _ ledger.Store = (*Store)(nil)

// Store keeps categories and transactions in process memory.
type Store struct {
	mu      sync.Mutex
	cats    []core.Category
	byTitle map[string]int
	items   []core.Transaction
}

func New(titles ...string) *Store {
	s := &Store{byTitle: map[string]int{}}
	for _, t := range dedupe(titles) {
		s.insertCategory(t)
	}
	return s
}

// NewFromFiles seeds categories from base/seed_categories.txt when present.
func NewFromFiles(base string) *Store {
	return New(readLines(filepath.Join(base, "seed_categories.txt"))...)
}

func (s *Store) FindCategoryByTitle(_ context.Context, title string) (core.Category, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byTitle[title]
	if !ok {
		return core.Category{}, false, nil
	}
	return s.cats[i], true, nil
}

func (s *Store) FindCategoriesByTitles(_ context.Context, titles []string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Category
	seen := map[string]struct{}{}
	for _, t := range titles {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if i, ok := s.byTitle[t]; ok {
			out = append(out, s.cats[i])
		}
	}
	return out, nil
}

func (s *Store) CreateCategory(ctx context.Context, title string) (core.Category, error) {
	cats, err := s.CreateCategories(ctx, []string{title})
	if err != nil {
		return core.Category{}, err
	}
	return cats[0], nil
}

func (s *Store) CreateCategories(_ context.Context, titles []string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	for _, t := range titles {
		if err := (core.Category{Title: t}).Validate(); err != nil {
			return nil, err
		}
		_, dup := seen[t]
		if _, exists := s.byTitle[t]; exists || dup {
			return nil, fmt.Errorf("%w: %q", core.ErrCategoryExists, t)
		}
		seen[t] = struct{}{}
	}
	out := make([]core.Category, 0, len(titles))
	for _, t := range titles {
		out = append(out, s.insertCategory(t))
	}
	return out, nil
}

func (s *Store) InsertTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	out, err := s.InsertTransactions(ctx, []core.Transaction{tx})
	if err != nil {
		return core.Transaction{}, err
	}
	return out[0], nil
}

func (s *Store) InsertTransactions(_ context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, len(txs))
	for i, tx := range txs {
		ci, ok := s.categoryIndexByID(tx.CategoryID)
		if !ok {
			return nil, fmt.Errorf("%w: unknown category id %q", core.ErrCategoryResolution, tx.CategoryID)
		}
		if err := tx.Value.Validate(); err != nil {
			return nil, err
		}
		if err := tx.Type.Validate(); err != nil {
			return nil, err
		}
		cat := s.cats[ci]
		tx.ID = uuid.NewString()
		tx.CreatedAt = time.Now().UTC()
		tx.Category = &cat
		out[i] = tx
	}
	s.items = append(s.items, out...)
	return out, nil
}

func (s *Store) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.items...), nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.items {
		if tx.ID == id {
			return tx, nil
		}
	}
	return core.Transaction{}, core.ErrTransactionNotFound
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, tx := range s.items {
		if tx.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return core.ErrTransactionNotFound
}

// Categories returns a snapshot of every category.
func (s *Store) Categories() []core.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Category(nil), s.cats...)
}

// insertCategory requires s.mu to be held.
func (s *Store) insertCategory(title string) core.Category {
	c := core.Category{ID: uuid.NewString(), Title: title, CreatedAt: time.Now().UTC()}
	s.byTitle[title] = len(s.cats)
	s.cats = append(s.cats, c)
	return c
}

func (s *Store) categoryIndexByID(id string) (int, bool) {
	for i, c := range s.cats {
		if c.ID == id {
			return i, true
		}
	}
	return 0, false
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
