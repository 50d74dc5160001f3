package props

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-faaskit/pkg/crypto"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type secretRecord struct {
	bun.BaseModel `bun:"table:faas_secrets"`

	ID        int64        `bun:",pk,autoincrement"`
	Key       string       `bun:",notnull,unique"`
	Cipher    []byte       `bun:",notnull"`
	CreatedAt time.Time    `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time    `bun:",nullzero,notnull,default:current_timestamp"`
	DeletedAt bun.NullTime `bun:",soft_delete,nullzero"`
}

// LocalStore keeps secrets AEAD-sealed in a sqlite database. It is the
// development substitute for a remote vault: same reference indirection,
// no identity endpoint required.
type LocalStore struct {
	db     *bun.DB
	cipher crypto.Cipher
}

// OpenLocalStore opens (and migrates) the store at dsn.
func OpenLocalStore(ctx context.Context, dsn string, cipher crypto.Cipher) (*LocalStore, error) {
	if cipher == nil {
		return nil, fmt.Errorf("props: local store requires a cipher")
	}
	sqldb, err := sql.Open(sqliteshim.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("props: open local store: %w", err)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	if _, err := db.NewCreateTable().Model((*secretRecord)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("props: migrate local store: %w", err)
	}
	return &LocalStore{db: db, cipher: cipher}, nil
}

// Put seals value and upserts it under key.
func (s *LocalStore) Put(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	sealed, err := s.cipher.Encrypt(value)
	if err != nil {
		return err
	}
	_, err = s.db.NewInsert().
		Model(&secretRecord{Key: key, Cipher: sealed}).
		On("CONFLICT (key) DO UPDATE").
		Set("cipher = EXCLUDED.cipher").
		Set("updated_at = current_timestamp").
		Set("deleted_at = NULL").
		Exec(ctx)
	return err
}

// Get opens the sealed value stored under key.
func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	var rec secretRecord
	err := s.db.NewSelect().
		Model(&rec).
		Where("key = ?", key).
		Where("deleted_at IS NULL").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.cipher.Decrypt(rec.Cipher)
}

// Delete soft-deletes the value stored under key.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	_, err := s.db.NewDelete().
		Model((*secretRecord)(nil)).
		Where("key = ?", key).
		Exec(ctx)
	return err
}

// Close releases the underlying database.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

// LocalHandler resolves properties from the environment and dereferences
// vault.reference values through a LocalStore instead of a remote vault.
// The configuration layer swaps it in when dev mode is active.
type LocalHandler struct {
	mu          sync.Mutex
	initialized bool

	env   *EnvHandler
	store *LocalStore
}

var _ Handler = (*LocalHandler)(nil)

// NewLocalHandler builds a handler over the given store.
func NewLocalHandler(store *LocalStore) *LocalHandler {
	return &LocalHandler{env: NewEnvHandler(), store: store}
}

func (h *LocalHandler) Initialize(ctx context.Context, force bool) (bool, error) {
	if _, err := h.env.Initialize(ctx, force); err != nil {
		return false, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.initialized && !force {
		return false, nil
	}
	h.initialized = true
	return true, nil
}

func (h *LocalHandler) GetProperty(ctx context.Context, key string, def any) (any, error) {
	raw, err := h.env.GetProperty(ctx, key, def)
	if err != nil {
		return nil, err
	}
	s, isString := raw.(string)
	if !isString {
		return raw, nil
	}
	ref, ok, err := ParseReference(s)
	if err != nil {
		return nil, err
	}
	if !ok {
		return raw, nil
	}
	plain, err := h.store.Get(ctx, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("props: local secret %q: %w", ref.ID, err)
	}
	return string(plain), nil
}

// Env exposes the wrapped environment handler for overlay seeding.
func (h *LocalHandler) Env() *EnvHandler { return h.env }
