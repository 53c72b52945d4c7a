package kvstore

import (
	"context"
	"errors"
	"strings"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/sqlinline"
)

// Postgres stores values in the studio_kv table through an SQLExecutor.
type Postgres struct {
	sql infra.SQLExecutor
}

func NewPostgres(sql infra.SQLExecutor) *Postgres {
	return &Postgres{sql: sql}
}

func (p *Postgres) Init(ctx context.Context) error {
	_, err := p.sql.Exec(ctx, sqlinline.QCreateKVTable)
	return err
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("kvstore: key is required")
	}
	row := p.sql.QueryRow(ctx, sqlinline.QSelectKV, key)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return raw, nil
}

func (p *Postgres) Put(ctx context.Context, key string, value []byte) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("kvstore: key is required")
	}
	_, err := p.sql.Exec(ctx, sqlinline.QUpsertKV, key, value)
	return err
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	_, err := p.sql.Exec(ctx, sqlinline.QDeleteKV, strings.TrimSpace(key))
	return err
}

var _ Store = (*Postgres)(nil)
