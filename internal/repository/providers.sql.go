package repository

import (
	"context"
)

const getFirstProvider = `SELECT id, name, created_at, updated_at FROM oauth2_providers ORDER BY id LIMIT 1`

func (q *Queries) GetFirstProvider(ctx context.Context) (Oauth2Provider, error) {
	row := q.db.QueryRowContext(ctx, getFirstProvider)
	var i Oauth2Provider
	err := row.Scan(&i.ID, &i.Name, &i.CreatedAt, &i.UpdatedAt)
	return i, notFound(err)
}

const createProvider = `INSERT INTO oauth2_providers (name, created_at, updated_at) VALUES (?, ?, ?)
RETURNING id, name, created_at, updated_at`

type CreateProviderParams struct {
	Name      string
	CreatedAt int64
	UpdatedAt int64
}

func (q *Queries) CreateProvider(ctx context.Context, arg CreateProviderParams) (Oauth2Provider, error) {
	row := q.db.QueryRowContext(ctx, createProvider, arg.Name, arg.CreatedAt, arg.UpdatedAt)
	var i Oauth2Provider
	err := row.Scan(&i.ID, &i.Name, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}
