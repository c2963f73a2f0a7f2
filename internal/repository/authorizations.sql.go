package repository

import (
	"context"
)

const authorizationColumns = `id, owner_type, owner_id, client_id, scope, code, access_token_hash, refresh_token_hash, expires_at, created_at, updated_at`

func scanAuthorization(row interface{ Scan(...any) error }) (Oauth2Authorization, error) {
	var i Oauth2Authorization
	err := row.Scan(
		&i.ID,
		&i.OwnerType,
		&i.OwnerID,
		&i.ClientID,
		&i.Scope,
		&i.Code,
		&i.AccessTokenHash,
		&i.RefreshTokenHash,
		&i.ExpiresAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func (q *Queries) listAuthorizations(ctx context.Context, query string, args ...any) ([]Oauth2Authorization, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Oauth2Authorization{}
	for rows.Next() {
		i, err := scanAuthorization(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createAuthorization = `INSERT INTO oauth2_authorizations (
    owner_type, owner_id, client_id, scope, code, access_token_hash, refresh_token_hash, expires_at, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + authorizationColumns

type CreateAuthorizationParams struct {
	OwnerType        string
	OwnerID          string
	ClientID         int64
	Scope            string
	Code             string
	AccessTokenHash  string
	RefreshTokenHash string
	ExpiresAt        int64
	CreatedAt        int64
	UpdatedAt        int64
}

func (q *Queries) CreateAuthorization(ctx context.Context, arg CreateAuthorizationParams) (Oauth2Authorization, error) {
	row := q.db.QueryRowContext(ctx, createAuthorization,
		arg.OwnerType,
		arg.OwnerID,
		arg.ClientID,
		arg.Scope,
		nullString(arg.Code),
		nullString(arg.AccessTokenHash),
		nullString(arg.RefreshTokenHash),
		nullInt64(arg.ExpiresAt),
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return scanAuthorization(row)
}

const updateAuthorization = `UPDATE oauth2_authorizations
SET owner_type = ?, owner_id = ?, client_id = ?, scope = ?, code = ?, access_token_hash = ?, refresh_token_hash = ?, expires_at = ?, updated_at = ?
WHERE id = ?
RETURNING ` + authorizationColumns

type UpdateAuthorizationParams struct {
	OwnerType        string
	OwnerID          string
	ClientID         int64
	Scope            string
	Code             string
	AccessTokenHash  string
	RefreshTokenHash string
	ExpiresAt        int64
	UpdatedAt        int64
	ID               int64
}

func (q *Queries) UpdateAuthorization(ctx context.Context, arg UpdateAuthorizationParams) (Oauth2Authorization, error) {
	row := q.db.QueryRowContext(ctx, updateAuthorization,
		arg.OwnerType,
		arg.OwnerID,
		arg.ClientID,
		arg.Scope,
		nullString(arg.Code),
		nullString(arg.AccessTokenHash),
		nullString(arg.RefreshTokenHash),
		nullInt64(arg.ExpiresAt),
		arg.UpdatedAt,
		arg.ID,
	)
	i, err := scanAuthorization(row)
	return i, notFound(err)
}

const getAuthorization = `SELECT ` + authorizationColumns + ` FROM oauth2_authorizations WHERE id = ? LIMIT 1`

func (q *Queries) GetAuthorization(ctx context.Context, id int64) (Oauth2Authorization, error) {
	row := q.db.QueryRowContext(ctx, getAuthorization, id)
	i, err := scanAuthorization(row)
	return i, notFound(err)
}

const findAuthorizationByOwnerAndClient = `SELECT ` + authorizationColumns + ` FROM oauth2_authorizations
WHERE owner_type = ? AND owner_id = ? AND client_id = ?
ORDER BY id LIMIT 1`

func (q *Queries) FindAuthorizationByOwnerAndClient(ctx context.Context, ownerType string, ownerID string, clientID int64) (Oauth2Authorization, error) {
	row := q.db.QueryRowContext(ctx, findAuthorizationByOwnerAndClient, ownerType, ownerID, clientID)
	i, err := scanAuthorization(row)
	return i, notFound(err)
}

const findAuthorizationByAccessToken = `SELECT ` + authorizationColumns + ` FROM oauth2_authorizations WHERE access_token_hash = ? LIMIT 1`

func (q *Queries) FindAuthorizationByAccessToken(ctx context.Context, accessTokenHash string) (Oauth2Authorization, error) {
	row := q.db.QueryRowContext(ctx, findAuthorizationByAccessToken, accessTokenHash)
	i, err := scanAuthorization(row)
	return i, notFound(err)
}

const findAuthorizationByClientAndCode = `SELECT ` + authorizationColumns + ` FROM oauth2_authorizations WHERE client_id = ? AND code = ? LIMIT 1`

func (q *Queries) FindAuthorizationByClientAndCode(ctx context.Context, clientID int64, code string) (Oauth2Authorization, error) {
	row := q.db.QueryRowContext(ctx, findAuthorizationByClientAndCode, clientID, code)
	i, err := scanAuthorization(row)
	return i, notFound(err)
}

const findAuthorizationByClientAndRefreshToken = `SELECT ` + authorizationColumns + ` FROM oauth2_authorizations WHERE client_id = ? AND refresh_token_hash = ? LIMIT 1`

func (q *Queries) FindAuthorizationByClientAndRefreshToken(ctx context.Context, clientID int64, refreshTokenHash string) (Oauth2Authorization, error) {
	row := q.db.QueryRowContext(ctx, findAuthorizationByClientAndRefreshToken, clientID, refreshTokenHash)
	i, err := scanAuthorization(row)
	return i, notFound(err)
}

// The exists queries skip the row being validated (excludeID), pass 0 for candidate values.

const accessTokenExists = `SELECT EXISTS (SELECT 1 FROM oauth2_authorizations WHERE access_token_hash = ? AND id != ?)`

func (q *Queries) AccessTokenExists(ctx context.Context, accessTokenHash string, excludeID int64) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, accessTokenExists, accessTokenHash, excludeID).Scan(&exists)
	return exists, err
}

const codeExistsForClient = `SELECT EXISTS (SELECT 1 FROM oauth2_authorizations WHERE client_id = ? AND code = ? AND id != ?)`

func (q *Queries) CodeExistsForClient(ctx context.Context, clientID int64, code string, excludeID int64) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, codeExistsForClient, clientID, code, excludeID).Scan(&exists)
	return exists, err
}

const refreshTokenExistsForClient = `SELECT EXISTS (SELECT 1 FROM oauth2_authorizations WHERE client_id = ? AND refresh_token_hash = ? AND id != ?)`

func (q *Queries) RefreshTokenExistsForClient(ctx context.Context, clientID int64, refreshTokenHash string, excludeID int64) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, refreshTokenExistsForClient, clientID, refreshTokenHash, excludeID).Scan(&exists)
	return exists, err
}

const listAuthorizationsByOwner = `SELECT ` + authorizationColumns + ` FROM oauth2_authorizations
WHERE owner_type = ? AND owner_id = ? ORDER BY id`

func (q *Queries) ListAuthorizationsByOwner(ctx context.Context, ownerType string, ownerID string) ([]Oauth2Authorization, error) {
	return q.listAuthorizations(ctx, listAuthorizationsByOwner, ownerType, ownerID)
}

const listAuthorizationsByClient = `SELECT ` + authorizationColumns + ` FROM oauth2_authorizations WHERE client_id = ? ORDER BY id`

func (q *Queries) ListAuthorizationsByClient(ctx context.Context, clientID int64) ([]Oauth2Authorization, error) {
	return q.listAuthorizations(ctx, listAuthorizationsByClient, clientID)
}

const countAuthorizations = `SELECT COUNT(*) FROM oauth2_authorizations`

func (q *Queries) CountAuthorizations(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countAuthorizations).Scan(&count)
	return count, err
}

const deleteAuthorizationsByOwner = `DELETE FROM oauth2_authorizations WHERE owner_type = ? AND owner_id = ?`

func (q *Queries) DeleteAuthorizationsByOwner(ctx context.Context, ownerType string, ownerID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteAuthorizationsByOwner, ownerType, ownerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteAuthorizationsByOwnerAndClient = `DELETE FROM oauth2_authorizations WHERE owner_type = ? AND owner_id = ? AND client_id = ?`

func (q *Queries) DeleteAuthorizationsByOwnerAndClient(ctx context.Context, ownerType string, ownerID string, clientID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteAuthorizationsByOwnerAndClient, ownerType, ownerID, clientID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteAuthorizationsByClient = `DELETE FROM oauth2_authorizations WHERE client_id = ?`

func (q *Queries) DeleteAuthorizationsByClient(ctx context.Context, clientID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteAuthorizationsByClient, clientID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteExpiredAuthorizations = `DELETE FROM oauth2_authorizations WHERE expires_at IS NOT NULL AND expires_at < ?`

func (q *Queries) DeleteExpiredAuthorizations(ctx context.Context, now int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpiredAuthorizations, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
