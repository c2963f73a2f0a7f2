package repository

import (
	"context"
)

const clientColumns = `id, client_id, client_secret_hash, name, redirect_uri, owner_type, owner_id, created_at, updated_at`

func scanClient(row interface{ Scan(...any) error }) (Oauth2Client, error) {
	var i Oauth2Client
	err := row.Scan(
		&i.ID,
		&i.ClientID,
		&i.ClientSecretHash,
		&i.Name,
		&i.RedirectUri,
		&i.OwnerType,
		&i.OwnerID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createClient = `INSERT INTO oauth2_clients (
    client_id, client_secret_hash, name, redirect_uri, owner_type, owner_id, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + clientColumns

type CreateClientParams struct {
	ClientID         string
	ClientSecretHash string
	Name             string
	RedirectUri      string
	OwnerType        string
	OwnerID          string
	CreatedAt        int64
	UpdatedAt        int64
}

func (q *Queries) CreateClient(ctx context.Context, arg CreateClientParams) (Oauth2Client, error) {
	row := q.db.QueryRowContext(ctx, createClient,
		arg.ClientID,
		arg.ClientSecretHash,
		arg.Name,
		arg.RedirectUri,
		nullString(arg.OwnerType),
		nullString(arg.OwnerID),
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return scanClient(row)
}

const updateClient = `UPDATE oauth2_clients
SET client_secret_hash = ?, name = ?, redirect_uri = ?, updated_at = ?
WHERE client_id = ?
RETURNING ` + clientColumns

type UpdateClientParams struct {
	ClientSecretHash string
	Name             string
	RedirectUri      string
	UpdatedAt        int64
	ClientID         string
}

func (q *Queries) UpdateClient(ctx context.Context, arg UpdateClientParams) (Oauth2Client, error) {
	row := q.db.QueryRowContext(ctx, updateClient,
		arg.ClientSecretHash,
		arg.Name,
		arg.RedirectUri,
		arg.UpdatedAt,
		arg.ClientID,
	)
	i, err := scanClient(row)
	return i, notFound(err)
}

const getClientByClientID = `SELECT ` + clientColumns + ` FROM oauth2_clients WHERE client_id = ? LIMIT 1`

func (q *Queries) GetClientByClientID(ctx context.Context, clientID string) (Oauth2Client, error) {
	row := q.db.QueryRowContext(ctx, getClientByClientID, clientID)
	i, err := scanClient(row)
	return i, notFound(err)
}

const getClient = `SELECT ` + clientColumns + ` FROM oauth2_clients WHERE id = ? LIMIT 1`

func (q *Queries) GetClient(ctx context.Context, id int64) (Oauth2Client, error) {
	row := q.db.QueryRowContext(ctx, getClient, id)
	i, err := scanClient(row)
	return i, notFound(err)
}

const clientIDExists = `SELECT EXISTS (SELECT 1 FROM oauth2_clients WHERE client_id = ? AND id != ?)`

// ClientIDExists checks client_id against every client other than excludeID.
func (q *Queries) ClientIDExists(ctx context.Context, clientID string, excludeID int64) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, clientIDExists, clientID, excludeID).Scan(&exists)
	return exists, err
}

const listClients = `SELECT ` + clientColumns + ` FROM oauth2_clients ORDER BY id`

func (q *Queries) ListClients(ctx context.Context) ([]Oauth2Client, error) {
	rows, err := q.db.QueryContext(ctx, listClients)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Oauth2Client{}
	for rows.Next() {
		i, err := scanClient(rows)
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

const deleteClient = `DELETE FROM oauth2_clients WHERE id = ?`

func (q *Queries) DeleteClient(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteClient, id)
	return err
}
