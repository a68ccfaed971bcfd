// Package pgdb provides a credentials.Cache that keeps Credentials in a PostgreSQL table.
package pgdb

import (
	"context"
	_ "embed"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"code.issuerext.org/golang/pkg/credentials"
	"code.issuerext.org/golang/pkg/telemetry"
)

// PGDB is implemented by pgx.Tx, pgx.Conn & pgxpool.Pool
// accessing a postgres database through this common interface simplifies testing
type PGDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Cache is a credentials.Cache & credentials.CacheWriter backed by the
// provisioning_credential table.
type Cache struct {
	DB PGDB

	// Telemetry receives a credential-skipped event per invalid row, may be nil.
	Telemetry telemetry.Sink
}

//go:embed credential_cache_schema.sql
var schemaScriptTpl string

// Migrate creates the dbschema schema & the provisioning_credential table if they do not exist.
func Migrate(ctx context.Context, db PGDB, dbschema string) error {
	schemaName := pgx.Identifier{dbschema}.Sanitize()
	schemaScript := strings.ReplaceAll(schemaScriptTpl, "${schema_name}", schemaName)

	_, err := db.Exec(ctx, schemaScript)

	return wrapError(err, "failed db schema initialization") // nil if err is nil...
}

// New returns a Cache that uses a connection pool to the dsn database.
func New(ctx context.Context, dsn string) (*Cache, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if nil != err {
		return nil, wrapError(err, "failed connection pool creation")
	}

	return &Cache{DB: pool}, nil
}

// AllCredentials returns the stored Credentials in insertion order.
// Rows that fail Check are left out and reported.
func (self *Cache) AllCredentials(ctx context.Context) ([]credentials.Credential, error) {
	rows, err := self.DB.Query(
		ctx,
		// columns are renamed to match credentials.Credential struct
		`SELECT
		   identifier as "Identifier",
		   label as "Label",
		   cardholder_name as "CardholderName",
		   primary_account_suffix as "PrimaryAccountSuffix",
		   COALESCE(token, '') as "Token",
		   is_testnet as "IsTestnet",
		   COALESCE(asset_url, '') as "AssetUrl",
		   COALESCE(asset_name, '') as "AssetName"
		 FROM
		   provisioning_credential
		 ORDER BY
		   position
		`,
	)
	if nil != err {
		return nil, wrapFlagError(err, credentials.ErrCacheRead, "failed DB.Query")
	}
	creds, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[credentials.Credential])
	if nil != err {
		return nil, wrapFlagError(err, credentials.ErrCacheRead, "failed pgx.CollectRows")
	}

	return credentials.KeepValid(ctx, self.Telemetry, creds), nil
}

// SaveCredential inserts cred or updates the row with the same identifier.
// An updated row keeps its position.
func (self *Cache) SaveCredential(ctx context.Context, cred credentials.Credential) error {
	err := cred.Check()
	if nil != err {
		return wrapFlagError(err, credentials.ErrInvalid, "can not save credential")
	}

	_, err = self.DB.Exec(
		ctx,
		`INSERT INTO provisioning_credential (
		   identifier, label, cardholder_name, primary_account_suffix,
		   token, is_testnet, asset_url, asset_name
		 ) VALUES (
		   $1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), NULLIF($8, '')
		 )
		 ON CONFLICT (identifier) DO UPDATE SET
		   label = EXCLUDED.label,
		   cardholder_name = EXCLUDED.cardholder_name,
		   primary_account_suffix = EXCLUDED.primary_account_suffix,
		   token = EXCLUDED.token,
		   is_testnet = EXCLUDED.is_testnet,
		   asset_url = EXCLUDED.asset_url,
		   asset_name = EXCLUDED.asset_name
		`,
		cred.Identifier,
		cred.Label,
		cred.CardholderName,
		cred.PrimaryAccountSuffix,
		cred.Token,
		cred.IsTestnet,
		cred.AssetUrl,
		cred.AssetName,
	)

	return wrapError(err, "failed DB.Exec") // nil if err is nil
}

// RemoveCredential deletes the row with identifier.
// It returns true if a row was effectively deleted.
func (self *Cache) RemoveCredential(ctx context.Context, identifier string) (bool, error) {
	tag, err := self.DB.Exec(
		ctx,
		`DELETE FROM provisioning_credential WHERE identifier = $1`,
		identifier,
	)
	if nil != err {
		return false, wrapError(err, "failed DB.Exec")
	}

	return tag.RowsAffected() > 0, nil
}

var (
	_ credentials.Cache       = &Cache{}
	_ credentials.CacheWriter = &Cache{}
)
