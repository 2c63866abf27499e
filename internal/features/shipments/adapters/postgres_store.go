package adapters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"shipdocs/internal/features/shipments/adapters/migrations"
	"shipdocs/internal/features/shipments/domain"
	"shipdocs/internal/features/shipments/ports"
)

// pgUniqueViolation is the Postgres error code for a unique constraint hit.
const pgUniqueViolation = "23505"

// OpenPostgres opens a database handle using the pgx stdlib driver.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	return db, nil
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	return nil
}

// PostgresShipmentStore implements ports.ShipmentStore on Postgres.
type PostgresShipmentStore struct {
	db *sql.DB
}

// NewPostgresShipmentStore creates a store over an open database handle.
func NewPostgresShipmentStore(db *sql.DB) *PostgresShipmentStore {
	return &PostgresShipmentStore{db: db}
}

const shipmentColumns = `id, reference_number, sender, recipient, created_at, status, last_document_blob_name, last_document_url`

func (s *PostgresShipmentStore) Create(ctx context.Context, shipment *domain.Shipment) (*domain.Shipment, error) {
	query :=
		`INSERT INTO shipments (reference_number, sender, recipient, created_at, status)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING id
         `

	err := s.db.QueryRowContext(ctx, query,
		shipment.ReferenceNumber, shipment.Sender, shipment.Recipient,
		shipment.CreatedAt, shipment.Status).Scan(&shipment.ID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ports.ErrDuplicateReference
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return shipment, nil
}

func (s *PostgresShipmentStore) GetByID(ctx context.Context, id int64) (*domain.Shipment, error) {
	query := `SELECT ` + shipmentColumns + ` FROM shipments WHERE id = $1`

	return s.scanShipment(s.db.QueryRowContext(ctx, query, id))
}

func (s *PostgresShipmentStore) GetByReferenceNumber(ctx context.Context, referenceNumber string) (*domain.Shipment, error) {
	query := `SELECT ` + shipmentColumns + ` FROM shipments WHERE LOWER(reference_number) = LOWER($1)`

	return s.scanShipment(s.db.QueryRowContext(ctx, query, referenceNumber))
}

func (s *PostgresShipmentStore) List(ctx context.Context, page, pageSize int) ([]domain.Shipment, error) {
	query := `SELECT ` + shipmentColumns + ` FROM shipments
         ORDER BY created_at DESC
         LIMIT $1 OFFSET $2`

	rows, err := s.db.QueryContext(ctx, query, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	shipments := []domain.Shipment{}
	for rows.Next() {
		var sh domain.Shipment
		var blobName, blobURL sql.NullString

		err := rows.Scan(&sh.ID, &sh.ReferenceNumber, &sh.Sender, &sh.Recipient,
			&sh.CreatedAt, &sh.Status, &blobName, &blobURL)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}

		applyNullableDocumentFields(&sh, blobName, blobURL)
		shipments = append(shipments, sh)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return shipments, nil
}

func (s *PostgresShipmentStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM shipments`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return count, nil
}

func (s *PostgresShipmentStore) Update(ctx context.Context, shipment *domain.Shipment) error {
	query :=
		`UPDATE shipments
         SET status = $1, last_document_blob_name = $2, last_document_url = $3
         WHERE id = $4`

	res, err := s.db.ExecContext(ctx, query,
		shipment.Status, toNullString(shipment.LastDocumentBlobName),
		toNullString(shipment.LastDocumentURL), shipment.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return ports.ErrShipmentNotFound
	}

	return nil
}

// row is the subset of sql.Row used by scanShipment.
type row interface {
	Scan(dest ...any) error
}

func (s *PostgresShipmentStore) scanShipment(r row) (*domain.Shipment, error) {
	sh := &domain.Shipment{}
	var blobName, blobURL sql.NullString

	err := r.Scan(&sh.ID, &sh.ReferenceNumber, &sh.Sender, &sh.Recipient,
		&sh.CreatedAt, &sh.Status, &blobName, &blobURL)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ports.ErrShipmentNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	applyNullableDocumentFields(sh, blobName, blobURL)
	return sh, nil
}

func applyNullableDocumentFields(sh *domain.Shipment, blobName, blobURL sql.NullString) {
	if blobName.Valid {
		sh.LastDocumentBlobName = &blobName.String
	}
	if blobURL.Valid {
		sh.LastDocumentURL = &blobURL.String
	}
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
