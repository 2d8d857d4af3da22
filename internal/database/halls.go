package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hallbook/internal/domain"
	"hallbook/internal/models"

	"github.com/Masterminds/squirrel"
)

var hallColumns = []string{
	"id", "name", "district", "address", "capacity", "price_per_guest",
	"phone", "owner_id", "approved", "created_at", "updated_at",
}

// UpsertHall создает зал или перезаписывает существующий по ID.
func (db *DB) UpsertHall(ctx context.Context, hall *models.Hall) error {
	return db.writeHall(ctx, hall, `ON CONFLICT (id) DO UPDATE SET
            name = excluded.name,
            district = excluded.district,
            address = excluded.address,
            capacity = excluded.capacity,
            price_per_guest = excluded.price_per_guest,
            phone = excluded.phone,
            owner_id = excluded.owner_id,
            approved = excluded.approved,
            updated_at = excluded.updated_at`)
}

// SeedHalls добавляет залы из каталога, не трогая уже существующие
// (одобрение, выставленное администратором, сохраняется).
func (db *DB) SeedHalls(ctx context.Context, halls []models.Hall) error {
	for i := range halls {
		hall := halls[i]
		if err := db.writeHall(ctx, &hall, "ON CONFLICT (id) DO NOTHING"); err != nil {
			return fmt.Errorf("seed hall %d: %w", hall.ID, err)
		}
	}
	db.logger.Info().Int("count", len(halls)).Msg("Hall catalog seeded")
	return nil
}

func (db *DB) writeHall(ctx context.Context, hall *models.Hall, conflict string) error {
	now := time.Now().UTC()
	if hall.CreatedAt.IsZero() {
		hall.CreatedAt = now
	}
	hall.UpdatedAt = now

	columns := []string{"name", "district", "address", "capacity", "price_per_guest", "phone", "owner_id", "approved", "created_at", "updated_at"}
	values := []interface{}{
		hall.Name, hall.District, hall.Address, hall.Capacity, hall.PricePerGuest,
		hall.Phone, hall.OwnerID, hall.Approved, hall.CreatedAt, hall.UpdatedAt,
	}
	if hall.ID > 0 {
		columns = append([]string{"id"}, columns...)
		values = append([]interface{}{hall.ID}, values...)
	}

	builder := db.sb.Insert("halls").Columns(columns...).Values(values...)
	if hall.ID > 0 {
		builder = builder.Suffix(conflict)
		query, args, err := builder.ToSql()
		if err != nil {
			return fmt.Errorf("build write hall: %w", err)
		}
		if _, err := db.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("write hall: %w", err)
		}
		return db.syncHallSequence(ctx)
	}

	query, args, err := builder.Suffix("RETURNING id").ToSql()
	if err != nil {
		return fmt.Errorf("build insert hall: %w", err)
	}
	if err := db.db.QueryRowContext(ctx, query, args...).Scan(&hall.ID); err != nil {
		return fmt.Errorf("insert hall: %w", err)
	}
	return nil
}

// syncHallSequence сдвигает BIGSERIAL после вставки с явным ID.
func (db *DB) syncHallSequence(ctx context.Context) error {
	if db.driver != DriverPostgres {
		return nil
	}
	_, err := db.db.ExecContext(ctx,
		`SELECT setval(pg_get_serial_sequence('halls', 'id'), (SELECT COALESCE(MAX(id), 1) FROM halls))`)
	if err != nil {
		return fmt.Errorf("sync hall sequence: %w", err)
	}
	return nil
}

func (db *DB) GetHall(ctx context.Context, id int64) (*models.Hall, error) {
	query, args, err := db.sb.Select(hallColumns...).From("halls").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get hall: %w", err)
	}

	hall, err := scanHall(db.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get hall: %w", err)
	}
	return hall, nil
}

func (db *DB) ListHalls(ctx context.Context) ([]*models.Hall, error) {
	return db.queryHalls(ctx, nil)
}

func (db *DB) ListHallsByOwner(ctx context.Context, ownerID int64) ([]*models.Hall, error) {
	return db.queryHalls(ctx, squirrel.Eq{"owner_id": ownerID})
}

func (db *DB) SetHallApproval(ctx context.Context, id int64, approved bool) error {
	query, args, err := db.sb.Update("halls").
		Set("approved", approved).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build approve hall: %w", err)
	}

	res, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("approve hall: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

func (db *DB) queryHalls(ctx context.Context, where squirrel.Sqlizer) ([]*models.Hall, error) {
	builder := db.sb.Select(hallColumns...).From("halls").OrderBy("id")
	if where != nil {
		builder = builder.Where(where)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query halls: %w", err)
	}

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query halls: %w", err)
	}
	defer rows.Close()

	var halls []*models.Hall
	for rows.Next() {
		hall, err := scanHall(rows)
		if err != nil {
			return nil, fmt.Errorf("scan hall: %w", err)
		}
		halls = append(halls, hall)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate halls: %w", err)
	}
	return halls, nil
}

func scanHall(row rowScanner) (*models.Hall, error) {
	var hall models.Hall
	err := row.Scan(
		&hall.ID,
		&hall.Name,
		&hall.District,
		&hall.Address,
		&hall.Capacity,
		&hall.PricePerGuest,
		&hall.Phone,
		&hall.OwnerID,
		&hall.Approved,
		&hall.CreatedAt,
		&hall.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &hall, nil
}
