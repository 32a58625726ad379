package pgledger

import (
	"context"
	"log"
	"time"

	"github.com/UnendingLoop/FloorPlanIngest/internal/model"
	"github.com/wb-go/wbf/dbpg"
)

type PostgresRepo struct {
	DB *dbpg.DB
}

func (p PostgresRepo) IsProcessed(ctx context.Context, key model.WorkKey) (bool, error) {
	query := `SELECT EXISTS (
	SELECT 1 FROM processed_images
	WHERE user_id = $1 AND project = $2 AND floor = $3 AND image_id = $4)`

	var processed bool
	err := p.DB.QueryRowContext(ctx, query, key.Tenant, key.Project, key.Floor, key.ImageID).Scan(&processed)
	if err != nil {
		return false, err // 500
	}
	return processed, nil
}

func (p PostgresRepo) MarkProcessed(ctx context.Context, key model.WorkKey) error {
	// повторная отметка того же ключа - валидный no-op.
	// Вставка без возвращаемых строк идет через ExecContext - QueryRow без Scan
	// не вернул бы соединение в пул
	query := `INSERT INTO processed_images (user_id, project, floor, image_id, processed_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (user_id, project, floor, image_id) DO NOTHING`

	_, err := p.DB.ExecContext(ctx, query, key.Tenant, key.Project, key.Floor, key.ImageID, time.Now().UTC())
	return err
}

func (p PostgresRepo) Append(ctx context.Context, m *model.Manifest) error {
	query := `INSERT INTO inference_results (user_id, project, floor, image_name, archive_key, files, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := p.DB.ExecContext(ctx, query, m.Tenant, m.Project, m.Floor, m.ImageName, m.ArchiveKey, m.Files, m.CreatedAt)
	return err
}

// Drain - атомарно забирает и удаляет всю очередь арендатора одним стейтментом.
// Конкурентный Append попадет либо в этот Drain, либо в следующий, но не в оба.
func (p PostgresRepo) Drain(ctx context.Context, tenant string) ([]model.Manifest, error) {
	query := `WITH drained AS (
	DELETE FROM inference_results
	WHERE user_id = $1
	RETURNING id, user_id, project, floor, image_name, archive_key, files, created_at)
	SELECT id, user_id, project, floor, image_name, archive_key, files, created_at
	FROM drained
	ORDER BY id`

	rows, err := p.DB.QueryContext(ctx, query, tenant)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	manifests := make([]model.Manifest, 0)
	for rows.Next() {
		var m model.Manifest
		if err := rows.Scan(&m.ID,
			&m.Tenant,
			&m.Project,
			&m.Floor,
			&m.ImageName,
			&m.ArchiveKey,
			&m.Files,
			&m.CreatedAt); err != nil {
			return nil, err
		}
		manifests = append(manifests, m)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return manifests, nil
}

func (p PostgresRepo) TenantsWithPending(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT user_id
	FROM inference_results
	ORDER BY user_id`

	rows, err := p.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	tenants := make([]string, 0)
	for rows.Next() {
		tenant := ""
		if err := rows.Scan(&tenant); err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return tenants, nil
}
