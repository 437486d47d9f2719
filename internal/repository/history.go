package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"wisefido-firewatch/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgreSQL 错误码
const (
	pqDuplicateSchema = "42P06"
	pqDuplicateTable  = "42P07"
)

// DefaultHistoryLimit 历史查询最大返回行数
const DefaultHistoryLimit = 1000

// HistoryRepository 传感器读数历史仓库（dataset 对应 schema，table 对应表）
type HistoryRepository struct {
	db      *sql.DB
	dataset string
	table   string
	logger  *zap.Logger
}

// NewHistoryRepository 创建历史仓库
func NewHistoryRepository(db *sql.DB, dataset, table string, logger *zap.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:      db,
		dataset: dataset,
		table:   table,
		logger:  logger,
	}
}

// TableID 返回 "dataset.table"
func (r *HistoryRepository) TableID() string {
	return r.dataset + "." + r.table
}

func (r *HistoryRepository) qualifiedTable() string {
	return pq.QuoteIdentifier(r.dataset) + "." + pq.QuoteIdentifier(r.table)
}

// Ping 测试连接
func (r *HistoryRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// EnsureSchema 确保 schema 和表存在（先检查再创建，已存在时不报错）
func (r *HistoryRepository) EnsureSchema(ctx context.Context) error {
	var schemaExists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`,
		r.dataset,
	).Scan(&schemaExists)
	if err != nil {
		return fmt.Errorf("failed to check schema: %w", err)
	}

	if schemaExists {
		r.logger.Info("History dataset exists", zap.String("dataset", r.dataset))
	} else {
		_, err := r.db.ExecContext(ctx, `CREATE SCHEMA `+pq.QuoteIdentifier(r.dataset))
		if err != nil && !isPQCode(err, pqDuplicateSchema) {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		r.logger.Info("Created history dataset", zap.String("dataset", r.dataset))
	}

	var tableExists bool
	err = r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2)`,
		r.dataset, r.table,
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("failed to check table: %w", err)
	}

	if tableExists {
		r.logger.Info("History table exists", zap.String("table_id", r.TableID()))
		return nil
	}

	query := `
		CREATE TABLE ` + r.qualifiedTable() + ` (
			detection_id        TEXT             NOT NULL,
			file_name           TEXT             NOT NULL,
			file_path           TEXT             NOT NULL,
			location            TEXT             NOT NULL,
			temperature         DOUBLE PRECISION NOT NULL,
			smoke_level         DOUBLE PRECISION NOT NULL,
			sensor_timestamp    TIMESTAMPTZ      NOT NULL,
			detection_timestamp TIMESTAMPTZ      NOT NULL,
			file_size           BIGINT,
			total_readings      INTEGER
		)
	`
	if _, err := r.db.ExecContext(ctx, query); err != nil && !isPQCode(err, pqDuplicateTable) {
		return fmt.Errorf("failed to create table: %w", err)
	}
	r.logger.Info("Created history table", zap.String("table_id", r.TableID()))
	return nil
}

// InsertRows 在一个事务中批量写入
// 行级错误通过返回的 RowError 列表报告（此时整批回滚）；连接/事务级错误通过 error 返回
func (r *HistoryRepository) InsertRows(ctx context.Context, rows []models.HistoryRecord) ([]models.RowError, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	query := `
		INSERT INTO ` + r.qualifiedTable() + ` (
			detection_id,
			file_name,
			file_path,
			location,
			temperature,
			smoke_level,
			sensor_timestamp,
			detection_timestamp,
			file_size,
			total_readings
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	var rowErrors []models.RowError
	for i, rec := range rows {
		if _, err := tx.ExecContext(ctx, `SAVEPOINT history_row`); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("failed to create savepoint: %w", err)
		}

		_, err := tx.ExecContext(ctx, query,
			rec.DetectionID,
			rec.FileName,
			rec.FilePath,
			rec.Location,
			rec.Temperature,
			rec.SmokeLevel,
			rec.SensorTimestamp,
			rec.DetectionTimestamp,
			nullableInt64(rec.FileSize),
			nullableInt(rec.TotalReadings),
		)
		if err != nil {
			rowErrors = append(rowErrors, models.RowError{Index: i, Message: err.Error()})
			if _, rbErr := tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT history_row`); rbErr != nil {
				_ = tx.Rollback()
				return nil, fmt.Errorf("failed to roll back savepoint: %w", rbErr)
			}
			continue
		}

		if _, err := tx.ExecContext(ctx, `RELEASE SAVEPOINT history_row`); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("failed to release savepoint: %w", err)
		}
	}

	if len(rowErrors) > 0 {
		if err := tx.Rollback(); err != nil {
			r.logger.Warn("Failed to roll back history insert", zap.Error(err))
		}
		return rowErrors, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit history rows: %w", err)
	}
	return nil, nil
}

// QueryHistory 按时间窗口（可选位置）查询历史，按 sensor_timestamp 倒序
func (r *HistoryRepository) QueryHistory(ctx context.Context, filter models.HistoryFilter) ([]models.HistoryRecord, error) {
	limit := filter.Limit
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}

	where := []string{"detection_timestamp >= $1"}
	args := []any{filter.Since}
	if filter.Location != nil && *filter.Location != "" {
		args = append(args, *filter.Location)
		where = append(where, fmt.Sprintf("location = $%d", len(args)))
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT
			detection_id,
			file_name,
			file_path,
			location,
			temperature,
			smoke_level,
			sensor_timestamp,
			detection_timestamp,
			file_size,
			total_readings
		FROM %s
		WHERE %s
		ORDER BY sensor_timestamp DESC
		LIMIT $%d
	`, r.qualifiedTable(), strings.Join(where, " AND "), len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	records := []models.HistoryRecord{}
	for rows.Next() {
		var rec models.HistoryRecord
		var fileSize, totalReadings sql.NullInt64
		if err := rows.Scan(
			&rec.DetectionID,
			&rec.FileName,
			&rec.FilePath,
			&rec.Location,
			&rec.Temperature,
			&rec.SmokeLevel,
			&rec.SensorTimestamp,
			&rec.DetectionTimestamp,
			&fileSize,
			&totalReadings,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if fileSize.Valid {
			v := fileSize.Int64
			rec.FileSize = &v
		}
		if totalReadings.Valid {
			v := int(totalReadings.Int64)
			rec.TotalReadings = &v
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}

	return records, nil
}

func isPQCode(err error, code string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == code
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}
