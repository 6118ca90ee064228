package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"
)

// insertChunkSize bounds the rows per INSERT statement so each statement
// stays well under the Postgres placeholder limit. All chunks of one batch
// share a single transaction.
const insertChunkSize = 1000

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// Connect establishes a connection to the database
func Connect(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &DB{db}, nil
}

// RunMigrations executes all SQL migration files in order
func (db *DB) RunMigrations(migrationsDir string) error {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		fmt.Printf("Running migration: %s\n", filename)

		filePath := filepath.Join(migrationsDir, filename)
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	return nil
}

// BulkInsertReadings persists a batch with insert-ignore semantics keyed by
// the unique_measurement constraint. The whole batch commits or rolls back
// as one transaction. Returns the number of rows actually inserted;
// attempted minus inserted is the duplicate count.
func (db *DB) BulkInsertReadings(ctx context.Context, readings []Reading) (int64, error) {
	if len(readings) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var inserted int64
	for start := 0; start < len(readings); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(readings) {
			end = len(readings)
		}
		chunk := readings[start:end]

		var sb strings.Builder
		sb.WriteString("INSERT INTO sensor_data (timestamp, pipe_id, sensor_type, sensor_number, value) VALUES ")
		args := make([]interface{}, 0, len(chunk)*5)
		for i, r := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			base := i * 5
			fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5)
			args = append(args, r.Timestamp, r.PipeID, r.SensorType, r.SensorNumber, r.Value)
		}
		sb.WriteString(" ON CONFLICT ON CONSTRAINT unique_measurement DO NOTHING")

		result, err := tx.ExecContext(ctx, sb.String(), args...)
		if err != nil {
			return 0, fmt.Errorf("failed to insert readings: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read affected rows: %w", err)
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit batch: %w", err)
	}
	return inserted, nil
}

// buildFilter renders a ReadingFilter into a WHERE clause and its args.
// argOffset is the index of the first placeholder to use.
func buildFilter(filter ReadingFilter, argOffset int) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	next := func() int { return argOffset + len(args) + 1 }

	if filter.Sensor != nil {
		clauses = append(clauses, fmt.Sprintf("pipe_id = $%d", next()))
		args = append(args, filter.Sensor.PipeID)
		clauses = append(clauses, fmt.Sprintf("sensor_type = $%d", next()))
		args = append(args, filter.Sensor.SensorType)
		clauses = append(clauses, fmt.Sprintf("sensor_number = $%d", next()))
		args = append(args, filter.Sensor.SensorNumber)
	}
	if filter.StartDate != nil {
		clauses = append(clauses, fmt.Sprintf("timestamp >= $%d", next()))
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		clauses = append(clauses, fmt.Sprintf("timestamp <= $%d", next()))
		args = append(args, *filter.EndDate)
	}
	if filter.MinValue != nil {
		clauses = append(clauses, fmt.Sprintf("value >= $%d", next()))
		args = append(args, *filter.MinValue)
	}
	if filter.MaxValue != nil {
		clauses = append(clauses, fmt.Sprintf("value <= $%d", next()))
		args = append(args, *filter.MaxValue)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// QueryReadings returns filtered readings ordered by timestamp. A limit of
// zero means no limit.
func (db *DB) QueryReadings(ctx context.Context, filter ReadingFilter, limit, offset int) ([]Reading, error) {
	where, args := buildFilter(filter, 0)
	query := "SELECT id, timestamp, pipe_id, sensor_type, sensor_number, value FROM sensor_data" +
		where + " ORDER BY timestamp, pipe_id, sensor_type, sensor_number"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		var r Reading
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.PipeID, &r.SensorType, &r.SensorNumber, &r.Value); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// CountReadings returns the number of readings matching the filter.
func (db *DB) CountReadings(ctx context.Context, filter ReadingFilter) (int, error) {
	where, args := buildFilter(filter, 0)

	var total int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sensor_data"+where, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count readings: %w", err)
	}
	return total, nil
}

// StreamReadings walks every reading in timestamp order, invoking fn per
// row. Rows are pulled from the driver cursor incrementally so the full
// table is never buffered in memory.
func (db *DB) StreamReadings(ctx context.Context, fn func(Reading) error) error {
	rows, err := db.QueryContext(ctx,
		"SELECT id, timestamp, pipe_id, sensor_type, sensor_number, value FROM sensor_data ORDER BY timestamp")
	if err != nil {
		return fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r Reading
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.PipeID, &r.SensorType, &r.SensorNumber, &r.Value); err != nil {
			return fmt.Errorf("failed to scan reading: %w", err)
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ListSensors returns the distinct sensor id strings present in the store.
func (db *DB) ListSensors(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT pipe_id, sensor_type, sensor_number
		FROM sensor_data
		ORDER BY pipe_id, sensor_type, sensor_number
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sensors: %w", err)
	}
	defer rows.Close()

	var sensors []string
	for rows.Next() {
		var r Reading
		if err := rows.Scan(&r.PipeID, &r.SensorType, &r.SensorNumber); err != nil {
			return nil, fmt.Errorf("failed to scan sensor: %w", err)
		}
		sensors = append(sensors, r.SensorID())
	}
	return sensors, rows.Err()
}

// GetExtremes returns the min/max value over the filtered reading set.
// Both fields are nil when nothing matches.
func (db *DB) GetExtremes(ctx context.Context, filter ReadingFilter) (Extremes, error) {
	where, args := buildFilter(filter, 0)

	var ex Extremes
	err := db.QueryRowContext(ctx,
		"SELECT MIN(value), MAX(value) FROM sensor_data"+where, args...).Scan(&ex.Min, &ex.Max)
	if err != nil {
		return Extremes{}, fmt.Errorf("failed to query extremes: %w", err)
	}
	return ex, nil
}
