package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION SUPPORT
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator handles database migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	return nil
}

// GetAppliedMigrations returns all applied migrations.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	query := fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName)

	rows, err := m.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time

		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}

		applied[version] = appliedAt
	}

	return applied, rows.Err()
}

// Migrate applies all pending migrations, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return 0, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range m.migrations {
		if _, isApplied := applied[mig.Version]; isApplied {
			continue
		}

		if mig.UpSQL == "" {
			return count, fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			insertQuery := fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName)
			_, err := tx.Exec(ctx, insertQuery, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return count, fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
		count++
	}

	return count, nil
}

// Rollback rolls back the last applied migration. It returns the rolled
// back version, or 0 when nothing was applied.
func (m *Migrator) Rollback(ctx context.Context) (int, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return 0, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	var lastVersion int
	for v := range applied {
		if v > lastVersion {
			lastVersion = v
		}
	}

	if lastVersion == 0 {
		return 0, nil
	}

	var migration *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == lastVersion {
			migration = &m.migrations[i]
			break
		}
	}

	if migration == nil || migration.DownSQL == "" {
		return 0, fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, lastVersion)
	}

	err = m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", lastVersion, err)
		}
		deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName)
		_, err := tx.Exec(ctx, deleteQuery, lastVersion)
		return err
	})
	if err != nil {
		return 0, err
	}
	return lastVersion, nil
}

// Status returns the migration status.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Migration, len(m.migrations))
	copy(result, m.migrations)

	for i := range result {
		if appliedAt, ok := applied[result[i].Version]; ok {
			result[i].IsApplied = true
			result[i].AppliedAt = appliedAt
		}
	}

	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_identity",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_catalog",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_batches_and_enrollments",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}

// Constraint names the repositories dispatch on.
const (
	constraintUserKey            = "users_pkey"
	constraintUserEmail          = "uq_users_email"
	constraintStudentKey         = "students_pkey"
	constraintStudentEmail       = "uq_students_email"
	constraintBatchCode          = "uq_batches_code"
	constraintEnrollmentNumber   = "uq_enrollments_number"
	constraintActiveEnrollment   = "uq_enrollments_active_student_course"
	constraintBatchCourse        = "fk_batches_course"
	constraintBatchInstructor    = "fk_batches_instructor"
	constraintEnrollmentStudent  = "fk_enrollments_student"
	constraintEnrollmentCourse   = "fk_enrollments_course"
	constraintEnrollmentBatch    = "fk_enrollments_batch"
	constraintSeatCount          = "ck_batches_current_enrollment"
	constraintEnrollmentProgress = "ck_enrollments_progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: IDENTITY
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS users (
    user_id VARCHAR(40) PRIMARY KEY,
    email VARCHAR(254) NOT NULL,
    full_name VARCHAR(200) NOT NULL DEFAULT '',
    role VARCHAR(20) NOT NULL DEFAULT 'user',
    status VARCHAR(20) NOT NULL DEFAULT 'Active',
    password_hash TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_users_email UNIQUE (email),
    CONSTRAINT ck_users_role CHECK (role IN ('user', 'admin', 'teacher', 'student')),
    CONSTRAINT ck_users_status CHECK (status IN ('Active', 'Inactive'))
);

CREATE TABLE IF NOT EXISTS students (
    student_id VARCHAR(40) PRIMARY KEY,
    first_name VARCHAR(100) NOT NULL,
    last_name VARCHAR(100) NOT NULL DEFAULT '',
    date_of_birth DATE,
    gender VARCHAR(20) NOT NULL DEFAULT '',
    profile_photo_url TEXT NOT NULL DEFAULT '',
    email VARCHAR(254) NOT NULL,
    mobile_number VARCHAR(20) NOT NULL,
    emergency_contact VARCHAR(20) NOT NULL DEFAULT '',
    residential_address TEXT NOT NULL DEFAULT '',
    current_status VARCHAR(40) NOT NULL DEFAULT 'Student',
    highest_qualification VARCHAR(100) NOT NULL DEFAULT '',
    id_proof_type VARCHAR(50) NOT NULL DEFAULT 'Aadhaar Card',
    id_number VARCHAR(50) NOT NULL DEFAULT '',
    lead_source VARCHAR(100) NOT NULL DEFAULT 'Instagram Ad',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_students_email UNIQUE (email)
);

CREATE INDEX IF NOT EXISTS idx_students_current_status ON students(current_status);
CREATE INDEX IF NOT EXISTS idx_students_search ON students USING GIN (
    to_tsvector('simple', coalesce(first_name, '') || ' ' || coalesce(last_name, '') || ' ' || coalesce(email, ''))
);
`

const migration001Down = `
DROP TABLE IF EXISTS students;
DROP TABLE IF EXISTS users;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CATALOG
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS courses (
    id UUID PRIMARY KEY,
    title VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    thumbnail_url TEXT NOT NULL DEFAULT '',
    learning_points TEXT[] NOT NULL DEFAULT '{}',
    status VARCHAR(20) NOT NULL DEFAULT 'DRAFT',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT ck_courses_status CHECK (status IN ('DRAFT', 'PUBLISHED', 'ARCHIVED'))
);

CREATE TABLE IF NOT EXISTS modules (
    id UUID PRIMARY KEY,
    course_id UUID NOT NULL,
    title VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    position INTEGER NOT NULL DEFAULT 0,
    is_published BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT fk_modules_course FOREIGN KEY (course_id) REFERENCES courses(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_modules_course_position ON modules(course_id, position, created_at);

CREATE TABLE IF NOT EXISTS lessons (
    id UUID PRIMARY KEY,
    module_id UUID NOT NULL,
    title VARCHAR(200) NOT NULL,
    lesson_type VARCHAR(20) NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    media_url TEXT NOT NULL DEFAULT '',
    resources TEXT[] NOT NULL DEFAULT '{}',
    duration_minutes INTEGER NOT NULL DEFAULT 0,
    position INTEGER NOT NULL DEFAULT 0,
    is_published BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT fk_lessons_module FOREIGN KEY (module_id) REFERENCES modules(id) ON DELETE CASCADE,
    CONSTRAINT ck_lessons_type CHECK (lesson_type IN ('video', 'text', 'quiz', 'assignment', 'live')),
    CONSTRAINT ck_lessons_duration CHECK (duration_minutes >= 0)
);

CREATE INDEX IF NOT EXISTS idx_lessons_module_position ON lessons(module_id, position, created_at);
`

const migration002Down = `
DROP TABLE IF EXISTS lessons;
DROP TABLE IF EXISTS modules;
DROP TABLE IF EXISTS courses;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: BATCHES & ENROLLMENT LEDGER
// No trigger maintains current_enrollment; the application ledger does.
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS batches (
    id UUID PRIMARY KEY,
    course_id UUID NOT NULL,
    batch_name VARCHAR(200) NOT NULL,
    batch_code VARCHAR(50) NOT NULL,
    start_date DATE NOT NULL,
    end_date DATE,
    schedule_type VARCHAR(20) NOT NULL DEFAULT 'weekday',
    days_of_week TEXT[] NOT NULL DEFAULT '{}',
    time_slot VARCHAR(100) NOT NULL DEFAULT '',
    instructor_id VARCHAR(40),
    max_capacity INTEGER NOT NULL DEFAULT 30,
    current_enrollment INTEGER NOT NULL DEFAULT 0,
    status VARCHAR(20) NOT NULL DEFAULT 'upcoming',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_batches_code UNIQUE (batch_code),
    CONSTRAINT fk_batches_course FOREIGN KEY (course_id) REFERENCES courses(id) ON DELETE CASCADE,
    CONSTRAINT fk_batches_instructor FOREIGN KEY (instructor_id) REFERENCES users(user_id) ON DELETE SET NULL,
    CONSTRAINT ck_batches_current_enrollment CHECK (current_enrollment >= 0),
    CONSTRAINT ck_batches_capacity CHECK (max_capacity > 0),
    CONSTRAINT ck_batches_dates CHECK (end_date IS NULL OR end_date >= start_date),
    CONSTRAINT ck_batches_status CHECK (status IN ('upcoming', 'active', 'completed', 'cancelled')),
    CONSTRAINT ck_batches_schedule_type CHECK (schedule_type IN ('weekday', 'weekend', 'custom'))
);

CREATE INDEX IF NOT EXISTS idx_batches_course ON batches(course_id);
CREATE INDEX IF NOT EXISTS idx_batches_status ON batches(status);

CREATE TABLE IF NOT EXISTS enrollments (
    id UUID PRIMARY KEY,
    enrollment_number VARCHAR(30) NOT NULL,
    student_id VARCHAR(40) NOT NULL,
    course_id UUID NOT NULL,
    batch_id UUID NOT NULL,
    enrollment_date DATE NOT NULL DEFAULT CURRENT_DATE,
    start_date DATE NOT NULL,
    completion_date DATE,
    status VARCHAR(20) NOT NULL DEFAULT 'active',
    progress_percentage NUMERIC(5,2) NOT NULL DEFAULT 0.00,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_enrollments_number UNIQUE (enrollment_number),
    CONSTRAINT fk_enrollments_student FOREIGN KEY (student_id) REFERENCES students(student_id) ON DELETE CASCADE,
    CONSTRAINT fk_enrollments_course FOREIGN KEY (course_id) REFERENCES courses(id) ON DELETE CASCADE,
    CONSTRAINT fk_enrollments_batch FOREIGN KEY (batch_id) REFERENCES batches(id) ON DELETE CASCADE,
    CONSTRAINT ck_enrollments_progress CHECK (progress_percentage >= 0 AND progress_percentage <= 100),
    CONSTRAINT ck_enrollments_status CHECK (status IN ('active', 'completed', 'dropped'))
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_enrollments_active_student_course
    ON enrollments(student_id, course_id) WHERE status = 'active';
CREATE INDEX IF NOT EXISTS idx_enrollments_student ON enrollments(student_id, created_at);
CREATE INDEX IF NOT EXISTS idx_enrollments_batch_status ON enrollments(batch_id, status);
`

const migration003Down = `
DROP TABLE IF EXISTS enrollments;
DROP TABLE IF EXISTS batches;
`
