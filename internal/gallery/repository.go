package gallery

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	CreateSource(ctx context.Context, source *Source) error
	GetSource(ctx context.Context, id string) (*Source, error)
	GetSourceByPath(ctx context.Context, path string) (*Source, error)
	ListSources(ctx context.Context) ([]*Source, error)
	DeleteSource(ctx context.Context, id string) error
	UpdateSourcePresent(ctx context.Context, id string, present bool) error

	GetVideo(ctx context.Context, id string) (*Video, error)
	ListVideos(ctx context.Context) ([]*Video, error)
	GetVideosBySource(ctx context.Context, sourceID string) ([]*Video, error)
	DeleteVideosBySource(ctx context.Context, sourceID string) error
	UpsertVideo(ctx context.Context, video *Video) error
	UpdateVideoProbe(ctx context.Context, video *Video) error
	CountVideos(ctx context.Context) (int, error)

	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	ListPendingJobs(ctx context.Context) ([]*Job, error)
	UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateJobProgress(ctx context.Context, id string, progress int) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateSource(ctx context.Context, s *Source) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sources (id, type, path, display_name, present, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.ID, s.Type, s.Path, s.DisplayName, boolToInt(s.Present), s.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetSource(ctx context.Context, id string) (*Source, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, type, path, display_name, present, created_at
		FROM sources WHERE id = ?
	`, id)
	return r.scanSource(row)
}

func (r *SQLiteRepository) GetSourceByPath(ctx context.Context, path string) (*Source, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, type, path, display_name, present, created_at
		FROM sources WHERE path = ?
	`, path)
	return r.scanSource(row)
}

func (r *SQLiteRepository) scanSource(row *sql.Row) (*Source, error) {
	var s Source
	var present int
	var createdAt string

	err := row.Scan(&s.ID, &s.Type, &s.Path, &s.DisplayName, &present, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.Present = present == 1
	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &s, nil
}

func (r *SQLiteRepository) ListSources(ctx context.Context) ([]*Source, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, path, display_name, present, created_at
		FROM sources ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*Source
	for rows.Next() {
		var s Source
		var present int
		var createdAt string

		if err := rows.Scan(&s.ID, &s.Type, &s.Path, &s.DisplayName, &present, &createdAt); err != nil {
			return nil, err
		}
		s.Present = present == 1
		s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		sources = append(sources, &s)
	}
	return sources, rows.Err()
}

func (r *SQLiteRepository) DeleteSource(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM sources WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) UpdateSourcePresent(ctx context.Context, id string, present bool) error {
	_, err := r.db.ExecContext(ctx, "UPDATE sources SET present = ? WHERE id = ?", boolToInt(present), id)
	return err
}

const videoColumns = `id, source_id, path, filename, size, mtime, fingerprint,
	duration_ms, width, height, rotation, has_audio, probed, created_at`

func (r *SQLiteRepository) GetVideo(ctx context.Context, id string) (*Video, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+videoColumns+` FROM videos WHERE id = ?
	`, id)

	var v Video
	if err := scanVideo(row.Scan, &v); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *SQLiteRepository) ListVideos(ctx context.Context) ([]*Video, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+videoColumns+` FROM videos ORDER BY created_at DESC, filename
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectVideos(rows)
}

func (r *SQLiteRepository) GetVideosBySource(ctx context.Context, sourceID string) ([]*Video, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+videoColumns+` FROM videos WHERE source_id = ? ORDER BY filename
	`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectVideos(rows)
}

func collectVideos(rows *sql.Rows) ([]*Video, error) {
	var videos []*Video
	for rows.Next() {
		var v Video
		if err := scanVideo(rows.Scan, &v); err != nil {
			return nil, err
		}
		videos = append(videos, &v)
	}
	return videos, rows.Err()
}

func scanVideo(scan func(dest ...any) error, v *Video) error {
	var mtime, createdAt string
	var durationMS int64
	var hasAudio, probed int

	err := scan(&v.ID, &v.SourceID, &v.Path, &v.Filename, &v.Size, &mtime, &v.Fingerprint,
		&durationMS, &v.Width, &v.Height, &v.Rotation, &hasAudio, &probed, &createdAt)
	if err != nil {
		return err
	}

	v.Mtime, _ = time.Parse(time.RFC3339, mtime)
	v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	v.Duration = time.Duration(durationMS) * time.Millisecond
	v.HasAudio = hasAudio == 1
	v.Probed = probed == 1
	return nil
}

func (r *SQLiteRepository) DeleteVideosBySource(ctx context.Context, sourceID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM videos WHERE source_id = ?", sourceID)
	return err
}

func (r *SQLiteRepository) UpsertVideo(ctx context.Context, v *Video) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO videos (id, source_id, path, filename, size, mtime, fingerprint, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			size = excluded.size,
			mtime = excluded.mtime,
			fingerprint = excluded.fingerprint,
			probed = CASE WHEN fingerprint = excluded.fingerprint THEN probed ELSE 0 END
	`, v.ID, v.SourceID, v.Path, v.Filename, v.Size, v.Mtime.Format(time.RFC3339), v.Fingerprint, v.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) UpdateVideoProbe(ctx context.Context, v *Video) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE videos SET duration_ms = ?, width = ?, height = ?, rotation = ?, has_audio = ?, probed = 1
		WHERE id = ?
	`, v.Duration.Milliseconds(), v.Width, v.Height, v.Rotation, boolToInt(v.HasAudio), v.ID)
	return err
}

func (r *SQLiteRepository) CountVideos(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM videos").Scan(&count)
	return count, err
}

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, type, status, source_id, video_id, progress, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Type, j.Status, nullString(j.SourceID), nullString(j.VideoID),
		j.Progress, nullString(j.Error),
		j.CreatedAt.Format(time.RFC3339), j.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, type, status, source_id, video_id, progress, error, created_at, updated_at
		FROM jobs WHERE id = ?
	`, id)
	return r.scanJob(row)
}

func (r *SQLiteRepository) scanJob(row *sql.Row) (*Job, error) {
	var j Job
	var sourceID, videoID, errMsg sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&j.ID, &j.Type, &j.Status, &sourceID, &videoID, &j.Progress, &errMsg, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	j.SourceID = sourceID.String
	j.VideoID = videoID.String
	j.Error = errMsg.String
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &j, nil
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, status, source_id, video_id, progress, error, created_at, updated_at
		FROM jobs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanJobs(rows)
}

func (r *SQLiteRepository) ListPendingJobs(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, status, source_id, video_id, progress, error, created_at, updated_at
		FROM jobs WHERE status = 'pending' ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanJobs(rows)
}

func (r *SQLiteRepository) scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		var j Job
		var sourceID, videoID, errMsg sql.NullString
		var createdAt, updatedAt string

		if err := rows.Scan(&j.ID, &j.Type, &j.Status, &sourceID, &videoID, &j.Progress, &errMsg, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		j.SourceID = sourceID.String
		j.VideoID = videoID.String
		j.Error = errMsg.String
		j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

func (r *SQLiteRepository) UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = datetime('now') WHERE id = ?
	`, status, nullString(errorMsg), id)
	return err
}

func (r *SQLiteRepository) UpdateJobProgress(ctx context.Context, id string, progress int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET progress = ?, updated_at = datetime('now') WHERE id = ?
	`, progress, id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
