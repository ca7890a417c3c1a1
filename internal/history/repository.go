package history

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Record 一张已保存图片及生成它的参数
type Record struct {
	ID                    int64
	SessionID             string
	ImageIndex            int
	Path                  string
	Prompt                string
	NegativePriorPrompt   string
	NegativeDecoderPrompt string
	Seed                  int64
	Sampler               string
	NumSteps              int
	GuidanceScale         int
	Height                int
	Width                 int
	PriorCFScale          int
	PriorSteps            int
	CreatedAt             time.Time
}

// Repository 生成历史
type Repository interface {
	Create(ctx context.Context, record *Record) (*Record, error)
	ListBySession(ctx context.Context, sessionID string) ([]*Record, error)
	Recent(ctx context.Context, limit int) ([]*Record, error)
}

const insertRecordQuery = `
INSERT INTO generations (session_id, image_index, path, prompt, negative_prior_prompt, negative_decoder_prompt, seed, sampler, num_steps, guidance_scale, height, width, prior_cf_scale, prior_steps, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`

const selectColumns = `id, session_id, image_index, path, prompt, negative_prior_prompt, negative_decoder_prompt, seed, sampler, num_steps, guidance_scale, height, width, prior_cf_scale, prior_steps, created_at`

const listBySessionQuery = `SELECT ` + selectColumns + ` FROM generations WHERE session_id = ? ORDER BY image_index;`

const recentQuery = `SELECT ` + selectColumns + ` FROM generations ORDER BY id DESC LIMIT ?;`

type sqliteRepo struct {
	dbConn *sql.DB
	now    func() time.Time
}

// Config 仓库参数
type Config struct {
	DB *sql.DB
	// Now 为空时使用 time.Now
	Now func() time.Time
}

// NewRepository 基于 sqlite 的仓库
func NewRepository(cfg *Config) (Repository, error) {
	if cfg == nil || cfg.DB == nil {
		return nil, errors.New("missing DB parameter")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &sqliteRepo{dbConn: cfg.DB, now: now}, nil
}

func (repo *sqliteRepo) Create(ctx context.Context, r *Record) (*Record, error) {
	r.CreatedAt = repo.now()

	res, err := repo.dbConn.ExecContext(ctx, insertRecordQuery,
		r.SessionID, r.ImageIndex, r.Path, r.Prompt,
		r.NegativePriorPrompt, r.NegativeDecoderPrompt, r.Seed, r.Sampler,
		r.NumSteps, r.GuidanceScale, r.Height, r.Width,
		r.PriorCFScale, r.PriorSteps, r.CreatedAt.UnixMilli())
	if err != nil {
		return nil, err
	}

	lastID, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	r.ID = lastID
	return r, nil
}

func (repo *sqliteRepo) ListBySession(ctx context.Context, sessionID string) ([]*Record, error) {
	rows, err := repo.dbConn.QueryContext(ctx, listBySessionQuery, sessionID)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (repo *sqliteRepo) Recent(ctx context.Context, limit int) ([]*Record, error) {
	rows, err := repo.dbConn.QueryContext(ctx, recentQuery, limit)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]*Record, error) {
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var r Record
		var createdAt int64
		err := rows.Scan(&r.ID, &r.SessionID, &r.ImageIndex, &r.Path, &r.Prompt,
			&r.NegativePriorPrompt, &r.NegativeDecoderPrompt, &r.Seed, &r.Sampler,
			&r.NumSteps, &r.GuidanceScale, &r.Height, &r.Width,
			&r.PriorCFScale, &r.PriorSteps, &createdAt)
		if err != nil {
			return nil, err
		}
		r.CreatedAt = time.UnixMilli(createdAt)
		records = append(records, &r)
	}
	return records, rows.Err()
}
