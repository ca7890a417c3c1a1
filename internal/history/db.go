package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"
)

// DBFile 默认的历史数据库文件名
const DBFile = "history.sqlite"

const getCurrentMigration = `PRAGMA user_version;`
const setCurrentMigration = `PRAGMA user_version = ?;`

const createGenerationsTableQuery = `
CREATE TABLE IF NOT EXISTS generations (
id INTEGER NOT NULL PRIMARY KEY,
session_id TEXT NOT NULL,
image_index INTEGER NOT NULL,
path TEXT NOT NULL,
prompt TEXT NOT NULL,
negative_prior_prompt TEXT NOT NULL DEFAULT '',
negative_decoder_prompt TEXT NOT NULL DEFAULT '',
seed INTEGER NOT NULL,
sampler TEXT NOT NULL,
num_steps INTEGER NOT NULL,
guidance_scale INTEGER NOT NULL,
height INTEGER NOT NULL,
width INTEGER NOT NULL,
prior_cf_scale INTEGER NOT NULL,
prior_steps INTEGER NOT NULL,
created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS generations_session_index
ON generations(session_id);
`

type migration struct {
	name  string
	query string
}

var migrations = []migration{
	{name: "create generations table", query: createGenerationsTableQuery},
}

// Open 打开（必要时创建）历史数据库并执行迁移
func Open(ctx context.Context, path string, logger *log.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("创建历史数据库目录失败: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开历史数据库失败: %w", err)
	}
	// sqlite 单写者
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db, logger.WithPrefix("history")); err != nil {
		db.Close()
		return nil, fmt.Errorf("迁移历史数据库失败: %w", err)
	}
	return db, nil
}

func migrate(ctx context.Context, db *sql.DB, logger *log.Logger) error {
	var current int
	if err := db.QueryRowContext(ctx, getCurrentMigration).Scan(&current); err != nil {
		return err
	}

	required := len(migrations)
	logger.Debug("数据库版本", "current", current, "required", required)

	for num := current + 1; num <= required; num++ {
		if err := execMigration(ctx, db, num, logger); err != nil {
			logger.Error("迁移失败", "num", num, "name", migrations[num-1].name, "err", err)
			return err
		}
	}
	return nil
}

func execMigration(ctx context.Context, db *sql.DB, num int, logger *log.Logger) error {
	logger.Info("执行迁移", "num", num, "name", migrations[num-1].name)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	//nolint
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, migrations[num-1].query); err != nil {
		return err
	}

	setQuery := strings.Replace(setCurrentMigration, "?", strconv.Itoa(num), 1)
	if _, err := tx.ExecContext(ctx, setQuery); err != nil {
		return err
	}
	return tx.Commit()
}
