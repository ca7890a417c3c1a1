package history

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func openTestDB(t *testing.T) Repository {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, filepath.Join(t.TempDir(), "nested", DBFile), log.New(io.Discard))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo, err := NewRepository(&Config{DB: db, Now: func() time.Time { return fixed }})
	if err != nil {
		t.Fatalf("NewRepository failed: %v", err)
	}
	return repo
}

func TestOpenIsRepeatable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DBFile)

	for i := 0; i < 2; i++ {
		db, err := Open(ctx, path, log.New(io.Discard))
		if err != nil {
			t.Fatalf("第 %d 次 Open 失败: %v", i+1, err)
		}
		var version int
		if err := db.QueryRow(getCurrentMigration).Scan(&version); err != nil {
			t.Fatalf("读取版本失败: %v", err)
		}
		if version != 1 || len(migrations) != 1 {
			t.Errorf("version = %d, migrations = %d, want 1", version, len(migrations))
		}
		var index string
		err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'generations_session_index'`).Scan(&index)
		if err != nil {
			t.Errorf("缺少 session 索引: %v", err)
		}
		db.Close()
	}
}

func TestCreateAndListBySession(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		sessionID := "session-a"
		if i == 1 {
			sessionID = "session-b"
		}
		r, err := repo.Create(ctx, &Record{
			SessionID:     sessionID,
			ImageIndex:    i,
			Path:          filepath.Join("outputs", "image_0.png"),
			Prompt:        "a red fox",
			Seed:          42,
			Sampler:       "ddim_sampler",
			NumSteps:      75,
			GuidanceScale: 10,
			Height:        768,
			Width:         512,
			PriorCFScale:  4,
			PriorSteps:    4,
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if r.ID == 0 {
			t.Error("ID 未设置")
		}
	}

	records, err := repo.ListBySession(ctx, "session-a")
	if err != nil {
		t.Fatalf("ListBySession failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].ImageIndex != 0 || records[1].ImageIndex != 2 {
		t.Errorf("order = %d, %d", records[0].ImageIndex, records[1].ImageIndex)
	}

	r := records[0]
	if r.Prompt != "a red fox" || r.Seed != 42 || r.Sampler != "ddim_sampler" || r.Width != 512 {
		t.Errorf("record = %+v", r)
	}
	if !r.CreatedAt.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("CreatedAt = %v", r.CreatedAt)
	}
}

func TestRecent(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := repo.Create(ctx, &Record{SessionID: "s", ImageIndex: i}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	records, err := repo.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].ImageIndex != 4 || records[1].ImageIndex != 3 {
		t.Errorf("Recent 应按新到旧排序, got %d, %d", records[0].ImageIndex, records[1].ImageIndex)
	}
}

func TestNewRepositoryMissingDB(t *testing.T) {
	if _, err := NewRepository(&Config{}); err == nil {
		t.Error("Expected error for missing DB")
	}
}
