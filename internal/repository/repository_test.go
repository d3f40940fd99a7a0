package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/timmy/tally/internal/config"
	"github.com/timmy/tally/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	// Every connection to :memory: is a separate database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func constituency(year, number int, name string) *domain.ConstituencyResult {
	return &domain.ConstituencyResult{
		Election:           "General",
		ElectionYear:       year,
		ConstituencyNumber: number,
		ConstituencyName:   name,
		TotalVoters:        1000,
		PercentTurnout:     decimal.RequireFromString("61.25"),
		Participants: datatypes.NewJSONSlice([]domain.Candidate{
			{Candidate: "A", Vote: 400},
			{Candidate: "B", Vote: 212},
		}),
	}
}

func TestInitDB_SQLite(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        "file:initdb?mode=memory&cache=shared",
		AutoMigrate: true,
		LogLevel:    "silent",
	}
	db, err := InitDB(cfg)
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	for _, table := range []string{"bulk_upload_jobs", "constituency_results", "center_results"} {
		if !db.Migrator().HasTable(table) {
			t.Errorf("table %s not migrated", table)
		}
	}
}

func TestInitDB_UnknownDriver(t *testing.T) {
	if _, err := InitDB(&config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestJobRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(openTestDB(t))

	job := &domain.BulkUploadJob{
		OwnerID:        "u1",
		RecordType:     domain.RecordTypeConstituency,
		ElectionYear:   2024,
		SourceFileName: "results.csv",
	}
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if job.ID == "" || job.Status != domain.JobStatusUploaded {
		t.Fatalf("Create did not assign defaults: %+v", job)
	}

	now := time.Now()
	job.Status = domain.JobStatusCompleted
	job.TotalRows = 3
	job.Progress = domain.JobProgress{Processed: 3, Successful: 2, Failed: 1}
	job.ValidationErrors = datatypes.NewJSONSlice([]domain.RowError{{
		RowNumber:   2,
		BusinessKey: map[string]string{"constituency_number": "7"},
		Errors:      []domain.FieldError{{Field: "participant_details", Message: "at least 2 candidates are required"}},
	}})
	job.CompletedAt = &now
	if err := repo.Save(ctx, job); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.JobStatusCompleted || got.Progress.Successful != 2 || got.Progress.Failed != 1 {
		t.Errorf("reloaded job = %+v", got)
	}
	if len(got.ValidationErrors) != 1 || got.ValidationErrors[0].BusinessKey["constituency_number"] != "7" {
		t.Errorf("validation errors = %+v", got.ValidationErrors)
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID(missing) err = %v, want ErrNotFound", err)
	}
}

func TestJobRepository_SaveKeepsTerminalJobs(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(openTestDB(t))

	job := &domain.BulkUploadJob{OwnerID: "u1", RecordType: domain.RecordTypeCenter, ElectionYear: 2024}
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// unchanged state is not a conflict
	if err := repo.Save(ctx, job); err != nil {
		t.Fatalf("Save(unchanged): %v", err)
	}

	closed := *job
	closed.Status = domain.JobStatusFailed
	if err := repo.Save(ctx, &closed); err != nil {
		t.Fatalf("Save(failed): %v", err)
	}

	job.Status = domain.JobStatusProcessing
	job.TotalRows = 10
	if err := repo.Save(ctx, job); !errors.Is(err, ErrJobClosed) {
		t.Fatalf("Save after close err = %v, want ErrJobClosed", err)
	}
	got, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.JobStatusFailed || got.TotalRows != 0 {
		t.Errorf("closed job was overwritten: status=%s total=%d", got.Status, got.TotalRows)
	}

	if err := repo.Save(ctx, &domain.BulkUploadJob{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Save(missing) err = %v, want ErrNotFound", err)
	}
}

func TestJobRepository_Listing(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(openTestDB(t))

	statuses := []domain.JobStatus{domain.JobStatusUploaded, domain.JobStatusProcessing, domain.JobStatusCompleted}
	for i, st := range statuses {
		job := &domain.BulkUploadJob{
			OwnerID:    "u1",
			RecordType: domain.RecordTypeCenter,
			Status:     st,
			CreatedAt:  time.Now().Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(ctx, job); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := repo.Create(ctx, &domain.BulkUploadJob{OwnerID: "u2", RecordType: domain.RecordTypeCenter}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	jobs, total, err := repo.ListByOwner(ctx, "u1", 2, 0)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if total != 3 || len(jobs) != 2 {
		t.Fatalf("ListByOwner = %d jobs of %d, want 2 of 3", len(jobs), total)
	}
	if jobs[0].Status != domain.JobStatusCompleted {
		t.Errorf("newest job first: got %s", jobs[0].Status)
	}

	inFlight, err := repo.ListByStatus(ctx, domain.JobStatusUploaded, domain.JobStatusProcessing)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	// u1 has one uploaded and one processing job, u2 one uploaded job.
	if len(inFlight) != 3 {
		t.Errorf("ListByStatus = %d jobs, want 3", len(inFlight))
	}
}

func TestResultRepository_FindInsertUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewResultRepository(openTestDB(t))

	rec := constituency(2024, 7, "Dhaka-7")
	if _, found, err := repo.FindByKey(ctx, rec); err != nil || found {
		t.Fatalf("FindByKey before insert = %v, %v", found, err)
	}

	id, err := repo.Insert(ctx, rec)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	gotID, found, err := repo.FindByKey(ctx, constituency(2024, 7, "other name"))
	if err != nil || !found || gotID != id {
		t.Fatalf("FindByKey = %q, %v, %v; want %q", gotID, found, err, id)
	}
	if _, found, _ := repo.FindByKey(ctx, constituency(2019, 7, "Dhaka-7")); found {
		t.Error("FindByKey matched a different election year")
	}

	update := constituency(2024, 7, "Dhaka-7 (renamed)")
	update.TotalVoters = 0
	if err := repo.UpdateByID(ctx, id, update); err != nil {
		t.Fatalf("UpdateByID: %v", err)
	}

	var stored domain.ConstituencyResult
	if err := repo.db.First(&stored, "id = ?", id).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.ConstituencyName != "Dhaka-7 (renamed)" {
		t.Errorf("name = %q, want renamed", stored.ConstituencyName)
	}
	if stored.TotalVoters != 0 {
		t.Errorf("zero values should be written, TotalVoters = %d", stored.TotalVoters)
	}
	if stored.CreatedAt.IsZero() {
		t.Error("CreatedAt was cleared by update")
	}
	if len(stored.Participants) != 2 || stored.Participants[1].Vote != 212 {
		t.Errorf("participants = %+v", stored.Participants)
	}

	n, err := repo.Count(ctx, domain.RecordTypeConstituency)
	if err != nil || n != 1 {
		t.Errorf("Count = %d, %v; want 1", n, err)
	}

	if err := repo.UpdateByID(ctx, "missing", constituency(2024, 8, "x")); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateByID(missing) err = %v, want ErrNotFound", err)
	}
}

func TestResultRepository_UniqueKey(t *testing.T) {
	ctx := context.Background()
	repo := NewResultRepository(openTestDB(t))

	lat := 23.7
	first := &domain.CenterResult{ElectionYear: 2024, ConstituencyID: 1, CenterNo: 4, Center: "School", Lat: &lat}
	if _, err := repo.Insert(ctx, first); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	dup := &domain.CenterResult{ElectionYear: 2024, ConstituencyID: 1, CenterNo: 4, Center: "School"}
	if _, err := repo.Insert(ctx, dup); err == nil {
		t.Fatal("second insert with the same natural key should fail")
	}

	n, _ := repo.Count(ctx, domain.RecordTypeCenter)
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}
