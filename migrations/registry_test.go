package migrations

import (
	"context"
	"errors"
	"io/fs"
	"testing"
)

func TestFilesystems_ResolveBothDialects(t *testing.T) {
	filesystems, err := Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected postgres and sqlite filesystems, got %d", len(filesystems))
	}
	for _, spec := range filesystems {
		matches, err := fs.Glob(spec.FS, "*.up.sql")
		if err != nil {
			t.Fatalf("glob %s: %v", spec.Dialect, err)
		}
		if len(matches) == 0 {
			t.Fatalf("expected up migrations for %s", spec.Dialect)
		}
	}
}

func TestRegister_CallsEachValidatedDialect(t *testing.T) {
	called := map[string]int{}
	reg, err := Register(context.Background(), func(_ context.Context, dialect string, label string, fsys fs.FS) error {
		if label != "go-leads" {
			t.Fatalf("unexpected source label %q", label)
		}
		if fsys == nil {
			t.Fatalf("expected filesystem for %s", dialect)
		}
		called[dialect]++
		return nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if called[DialectPostgres] != 1 || called[DialectSQLite] != 1 {
		t.Fatalf("expected one call per dialect, got %v", called)
	}
	if len(reg.Filesystems) != 2 {
		t.Fatalf("expected registration to record filesystems, got %d", len(reg.Filesystems))
	}
}

func TestRegister_HonorsValidationTargets(t *testing.T) {
	called := map[string]int{}
	_, err := Register(context.Background(), func(_ context.Context, dialect string, _ string, _ fs.FS) error {
		called[dialect]++
		return nil
	}, WithValidationTargets(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if called[DialectPostgres] != 0 || called[DialectSQLite] != 1 {
		t.Fatalf("expected only sqlite to register, got %v", called)
	}
}

func TestRegister_PropagatesCallbackError(t *testing.T) {
	wantErr := errors.New("runner rejected")
	_, err := Register(context.Background(), func(context.Context, string, string, fs.FS) error {
		return wantErr
	})
	if err == nil || !errors.Is(err, wantErr) {
		t.Fatalf("expected callback error, got %v", err)
	}
}
