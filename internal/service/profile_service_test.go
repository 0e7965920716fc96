package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func encodeTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestProfileServiceGetCreatesOnce(t *testing.T) {
	gdb := setupServiceTestDB(t)
	account := createTestAccount(t, gdb, "alice")
	svc := NewProfileService(gdb, nil, t.TempDir(), "/uploads")
	ctx := context.Background()

	first, err := svc.Get(ctx, account.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	second, err := svc.Get(ctx, account.ID)
	if err != nil {
		t.Fatalf("get profile again: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected the same profile, got %s and %s", first.ID, second.ID)
	}
}

func TestProfileServiceBiographyLimit(t *testing.T) {
	gdb := setupServiceTestDB(t)
	account := createTestAccount(t, gdb, "alice")
	svc := NewProfileService(gdb, nil, t.TempDir(), "/uploads")
	ctx := context.Background()

	bio := strings.Repeat("字", 200)
	profile, err := svc.UpdateBiography(ctx, account.ID, bio)
	if err != nil {
		t.Fatalf("update biography: %v", err)
	}
	if profile.Biography != bio {
		t.Fatal("biography not stored")
	}

	if _, err := svc.UpdateBiography(ctx, account.ID, bio+"多"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestProfileServiceSetPictureCreatesThumbnail(t *testing.T) {
	gdb := setupServiceTestDB(t)
	account := createTestAccount(t, gdb, "alice")
	dir := t.TempDir()
	svc := NewProfileService(gdb, nil, dir, "/uploads/")
	ctx := context.Background()

	profile, err := svc.SetPicture(ctx, account.ID, bytes.NewReader(encodeTestPNG(t, 400, 300)))
	if err != nil {
		t.Fatalf("set picture: %v", err)
	}
	if !strings.HasPrefix(profile.PictureURL, "/uploads/avatar-") {
		t.Fatalf("unexpected picture url: %s", profile.PictureURL)
	}

	stored := filepath.Join(dir, filepath.Base(profile.PictureURL))
	file, err := os.Open(stored)
	if err != nil {
		t.Fatalf("open stored picture: %v", err)
	}
	cfg, err := png.DecodeConfig(file)
	file.Close()
	if err != nil {
		t.Fatalf("decode stored picture: %v", err)
	}
	if cfg.Width != ProfilePictureSize || cfg.Height != ProfilePictureSize {
		t.Fatalf("expected %dx%d thumbnail, got %dx%d", ProfilePictureSize, ProfilePictureSize, cfg.Width, cfg.Height)
	}

	// 更换头像后旧文件被清理
	next, err := svc.SetPicture(ctx, account.ID, bytes.NewReader(encodeTestPNG(t, 64, 64)))
	if err != nil {
		t.Fatalf("replace picture: %v", err)
	}
	if _, err := os.Stat(stored); !os.IsNotExist(err) {
		t.Fatalf("expected old picture to be removed, stat err=%v", err)
	}
	if next.PictureURL == profile.PictureURL {
		t.Fatal("expected a new picture url")
	}
}

func TestProfileServiceSetPictureRejectsGarbage(t *testing.T) {
	gdb := setupServiceTestDB(t)
	account := createTestAccount(t, gdb, "alice")
	svc := NewProfileService(gdb, nil, t.TempDir(), "/uploads")

	_, err := svc.SetPicture(context.Background(), account.ID, strings.NewReader("definitely not an image"))
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestProfileServiceDeleteRestore(t *testing.T) {
	gdb := setupServiceTestDB(t)
	account := createTestAccount(t, gdb, "alice")
	svc := NewProfileService(gdb, nil, t.TempDir(), "/uploads")
	ctx := context.Background()

	if _, err := svc.UpdateBiography(ctx, account.ID, "hello"); err != nil {
		t.Fatalf("update biography: %v", err)
	}
	if _, err := svc.Delete(ctx, account.ID); err != nil {
		t.Fatalf("delete profile: %v", err)
	}
	if _, err := svc.Get(ctx, account.ID); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound for tombstoned profile, got %v", err)
	}

	restored, err := svc.Restore(ctx, account.ID)
	if err != nil {
		t.Fatalf("restore profile: %v", err)
	}
	if restored.Biography != "hello" {
		t.Fatalf("expected biography to survive, got %q", restored.Biography)
	}
}
