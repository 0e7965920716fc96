package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	_ "image/jpeg"

	"github.com/betterlyfe/internal/db"
	"github.com/betterlyfe/internal/logger"
	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// ProfilePictureSize 为头像缩略图的边长
	ProfilePictureSize = 256
	// MaxPictureBytes 为上传头像的最大字节数
	MaxPictureBytes = 5 << 20
)

// ProfileService 负责维护账户的个人资料与头像
type ProfileService struct {
	db        *gorm.DB
	log       *logger.Logger
	uploadDir string
	urlPrefix string
	now       func() time.Time
}

// NewProfileService 构造 ProfileService，头像写入 uploadDir 并以 urlPrefix 对外暴露
func NewProfileService(gdb *gorm.DB, log *logger.Logger, uploadDir, urlPrefix string) *ProfileService {
	return &ProfileService{
		db:        gdb,
		log:       logger.OrNop(log).With("service", "profile"),
		uploadDir: uploadDir,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
		now:       time.Now,
	}
}

// Get 返回账户的个人资料，不存在时创建一条空记录
func (s *ProfileService) Get(ctx context.Context, accountID uuid.UUID) (*db.Profile, error) {
	var profile db.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.loadOrCreate(tx, accountID, &profile)
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateBiography 更新个人简介，超过 MaxBiographyRunes 字时返回 ErrInvalidArgument
func (s *ProfileService) UpdateBiography(ctx context.Context, accountID uuid.UUID, biography string) (*db.Profile, error) {
	biography = strings.TrimSpace(biography)
	if utf8.RuneCountInString(biography) > db.MaxBiographyRunes {
		return nil, invalidArgument("biography must be at most %d characters", db.MaxBiographyRunes)
	}

	var profile db.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.loadOrCreate(tx, accountID, &profile); err != nil {
			return err
		}
		profile.Biography = biography
		if err := tx.Model(&profile).Update("biography", biography).Error; err != nil {
			return fmt.Errorf("update biography: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// SetPicture 解码上传的 PNG/JPEG/WebP 图片，居中裁剪并缩放为缩略图后以 PNG 保存
func (s *ProfileService) SetPicture(ctx context.Context, accountID uuid.UUID, r io.Reader) (*db.Profile, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxPictureBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read picture: %w", err)
	}
	if len(raw) > MaxPictureBytes {
		return nil, invalidArgument("picture exceeds %d bytes", MaxPictureBytes)
	}

	thumb, err := thumbnail(raw, ProfilePictureSize)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	name := fmt.Sprintf("avatar-%s.png", uuid.NewString())
	target := filepath.Join(s.uploadDir, name)
	if err := os.WriteFile(target, thumb, 0o644); err != nil {
		return nil, fmt.Errorf("write picture: %w", err)
	}

	var (
		profile db.Profile
		oldURL  string
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.loadOrCreate(tx, accountID, &profile); err != nil {
			return err
		}
		oldURL = profile.PictureURL
		profile.PictureURL = path.Join(s.urlPrefix, name)
		if err := tx.Model(&profile).Update("picture_url", profile.PictureURL).Error; err != nil {
			return fmt.Errorf("update picture: %w", err)
		}
		return nil
	})
	if err != nil {
		_ = os.Remove(target)
		return nil, err
	}

	if old := s.localPath(oldURL); old != "" {
		if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
			s.log.Warn("failed to delete old picture", "path", old, "error", err)
		}
	}
	return &profile, nil
}

// Delete 软删除个人资料
func (s *ProfileService) Delete(ctx context.Context, accountID uuid.UUID) (*db.Profile, error) {
	profile, err := s.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return softDelete[db.Profile](ctx, s.db, profile.ID, ownedBy(accountID), ErrProfileNotFound, s.now())
}

// Restore 恢复被软删除的个人资料
func (s *ProfileService) Restore(ctx context.Context, accountID uuid.UUID) (*db.Profile, error) {
	var profile db.Profile
	if err := s.db.WithContext(ctx).Unscoped().Where("account_id = ?", accountID).First(&profile).Error; err != nil {
		return nil, translateLookup(err, ErrProfileNotFound, "find profile")
	}
	return restoreDeleted[db.Profile](ctx, s.db, profile.ID, ownedBy(accountID), ErrProfileNotFound)
}

// loadOrCreate 按账户加载资料。已被软删除的资料保持墓碑状态并返回 ErrProfileNotFound
func (s *ProfileService) loadOrCreate(tx *gorm.DB, accountID uuid.UUID, profile *db.Profile) error {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&db.Profile{AccountID: accountID}).Error; err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	if err := tx.Where("account_id = ?", accountID).First(profile).Error; err != nil {
		return translateLookup(err, ErrProfileNotFound, "find profile")
	}
	return nil
}

func (s *ProfileService) localPath(url string) string {
	if url == "" || !strings.HasPrefix(url, s.urlPrefix+"/") {
		return ""
	}
	name := path.Base(url)
	if name == "." || name == "/" {
		return ""
	}
	return filepath.Join(s.uploadDir, name)
}

// thumbnail 居中裁剪为正方形并缩放到 size，输出 PNG
func thumbnail(raw []byte, size int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, invalidArgument("unsupported picture: %v", err)
	}

	b := img.Bounds()
	side := min(b.Dx(), b.Dy())
	if side == 0 {
		return nil, invalidArgument("picture is empty")
	}
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	square := image.Rect(x0, y0, x0+side, y0+side)

	target := min(size, side)
	dst := image.NewRGBA(image.Rect(0, 0, target, target))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, square, draw.Over, nil)

	var out bytes.Buffer
	if err := png.Encode(&out, dst); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return out.Bytes(), nil
}
