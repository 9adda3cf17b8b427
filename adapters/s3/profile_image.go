package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"path"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"gorm.io/gorm"

	"campus/models"
	"campus/profile"
)

const (
	DefaultMaxImageBytes     = 5 << 20
	DefaultMaxImageDimension = 512
	DefaultProfileKeyPrefix  = "profiles"
)

// IObjectStore 是上傳大頭貼需要的物件儲存
type IObjectStore interface {
	Put(ctx context.Context, key, contentType string, content []byte) (string, error)
}

type profileImageOptions struct {
	logger       *slog.Logger
	db           *gorm.DB
	maxBytes     int64
	maxPixels    int
	maxDimension int
	keyPrefix    string
}

type ProfileImageOption func(*profileImageOptions)

// WithLogger 設置日誌記錄器
func WithLogger(logger *slog.Logger) ProfileImageOption {
	return func(o *profileImageOptions) {
		o.logger = logger
	}
}

// WithImageRecords 設置用來記錄上傳紀錄的資料庫
func WithImageRecords(db *gorm.DB) ProfileImageOption {
	return func(o *profileImageOptions) {
		o.db = db
	}
}

// WithMaxBytes 設置原始檔案的大小上限
func WithMaxBytes(maxBytes int64) ProfileImageOption {
	return func(o *profileImageOptions) {
		o.maxBytes = maxBytes
	}
}

// WithMaxPixels 設置原始圖片解碼前允許的像素數上限
func WithMaxPixels(maxPixels int) ProfileImageOption {
	return func(o *profileImageOptions) {
		o.maxPixels = maxPixels
	}
}

// WithMaxDimension 設置輸出圖片的最長邊
func WithMaxDimension(maxDimension int) ProfileImageOption {
	return func(o *profileImageOptions) {
		o.maxDimension = maxDimension
	}
}

// WithKeyPrefix 設置物件 key 的前綴
func WithKeyPrefix(prefix string) ProfileImageOption {
	return func(o *profileImageOptions) {
		o.keyPrefix = prefix
	}
}

// ProfileImageUploader 檢查、縮放並上傳使用者的大頭貼
//
// 上傳的內容一律重新編碼為 PNG，原始檔案的中繼資料不會被保留。
// 同一個身份永遠寫到同一個 key，新的上傳會覆蓋舊的。
type ProfileImageUploader struct {
	store   IObjectStore
	logger  *slog.Logger
	options profileImageOptions
}

func NewProfileImageUploader(store IObjectStore, opts ...ProfileImageOption) (*ProfileImageUploader, error) {
	if store == nil {
		return nil, errors.New("object store cannot be nil")
	}

	// 默認選項
	options := profileImageOptions{
		logger:       slog.Default(),
		maxBytes:     DefaultMaxImageBytes,
		maxPixels:    DefaultMaxImagePixels,
		maxDimension: DefaultMaxImageDimension,
		keyPrefix:    DefaultProfileKeyPrefix,
	}

	// 應用自定義選項
	for _, opt := range opts {
		opt(&options)
	}

	if options.maxBytes <= 0 {
		return nil, errors.New("max bytes must be positive")
	}
	if options.maxPixels <= 0 {
		return nil, errors.New("max pixels must be positive")
	}
	if options.maxDimension <= 0 {
		return nil, errors.New("max dimension must be positive")
	}

	return &ProfileImageUploader{
		store:   store,
		logger:  options.logger.With(slog.String("caller", "ProfileImageUploader")),
		options: options,
	}, nil
}

// Upload 實作 profile.IAttachmentUploader
func (u *ProfileImageUploader) Upload(ctx context.Context, identityID uuid.UUID, attachment profile.Attachment) error {
	const op = "Upload"
	if int64(len(attachment.Data)) > u.options.maxBytes {
		return &ReachLimitError{MaxBytes: u.options.maxBytes}
	}
	if _, err := DetectSecureImage(attachment.Data); err != nil {
		return fmt.Errorf("[%s] Fail to accept %q, err=%w", op, attachment.Filename, err)
	}

	if _, err := CheckImageDimensions(attachment.Data, u.options.maxPixels); err != nil {
		return fmt.Errorf("[%s] Fail to accept %q, err=%w", op, attachment.Filename, err)
	}

	src, _, err := image.Decode(bytes.NewReader(attachment.Data))
	if err != nil {
		return fmt.Errorf("[%s] Fail to decode image, err=%w", op, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, Normalize(src, u.options.maxDimension)); err != nil {
		return fmt.Errorf("[%s] Fail to encode image, err=%w", op, err)
	}

	key := path.Join(u.options.keyPrefix, identityID.String()+".png")
	url, err := u.store.Put(ctx, key, "image/png", buf.Bytes())
	if err != nil {
		return fmt.Errorf("[%s] Fail to store image, err=%w", op, err)
	}
	u.logger.Debug("Profile image stored", slog.String("identityID", identityID.String()), slog.String("url", url))

	if u.options.db == nil {
		return nil
	}
	record := models.Image{
		UploaderID:  identityID,
		Url:         url,
		ContentType: "image/png",
		Size:        int64(buf.Len()),
	}
	if err := u.options.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("[%s] Fail to record image, err=%w", op, err)
	}
	return nil
}

// Normalize 將圖片等比例縮小到最長邊不超過 maxDim，較小的圖片只會被轉成 RGBA
func Normalize(src image.Image, maxDim int) *image.RGBA {
	bounds := src.Bounds()
	w, h := FitWithin(bounds.Dx(), bounds.Dy(), maxDim)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}

// FitWithin 計算等比例縮放後不超過 maxDim 的寬高
func FitWithin(width, height, maxDim int) (int, int) {
	if width <= 0 || height <= 0 || maxDim <= 0 {
		return maxDim, maxDim
	}
	if width <= maxDim && height <= maxDim {
		return width, height
	}
	if width >= height {
		return maxDim, max(1, height*maxDim/width)
	}
	return max(1, width*maxDim/height), maxDim
}
