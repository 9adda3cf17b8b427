package s3

import (
	"bytes"
	"fmt"
	"image"
)

// DefaultMaxImagePixels 是解碼前允許的最大像素數
const DefaultMaxImagePixels = 4096 * 4096

var ErrImageDimensionType *ImageDimensionError

type ImageDimensionError struct {
	Width     int
	Height    int
	MaxPixels int
}

func (e *ImageDimensionError) Error() string {
	return fmt.Sprintf("image of %dx%d exceeds limit of %d pixels", e.Width, e.Height, e.MaxPixels)
}

// CheckImageDimensions 只讀取圖片標頭取得寬高，像素數超過 maxPixels
// 時回傳 ImageDimensionError，在完整解碼之前擋下解壓縮後過大的圖片
func CheckImageDimensions(data []byte, maxPixels int) (image.Config, error) {
	const op = "CheckImageDimensions"
	config, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, fmt.Errorf("[%s] Fail to read image header, err=%w", op, err)
	}
	if config.Width <= 0 || config.Height <= 0 {
		return image.Config{}, fmt.Errorf("[%s] Invalid image size %dx%d", op, config.Width, config.Height)
	}
	// 先以單邊比較，避免寬高相乘溢位
	if config.Width > maxPixels || config.Height > maxPixels || config.Width > maxPixels/config.Height {
		return config, &ImageDimensionError{Width: config.Width, Height: config.Height, MaxPixels: maxPixels}
	}
	return config, nil
}
