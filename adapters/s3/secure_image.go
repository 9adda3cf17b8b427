package s3

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrInsecureImage = errors.New("unsupported image type")

// SecureMIMETypesExtension 定義了允許作為大頭貼的圖片類型及其對應的副檔名
var SecureMIMETypesExtension = map[string]string{
	"image/jpeg": "jpeg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/bmp":  "bmp",
	"image/tiff": "tiff",
	"image/webp": "webp",
}

// CheckSecureImageAndGetExtension 檢查給定的 MIME 類型是否為允許的圖片類型，並返回對應的副檔名
func CheckSecureImageAndGetExtension(mimeType string) (bool, string) {
	ext, ok := SecureMIMETypesExtension[mimeType]
	return ok, ext
}

// DetectSecureImage 依內容判斷 MIME 類型，忽略上傳時宣告的檔名與類型
func DetectSecureImage(data []byte) (string, error) {
	mimeType := http.DetectContentType(data)
	if ok, _ := CheckSecureImageAndGetExtension(mimeType); !ok {
		return "", fmt.Errorf("%w: %s", ErrInsecureImage, mimeType)
	}
	return mimeType, nil
}
