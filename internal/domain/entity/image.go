package entity

import (
	"fmt"
	"strings"
)

// DefaultImageMimeType 默认图片类型
const DefaultImageMimeType = "image/png"

// DataURL 将 base64 数据组装为 data URL
func DataURL(mimeType, base64Data string) string {
	if mimeType == "" {
		mimeType = DefaultImageMimeType
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64Data)
}

// ParseDataURL 拆分 data URL 为 mime 类型与 base64 数据
func ParseDataURL(url string) (mimeType, base64Data string, err error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return "", "", fmt.Errorf("not a data url")
	}
	meta, data, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", fmt.Errorf("malformed data url")
	}
	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", "", fmt.Errorf("data url is not base64 encoded")
	}
	if mimeType == "" {
		mimeType = DefaultImageMimeType
	}
	if data == "" {
		return "", "", fmt.Errorf("empty data url payload")
	}
	return mimeType, data, nil
}
