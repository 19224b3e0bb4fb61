package imagestore

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

var (
	// ErrTooLarge 图片超过配置的大小上限。
	ErrTooLarge = errors.New("image too large")
	// ErrUnsupportedType 不支持的图片格式（仅 JPEG/PNG）。
	ErrUnsupportedType = errors.New("unsupported image type")
)

const (
	mimeJPEG = "image/jpeg"
	mimePNG  = "image/png"
)

var imageExts = map[string]string{
	mimeJPEG: ".jpg",
	mimePNG:  ".png",
}

// SavedImage 描述一张已落盘的商品图片。
type SavedImage struct {
	Name      string // 原图文件名（uuid + 扩展名）
	Path      string // 原图磁盘路径
	ThumbName string // 缩略图文件名
	ThumbPath string // 缩略图磁盘路径
}

// Store 把上传的商品图片保存到本地磁盘。
//
// 文件名使用 UUID，避免用户提供的文件名带来的路径穿越和重名问题；
// 保存原图的同时生成一张定宽缩略图用于列表页。
type Store struct {
	dir        string
	maxSize    int64
	thumbWidth int
}

// New 创建图片存储，目录不存在时自动创建。
func New(dir string, maxSize int64, thumbWidth int) (*Store, error) {
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if maxSize <= 0 {
		maxSize = 5 << 20
	}
	if thumbWidth <= 0 {
		thumbWidth = 480
	}
	return &Store{dir: dir, maxSize: maxSize, thumbWidth: thumbWidth}, nil
}

// Save 校验并保存一张图片。
//
// 校验顺序：大小 → 魔数嗅探出的 MIME 类型 → 可被解码。
// 任何一步失败都不会在磁盘上留下文件。
func (s *Store) Save(r io.Reader) (*SavedImage, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, ErrTooLarge
	}

	ctype := http.DetectContentType(data)
	ext, ok := imageExts[ctype]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, ctype)
	}

	original, err := decodeImage(bytes.NewReader(data), ctype)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	thumb, err := resizeImage(original, s.thumbWidth, ctype)
	if err != nil {
		return nil, fmt.Errorf("resize image: %w", err)
	}

	name := uuid.New().String()
	img := &SavedImage{
		Name:      name + ext,
		ThumbName: name + "_thumb" + ext,
	}
	img.Path = filepath.Join(s.dir, img.Name)
	img.ThumbPath = filepath.Join(s.dir, img.ThumbName)

	if err := os.WriteFile(img.Path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write image: %w", err)
	}
	if err := os.WriteFile(img.ThumbPath, thumb, 0o644); err != nil {
		_ = os.Remove(img.Path)
		return nil, fmt.Errorf("write thumbnail: %w", err)
	}

	return img, nil
}

// Resolve 把存储的文件名还原为磁盘路径，拒绝目录之外的任何内容。
func (s *Store) Resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid image name %q", name)
	}
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("stat image: %w", err)
	}
	return path, nil
}

func decodeImage(r io.Reader, ctype string) (image.Image, error) {
	switch ctype {
	case mimeJPEG:
		return jpeg.Decode(r)
	case mimePNG:
		return png.Decode(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, ctype)
	}
}

// resizeImage 等比缩放到指定宽度；原图更窄时按原尺寸重新编码。
func resizeImage(original image.Image, width int, ctype string) ([]byte, error) {
	if original.Bounds().Dx() < width {
		width = original.Bounds().Dx()
	}
	ratio := float64(width) / float64(original.Bounds().Dx())
	height := int(float64(original.Bounds().Dy()) * ratio)
	if height < 1 {
		height = 1
	}

	bitmap := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(bitmap, bitmap.Bounds(), original, original.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	switch ctype {
	case mimeJPEG:
		if err := jpeg.Encode(&buf, bitmap, nil); err != nil {
			return nil, err
		}
	case mimePNG:
		if err := png.Encode(&buf, bitmap); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, ctype)
	}
	return buf.Bytes(), nil
}
