// Обработка изображений перед отправкой в vision-модель.
package utils

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // Регистрируем GIF декодер
	"image/jpeg"
	_ "image/png" // Регистрируем PNG декодер

	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp" // Mastodon часто отдаёт WebP
)

// ResizeImage ужимает изображение так, чтобы длинная сторона не превышала maxSide,
// сохраняя пропорции.
//
// Параметры:
//   - data: байты исходного изображения (JPEG, PNG, GIF, WebP)
//   - maxSide: предел по длинной стороне в пикселях. Если 0 или картинка меньше — ресайз не применяется.
//   - quality: качество JPEG при кодировании (1-100). Рекомендуется 85.
//
// Возвращает байты JPEG изображения (для LLM и base64).
func ResizeImage(data []byte, maxSide int, quality int) ([]byte, error) {
	// 1. Декодируем изображение
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	// 2. Проверяем нужен ли ресайз
	if maxSide > 0 && (width > maxSide || height > maxSide) {
		// 3. resize сам считает вторую сторону, если передать 0
		if width >= height {
			img = resize.Resize(uint(maxSide), 0, img, resize.Lanczos3)
		} else {
			img = resize.Resize(0, uint(maxSide), img, resize.Lanczos3)
		}
	}

	// 4. Кодируем в JPEG (в том числе без ресайза — для консистентности)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode to jpeg: %w", err)
	}

	return buf.Bytes(), nil
}
