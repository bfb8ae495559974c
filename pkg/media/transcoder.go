package media

import (
	"github.com/ilkoid/nerobot/pkg/config"
	"github.com/ilkoid/nerobot/pkg/utils"
)

// Transcoder ограничивает длинную сторону картинки и перекодирует её в JPEG.
type Transcoder struct {
	MaxSide int
	Quality int
}

// NewTranscoder создаёт Transcoder из секции image_processing.
func NewTranscoder(cfg config.ImageProcConfig) Transcoder {
	return Transcoder{MaxSide: cfg.MaxWidth, Quality: cfg.Quality}
}

// Transcode возвращает JPEG с длинной стороной не больше MaxSide.
func (t Transcoder) Transcode(data []byte) ([]byte, error) {
	return utils.ResizeImage(data, t.MaxSide, t.Quality)
}
