package conversation

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/ilkoid/nerobot/pkg/llm"
	"github.com/ilkoid/nerobot/pkg/utils"
)

// DescribePrompt — инструкция vision-модели для каждого изображения.
const DescribePrompt = "Describe the image."

// excerptWidth — сколько символов описания попадает в лог.
const excerptWidth = 100

// Fetcher скачивает вложение по URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Transcoder ужимает картинку перед отправкой в модель.
type Transcoder interface {
	Transcode(data []byte) ([]byte, error)
}

// Describer описывает картинки-вложения через vision-модель.
type Describer struct {
	vision     llm.Provider
	fetcher    Fetcher
	transcoder Transcoder
}

// NewDescriber создаёт Describer.
func NewDescriber(vision llm.Provider, fetcher Fetcher, transcoder Transcoder) *Describer {
	return &Describer{
		vision:     vision,
		fetcher:    fetcher,
		transcoder: transcoder,
	}
}

// Describe возвращает описание вложения в квадратных скобках.
//
// Не картинка или картинка без URL — пустая строка без сетевых вызовов
// и без ошибки. Ошибки скачивания, перекодирования и модели возвращаются
// вызывающему: политику решает Flattener.
func (d *Describer) Describe(ctx context.Context, attachment MediaAttachment) (string, error) {
	if attachment.Type != AttachmentImage {
		utils.Debug("media attachment wasn't an image", "attachment_id", attachment.ID, "type", attachment.Type)
		return "", nil
	}

	if attachment.URL == "" {
		utils.Debug("media attachment had no url", "attachment_id", attachment.ID)
		return "", nil
	}

	utils.Info("describing media attachment", "attachment_id", attachment.ID)

	raw, err := d.fetcher.Fetch(ctx, attachment.URL)
	if err != nil {
		return "", fmt.Errorf("fetch attachment %s: %w", attachment.ID, err)
	}

	img, err := d.transcoder.Transcode(raw)
	if err != nil {
		return "", fmt.Errorf("transcode attachment %s: %w", attachment.ID, err)
	}

	resp, err := d.vision.Generate(ctx, []llm.Message{
		{
			Role:    llm.RoleUser,
			Content: DescribePrompt,
			Images:  []string{dataURI(img)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("describe attachment %s: %w", attachment.ID, err)
	}

	text := strings.TrimSpace(resp.Content)
	utils.Info("description of media attachment",
		"attachment_id", attachment.ID,
		"description", utils.Excerpt(text, excerptWidth))

	return "[" + text + "]", nil
}

// dataURI кодирует картинку для image_url части сообщения.
func dataURI(img []byte) string {
	return "data:" + http.DetectContentType(img) + ";base64," + base64.StdEncoding.EncodeToString(img)
}
