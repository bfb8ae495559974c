package bot

import "fmt"

// Stage — шаг цикла ответа, на котором произошла ошибка.
type Stage string

const (
	StageFetchStatus  Stage = "fetch_status"
	StageFetchContext Stage = "fetch_context"
	StageFlatten      Stage = "flatten"
	StagePickModel    Stage = "pick_model"
	StageRenderPrompt Stage = "render_prompt"
	StageGenerate     Stage = "generate"
	StagePostReply    Stage = "post_reply"
)

// StageError — ошибка цикла ответа с указанием шага и поста.
type StageError struct {
	Stage    Stage
	StatusID string
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s (status %s): %v", e.Stage, e.StatusID, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, statusID string, err error) *StageError {
	return &StageError{Stage: stage, StatusID: statusID, Err: err}
}
