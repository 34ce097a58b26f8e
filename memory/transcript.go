package memory

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// Call is one answered tool call.
type Call struct {
	CallID string `json:"call_id"`
	Tool   string `json:"tool"`
	Title  string `json:"title,omitempty"`
	Output string `json:"output"`
	Result string `json:"result"`
}

type Transcript struct {
	ThreadID   string    `json:"thread_id"`
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	LastError  string    `json:"last_error,omitempty"`
	Polls      int       `json:"polls"`
	Calls      []Call    `json:"calls"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// LoadTranscript returns nil, nil when path does not exist.
func LoadTranscript(path string) (*Transcript, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var t Transcript
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func SaveTranscript(path string, t Transcript) error {
	if t.Calls == nil {
		t.Calls = []Call{}
	}
	b, err := json.MarshalIndent(t, "", " ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o644)
}
