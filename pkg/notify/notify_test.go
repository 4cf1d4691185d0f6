package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := SlogNotifier{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	n.Notify(context.Background(), Notification{
		Level:   LevelError,
		Kind:    KindGeneration,
		ShotID:  "shot-1",
		Message: "生成失败",
		Err:     errors.New("quota"),
	})

	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "shot_id=shot-1")
	assert.Contains(t, out, "error=quota")
}

func TestMulti(t *testing.T) {
	var a, b Recorder
	Multi(&a, nil, &b).Notify(context.Background(), Notification{Message: "x"})

	assert.Len(t, a.Notifications(), 1)
	assert.Len(t, b.Notifications(), 1)
}
