package lognode

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/atlasfit/automation/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_RendersMessage(t *testing.T) {
	factory := NewFactory()

	node, err := factory.Create(map[string]any{
		"message": "member {{.trigger_data.member_id}} checked in",
	})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	result, err := node.Execute(context.Background(), &models.ExecutionContext{
		TriggerData: map[string]any{"member_id": "m-7"},
	}, logger)

	require.NoError(t, err)
	assert.Equal(t, "member m-7 checked in", result.Output["message"])
}

func TestNode_NilConfig(t *testing.T) {
	factory := NewFactory()

	node, err := factory.Create(nil)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	result, err := node.Execute(context.Background(), &models.ExecutionContext{}, logger)

	require.NoError(t, err)
	assert.Equal(t, "", result.Output["message"])
}
