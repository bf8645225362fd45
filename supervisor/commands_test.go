package supervisor

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommands(t *testing.T) {
	log := &recorder{}
	cmds := NewCommands(slog.New(log))

	var got []string
	cmds.Register("Echo", func(args []string) error {
		got = args
		return nil
	})
	cmds.Register("fail", func([]string) error {
		return errors.New("no luck")
	})

	tests := []struct {
		name    string
		input   string
		handled bool
	}{
		{"known", "echo a b", true},
		{"case insensitive", "ECHO", true},
		{"failing command", "fail", true},
		{"unknown", "reload", false},
		{"blank", "   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.handled, cmds.Handle(tt.input))
		})
	}

	assert.Empty(t, got)
	assert.Equal(t, 1, log.count("command failed"))
	assert.Equal(t, []string{"echo", "fail"}, cmds.Names())
}

func TestCommandsArgs(t *testing.T) {
	cmds := NewCommands(nil)

	var got []string
	cmds.Register("say", func(args []string) error {
		got = args
		return nil
	})

	assert.True(t, cmds.Handle("say  hello   world"))
	assert.Equal(t, []string{"hello", "world"}, got)
}
