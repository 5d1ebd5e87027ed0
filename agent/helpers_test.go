package agent

import (
	"context"
	"encoding/json"

	"github.com/BaSui01/fixflow/tools"
)

// toolsSpecStub is a minimal tool for runner tests.
type toolsSpecStub struct {
	name  string
	calls int
}

func (s *toolsSpecStub) spec() *tools.Spec {
	return &tools.Spec{
		Name:        s.name,
		Description: "test tool",
		Fields: []tools.FieldSpec{
			{Name: "text", Type: tools.FieldString},
		},
		Handler: func(context.Context, json.RawMessage) (json.RawMessage, error) {
			s.calls++
			return json.RawMessage(`{"ok":true}`), nil
		},
	}
}
