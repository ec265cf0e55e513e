package tool

import "context"

// Tool is an action the model may request. Parameters is a JSON Schema object.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, params map[string]any) (string, error)
}
