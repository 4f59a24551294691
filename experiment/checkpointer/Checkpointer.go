// Package checkpointer implements Checkpointers, which periodically
// save the parameters of a policy during training
package checkpointer

import "io"

// Serializable is an object that can be saved/serialized
type Serializable interface {
	Save(io.Writer) error
}

// Checkpointer checkpoints/saves serializable objects based on the
// number of completed training cycles
type Checkpointer interface {
	Checkpoint(cycle int) error
}
