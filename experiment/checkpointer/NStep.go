package checkpointer

import (
	"fmt"
	"os"
)

// nStep implements checkpointing every N cycles
type nStep struct {
	interval int
	object   Serializable // Object to save

	// filename returns the filename of the file to save the object in.
	// To save each checkpoint in a separate file with an incremented
	// number as a suffix (e.g. file1.bin, file2.bin, ..., fileK.bin),
	// use FilenameEnumerator:
	//
	// n, err := NewNStep(10, object, FilenameEnumerator(0, "file", ".bin"))
	filename func() string
}

// NewNStep returns a checkpointer that checkpoints every n cycles.
func NewNStep(n int, object Serializable,
	filename func() string) (Checkpointer, error) {
	if n < 1 {
		return nil, fmt.Errorf("newNStep: interval must be positive, "+
			"have %v", n)
	}
	return &nStep{
		interval: n,
		object:   object,
		filename: filename,
	}, nil
}

// Checkpoint saves the Checkpointer's tracked object if cycle is a
// multiple of the interval
func (n *nStep) Checkpoint(cycle int) error {
	if cycle%n.interval != 0 {
		return nil
	}

	filename := n.filename()
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("checkpoint: %v", err)
	}
	if err := n.object.Save(file); err != nil {
		file.Close()
		return fmt.Errorf("checkpoint: could not save %v: %v", filename, err)
	}
	return file.Close()
}
