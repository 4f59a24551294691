package checkpointer

import (
	"fmt"
	"sync"
)

// FilenameEnumerator returns a function which returns filenames with an
// increasing integer suffix: filename+"1"+extension on the first call
// when start is 0, then filename+"2"+extension, and so on. The
// filename includes its path and the extension includes any leading
// dot. The returned function is safe for concurrent use.
func FilenameEnumerator(start int, filename, extension string) func() string {
	var mu sync.Mutex
	i := start

	return func() string {
		mu.Lock()
		defer mu.Unlock()

		i++
		return fmt.Sprintf("%s%d%s", filename, i, extension)
	}
}
