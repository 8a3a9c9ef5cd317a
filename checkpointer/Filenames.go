package checkpointer

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FilenameEnumerator returns a function which returns a new filename
// each time it is called, formed by appending a counter and the
// extension to prefix. The first filename uses the counter start + 1.
func FilenameEnumerator(start int, prefix, extension string) func() string {
	i := start
	return func() string {
		i++
		return fmt.Sprintf("%v%v%v", prefix, i, extension)
	}
}

// FileTimer returns a function which returns filenames formed by
// appending the current Unix time in nanoseconds and the extension to
// prefix.
func FileTimer(prefix, extension string) func() string {
	return func() string {
		return fmt.Sprintf("%v-%v%v", prefix, time.Now().UnixNano(),
			extension)
	}
}

// FileUUID returns a function which returns filenames formed by
// appending a random UUID and the extension to prefix, so that
// concurrent runs never write to the same file.
func FileUUID(prefix, extension string) func() string {
	return func() string {
		return fmt.Sprintf("%v-%v%v", prefix, uuid.New(), extension)
	}
}
