package checkpointer

import "fmt"

// fileEnumerator enumerates filenames
type fileEnumerator struct {
	i    int
	name string
}

// filename returns the name of the next consecutive enumerated file
func (f *fileEnumerator) filename() string {
	f.i++
	return fmt.Sprintf("%v%v", f.name, f.i)
}

// FilenameEnumerator returns a function which will return checkpoint
// names with a counter integer suffix. Each time the returned function
// is called, the counter suffix will be one higher than on the
// previous call, starting at start + 1.
func FilenameEnumerator(start int, name string) func() string {
	enum := fileEnumerator{i: start, name: name}

	return enum.filename
}
