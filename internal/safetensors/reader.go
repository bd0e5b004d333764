// Package safetensors reads and writes the safetensors container format for
// integer tensors: an 8-byte little-endian header length, a JSON header that
// maps tensor names to dtype, shape and data offsets (plus an optional
// string-valued "__metadata__" object), then the raw little-endian data.
package safetensors

import "fmt"

// Tensor holds a single int32 tensor.
type Tensor struct {
	Name  string
	Shape []int64
	Data  []int32
}

// ReadFile opens path and returns its metadata and the tensor called name.
func ReadFile(path, name string) (map[string]string, *Tensor, error) {
	store, err := OpenStore(path)
	if err != nil {
		return nil, nil, err
	}
	defer store.Close()

	t, err := store.Tensor(name)
	if err != nil {
		return nil, nil, err
	}
	return store.Metadata(), t, nil
}

// Rows2 checks that t has shape [n, 2] and returns n.
func (t *Tensor) Rows2() (int, error) {
	if len(t.Shape) != 2 || t.Shape[1] != 2 {
		return 0, fmt.Errorf("safetensors: tensor %q has shape %v, expected [n 2]", t.Name, t.Shape)
	}
	return int(t.Shape[0]), nil
}
