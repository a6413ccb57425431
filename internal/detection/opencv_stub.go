//go:build !gocv

package detection

import "fmt"

func init() {
	Register(opencvLoader{})
}

// opencvLoader stands in for the OpenCV backend in builds without gocv.
type opencvLoader struct{}

func (opencvLoader) Name() string { return BackendOpenCV }

func (opencvLoader) Load(path string) (Model, error) {
	return nil, fmt.Errorf("%w: %s: opencv backend not compiled in (rebuild with -tags gocv and OpenCV 4 installed)", ErrModelLoad, path)
}
