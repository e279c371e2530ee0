//go:build !preprocess_gocv

package preprocess

func newDefaultEngine() Engine { return GoEngine{} }
