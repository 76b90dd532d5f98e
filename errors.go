package lookdev

import (
	"errors"
	"fmt"
	"strings"
)

// SceneAccessError reports a failed read or mutation of the host scene,
// usually raised by a SceneAdapter implementation.
type SceneAccessError struct {
	Op       string
	Material MaterialID
	Err      error
}

func (e *SceneAccessError) Error() string {
	if e.Material != "" {
		return fmt.Sprintf("scene access: %s: material %s: %v", e.Op, e.Material, e.Err)
	}
	return fmt.Sprintf("scene access: %s: %v", e.Op, e.Err)
}

func (e *SceneAccessError) Unwrap() error { return e.Err }

// sceneErr wraps err into a SceneAccessError unless it already is one.
func sceneErr(op string, mat MaterialID, err error) error {
	var sa *SceneAccessError
	if errors.As(err, &sa) {
		return err
	}
	return &SceneAccessError{Op: op, Material: mat, Err: err}
}

// BakeError reports a render-backend bake failure for one channel of one
// material. It is recoverable per material: the run continues with the
// remaining materials.
type BakeError struct {
	Material MaterialID
	Channel  Channel
	Err      error
}

func (e *BakeError) Error() string {
	return fmt.Sprintf("bake %s/%s: %v", e.Material, e.Channel, e.Err)
}

func (e *BakeError) Unwrap() error { return e.Err }

// CacheIOError reports a failed cache read or write. Cache failures never
// abort a run; the orchestrator falls back to baking.
type CacheIOError struct {
	Op  string
	Err error
}

func (e *CacheIOError) Error() string {
	return fmt.Sprintf("material cache: %s: %v", e.Op, e.Err)
}

func (e *CacheIOError) Unwrap() error { return e.Err }

// BundleFinalizeError reports a consistency violation found while sealing a
// bundle. No manifest is written when finalize fails.
type BundleFinalizeError struct {
	Missing []string
	Err     error
}

func (e *BundleFinalizeError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("bundle finalize: missing artifacts: %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("bundle finalize: %v", e.Err)
}

func (e *BundleFinalizeError) Unwrap() error { return e.Err }
