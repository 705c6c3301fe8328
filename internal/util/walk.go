package util

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// WalkFunc processes one regular file
type WalkFunc func(path string, err error) error

// SkipFunc reports whether a path should be left out of the walk
type SkipFunc func(path string, isDir bool) bool

type walkItem struct {
	path string
}

// WalkDirTree walks root and hands every regular file that is not skipped to
// numThreads workers. Worker errors are logged and do not stop the walk.
func WalkDirTree(root string, walkFn WalkFunc, skipPath SkipFunc, logger *zap.Logger, gcThreshold int64, numThreads int) error {
	if numThreads < 1 {
		numThreads = 1
	}

	processedCount := int64(0)
	workQueue := make(chan walkItem, numThreads)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := 0; i < numThreads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range workQueue {
				mu.Lock()
				processedCount++
				count := processedCount
				mu.Unlock()

				if gcThreshold > 0 && count%gcThreshold == 0 {
					logger.Info("WalkDirTree - Triggering GC after processing files",
						zap.Int64("files_processed", count))
					runtime.GC()
				}

				if err := walkFn(item.path, nil); err != nil {
					logger.Error("WalkDirTree - Failed to process file", zap.String("path", item.path), zap.Error(err))
				}
			}
		}()
	}

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && skipPath != nil && skipPath(path, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || (skipPath != nil && skipPath(path, false)) {
			return nil
		}
		workQueue <- walkItem{path: path}
		return nil
	})
	close(workQueue)

	wg.Wait()

	return err
}
