package plugin

import "sync"

// LoadAll reloads every collection concurrently, bounded by maxConcurrent
// simultaneous directory scans. This is the one place plugin loading
// fans out across goroutines; event dispatch (Collection.Process) always
// stays strictly serial, since concurrent callback invocation would break
// the single-in-flight-event guarantee the engine depends on.
//
// Adapted from the resource-group semaphore pattern used elsewhere in this
// codebase for bounding concurrent work, narrowed here to the reload phase
// only.
func LoadAll(collections []*Collection, maxConcurrent int) []error {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	sem := make(chan struct{}, maxConcurrent)
	errs := make([]error, len(collections))

	var wg sync.WaitGroup
	for i, c := range collections {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, c *Collection) {
			defer wg.Done()
			defer func() { <-sem }()
			errs[i] = c.Load()
		}(i, c)
	}
	wg.Wait()

	return errs
}
