// Package watcher reports file changes under a directory tree using
// fsnotify.
//
// Events are debounced so editors that write a file in several steps
// produce one event, and are delivered in batches:
//
//	w, err := watcher.New(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	if err := w.Watch("/path/to/docs"); err != nil {
//	    return err
//	}
//	go func() { _ = w.Run(ctx) }()
//	for batch := range w.Events() {
//	    for _, ev := range batch {
//	        // ev.Operation is OpCreate, OpModify, OpDelete or OpRename
//	    }
//	}
package watcher
