// Package objsearch searches locally processed image collections by the objects
// detected in them.
//
// A batch runs an external detector over a set of images and persists one JSON
// metadata document per batch. Searches select images by class with per-class
// count upper bounds, combined with AND or OR.
//
//	client, _ := objsearch.New(
//	    objsearch.WithProcessedDir("data/processed"),
//	    objsearch.WithDetectorCommand("python3", "scripts/detect.py"),
//	)
//	batch, _ := client.ProcessDir(ctx, "photos/", 50, "")
//	hits, _ := client.Search(ctx, batch.MetadataPath, objsearch.SearchParams{
//	    SelectedClasses: []string{"dog", "person"},
//	    SearchMode:      objsearch.ModeAnd,
//	    Thresholds:      map[string]objsearch.Threshold{"dog": objsearch.AtMost(2)},
//	})
package objsearch
