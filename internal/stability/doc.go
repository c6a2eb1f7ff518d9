// Package stability gates discovered files on size invariance.
//
// A file is considered safe to queue once its size has held steady for a
// configured number of consecutive samples. Files that keep growing until
// the timeout are reported as still writing; files that disappear mid-check
// are reported as vanished. Each check runs independently so slow copies
// never block discovery of other files.
package stability
