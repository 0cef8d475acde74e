// Package cluster groups discovered pages into template groups by the
// similarity of their DOM skeletons.
//
// Clustering is incremental and one-pass: each page is compared against the
// representative of every existing group and joins the best group scoring at
// or above the threshold, or opens a new group. Earlier assignments are never
// revisited. Recluster runs a separate full pass when a caller wants groups
// rebuilt from scratch, for example after an outlier opened the first group.
package cluster
