// Package urlutil holds the URL helpers shared by the crawler, the page
// classifier and the selector: normalization for deduplication, glob
// matching of URL paths and domain scoping.
package urlutil
