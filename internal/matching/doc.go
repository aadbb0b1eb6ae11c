// Package matching resolves a source track to at most one destination track.
//
// [Score] compares a source title/artist pair with a candidate using a
// normalized Levenshtein ratio, weighting the title at 0.7 and the artist at 0.3.
//
// A [Matcher] searches the destination catalog, scores every candidate against
// the original source track, and accepts the best one only when it clears the
// threshold for its [Mode]. [AIAssisted] re-queries with a suggested title and
// uses a lower bar, since the suggestion is already a semantic guess.
package matching
