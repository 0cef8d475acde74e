// Package classify assigns a role and a sampling priority to discovered pages.
//
// Roles come from an ordered rule list evaluated against URL path segments,
// the anchor text that led to the page and the form/media signals found by
// the crawler. The first matching rule wins and pages matching no rule are
// RoleOther. Priorities come from a fixed role table. User rules loaded from
// the configuration file are evaluated before the built-in ones.
//
// Classification is a pure function of the page: the same page always
// yields the same role, priority and tags.
package classify
