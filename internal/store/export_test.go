package store

// IsUniqueConflict exposes the conflict classifier to the external tests.
var IsUniqueConflict = isUniqueConflict
