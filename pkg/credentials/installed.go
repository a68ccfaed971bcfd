package credentials

// InstalledSet holds the primary account suffixes already provisioned on a device.
// A nil InstalledSet is empty.
type InstalledSet map[string]struct{}

// NewInstalledSet returns an InstalledSet containing suffixes.
func NewInstalledSet(suffixes ...string) InstalledSet {
	rv := make(InstalledSet, len(suffixes))
	for _, suffix := range suffixes {
		rv[suffix] = struct{}{}
	}

	return rv
}

// Contains returns true if suffix is in the InstalledSet.
func (self InstalledSet) Contains(suffix string) bool {
	_, found := self[suffix]
	return found
}

// Len returns the number of suffixes in the InstalledSet.
func (self InstalledSet) Len() int {
	return len(self)
}
