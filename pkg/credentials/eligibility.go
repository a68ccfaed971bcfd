package credentials

// Eligible returns the creds whose PrimaryAccountSuffix is not in installed.
//
// Eligible is a stable filter, it keeps creds order. It never fails, an empty installed
// set selects all creds.
func Eligible(creds []Credential, installed InstalledSet) []Credential {
	rv := make([]Credential, 0, len(creds))
	for _, cred := range creds {
		if !installed.Contains(cred.PrimaryAccountSuffix) {
			rv = append(rv, cred)
		}
	}

	return rv
}
