package artwork

import (
	"io/fs"
	"path"
	"strings"

	"code.issuerext.org/golang/internal/utils"
)

// Bundle holds the image assets shipped with the wallet, indexed by asset name.
// A nil *Bundle is empty.
type Bundle struct {
	assets *utils.Registry[string, Artwork]
}

// NewBundle returns an empty Bundle.
func NewBundle() *Bundle {
	return &Bundle{assets: utils.NewRegistry[string, Artwork]()}
}

// Add registers data under name.
// It errors if data is not a supported image or if name is already in use.
func (self *Bundle) Add(name string, data []byte) error {
	if "" == name {
		return newError(Error, "empty asset name")
	}
	art, err := Decode(data)
	if nil != err {
		return wrapError(err, ErrDecode, "invalid asset %s", name)
	}
	art.Source = SourceBundle

	err = self.assets.Add(name, art)

	return wrapError(err, Error, "can not add asset %s", name) // nil if err is nil
}

// AddFS registers the images in fsys matching pattern.
// Assets are named after their file name without extension.
// Directories and files that are not supported images are skipped.
// It returns the number of registered assets.
func (self *Bundle) AddFS(fsys fs.FS, pattern string) (int, error) {
	matches, err := fs.Glob(fsys, pattern)
	if nil != err {
		return 0, wrapError(err, Error, "invalid pattern %s", pattern)
	}

	var count int
	for _, filename := range matches {
		info, err := fs.Stat(fsys, filename)
		if nil != err {
			return count, wrapError(err, Error, "failed stat %s", filename)
		}
		if info.IsDir() {
			continue
		}
		data, err := fs.ReadFile(fsys, filename)
		if nil != err {
			return count, wrapError(err, Error, "failed reading %s", filename)
		}
		if _, err = Decode(data); nil != err {
			continue
		}
		base := path.Base(filename)
		name := strings.TrimSuffix(base, path.Ext(base))
		err = self.Add(name, data)
		if nil != err {
			return count, err
		}
		count += 1
	}

	return count, nil
}

// Load returns the Artwork registered under name.
func (self *Bundle) Load(name string) (Artwork, error) {
	if nil == self {
		return Artwork{}, newError(ErrNotBundled, "no asset %s in empty Bundle", name)
	}
	art, found := self.assets.Get(name)
	if !found {
		return Artwork{}, newError(ErrNotBundled, "no asset %s", name)
	}

	return art, nil
}

// Names returns the sorted list of asset names.
func (self *Bundle) Names() []string {
	if nil == self {
		return nil
	}
	return self.assets.Names()
}
