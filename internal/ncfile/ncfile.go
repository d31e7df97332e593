// Package ncfile reads header information from NetCDF files.
package ncfile

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/batchatco/go-native-netcdf/netcdf"
)

// Kind identifies the on-disk container of a forecast file.
type Kind string

const (
	KindCDF     Kind = "cdf"
	KindHDF5    Kind = "hdf5"
	KindGRIB    Kind = "grib"
	KindUnknown Kind = "unknown"
)

var hdf5Magic = []byte{0x89, 'H', 'D', 'F'}

// Info summarises a NetCDF file.
type Info struct {
	Path       string            `json:"path"`
	Kind       Kind              `json:"kind"`
	Size       int64             `json:"size"`
	Variables  []string          `json:"variables"`
	Dimensions map[string]uint64 `json:"dimensions,omitempty"`
	Attributes []string          `json:"attributes,omitempty"`
}

// DetectKind sniffs the file signature. Control forecasts arrive as GRIB even
// when they carry a .nc name, so the extension alone is not trusted.
func DetectKind(path string) (Kind, error) {
	f, err := os.Open(path)
	if err != nil {
		return KindUnknown, err
	}
	defer f.Close()

	var head [4]byte
	n, err := io.ReadFull(f, head[:])
	if err != nil && err != io.ErrUnexpectedEOF {
		if err == io.EOF {
			return KindUnknown, nil
		}
		return KindUnknown, err
	}
	return kindOf(head[:n]), nil
}

func kindOf(head []byte) Kind {
	switch {
	case len(head) >= 3 && string(head[:3]) == "CDF":
		return KindCDF
	case len(head) >= 4 && string(head[:4]) == string(hdf5Magic):
		return KindHDF5
	case len(head) >= 4 && string(head[:4]) == "GRIB":
		return KindGRIB
	default:
		return KindUnknown
	}
}

// Inspect opens path as NetCDF (classic or NetCDF-4) and lists its contents.
func Inspect(path string) (Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		return Info{}, err
	}

	kind, err := DetectKind(path)
	if err != nil {
		return Info{}, err
	}

	info := Info{Path: path, Kind: kind, Size: st.Size()}
	if kind != KindCDF && kind != KindHDF5 {
		return info, fmt.Errorf("%s is not a NetCDF file (detected %s)", path, kind)
	}

	nc, err := netcdf.Open(path)
	if err != nil {
		return info, fmt.Errorf("open %s: %w", path, err)
	}
	defer nc.Close()

	info.Variables = nc.ListVariables()
	sort.Strings(info.Variables)

	dims := nc.ListDimensions()
	if len(dims) > 0 {
		info.Dimensions = make(map[string]uint64, len(dims))
		for _, name := range dims {
			if size, ok := nc.GetDimension(name); ok {
				info.Dimensions[name] = size
			}
		}
	}

	if attrs := nc.Attributes(); attrs != nil {
		info.Attributes = attrs.Keys()
	}

	return info, nil
}
