package geo

// WorkLocation はチェックイン時点の勤務場所区分
type WorkLocation string

const (
	WorkLocationUnset  WorkLocation = ""
	WorkLocationOffice WorkLocation = "office"
	WorkLocationRemote WorkLocation = "remote"
)

func (w WorkLocation) Valid() bool {
	return w == WorkLocationOffice || w == WorkLocationRemote
}

// Classify returns office if any fence contains p, remote otherwise
// (including an empty fence set). fences is only read.
func Classify[F Fence](p Coordinate, fences []F) WorkLocation {
	for i := range fences {
		if IsWithin(p, fences[i]) {
			return WorkLocationOffice
		}
	}
	return WorkLocationRemote
}
